package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Uptimer/internal/domain/heartbeat"
	"github.com/NordCoder/Uptimer/internal/domain/target"
)

func newSet() *Set { return NewSet(Config{}) }

func TestHTTP_OKResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Uptimer/1.0", r.UserAgent())
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := newSet().Probe(context.Background(), target.Target{Type: target.TypeHTTP, URL: srv.URL}, time.Second)
	assert.Equal(t, heartbeat.StatusUp, res.Status)
	assert.Equal(t, "HTTP 200", res.Message)
	require.NotNil(t, res.Ping)
	assert.Greater(t, *res.Ping, int64(0))
}

func TestHTTP_SendsConfiguredRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "yes", r.Header.Get("X-Probe"))
		buf := make([]byte, 16)
		n, _ := r.Body.Read(buf)
		assert.Equal(t, "ping", string(buf[:n]))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	res := newSet().Probe(context.Background(), target.Target{
		Type:    target.TypeHTTP,
		URL:     srv.URL,
		Method:  "post",
		Headers: map[string]string{"X-Probe": "yes"},
		Body:    "ping",
	}, time.Second)
	assert.Equal(t, heartbeat.StatusUp, res.Status)
	assert.Equal(t, "HTTP 204", res.Message)
}

func TestHTTP_ServerErrorIsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res := newSet().Probe(context.Background(), target.Target{Type: target.TypeHTTP, URL: srv.URL}, time.Second)
	assert.Equal(t, heartbeat.StatusDown, res.Status)
	assert.Equal(t, "HTTP 503 Service Unavailable", res.Message)
}

func TestHTTP_Keyword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>status: all good</html>"))
	}))
	defer srv.Close()

	found := newSet().Probe(context.Background(), target.Target{Type: target.TypeKeyword, URL: srv.URL, Keyword: "all good"}, time.Second)
	assert.Equal(t, heartbeat.StatusUp, found.Status)

	missing := newSet().Probe(context.Background(), target.Target{Type: target.TypeKeyword, URL: srv.URL, Keyword: "degraded"}, time.Second)
	assert.Equal(t, heartbeat.StatusDown, missing.Status)
	assert.Equal(t, `Keyword "degraded" not found in response`, missing.Message)
}

func TestHTTP_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	res := newSet().Probe(context.Background(), target.Target{Type: target.TypeHTTP, URL: srv.URL}, 50*time.Millisecond)
	assert.Equal(t, heartbeat.StatusDown, res.Status)
	assert.Equal(t, "Timeout after 0.05s", res.Message)
	require.NotNil(t, res.Ping)
	assert.GreaterOrEqual(t, *res.Ping, int64(50))
}

func TestHTTP_ParentCancelAbortsRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	res := newSet().Probe(ctx, target.Target{Type: target.TypeHTTP, URL: srv.URL}, 10*time.Second)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, heartbeat.StatusDown, res.Status)
	assert.Contains(t, res.Message, context.Canceled.Error())
	assert.NotContains(t, res.Message, "Timeout after")
}

func TestUpsideDownInvertsEveryType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := newSet().Probe(context.Background(), target.Target{Type: target.TypeHTTP, URL: srv.URL, UpsideDown: true}, time.Second)
	assert.Equal(t, heartbeat.StatusUp, res.Status)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	closed := newSet().Probe(context.Background(), target.Target{Type: target.TypeTCP, Hostname: "127.0.0.1", Port: port, UpsideDown: true}, time.Second)
	assert.Equal(t, heartbeat.StatusUp, closed.Status)
}

func TestTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	res := newSet().Probe(context.Background(), target.Target{Type: target.TypeTCP, Hostname: host, Port: port}, time.Second)
	assert.Equal(t, heartbeat.StatusUp, res.Status)
	assert.Equal(t, "Port is open", res.Message)

	bad := newSet().Probe(context.Background(), target.Target{Type: target.TypeTCP, Hostname: host}, time.Second)
	assert.Equal(t, heartbeat.StatusDown, bad.Status)
}

func TestReachability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res := newSet().Probe(context.Background(), target.Target{Type: target.TypeReachability, Hostname: srv.URL}, time.Second)
	assert.Equal(t, heartbeat.StatusUp, res.Status, "4xx still counts as reachable")
	assert.Regexp(t, `^Reachable \(\d+ms\)$`, res.Message)

	res = newSet().Probe(context.Background(), target.Target{Type: target.TypeReachability, Hostname: srv.URL + "/broken"}, time.Second)
	assert.Equal(t, heartbeat.StatusDown, res.Status)
}

type fakeResolver struct {
	addrs []string
	err   error
}

func (f fakeResolver) LookupHost(context.Context, string) ([]string, error) { return f.addrs, f.err }

func TestDNS(t *testing.T) {
	s := newSet()
	probeWith := func(r hostResolver) Result {
		s.checkers[target.TypeDNS] = &DNS{resolver: r}
		return s.Probe(context.Background(), target.Target{Type: target.TypeDNS, Hostname: "example.com"}, time.Second)
	}

	res := probeWith(fakeResolver{addrs: []string{"93.184.216.34", "93.184.216.35"}})
	assert.Equal(t, heartbeat.StatusUp, res.Status)
	assert.Equal(t, "Resolved to 93.184.216.34", res.Message)

	res = probeWith(fakeResolver{err: &net.DNSError{Err: "no such host", Name: "example.com", IsNotFound: true}})
	assert.Equal(t, heartbeat.StatusDown, res.Status)
	assert.Equal(t, "DNS resolution failed", res.Message)

	res = probeWith(fakeResolver{})
	assert.Equal(t, "DNS resolution failed", res.Message)
}

func TestUnsupportedType(t *testing.T) {
	res := newSet().Probe(context.Background(), target.Target{Type: "docker"}, time.Second)
	assert.Equal(t, heartbeat.StatusDown, res.Status)
	assert.Equal(t, "Unsupported monitor type: docker", res.Message)
	assert.Nil(t, res.Ping)
}

func TestCeilMillis(t *testing.T) {
	assert.Equal(t, int64(1), ceilMillis(time.Microsecond))
	assert.Equal(t, int64(2), ceilMillis(2*time.Millisecond))
	assert.Equal(t, int64(0), ceilMillis(0))
}
