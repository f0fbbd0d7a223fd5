package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/NordCoder/Uptimer/internal/domain/target"
	"github.com/NordCoder/Uptimer/internal/obs"
)

const defaultMaxBody = 1 << 20

// HTTP covers the http and keyword types.
type HTTP struct {
	client    *http.Client
	insecure  *http.Client
	userAgent string
	maxBody   int64
}

func NewHTTP(userAgent string, maxBody int64) *HTTP {
	if userAgent == "" {
		userAgent = "Uptimer/1.0"
	}
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &HTTP{
		client:    newClient(false),
		insecure:  newClient(true),
		userAgent: userAgent,
		maxBody:   maxBody,
	}
}

// newClient has no client timeout: the probe context bounds every request.
func newClient(skipVerify bool) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: skipVerify,
			MinVersion:         tls.VersionTLS12,
		},
	}
	return &http.Client{Transport: obs.HTTPTransport(transport)}
}

func (h *HTTP) clientFor(t target.Target) *http.Client {
	if t.IgnoreTLS {
		return h.insecure
	}
	return h.client
}

func (h *HTTP) check(ctx context.Context, t target.Target) (bool, string, error) {
	method := strings.ToUpper(t.Method)
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if t.Body != "" {
		body = strings.NewReader(t.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.URL, body)
	if err != nil {
		return false, "", err
	}
	req.Header.Set("User-Agent", h.userAgent)
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.clientFor(t).Do(req)
	if err != nil {
		return false, "", err
	}
	defer resp.Body.Close()

	if t.Type == target.TypeKeyword && t.Keyword != "" {
		text, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBody))
		if err != nil {
			return false, "", err
		}
		if !strings.Contains(string(text), t.Keyword) {
			return false, fmt.Sprintf("Keyword %q not found in response", t.Keyword), nil
		}
	} else {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, h.maxBody))
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 400
	if ok {
		return true, fmt.Sprintf("HTTP %d", resp.StatusCode), nil
	}
	return false, statusLine(resp.StatusCode), nil
}

func statusLine(code int) string {
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("HTTP %d %s", code, text)
	}
	return fmt.Sprintf("HTTP %d", code)
}
