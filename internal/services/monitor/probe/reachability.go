package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/NordCoder/Uptimer/internal/domain/target"
)

// Reachability sends a HEAD request and treats any non-5xx answer as reachable.
type Reachability struct {
	http *HTTP
	now  func() time.Time
}

func NewReachability(h *HTTP) *Reachability { return &Reachability{http: h, now: time.Now} }

func (p *Reachability) check(ctx context.Context, t target.Target) (bool, string, error) {
	addr := t.Hostname
	if addr == "" {
		addr = t.URL
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "https://" + addr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, addr, nil)
	if err != nil {
		return false, "", err
	}
	req.Header.Set("User-Agent", p.http.userAgent)

	start := p.now()
	resp, err := p.http.clientFor(t).Do(req)
	if err != nil {
		return false, "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return false, statusLine(resp.StatusCode), nil
	}
	return true, fmt.Sprintf("Reachable (%dms)", ceilMillis(p.now().Sub(start))), nil
}
