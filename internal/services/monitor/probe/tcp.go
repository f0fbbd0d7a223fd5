package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"

	"github.com/NordCoder/Uptimer/internal/domain/target"
)

type TCP struct {
	dialer *net.Dialer
}

func NewTCP() *TCP { return &TCP{dialer: &net.Dialer{}} }

func (p *TCP) check(ctx context.Context, t target.Target) (bool, string, error) {
	host := hostOf(t)
	if host == "" || t.Port <= 0 {
		return false, "", errors.New("tcp target needs hostname and port")
	}
	conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(t.Port)))
	if err != nil {
		return false, "", err
	}
	_ = conn.Close()
	return true, "Port is open", nil
}

// hostOf prefers the hostname field and falls back to the url's host.
func hostOf(t target.Target) string {
	if t.Hostname != "" {
		return t.Hostname
	}
	if u, err := url.Parse(t.URL); err == nil {
		return u.Hostname()
	}
	return ""
}
