package probe

import (
	"context"
	"errors"
	"net"

	"github.com/NordCoder/Uptimer/internal/domain/target"
)

const defaultResolver = "8.8.8.8:53"

type hostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DNS resolves through a fixed public resolver instead of the host's configuration.
type DNS struct {
	resolver hostResolver
}

func NewDNS(server string) *DNS {
	if server == "" {
		server = defaultResolver
	}
	d := &net.Dialer{}
	return &DNS{resolver: &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return d.DialContext(ctx, network, server)
		},
	}}
}

func (p *DNS) check(ctx context.Context, t target.Target) (bool, string, error) {
	host := hostOf(t)
	if host == "" {
		return false, "", errors.New("dns target needs a hostname")
	}
	addrs, err := p.resolver.LookupHost(ctx, host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return false, "DNS resolution failed", nil
		}
		return false, "", err
	}
	if len(addrs) == 0 {
		return false, "DNS resolution failed", nil
	}
	return true, "Resolved to " + addrs[0], nil
}
