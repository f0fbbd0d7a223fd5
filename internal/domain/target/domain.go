package target

import (
	"strings"
	"time"
)

type Type string

const (
	TypeHTTP         Type = "http"
	TypeKeyword      Type = "keyword"
	TypeTCP          Type = "tcp"
	TypeReachability Type = "reachability"
	TypeDNS          Type = "dns"
)

// ParseType accepts the stored type name. "ping" is kept as an alias of reachability.
func ParseType(s string) Type {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case "ping":
		return TypeReachability
	default:
		return t
	}
}

const DefaultTimeout = 48 * time.Second

type Target struct {
	ID         int64             `json:"id"`
	OwnerID    int64             `json:"owner_id"`
	Name       string            `json:"name"`
	Type       Type              `json:"type"`
	URL        string            `json:"url,omitempty"`
	Hostname   string            `json:"hostname,omitempty"`
	Port       int               `json:"port,omitempty"`
	Method     string            `json:"method,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
	Keyword    string            `json:"keyword,omitempty"`
	Interval   time.Duration     `json:"interval"`
	Timeout    time.Duration     `json:"timeout"`
	MaxRetries int               `json:"max_retries"`
	Active     bool              `json:"active"`
	UpsideDown bool              `json:"upside_down"`
	IgnoreTLS  bool              `json:"ignore_tls"`
}

// ProbeTimeout is the probe budget, falling back to DefaultTimeout when unset.
func (t Target) ProbeTimeout() time.Duration {
	if t.Timeout <= 0 {
		return DefaultTimeout
	}
	return t.Timeout
}

// Address is what notifications show as the target location.
func (t Target) Address() string {
	if t.URL != "" {
		return t.URL
	}
	return t.Hostname
}
