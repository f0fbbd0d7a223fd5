package probe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NordCoder/Uptimer/internal/domain/heartbeat"
	"github.com/NordCoder/Uptimer/internal/domain/target"
)

// Result is a raw probe outcome. Status is only ever UP or DOWN.
type Result struct {
	Status  heartbeat.Status
	Ping    *int64
	Message string
}

func (r Result) Up() bool { return r.Status == heartbeat.StatusUp }

// Prober never returns an error: every failure is a DOWN result with a message.
type Prober interface {
	Probe(ctx context.Context, t target.Target, timeout time.Duration) Result
}

// checker is implemented only by the probe types of this package.
type checker interface {
	check(ctx context.Context, t target.Target) (ok bool, msg string, err error)
}

var probeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "uptimer_probe_duration_seconds",
	Help:    "Probe wall time by target type and raw status.",
	Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
}, []string{"type", "status"})

type Config struct {
	UserAgent    string
	DNSResolver  string
	MaxBodyBytes int64
}

// Set dispatches a target to the checker registered for its type.
type Set struct {
	checkers map[target.Type]checker
	now      func() time.Time
}

var _ Prober = (*Set)(nil)

func NewSet(cfg Config) *Set {
	h := NewHTTP(cfg.UserAgent, cfg.MaxBodyBytes)
	return &Set{
		checkers: map[target.Type]checker{
			target.TypeHTTP:         h,
			target.TypeKeyword:      h,
			target.TypeTCP:          NewTCP(),
			target.TypeReachability: NewReachability(h),
			target.TypeDNS:          NewDNS(cfg.DNSResolver),
		},
		now: time.Now,
	}
}

func (s *Set) Probe(ctx context.Context, t target.Target, timeout time.Duration) Result {
	c, ok := s.checkers[t.Type]
	if !ok {
		return Result{Status: heartbeat.StatusDown, Message: fmt.Sprintf("Unsupported monitor type: %s", t.Type)}
	}
	if timeout <= 0 {
		timeout = t.ProbeTimeout()
	}

	ctx, span := otel.Tracer("monitor.probe").Start(ctx, "probe."+string(t.Type),
		trace.WithAttributes(attribute.Int64("target.id", t.ID)))
	defer span.End()

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := s.now()
	success, msg, err := c.check(pctx, t)
	elapsed := s.now().Sub(start)
	ping := ceilMillis(elapsed)

	switch {
	case err != nil && ctx.Err() == nil && errors.Is(pctx.Err(), context.DeadlineExceeded):
		success, msg = false, "Timeout after "+strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64)+"s"
	case err != nil:
		success, msg = false, err.Error()
	}
	if t.UpsideDown {
		success = !success
	}

	res := Result{Status: heartbeat.StatusDown, Ping: &ping, Message: msg}
	if success {
		res.Status = heartbeat.StatusUp
	}
	span.SetAttributes(attribute.String("probe.status", res.Status.String()))
	probeDuration.WithLabelValues(string(t.Type), res.Status.String()).Observe(elapsed.Seconds())
	return res
}

// ceilMillis rounds up so a completed probe never reports a zero ping.
func ceilMillis(d time.Duration) int64 {
	ms := int64(d / time.Millisecond)
	if d%time.Millisecond != 0 {
		ms++
	}
	return ms
}
