package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Backoff interface {
	Next(attempt int) time.Duration
}

// ExpoJitter doubles Base per attempt up to Max and spreads it by ±Jitter.
type ExpoJitter struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b ExpoJitter) Next(attempt int) time.Duration {
	d := float64(b.Base) * math.Pow(2, float64(max(attempt, 0)))
	if b.Max > 0 {
		d = math.Min(d, float64(b.Max))
	}
	if b.Jitter > 0 {
		d *= 1 + (rand.Float64()*2-1)*b.Jitter
	}
	return time.Duration(d)
}

type Policy struct {
	Name      string
	Attempts  int
	Backoff   Backoff
	Retryable func(error) bool
	OnAttempt func(attempt int, err error)
	OnExhaust func(lastErr error)
}

func (p Policy) withDefaults() Policy {
	if p.Name == "" {
		p.Name = "default"
	}
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Backoff == nil {
		p.Backoff = ExpoJitter{Base: 200 * time.Millisecond, Max: 5 * time.Second}
	}
	if p.Retryable == nil {
		p.Retryable = func(error) bool { return true }
	}
	return p
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptimer_retry_attempts_total",
		Help: "Attempts made inside retry.Do, final one included.",
	}, []string{"name"})
	exhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptimer_retry_exhausted_total",
		Help: "Operations that gave up with an error.",
	}, []string{"name"})
	duration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uptimer_retry_duration_seconds",
		Help:    "Wall time spent in retry.Do.",
		Buckets: prometheus.DefBuckets,
	}, []string{"name"})
)

// Do calls fn until it succeeds, returns a non-retryable error, or the policy
// runs out of attempts. A cancelled ctx ends the wait between attempts.
func Do(ctx context.Context, fn func() error, p Policy) error {
	p = p.withDefaults()
	start := time.Now()
	defer func() { duration.WithLabelValues(p.Name).Observe(time.Since(start).Seconds()) }()
	span := trace.SpanFromContext(ctx)

	var err error
	for i := 0; i < p.Attempts; i++ {
		attemptsTotal.WithLabelValues(p.Name).Inc()
		if err = fn(); err == nil {
			return nil
		}
		if p.OnAttempt != nil {
			p.OnAttempt(i, err)
		}
		span.AddEvent("retry.attempt", trace.WithAttributes(
			attribute.String("retry.name", p.Name),
			attribute.Int("retry.attempt", i+1),
		))
		if IsPermanent(err) || !p.Retryable(err) || i == p.Attempts-1 {
			break
		}
		if werr := sleep(ctx, p.Backoff.Next(i)); werr != nil {
			return werr
		}
	}
	exhaustedTotal.WithLabelValues(p.Name).Inc()
	if p.OnExhaust != nil {
		p.OnExhaust(err)
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
