package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/NordCoder/Uptimer/internal/domain/kafka"
	"github.com/NordCoder/Uptimer/internal/domain/outbox"
	"github.com/NordCoder/Uptimer/internal/domain/transition"
	"github.com/NordCoder/Uptimer/internal/obs/retry"
)

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

// TransitionKey is the idempotency key of a transition event.
func TransitionKey(ev transition.Event) string {
	return fmt.Sprintf("transition:%d:%s:%d", ev.TargetID, ev.Kind, ev.At.UnixNano())
}

func instrument(kind string, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	if pol.Name == "" {
		pol.Name = "outbox_" + kind
	}
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle")
		defer span.End()
		span.SetAttributes(attribute.String("outbox.kind", kind))

		start := time.Now()
		err := retry.Do(ctx, func() error { return h(ctx, data) }, pol)
		outboxHandlerLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			outboxHandlerErrors.WithLabelValues(kind).Inc()
		}
		return err
	}
}

// MakeGlobalOutboxHandler routes transition events to the event bus.
func MakeGlobalOutboxHandler(pub kafka.TransitionEvents, pol retry.Policy) outbox.GlobalHandler {
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindTransition:
			base := func(ctx context.Context, data []byte) error {
				var ev transition.Event
				if err := json.Unmarshal(data, &ev); err != nil {
					return fmt.Errorf("unmarshal transition payload: %w", err)
				}
				return pub.PublishTransition(ctx, ev)
			}
			return instrument("transition", base, pol), nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
	}
}
