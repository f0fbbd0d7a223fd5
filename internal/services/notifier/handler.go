package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/domain/lease"
	"github.com/NordCoder/Uptimer/internal/domain/transition"
	"github.com/NordCoder/Uptimer/internal/obs"
	"github.com/NordCoder/Uptimer/internal/outbox"
	"github.com/NordCoder/Uptimer/internal/services/monitor/notify"
)

const DefaultDedupTTL = 24 * time.Hour

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uptimer_notifier_events_total",
	Help: "Transition events consumed by result",
}, []string{"result"})

type OwnerNotifier interface {
	NotifyOwner(ctx context.Context, ownerID int64, p notify.Payload) (notify.Result, error)
}

// Handler turns transition events into owner notifications. Dedup is optional;
// when set, an event redelivered within DedupTTL is dropped.
type Handler struct {
	Notifier OwnerNotifier
	Dedup    lease.Locker
	DedupTTL time.Duration
	Log      *zap.Logger
}

func (h *Handler) HandleTransition(ctx context.Context, ev transition.Event) error {
	log := obs.WithTrace(ctx, h.Log).With(zap.Int64("target_id", ev.TargetID), zap.String("kind", string(ev.Kind)))

	if ev.TargetID <= 0 || ev.OwnerID <= 0 {
		log.Warn("transition: invalid ids", zap.Int64("owner_id", ev.OwnerID))
		eventsTotal.WithLabelValues("invalid").Inc()
		return nil
	}
	p, ok := notify.FromEvent(ev)
	if !ok {
		eventsTotal.WithLabelValues("ignored").Inc()
		return nil
	}

	var held lease.Lease
	if h.Dedup != nil {
		ttl := h.DedupTTL
		if ttl <= 0 {
			ttl = DefaultDedupTTL
		}
		l, err := h.Dedup.Acquire(ctx, "notified:"+outbox.TransitionKey(ev), ttl)
		switch {
		case errors.Is(err, lease.ErrBusy):
			log.Debug("duplicate transition dropped")
			eventsTotal.WithLabelValues("duplicate").Inc()
			return nil
		case err != nil:
			log.Warn("dedup unavailable", zap.Error(err))
		default:
			held = l
		}
	}

	res, err := h.Notifier.NotifyOwner(ctx, ev.OwnerID, p)
	if err != nil {
		if held != nil {
			_ = held.Release(context.WithoutCancel(ctx))
		}
		eventsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("notify owner %d: %w", ev.OwnerID, err)
	}
	// Per-channel failures are not retried so healthy channels never get duplicates.
	if res.Failed > 0 {
		log.Warn("some notifications failed", zap.Int("sent", res.Sent), zap.Error(res.Err()))
		eventsTotal.WithLabelValues("partial").Inc()
		return nil
	}
	eventsTotal.WithLabelValues("ok").Inc()
	return nil
}
