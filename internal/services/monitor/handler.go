package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/domain/heartbeat"
	"github.com/NordCoder/Uptimer/internal/domain/lease"
	"github.com/NordCoder/Uptimer/internal/domain/maintenance"
	"github.com/NordCoder/Uptimer/internal/domain/outbox"
	"github.com/NordCoder/Uptimer/internal/domain/target"
	"github.com/NordCoder/Uptimer/internal/domain/transition"
	"github.com/NordCoder/Uptimer/internal/obs"
	intoutbox "github.com/NordCoder/Uptimer/internal/outbox"
	"github.com/NordCoder/Uptimer/internal/services/monitor/evaluator"
	"github.com/NordCoder/Uptimer/internal/services/monitor/notify"
	"github.com/NordCoder/Uptimer/internal/services/monitor/probe"
)

const MaintenanceMessage = "Under maintenance"

var checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uptimer_checks_total",
	Help: "Evaluated checks by effective status and transition",
}, []string{"status", "transition"})

type IncidentTracker interface {
	OnDown(ctx context.Context, t target.Target, message string, now time.Time)
	OnRecovery(ctx context.Context, targetID int64, now time.Time)
}

type Notifier interface {
	NotifyOwner(ctx context.Context, ownerID int64, p notify.Payload) (notify.Result, error)
}

type Transactor interface {
	WithTx(ctx context.Context, function func(ctx context.Context) error) error
}

// Handler evaluates one target end to end. With Outbox set, transitions are
// enqueued together with the heartbeat instead of being sent through Notifier.
type Handler struct {
	Heartbeats  heartbeat.Repo
	Maintenance maintenance.Repo
	Probes      probe.Prober
	Incidents   IncidentTracker
	Notifier    Notifier
	Outbox      outbox.Enqueuer
	Transactor  Transactor
	Locker      lease.Locker
	LeaseTTL    time.Duration
	Clock       func() time.Time
	Log         *zap.Logger
}

type Outcome struct {
	Heartbeat  heartbeat.Heartbeat
	Transition transition.Kind
}

func leaseKey(id int64) string { return "target:" + strconv.FormatInt(id, 10) }

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// HandleTarget writes exactly one heartbeat for t unless it fails before persisting.
// It returns lease.ErrBusy when another evaluation of t is in flight.
func (h *Handler) HandleTarget(ctx context.Context, t target.Target) (Outcome, error) {
	ctx, span := otel.Tracer("monitor.handler").Start(ctx, "monitor.check",
		trace.WithAttributes(attribute.Int64("target.id", t.ID), attribute.String("target.type", string(t.Type))))
	defer span.End()
	log := obs.WithTrace(ctx, h.Log).With(zap.Int64("target_id", t.ID))

	ttl := h.LeaseTTL
	if ttl <= 0 {
		ttl = t.ProbeTimeout() + 10*time.Second
	}
	l, err := h.Locker.Acquire(ctx, leaseKey(t.ID), ttl)
	if err != nil {
		if !errors.Is(err, lease.ErrBusy) {
			span.RecordError(err)
		}
		return Outcome{}, fmt.Errorf("acquire lease: %w", err)
	}
	defer func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("release lease", zap.Error(err))
		}
	}()

	start := h.now()
	prev, err := h.Heartbeats.Latest(ctx, t.ID)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, fmt.Errorf("latest heartbeat: %w", err)
	}
	covered, err := h.Maintenance.Covers(ctx, t.ID, start)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, fmt.Errorf("maintenance lookup: %w", err)
	}

	var (
		status    heartbeat.Status
		downCount int
		kind      = transition.KindNone
		message   = MaintenanceMessage
		ping      *int64
	)
	if covered {
		status, downCount = evaluator.Maintenance()
	} else {
		res := h.Probes.Probe(ctx, t, t.ProbeTimeout())
		status, downCount = evaluator.Next(prev, t.MaxRetries, res.Status)
		kind = evaluator.Classify(prev, status)
		message, ping = res.Message, res.Ping
	}

	end := h.now()
	hb := heartbeat.Heartbeat{
		TargetID:  t.ID,
		Status:    status,
		Message:   message,
		Ping:      ping,
		Duration:  end.Sub(start).Milliseconds(),
		DownCount: downCount,
		Time:      end,
	}
	ev := transition.Event{
		TargetID:   t.ID,
		OwnerID:    t.OwnerID,
		TargetName: t.Name,
		Address:    t.Address(),
		Kind:       kind,
		To:         status,
		Message:    message,
		At:         end,
	}
	if prev != nil {
		from := prev.Status
		ev.From = &from
	}

	if err := h.persist(ctx, &hb, ev); err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}
	checksTotal.WithLabelValues(status.String(), string(kind)).Inc()
	span.SetAttributes(attribute.String("check.status", status.String()), attribute.Int("check.down_count", downCount))

	if kind != transition.KindNone {
		log.Info("status transition",
			zap.String("kind", string(kind)), zap.String("status", status.String()), zap.String("message", message))
		h.react(ctx, t, ev)
	}
	return Outcome{Heartbeat: hb, Transition: kind}, nil
}

func (h *Handler) persist(ctx context.Context, hb *heartbeat.Heartbeat, ev transition.Event) error {
	write := func(ctx context.Context) error {
		if err := h.Heartbeats.Insert(ctx, hb); err != nil {
			return fmt.Errorf("insert heartbeat: %w", err)
		}
		if ev.Kind == transition.KindNone || h.Outbox == nil {
			return nil
		}
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal transition: %w", err)
		}
		if err := h.Outbox.Enqueue(ctx, intoutbox.TransitionKey(ev), outbox.KindTransition, b); err != nil {
			return fmt.Errorf("outbox enqueue: %w", err)
		}
		return nil
	}
	if h.Transactor == nil {
		return write(ctx)
	}
	return h.Transactor.WithTx(ctx, write)
}

// react runs after the heartbeat is stored. Nothing here can fail the check.
func (h *Handler) react(ctx context.Context, t target.Target, ev transition.Event) {
	switch ev.Kind {
	case transition.KindDown:
		h.Incidents.OnDown(ctx, t, ev.Message, ev.At)
	case transition.KindRecovery:
		h.Incidents.OnRecovery(ctx, t.ID, ev.At)
	}

	if h.Outbox != nil || h.Notifier == nil {
		return
	}
	p, ok := notify.FromEvent(ev)
	if !ok {
		return
	}
	if _, err := h.Notifier.NotifyOwner(ctx, t.OwnerID, p); err != nil {
		obs.WithTrace(ctx, h.Log).Warn("notify owner", zap.Int64("target_id", t.ID), zap.Error(err))
	}
}
