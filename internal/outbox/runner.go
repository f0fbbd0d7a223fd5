package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/domain/outbox"
	"github.com/NordCoder/Uptimer/internal/obs"
)

var (
	mPicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uptimer_outbox_picked_total", Help: "Messages claimed for delivery.",
	})
	mOk = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uptimer_outbox_delivered_total", Help: "Messages delivered.",
	})
	mErr = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptimer_outbox_errors_total", Help: "Outbox failures by stage.",
	}, []string{"stage"})
	mPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uptimer_outbox_purged_total", Help: "Delivered messages deleted by retention.",
	})
	mTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "uptimer_outbox_tick_duration_seconds", Help: "Tick duration.",
		Buckets: prometheus.DefBuckets,
	})
	mBatchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uptimer_outbox_last_batch_size", Help: "Size of last claimed batch.",
	})
)

type Options struct {
	Workers       int
	BatchSize     int
	WaitTime      time.Duration
	InProgressTTL time.Duration
	// Retention is how long delivered rows are kept. Zero keeps them forever.
	Retention time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.WaitTime <= 0 {
		o.WaitTime = 2 * time.Second
	}
	if o.InProgressTTL <= 0 {
		o.InProgressTTL = 30 * time.Second
	}
	return o
}

// Runner drains the outbox with a pool of pollers. Delivery is at least once;
// handlers must tolerate duplicates.
type Runner struct {
	log      *zap.Logger
	repo     outbox.Repository
	dispatch outbox.GlobalHandler
	opts     Options
}

func NewOutboxRunner(log *zap.Logger, repo outbox.Repository, dispatch outbox.GlobalHandler, opts Options) *Runner {
	return &Runner{log: log, repo: repo, dispatch: dispatch, opts: opts.withDefaults()}
}

// Run blocks until ctx is done and every worker has returned.
func (r *Runner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.every(ctx, r.opts.WaitTime, r.tick)
		}()
	}
	if r.opts.Retention > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.every(ctx, purgeEvery(r.opts.Retention), r.purge)
		}()
	}
	r.log.Info("outbox runner started",
		zap.Int("workers", r.opts.Workers), zap.Duration("wait", r.opts.WaitTime), zap.Duration("retention", r.opts.Retention))
	wg.Wait()
	r.log.Info("outbox runner stopped")
	return ctx.Err()
}

func purgeEvery(retention time.Duration) time.Duration {
	return min(max(retention/10, time.Minute), time.Hour)
}

func (r *Runner) every(ctx context.Context, d time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (r *Runner) purge(ctx context.Context) {
	n, err := r.repo.Purge(ctx, r.opts.Retention)
	if err != nil {
		mErr.WithLabelValues("purge").Inc()
		r.log.Warn("outbox purge", zap.Error(err))
		return
	}
	if n > 0 {
		mPurged.Add(float64(n))
		r.log.Debug("outbox purged", zap.Int64("rows", n))
	}
}

func (r *Runner) tick(ctx context.Context) {
	t0 := time.Now()
	tr := otel.Tracer("outbox.runner")
	prop := otel.GetTextMapPropagator()

	ctxSpan, span := tr.Start(ctx, "outbox.tick")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.limit", r.opts.BatchSize),
		attribute.String("in_progress_ttl", r.opts.InProgressTTL.String()),
	)

	messages, err := r.repo.PickBatch(ctxSpan, r.opts.BatchSize, r.opts.InProgressTTL)
	if err != nil {
		span.RecordError(err)
		mErr.WithLabelValues("pick").Inc()
		obs.WithTrace(ctxSpan, r.log).Error("outbox pick error", zap.Error(err))
		return
	}
	mPicked.Add(float64(len(messages)))
	mBatchSize.Set(float64(len(messages)))
	if len(messages) == 0 {
		return
	}

	okKeys := make([]string, 0, len(messages))
	for _, m := range messages {
		parent := prop.Extract(ctx, propagation.MapCarrier{
			"traceparent": m.Traceparent,
			"tracestate":  m.Tracestate,
			"baggage":     m.Baggage,
		})

		msgCtx, msgSpan := tr.Start(parent, "outbox.dispatch",
			trace.WithAttributes(
				attribute.String("outbox.key", m.IdempotencyKey),
				attribute.Int("outbox.kind", int(m.Kind)),
			),
		)

		handler, herr := r.dispatch(m.Kind)
		if herr != nil {
			msgSpan.RecordError(herr)
			mErr.WithLabelValues("dispatch").Inc()
			obs.WithTrace(msgCtx, r.log).Error("no handler for kind",
				zap.Int("kind", int(m.Kind)), zap.Error(herr))
			msgSpan.End()
			continue
		}

		if err := handler(msgCtx, m.Data); err != nil {
			msgSpan.RecordError(err)
			mErr.WithLabelValues("handler").Inc()
			obs.WithTrace(msgCtx, r.log).Error("handler error",
				zap.Int("kind", int(m.Kind)), zap.Error(err))
			msgSpan.End()
			continue
		}

		msgSpan.End()
		okKeys = append(okKeys, m.IdempotencyKey)
		mOk.Inc()
	}

	if err := r.repo.MarkSuccess(ctxSpan, okKeys); err != nil {
		span.RecordError(err)
		mErr.WithLabelValues("mark").Inc()
		obs.WithTrace(ctxSpan, r.log).Error("mark success error", zap.Error(err))
	}
	mTickDur.Observe(time.Since(t0).Seconds())
}
