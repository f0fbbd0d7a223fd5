package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/domain/schedule"
)

var (
	activeSchedules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uptimer_scheduler_active_schedules",
		Help: "Cron entries currently registered",
	})
	syncErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uptimer_scheduler_sync_errors_total",
		Help: "Failed schedule store reads",
	})
)

type Store interface {
	List(ctx context.Context) ([]schedule.Schedule, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, sc schedule.Schedule) error
}

type entry struct {
	id          cron.EntryID
	fingerprint string
}

// Runner mirrors the schedule store into cron entries. Sync is not safe for
// concurrent use; Run calls it from a single goroutine.
type Runner struct {
	log       *zap.Logger
	store     Store
	deliver   Deliverer
	syncEvery time.Duration

	cron    *cron.Cron
	entries map[string]entry
}

func NewRunner(log *zap.Logger, store Store, d Deliverer, syncEvery time.Duration) *Runner {
	if syncEvery <= 0 {
		syncEvery = 15 * time.Second
	}
	cl := cronLogger{s: log.Sugar()}
	return &Runner{
		log:       log,
		store:     store,
		deliver:   d,
		syncEvery: syncEvery,
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		entries:   make(map[string]entry),
	}
}

func (r *Runner) Run(ctx context.Context) error {
	if err := r.Sync(ctx); err != nil {
		r.log.Warn("initial sync", zap.Error(err))
	}
	r.cron.Start()
	defer func() { <-r.cron.Stop().Done() }()

	ticker := time.NewTicker(r.syncEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sync(ctx); err != nil {
				r.log.Warn("sync", zap.Error(err))
			}
		}
	}
}

// Sync registers unpaused schedules and drops entries that were paused, changed or deleted.
func (r *Runner) Sync(ctx context.Context) error {
	list, err := r.store.List(ctx)
	if err != nil {
		syncErrors.Inc()
		return fmt.Errorf("list schedules: %w", err)
	}

	want := make(map[string]schedule.Schedule, len(list))
	for _, sc := range list {
		if !sc.Paused {
			want[sc.ID] = sc
		}
	}

	for id, e := range r.entries {
		if sc, ok := want[id]; ok && fingerprint(sc) == e.fingerprint {
			continue
		}
		r.cron.Remove(e.id)
		delete(r.entries, id)
		r.log.Info("schedule unregistered", zap.String("schedule_id", id))
	}

	for id, sc := range want {
		if _, ok := r.entries[id]; ok {
			continue
		}
		eid, err := r.cron.AddFunc(sc.Cron, r.job(ctx, sc))
		if err != nil {
			r.log.Warn("invalid cron expression", zap.String("schedule_id", id), zap.String("cron", sc.Cron), zap.Error(err))
			continue
		}
		r.entries[id] = entry{id: eid, fingerprint: fingerprint(sc)}
		r.log.Info("schedule registered", zap.String("schedule_id", id), zap.String("cron", sc.Cron))
	}

	activeSchedules.Set(float64(len(r.entries)))
	return nil
}

// Active returns the registered schedule ids in order.
func (r *Runner) Active() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Runner) job(ctx context.Context, sc schedule.Schedule) func() {
	return func() {
		if err := r.deliver.Deliver(ctx, sc); err != nil && ctx.Err() == nil {
			r.log.Warn("scheduled delivery failed", zap.String("schedule_id", sc.ID), zap.Error(err))
		}
	}
}

func fingerprint(sc schedule.Schedule) string {
	return sc.Cron + "|" + sc.Destination + "|" + strconv.Itoa(sc.Retries) + "|" + sc.FailureCallback
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.s.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
