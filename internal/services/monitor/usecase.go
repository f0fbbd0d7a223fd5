package monitor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/domain/heartbeat"
	"github.com/NordCoder/Uptimer/internal/domain/lease"
	"github.com/NordCoder/Uptimer/internal/domain/target"
	"github.com/NordCoder/Uptimer/internal/obs"
)

const (
	MsgNoActive  = "No active monitors"
	MsgNoneDue   = "No monitors due for check"
	MsgCompleted = "Monitor checks completed"
	MsgPartial   = "Monitor checks partially completed (timeout)"
)

var (
	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "uptimer_pass_duration_seconds",
		Help:    "Dispatch pass duration",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 20, 30, 45, 60},
	})
	passTargets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptimer_pass_targets_total",
		Help: "Targets handled by dispatch passes by outcome",
	}, []string{"outcome"})
)

type TargetChecker interface {
	HandleTarget(ctx context.Context, t target.Target) (Outcome, error)
}

type PassConfig struct {
	Concurrency int
	MaxDuration time.Duration
}

type Failure struct {
	TargetID   int64  `json:"targetId"`
	TargetName string `json:"targetName"`
	Error      string `json:"error"`
}

type Summary struct {
	Message    string    `json:"message"`
	Total      int       `json:"total"`
	Due        int       `json:"due"`
	Checked    int       `json:"checked"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped,omitempty"`
	TimedOut   bool      `json:"timedOut,omitempty"`
	Failures   []Failure `json:"failures,omitempty"`
}

type Usecase struct {
	Targets    target.Repo
	Heartbeats heartbeat.Repo
	Checker    TargetChecker
	Cfg        PassConfig
	Clock      func() time.Time
	Log        *zap.Logger
}

func (u *Usecase) now() time.Time {
	if u.Clock != nil {
		return u.Clock()
	}
	return time.Now()
}

// SelectDue keeps active targets that were never checked or whose interval has elapsed,
// ordered by how long they have waited. Never-checked targets come first.
func SelectDue(targets []target.Target, last map[int64]time.Time, now time.Time) []target.Target {
	type waiting struct {
		t     target.Target
		never bool
		wait  time.Duration
	}
	due := make([]waiting, 0, len(targets))
	for _, t := range targets {
		if !t.Active {
			continue
		}
		at, ok := last[t.ID]
		if !ok {
			due = append(due, waiting{t: t, never: true})
			continue
		}
		if wait := now.Sub(at); wait >= t.Interval {
			due = append(due, waiting{t: t, wait: wait})
		}
	}
	slices.SortStableFunc(due, func(a, b waiting) int {
		switch {
		case a.never && !b.never:
			return -1
		case b.never && !a.never:
			return 1
		default:
			return cmp.Compare(b.wait, a.wait)
		}
	})

	out := make([]target.Target, len(due))
	for i, w := range due {
		out[i] = w.t
	}
	return out
}

// RunPass checks every due target in chunks and always returns a summary once the
// targets are loaded. Chunks not started within the budget are reported as skipped.
func (u *Usecase) RunPass(ctx context.Context) (Summary, error) {
	t0 := time.Now()
	start := u.now()
	ctx, span := otel.Tracer("monitor.uc").Start(ctx, "monitor.pass")
	defer span.End()
	defer func() { passDuration.Observe(time.Since(t0).Seconds()) }()
	log := obs.WithTrace(ctx, u.Log)

	all, err := u.Targets.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		return Summary{}, fmt.Errorf("list targets: %w", err)
	}
	if len(all) == 0 {
		return Summary{Message: MsgNoActive}, nil
	}

	ids := make([]int64, len(all))
	for i, t := range all {
		ids[i] = t.ID
	}
	last, err := u.Heartbeats.LastTimes(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return Summary{}, fmt.Errorf("last heartbeat times: %w", err)
	}

	due := SelectDue(all, last, u.now())
	sum := Summary{Total: len(all), Due: len(due)}
	span.SetAttributes(attribute.Int("pass.total", sum.Total), attribute.Int("pass.due", sum.Due))
	if len(due) == 0 {
		sum.Message = MsgNoneDue
		return sum, nil
	}
	log.Info("pass started", zap.Int("due", len(due)), zap.Int("total", len(all)))

	size := u.Cfg.Concurrency
	if size <= 0 {
		size = 10
	}
	for i := 0; i < len(due); i += size {
		if (u.Cfg.MaxDuration > 0 && u.now().Sub(start) > u.Cfg.MaxDuration) || ctx.Err() != nil {
			sum.Skipped += len(due) - i
			sum.TimedOut = true
			log.Warn("pass budget exhausted", zap.Int("skipped", len(due)-i))
			break
		}
		u.runChunk(ctx, due[i:min(i+size, len(due))], &sum)
	}

	sum.Message = MsgCompleted
	if sum.TimedOut {
		sum.Message = MsgPartial
	}
	passTargets.WithLabelValues("ok").Add(float64(sum.Successful))
	passTargets.WithLabelValues("failed").Add(float64(sum.Failed))
	passTargets.WithLabelValues("skipped").Add(float64(sum.Skipped))
	span.SetAttributes(
		attribute.Int("pass.checked", sum.Checked),
		attribute.Int("pass.failed", sum.Failed),
		attribute.Int("pass.skipped", sum.Skipped),
	)
	log.Info("pass completed",
		zap.Int("successful", sum.Successful), zap.Int("failed", sum.Failed), zap.Int("skipped", sum.Skipped))
	return sum, nil
}

func (u *Usecase) runChunk(ctx context.Context, chunk []target.Target, sum *Summary) {
	errs := make([]error, len(chunk))
	var wg sync.WaitGroup
	for i, t := range chunk {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			_, errs[i] = u.Checker.HandleTarget(ctx, t)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		t := chunk[i]
		switch {
		case err == nil:
			sum.Checked++
			sum.Successful++
		case errors.Is(err, lease.ErrBusy):
			sum.Skipped++
		default:
			sum.Checked++
			sum.Failed++
			sum.Failures = append(sum.Failures, Failure{TargetID: t.ID, TargetName: t.Name, Error: err.Error()})
			obs.WithTrace(ctx, u.Log).Warn("check failed",
				zap.Int64("target_id", t.ID), zap.String("target_name", t.Name), zap.Error(err))
		}
	}
}
