package incidents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/domain/incident"
	"github.com/NordCoder/Uptimer/internal/domain/target"
	"github.com/NordCoder/Uptimer/internal/obs"
)

// Manager opens and resolves incidents on status transitions.
// errConflict is the repository error for a second OPEN incident on the same target.
type Manager struct {
	repo        incident.Repo
	log         *zap.Logger
	errConflict error
}

func NewManager(repo incident.Repo, errConflict error, log *zap.Logger) *Manager {
	return &Manager{repo: repo, errConflict: errConflict, log: log}
}

// OnDown opens an incident for t unless one is already open. Errors are logged, never returned.
func (m *Manager) OnDown(ctx context.Context, t target.Target, message string, now time.Time) {
	log := obs.WithTrace(ctx, m.log).With(zap.Int64("target_id", t.ID))

	open, err := m.repo.FindOpen(ctx, t.ID)
	if err != nil {
		log.Warn("lookup open incident", zap.Error(err))
		return
	}
	if open != nil {
		log.Debug("incident already open", zap.Int64("incident_id", open.ID))
		return
	}

	id := t.ID
	in := &incident.Incident{
		TargetID:  &id,
		Title:     t.Name + " is down",
		Content:   message,
		Status:    incident.StatusOpen,
		StartedAt: now,
	}
	err = m.repo.Create(ctx, in)
	switch {
	case err == nil:
		log.Info("incident opened", zap.Int64("incident_id", in.ID))
	case m.errConflict != nil && errors.Is(err, m.errConflict):
		log.Debug("incident opened concurrently")
	default:
		log.Warn("create incident", zap.Error(err))
	}
}

// OnRecovery resolves every OPEN incident of the target. Errors are logged, never returned.
func (m *Manager) OnRecovery(ctx context.Context, targetID int64, now time.Time) {
	log := obs.WithTrace(ctx, m.log).With(zap.Int64("target_id", targetID))

	n, err := m.repo.ResolveOpen(ctx, targetID, now)
	if err != nil {
		log.Warn("resolve incidents", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("incidents resolved", zap.Int64("count", n))
	}
}

// FailureReport describes a scheduled trigger that exhausted its retries.
type FailureReport struct {
	URL       string
	Status    string
	Message   string
	MessageID string
	Retried   string
}

func (r FailureReport) content() string {
	return fmt.Sprintf("Monitor check cron job failed after %s retries.\n\nURL: %s\nStatus: %s\nMessage: %s\nMessage ID: %s",
		r.Retried, r.URL, r.Status, r.Message, r.MessageID)
}

// RecordSchedulerFailure stores the failure as a target-less incident.
func (m *Manager) RecordSchedulerFailure(ctx context.Context, r FailureReport, now time.Time) error {
	in := &incident.Incident{
		Title:     "Cron Job Failure",
		Content:   r.content(),
		Status:    incident.StatusOpen,
		StartedAt: now,
	}
	if err := m.repo.Create(ctx, in); err != nil {
		return fmt.Errorf("record scheduler failure: %w", err)
	}
	return nil
}
