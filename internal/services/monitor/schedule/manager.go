package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/NordCoder/Uptimer/internal/domain/schedule"
	"github.com/NordCoder/Uptimer/internal/obs"
)

var (
	ErrInvalidInterval   = errors.New("invalid interval: minimum is 1 minute")
	ErrInvalidRetries    = errors.New("retries must be between 0 and 5")
	ErrInvalidTimezone   = errors.New("invalid timezone")
	ErrMissingID         = errors.New("schedule id is required")
	ErrNothingToUpdate   = errors.New("no valid update parameters provided")
	ErrScheduleExists    = errors.New("a monitor check schedule already exists")
	ErrNoSchedule        = errors.New("no monitor check schedule found")
	ErrSiteNotConfigured = errors.New("site url not configured")
)

const MaxRetries = 5

// Info is the trigger schedule as shown to operators.
type Info struct {
	ID              string    `json:"id"`
	Cron            string    `json:"cron"`
	IntervalMinutes int       `json:"intervalMinutes"`
	IntervalExact   bool      `json:"intervalExact"`
	Destination     string    `json:"destination"`
	Paused          bool      `json:"isPaused"`
	Retries         int       `json:"retries"`
	FailureCallback string    `json:"failureCallback,omitempty"`
	Timezone        string    `json:"timezone"`
	CreatedAt       time.Time `json:"createdAt"`
}

type Created struct {
	ID              string `json:"scheduleId"`
	Cron            string `json:"cron"`
	IntervalMinutes int    `json:"intervalMinutes"`
}

const (
	ActionPause  = "pause"
	ActionResume = "resume"
)

// UpdateRequest carries optional fields. A nil field is left unchanged.
type UpdateRequest struct {
	ScheduleID      string  `json:"scheduleId"`
	Action          string  `json:"action,omitempty"`
	IntervalMinutes *int    `json:"intervalMinutes,omitempty"`
	Timezone        *string `json:"timezone,omitempty"`
	Retries         *int    `json:"retries,omitempty"`
	FailureCallback *string `json:"failureCallback,omitempty"`
}

type UpdateResult struct {
	Action          string  `json:"action,omitempty"`
	NewScheduleID   string  `json:"newScheduleId,omitempty"`
	Cron            string  `json:"cron,omitempty"`
	IntervalMinutes *int    `json:"intervalMinutes,omitempty"`
	Retries         *int    `json:"retries,omitempty"`
	FailureCallback *string `json:"failureCallback,omitempty"`
}

// Manager owns the single schedule whose destination is the trigger endpoint.
type Manager struct {
	client          domain.Client
	siteURL         string
	triggerPath     string
	failureCallback string
	log             *zap.Logger
}

// NewManager builds a manager. failurePath, when set, is attached as the failure
// callback of schedules created from scratch.
func NewManager(client domain.Client, siteURL, triggerPath, failurePath string, log *zap.Logger) *Manager {
	m := &Manager{client: client, siteURL: siteURL, triggerPath: triggerPath, log: log}
	if failurePath != "" && siteURL != "" {
		m.failureCallback = m.url(failurePath)
	}
	return m
}

func (m *Manager) url(path string) string { return DestinationURL(m.siteURL, path) }

// DestinationURL joins the public site URL and an endpoint path the way schedule
// destinations are stored. Signed deliveries carry it as their subject, so the
// receiving side must build it the same way. A bare host gets https.
func DestinationURL(siteURL, path string) string {
	base := strings.TrimRight(strings.TrimSpace(siteURL), "/")
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return base + path
}

func (m *Manager) find(ctx context.Context) (*domain.Schedule, error) {
	list, err := m.client.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if strings.Contains(list[i].Destination, m.triggerPath) {
			return &list[i], nil
		}
	}
	return nil, ErrNoSchedule
}

func toInfo(s *domain.Schedule) *Info {
	minutes, exact := CronToInterval(s.Cron)
	return &Info{
		ID:              s.ID,
		Cron:            s.Cron,
		IntervalMinutes: minutes,
		IntervalExact:   exact,
		Destination:     s.Destination,
		Paused:          s.Paused,
		Retries:         s.Retries,
		FailureCallback: s.FailureCallback,
		Timezone:        CronTimezone(s.Cron),
		CreatedAt:       s.CreatedAt,
	}
}

// Current returns ErrNoSchedule when no schedule targets the trigger endpoint.
func (m *Manager) Current(ctx context.Context) (*Info, error) {
	s, err := m.find(ctx)
	if err != nil {
		return nil, err
	}
	return toInfo(s), nil
}

func (m *Manager) Create(ctx context.Context, minutes int) (*Created, error) {
	if minutes < 1 {
		return nil, ErrInvalidInterval
	}
	if m.siteURL == "" {
		return nil, ErrSiteNotConfigured
	}
	switch _, err := m.find(ctx); {
	case err == nil:
		return nil, ErrScheduleExists
	case !errors.Is(err, ErrNoSchedule):
		return nil, err
	}

	expr := IntervalToCron(minutes)
	if err := Validate(expr); err != nil {
		return nil, fmt.Errorf("cron %q: %w", expr, err)
	}
	id, err := m.client.Create(ctx, domain.CreateRequest{
		Destination:     m.url(m.triggerPath),
		Cron:            expr,
		Retries:         domain.DefaultRetries,
		FailureCallback: m.failureCallback,
	})
	if err != nil {
		return nil, err
	}
	obs.WithTrace(ctx, m.log).Info("schedule created", zap.String("schedule_id", id), zap.String("cron", expr))
	return &Created{ID: id, Cron: expr, IntervalMinutes: minutes}, nil
}

// Update pauses, resumes or replaces the schedule. A replacement is a delete followed by
// a create that keeps every field not named in req, so the result carries a new id.
func (m *Manager) Update(ctx context.Context, req UpdateRequest) (*UpdateResult, error) {
	if req.ScheduleID == "" {
		return nil, ErrMissingID
	}
	switch req.Action {
	case ActionPause:
		if err := m.client.Pause(ctx, req.ScheduleID); err != nil {
			return nil, m.notFound(err)
		}
		return &UpdateResult{Action: "paused"}, nil
	case ActionResume:
		if err := m.client.Resume(ctx, req.ScheduleID); err != nil {
			return nil, m.notFound(err)
		}
		return &UpdateResult{Action: "resumed"}, nil
	}

	if req.IntervalMinutes != nil && *req.IntervalMinutes < 1 {
		return nil, ErrInvalidInterval
	}
	if req.Retries != nil && (*req.Retries < 0 || *req.Retries > MaxRetries) {
		return nil, ErrInvalidRetries
	}
	if req.Timezone != nil && *req.Timezone != "" {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, *req.Timezone)
		}
	}
	if req.IntervalMinutes == nil && req.Timezone == nil && req.Retries == nil && req.FailureCallback == nil {
		return nil, ErrNothingToUpdate
	}

	cur, err := m.client.Get(ctx, req.ScheduleID)
	if err != nil {
		return nil, m.notFound(err)
	}

	next := domain.CreateRequest{
		Destination:     cur.Destination,
		Cron:            cur.Cron,
		Retries:         cur.Retries,
		FailureCallback: cur.FailureCallback,
	}
	res := &UpdateResult{}
	if req.IntervalMinutes != nil || req.Timezone != nil {
		minutes, _ := CronToInterval(cur.Cron)
		if req.IntervalMinutes != nil {
			minutes = *req.IntervalMinutes
		}
		tz := CronTimezone(cur.Cron)
		if req.Timezone != nil {
			tz = *req.Timezone
		}
		next.Cron = WithTimezone(IntervalToCron(minutes), tz)
		res.Cron = next.Cron
		res.IntervalMinutes = req.IntervalMinutes
	}
	if req.Retries != nil {
		next.Retries = *req.Retries
		res.Retries = req.Retries
	}
	if req.FailureCallback != nil {
		next.FailureCallback = *req.FailureCallback
		res.FailureCallback = req.FailureCallback
	}
	if err := Validate(next.Cron); err != nil {
		return nil, fmt.Errorf("cron %q: %w", next.Cron, err)
	}

	id, err := m.replace(ctx, cur, next)
	if err != nil {
		return nil, err
	}
	res.NewScheduleID = id
	return res, nil
}

func (m *Manager) replace(ctx context.Context, cur *domain.Schedule, next domain.CreateRequest) (string, error) {
	log := obs.WithTrace(ctx, m.log).With(zap.String("schedule_id", cur.ID))

	if err := m.client.Delete(ctx, cur.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	id, err := m.client.Create(ctx, next)
	if err != nil {
		// put the old cadence back so the trigger keeps firing
		restored, rerr := m.client.Create(ctx, domain.CreateRequest{
			Destination:     cur.Destination,
			Cron:            cur.Cron,
			Retries:         cur.Retries,
			FailureCallback: cur.FailureCallback,
		})
		if rerr != nil {
			log.Error("schedule lost after failed recreate", zap.Error(err), zap.NamedError("restore_error", rerr))
		} else {
			log.Warn("schedule recreate failed, previous cadence restored", zap.String("restored_id", restored), zap.Error(err))
		}
		return "", err
	}
	if cur.Paused {
		if err := m.client.Pause(ctx, id); err != nil {
			log.Warn("re-pause recreated schedule", zap.String("new_id", id), zap.Error(err))
		}
	}
	log.Info("schedule replaced", zap.String("new_id", id), zap.String("cron", next.Cron))
	return id, nil
}

func (m *Manager) notFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return ErrNoSchedule
	}
	return err
}
