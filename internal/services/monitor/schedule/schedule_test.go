package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/NordCoder/Uptimer/internal/domain/schedule"
)

func TestIntervalToCron(t *testing.T) {
	cases := map[int]string{
		0:    "* * * * *",
		1:    "* * * * *",
		5:    "*/5 * * * *",
		59:   "*/59 * * * *",
		60:   "0 */1 * * *",
		90:   "0 */1 * * *",
		360:  "0 */6 * * *",
		1440: "0 0 * * *",
		5000: "0 0 * * *",
	}
	for minutes, want := range cases {
		got := IntervalToCron(minutes)
		assert.Equal(t, want, got, "minutes=%d", minutes)
		assert.NoError(t, Validate(got))
	}
}

func TestCronToInterval(t *testing.T) {
	m, exact := CronToInterval(IntervalToCron(5))
	assert.Equal(t, 5, m)
	assert.True(t, exact)

	m, exact = CronToInterval("* * * * *")
	assert.Equal(t, 1, m)
	assert.True(t, exact)

	m, exact = CronToInterval("CRON_TZ=Europe/Berlin */15 * * * *")
	assert.Equal(t, 15, m)
	assert.True(t, exact)

	for _, expr := range []string{"0 */2 * * *", "*/x * * * *", "*/5 * * *", "30 9 * * 1", "*/5 1 * * *"} {
		m, exact = CronToInterval(expr)
		assert.Equal(t, 1, m, expr)
		assert.False(t, exact, expr)
	}
}

func TestTimezone(t *testing.T) {
	assert.Equal(t, "*/5 * * * *", WithTimezone("*/5 * * * *", ""))
	assert.Equal(t, "*/5 * * * *", WithTimezone("*/5 * * * *", "UTC"))
	got := WithTimezone("CRON_TZ=Asia/Tokyo */5 * * * *", "Europe/Berlin")
	assert.Equal(t, "CRON_TZ=Europe/Berlin */5 * * * *", got)
	assert.NoError(t, Validate(got))

	assert.Equal(t, "Europe/Berlin", CronTimezone(got))
	assert.Equal(t, "UTC", CronTimezone("*/5 * * * *"))
}

func TestDestinationURL(t *testing.T) {
	cases := map[string]string{
		"uptime.example.com":           "https://uptime.example.com/api/cron",
		"https://uptime.example.com/":  "https://uptime.example.com/api/cron",
		"http://localhost:8080":        "http://localhost:8080/api/cron",
		"  uptime.example.com//  ":     "https://uptime.example.com/api/cron",
		"https://uptime.example.com/x": "https://uptime.example.com/x/api/cron",
	}
	for site, want := range cases {
		assert.Equal(t, want, DestinationURL(site, "/api/cron"), site)
	}
	assert.Empty(t, DestinationURL(" ", "/api/cron"))
}

type fakeClient struct {
	items     map[string]*domain.Schedule
	seq       int
	failNext  error
	calls     []string
	createdAt time.Time
}

func newFakeClient(existing ...domain.Schedule) *fakeClient {
	f := &fakeClient{items: map[string]*domain.Schedule{}}
	for _, s := range existing {
		s := s
		f.items[s.ID] = &s
	}
	return f
}

func (f *fakeClient) List(context.Context) ([]domain.Schedule, error) {
	var out []domain.Schedule
	for _, s := range f.items {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeClient) Get(_ context.Context, id string) (*domain.Schedule, error) {
	s, ok := f.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeClient) Create(_ context.Context, req domain.CreateRequest) (string, error) {
	f.calls = append(f.calls, "create")
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return "", err
	}
	f.seq++
	id := fmt.Sprintf("scd_%d", f.seq)
	f.items[id] = &domain.Schedule{
		ID: id, Cron: req.Cron, Destination: req.Destination, Method: "POST",
		Retries: req.Retries, FailureCallback: req.FailureCallback, CreatedAt: f.createdAt,
	}
	return id, nil
}

func (f *fakeClient) Delete(_ context.Context, id string) error {
	f.calls = append(f.calls, "delete")
	if _, ok := f.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeClient) Pause(_ context.Context, id string) error { return f.setPaused(id, true) }

func (f *fakeClient) Resume(_ context.Context, id string) error { return f.setPaused(id, false) }

func (f *fakeClient) setPaused(id string, v bool) error {
	f.calls = append(f.calls, fmt.Sprintf("paused=%v", v))
	s, ok := f.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Paused = v
	return nil
}

const trigger = "/api/cron/check-monitors"

func newManager(c domain.Client) *Manager {
	return NewManager(c, "uptime.example.com", trigger, "/api/cron/failure-callback", zap.NewNop())
}

func ptr[T any](v T) *T { return &v }

func TestCurrent(t *testing.T) {
	c := newFakeClient(
		domain.Schedule{ID: "other", Cron: "0 0 * * *", Destination: "https://x/api/other"},
		domain.Schedule{ID: "s1", Cron: "CRON_TZ=Europe/Berlin 0 */2 * * *", Destination: "https://x" + trigger, Retries: 2, Paused: true},
	)
	info, err := newManager(c).Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s1", info.ID)
	assert.Equal(t, 1, info.IntervalMinutes)
	assert.False(t, info.IntervalExact)
	assert.Equal(t, "Europe/Berlin", info.Timezone)
	assert.True(t, info.Paused)
	assert.Equal(t, 2, info.Retries)

	_, err = newManager(newFakeClient()).Current(context.Background())
	assert.ErrorIs(t, err, ErrNoSchedule)
}

func TestCreate(t *testing.T) {
	c := newFakeClient()
	m := newManager(c)

	_, err := m.Create(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	got, err := m.Create(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", got.Cron)

	s := c.items[got.ID]
	require.NotNil(t, s)
	assert.Equal(t, "https://uptime.example.com"+trigger, s.Destination)
	assert.Equal(t, "https://uptime.example.com/api/cron/failure-callback", s.FailureCallback)
	assert.Equal(t, domain.DefaultRetries, s.Retries)

	_, err = m.Create(context.Background(), 10)
	assert.ErrorIs(t, err, ErrScheduleExists)

	_, err = NewManager(newFakeClient(), "", trigger, "", zap.NewNop()).Create(context.Background(), 5)
	assert.ErrorIs(t, err, ErrSiteNotConfigured)
}

func TestUpdateValidation(t *testing.T) {
	m := newManager(newFakeClient(domain.Schedule{ID: "s1", Cron: "*/5 * * * *", Destination: trigger}))
	ctx := context.Background()

	_, err := m.Update(ctx, UpdateRequest{})
	assert.ErrorIs(t, err, ErrMissingID)
	_, err = m.Update(ctx, UpdateRequest{ScheduleID: "s1"})
	assert.ErrorIs(t, err, ErrNothingToUpdate)
	_, err = m.Update(ctx, UpdateRequest{ScheduleID: "s1", IntervalMinutes: ptr(0)})
	assert.ErrorIs(t, err, ErrInvalidInterval)
	_, err = m.Update(ctx, UpdateRequest{ScheduleID: "s1", Retries: ptr(6)})
	assert.ErrorIs(t, err, ErrInvalidRetries)
	_, err = m.Update(ctx, UpdateRequest{ScheduleID: "s1", Timezone: ptr("Mars/Olympus")})
	assert.ErrorIs(t, err, ErrInvalidTimezone)
	_, err = m.Update(ctx, UpdateRequest{ScheduleID: "missing", Retries: ptr(1)})
	assert.ErrorIs(t, err, ErrNoSchedule)
}

func TestUpdatePauseResume(t *testing.T) {
	c := newFakeClient(domain.Schedule{ID: "s1", Cron: "*/5 * * * *", Destination: trigger})
	m := newManager(c)

	res, err := m.Update(context.Background(), UpdateRequest{ScheduleID: "s1", Action: ActionPause})
	require.NoError(t, err)
	assert.Equal(t, "paused", res.Action)
	assert.True(t, c.items["s1"].Paused)

	res, err = m.Update(context.Background(), UpdateRequest{ScheduleID: "s1", Action: ActionResume})
	require.NoError(t, err)
	assert.Equal(t, "resumed", res.Action)
	assert.False(t, c.items["s1"].Paused)

	_, err = m.Update(context.Background(), UpdateRequest{ScheduleID: "nope", Action: ActionPause})
	assert.ErrorIs(t, err, ErrNoSchedule)
}

func TestUpdateRecreatesAndKeepsFields(t *testing.T) {
	c := newFakeClient(domain.Schedule{
		ID: "s1", Cron: "CRON_TZ=Europe/Berlin */5 * * * *", Destination: "https://x" + trigger,
		Retries: 1, FailureCallback: "https://x/fail", Paused: true,
	})
	m := newManager(c)

	res, err := m.Update(context.Background(), UpdateRequest{ScheduleID: "s1", IntervalMinutes: ptr(10)})
	require.NoError(t, err)
	require.NotEmpty(t, res.NewScheduleID)
	assert.NotEqual(t, "s1", res.NewScheduleID)
	assert.Equal(t, "CRON_TZ=Europe/Berlin */10 * * * *", res.Cron)
	assert.Equal(t, 10, *res.IntervalMinutes)

	_, stillThere := c.items["s1"]
	assert.False(t, stillThere)
	s := c.items[res.NewScheduleID]
	assert.Equal(t, "https://x"+trigger, s.Destination)
	assert.Equal(t, 1, s.Retries)
	assert.Equal(t, "https://x/fail", s.FailureCallback)
	assert.True(t, s.Paused)

	res2, err := m.Update(context.Background(), UpdateRequest{ScheduleID: res.NewScheduleID, Timezone: ptr("UTC"), Retries: ptr(0)})
	require.NoError(t, err)
	s = c.items[res2.NewScheduleID]
	assert.Equal(t, "*/10 * * * *", s.Cron)
	assert.Equal(t, 0, s.Retries)
	assert.Len(t, c.items, 1)
}

func TestUpdateRestoresOnCreateFailure(t *testing.T) {
	c := newFakeClient(domain.Schedule{ID: "s1", Cron: "*/5 * * * *", Destination: trigger, Retries: 3})
	c.failNext = fmt.Errorf("%w: boom", domain.ErrScheduler)
	m := newManager(c)

	_, err := m.Update(context.Background(), UpdateRequest{ScheduleID: "s1", IntervalMinutes: ptr(15)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrScheduler))

	require.Len(t, c.items, 1)
	for _, s := range c.items {
		assert.Equal(t, "*/5 * * * *", s.Cron)
		assert.True(t, strings.HasSuffix(s.Destination, trigger))
	}
	assert.Equal(t, []string{"delete", "create", "create"}, c.calls)
}
