package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/NordCoder/Uptimer/internal/domain/schedule"
)

var _ schedule.Client = (*ScheduleStore)(nil)

// ScheduleStore keeps schedules for the self-hosted trigger in one Redis hash keyed by schedule id.
type ScheduleStore struct {
	rdb  redis.UniversalClient
	hash string
	now  func() time.Time
}

func NewScheduleStore(rdb redis.UniversalClient, prefix string) *ScheduleStore {
	return &ScheduleStore{rdb: rdb, hash: key(prefix, "schedules"), now: time.Now}
}

func (s *ScheduleStore) List(ctx context.Context) ([]schedule.Schedule, error) {
	raw, err := s.rdb.HGetAll(ctx, s.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	out := make([]schedule.Schedule, 0, len(raw))
	for id, v := range raw {
		var sc schedule.Schedule
		if err := json.Unmarshal([]byte(v), &sc); err != nil {
			return nil, fmt.Errorf("decode schedule %s: %w", id, err)
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *ScheduleStore) Get(ctx context.Context, id string) (*schedule.Schedule, error) {
	v, err := s.rdb.HGet(ctx, s.hash, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, schedule.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	var sc schedule.Schedule
	if err := json.Unmarshal([]byte(v), &sc); err != nil {
		return nil, fmt.Errorf("decode schedule %s: %w", id, err)
	}
	return &sc, nil
}

func (s *ScheduleStore) Create(ctx context.Context, req schedule.CreateRequest) (string, error) {
	sc := schedule.Schedule{
		ID:              "scd_" + uuid.NewString(),
		Cron:            req.Cron,
		Destination:     req.Destination,
		Method:          "POST",
		Retries:         req.Retries,
		FailureCallback: req.FailureCallback,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.put(ctx, &sc); err != nil {
		return "", err
	}
	return sc.ID, nil
}

func (s *ScheduleStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.HDel(ctx, s.hash, id).Result()
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

func (s *ScheduleStore) Pause(ctx context.Context, id string) error {
	return s.setPaused(ctx, id, true)
}

func (s *ScheduleStore) Resume(ctx context.Context, id string) error {
	return s.setPaused(ctx, id, false)
}

func (s *ScheduleStore) setPaused(ctx context.Context, id string, paused bool) error {
	sc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sc.Paused = paused
	return s.put(ctx, sc)
}

func (s *ScheduleStore) put(ctx context.Context, sc *schedule.Schedule) error {
	b, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	if err := s.rdb.HSet(ctx, s.hash, sc.ID, b).Err(); err != nil {
		return fmt.Errorf("store schedule: %w", err)
	}
	return nil
}
