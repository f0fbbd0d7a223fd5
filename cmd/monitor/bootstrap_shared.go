package main

import (
	"context"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	config "github.com/NordCoder/Uptimer/internal/config/monitor"
	"github.com/NordCoder/Uptimer/internal/domain/lease"
	"github.com/NordCoder/Uptimer/internal/domain/ratelimit"
	"github.com/NordCoder/Uptimer/internal/domain/schedule"
	"github.com/NordCoder/Uptimer/internal/obs"
	"github.com/NordCoder/Uptimer/internal/repository/memory"
	"github.com/NordCoder/Uptimer/internal/repository/qstash"
	"github.com/NordCoder/Uptimer/internal/repository/redis"
)

// shared holds the state that must be common to every replica when Redis is enabled.
type shared struct {
	rdb       *goredis.Client
	locker    lease.Locker
	limiter   ratelimit.Limiter
	schedules schedule.Client
}

func initShared(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*shared, error) {
	s := &shared{}
	if cfg.Redis.Enable {
		rdb, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		s.rdb = rdb
		s.locker = redis.NewLocker(rdb, cfg.Redis.KeyPrefix)
		s.limiter = redis.NewFixedWindowLimiter(rdb, cfg.Redis.KeyPrefix, cfg.RateLimit.PerMinute, time.Minute)
		logger.Info("redis connected", zap.String("prefix", cfg.Redis.KeyPrefix))
	} else {
		s.locker = memory.NewLocker()
		s.limiter = memory.NewTokenBucketLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
		logger.Warn("redis disabled: leases and rate limits are per process")
	}

	switch cfg.Schedule.Backend {
	case config.BackendRedis:
		s.schedules = redis.NewScheduleStore(s.rdb, cfg.Redis.KeyPrefix)
	default:
		s.schedules = qstash.NewClient(cfg.Schedule.QStashURL, cfg.Schedule.QStashToken)
	}
	return s, nil
}

func (s *shared) health() obs.HealthFunc {
	if s.rdb == nil {
		return nil
	}
	return func(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }
}

func (s *shared) Close() error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
