package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/NordCoder/Uptimer/internal/domain/ratelimit"
)

var _ ratelimit.Limiter = (*FixedWindowLimiter)(nil)

// FixedWindowLimiter allows limit hits per key per window, shared by every instance using the same Redis.
type FixedWindowLimiter struct {
	rdb    redis.UniversalClient
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewFixedWindowLimiter(rdb redis.UniversalClient, prefix string, limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		rdb:    rdb,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

func (f *FixedWindowLimiter) Allow(ctx context.Context, k string) (bool, error) {
	bucket := f.now().UnixNano() / int64(f.window)
	rk := key(f.prefix, "rl", k, strconv.FormatInt(bucket, 10))

	pipe := f.rdb.TxPipeline()
	incr := pipe.Incr(ctx, rk)
	pipe.Expire(ctx, rk, f.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit %s: %w", k, err)
	}
	return incr.Val() <= f.limit, nil
}
