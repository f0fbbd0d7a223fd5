package memory

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/Uptimer/internal/domain/ratelimit"
)

var _ ratelimit.Limiter = (*TokenBucketLimiter)(nil)

type bucket struct {
	tokens float64
	last   time.Time
}

// TokenBucketLimiter is a per-key token bucket local to one process.
type TokenBucketLimiter struct {
	rate  float64 // tokens per second
	burst float64
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	swept   time.Time
}

func NewTokenBucketLimiter(perMinute, burst int) *TokenBucketLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketLimiter{
		rate:    float64(perMinute) / 60.0,
		burst:   float64(burst),
		ttl:     10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *TokenBucketLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: l.burst, last: now}
		l.buckets[key] = b
	}
	b.tokens = min(l.burst, b.tokens+now.Sub(b.last).Seconds()*l.rate)
	b.last = now

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// sweep drops idle buckets at most once per ttl.
func (l *TokenBucketLimiter) sweep(now time.Time) {
	if now.Sub(l.swept) < l.ttl {
		return
	}
	l.swept = now
	for k, b := range l.buckets {
		if now.Sub(b.last) > l.ttl {
			delete(l.buckets, k)
		}
	}
}
