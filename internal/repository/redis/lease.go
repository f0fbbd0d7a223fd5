package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/NordCoder/Uptimer/internal/domain/lease"
)

var _ lease.Locker = (*Locker)(nil)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewLocker(rdb redis.UniversalClient, prefix string) *Locker {
	return &Locker{rdb: rdb, prefix: prefix}
}

func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (lease.Lease, error) {
	k := key(l.prefix, "lease", name)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	if !ok {
		return nil, lease.ErrBusy
	}
	return &redisLease{rdb: l.rdb, key: k, token: token}, nil
}

type redisLease struct {
	rdb   redis.UniversalClient
	key   string
	token string
}

func (r *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, r.rdb, []string{r.key}, r.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
