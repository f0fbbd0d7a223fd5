package lease

import (
	"context"
	"errors"
	"time"
)

var ErrBusy = errors.New("lease is held by another evaluation")

type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out short-lived exclusive leases keyed by name.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}
