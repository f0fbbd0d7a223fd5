package heartbeat

import (
	"context"
	"time"
)

type Repo interface {
	Insert(ctx context.Context, hb *Heartbeat) error
	// Latest returns nil, nil when the target has never been checked.
	Latest(ctx context.Context, targetID int64) (*Heartbeat, error)
	LastTimes(ctx context.Context, targetIDs []int64) (map[int64]time.Time, error)
}
