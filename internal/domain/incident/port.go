package incident

import (
	"context"
	"time"
)

type Repo interface {
	FindOpen(ctx context.Context, targetID int64) (*Incident, error)
	Create(ctx context.Context, in *Incident) error
	ResolveOpen(ctx context.Context, targetID int64, at time.Time) (int64, error)
}
