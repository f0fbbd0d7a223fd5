package maintenance

import (
	"context"
	"time"
)

type Repo interface {
	Covers(ctx context.Context, targetID int64, now time.Time) (bool, error)
}
