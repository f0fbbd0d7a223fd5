package channel

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("channel not found")

type Repo interface {
	ListActiveByOwner(ctx context.Context, ownerID int64) ([]Channel, error)
	// GetByID returns ErrNotFound for an unknown id.
	GetByID(ctx context.Context, id int64) (*Channel, error)
}
