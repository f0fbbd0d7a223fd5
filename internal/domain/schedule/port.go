package schedule

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("schedule not found")

// Client is the scheduler API. It has no update primitive.
type Client interface {
	List(ctx context.Context) ([]Schedule, error)
	Get(ctx context.Context, id string) (*Schedule, error)
	Create(ctx context.Context, req CreateRequest) (string, error)
	Delete(ctx context.Context, id string) error
	Pause(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
}

// ErrScheduler marks failures reported by, or on the way to, the scheduler API.
var ErrScheduler = errors.New("scheduler api error")
