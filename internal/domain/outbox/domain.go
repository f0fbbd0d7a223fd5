package outbox

import (
	"context"
	"time"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
)

type Kind int

const (
	KindTransition Kind = 1
)

// Message is one pending side effect together with the trace context it was recorded under.
type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tracestate     string
	Traceparent    string
	Baggage        string
}

// Enqueuer is the write side used inside business transactions.
type Enqueuer interface {
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error
}

type Repository interface {
	Enqueuer

	// PickBatch claims up to batch messages. IN_PROGRESS rows older than
	// inProgressTTL are treated as abandoned and claimed again.
	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error

	// Purge deletes delivered messages last updated more than olderThan ago.
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)
