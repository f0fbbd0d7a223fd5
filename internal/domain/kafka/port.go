package kafka

import (
	"context"

	"github.com/NordCoder/Uptimer/internal/domain/transition"
)

type TransitionEvents interface {
	PublishTransition(ctx context.Context, ev transition.Event) error
}
