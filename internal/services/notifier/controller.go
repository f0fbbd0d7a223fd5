package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/domain/transition"
	kafkax "github.com/NordCoder/Uptimer/internal/repository/kafka"
)

type Controller struct {
	Log *zap.Logger
	Sub *kafkax.Consumer
	UC  *Handler
}

func (c *Controller) Run(ctx context.Context) error {
	return c.Sub.Consume(ctx, kafkax.JSONHandler(func(ctx context.Context, _ []byte, ev transition.Event) error {
		return c.UC.HandleTransition(ctx, ev)
	}))
}
