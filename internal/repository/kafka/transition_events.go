package kafka

import (
	"context"

	"github.com/NordCoder/Uptimer/internal/domain/kafka"
	"github.com/NordCoder/Uptimer/internal/domain/transition"
)

type TransitionEventsKafka struct {
	p *Producer
}

func NewTransitionEventsKafka(p *Producer) *TransitionEventsKafka {
	return &TransitionEventsKafka{p: p}
}

var _ kafka.TransitionEvents = (*TransitionEventsKafka)(nil)

// PublishTransition keys by target so one target's events stay ordered within a partition.
func (e *TransitionEventsKafka) PublishTransition(ctx context.Context, ev transition.Event) error {
	return e.p.PublishJSON(ctx, KeyFromInt64(ev.TargetID), ev)
}
