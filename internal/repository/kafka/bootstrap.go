package kafka

import (
	"context"

	"go.uber.org/zap"
)

// BootstrapConsumer makes sure the topic exists before joining the group. A
// missing topic is logged, not fatal: the reader keeps polling until it appears.
func BootstrapConsumer(ctx context.Context, cfg *ConsumerConfig, logger *zap.Logger) *Consumer {
	if err := EnsureTopic(ctx, cfg.Brokers, TopicSpec{Name: cfg.Topic}, logger); err != nil {
		logger.Warn("ensure topic", zap.String("topic", cfg.Topic), zap.Error(err))
	}
	return NewConsumer(cfg)
}

func BootstrapProducer(ctx context.Context, brokers []string, topic string, logger *zap.Logger) *Producer {
	if err := EnsureTopic(ctx, brokers, TopicSpec{Name: topic}, logger); err != nil {
		logger.Warn("ensure topic", zap.String("topic", topic), zap.Error(err))
	}
	return NewProducer(brokers, topic).WithLogger(logger)
}
