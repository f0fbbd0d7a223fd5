package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// OutboxPublishPolicy retries a broker publish from the outbox runner. A message
// that still fails stays in the outbox for the next tick.
func OutboxPublishPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "outbox_publish",
		Attempts: 6,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("outbox publish retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox publish gave up", zap.Error(err))
			}
		},
	}
}

// DeliveryPolicy retries a scheduled delivery `retries` times after the first attempt.
func DeliveryPolicy(name string, retries int, log *zap.Logger) Policy {
	return Policy{
		Name:     name,
		Attempts: retries + 1,
		Backoff:  ExpoJitter{Base: time.Second, Max: 10 * time.Second, Jitter: 0.1},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("delivery attempt failed", zap.String("name", name), zap.Int("attempt", i+1), zap.Error(err))
			}
		},
	}
}

// SchedulerAPIPolicy retries only errors marked as transient by the caller.
func SchedulerAPIPolicy(transient func(error) bool) Policy {
	return Policy{
		Name:      "scheduler_api",
		Attempts:  3,
		Backoff:   ExpoJitter{Base: 250 * time.Millisecond, Max: 2 * time.Second, Jitter: 0.2},
		Retryable: transient,
	}
}
