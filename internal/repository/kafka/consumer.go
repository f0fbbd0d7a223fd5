package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/obs/retry"
)

var consumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uptimer_kafka_consumed_total",
	Help: "Consumed messages by topic and result",
}, []string{"topic", "result"})

type Handler func(ctx context.Context, key, value []byte) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader reader
	log    *zap.Logger
	cfg    *ConsumerConfig
}

type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topic         string
	FromBeginning bool
	Logger        *zap.Logger
	// Retry governs handler failures. Once it is exhausted the message is
	// committed and dropped so one poison message cannot stall the partition.
	Retry retry.Policy
}

func defaultHandlerPolicy() retry.Policy {
	return retry.Policy{
		Name:     "kafka_consume",
		Attempts: 5,
		Backoff:  retry.ExpoJitter{Base: 500 * time.Millisecond, Max: 10 * time.Second, Jitter: 0.2},
	}
}

func NewConsumer(cfg *ConsumerConfig) *Consumer {
	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.GroupID,
		Topic:                 cfg.Topic,
		StartOffset:           start,
		WatchPartitionChanges: true,

		MinBytes:          1e3,
		MaxBytes:          10e6,
		SessionTimeout:    10 * time.Second,
		RebalanceTimeout:  15 * time.Second,
		HeartbeatInterval: 3 * time.Second,
	})
	return newConsumer(r, cfg)
}

func newConsumer(r reader, cfg *ConsumerConfig) *Consumer {
	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = defaultHandlerPolicy()
	}
	c := &Consumer{reader: r, cfg: cfg}
	return c.WithLogger(cfg.Logger)
}

func (c *Consumer) WithLogger(l *zap.Logger) *Consumer {
	if l == nil {
		return c
	}
	cp := *c
	cp.log = l.With(
		zap.String("component", "kafka.consumer"),
		zap.String("topic", c.cfg.Topic),
		zap.String("group", c.cfg.GroupID),
	)
	return &cp
}

// Consume runs h for every message until ctx is done. Offsets are committed
// after h succeeds or its retries are exhausted, never on shutdown.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	log := c.log
	log.Info("consumer started")

	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopped (ctx canceled)")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				log.Debug("fetch EOF; retry", zap.Duration("backoff", backoff))
			} else {
				log.Warn("fetch failed; retry", zap.Error(err), zap.Duration("backoff", backoff))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(2*backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		msgCtx, span := otel.Tracer("kafka.consumer").Start(extractTrace(ctx, msg.Headers), "kafka.consume "+c.cfg.Topic,
			trace.WithSpanKind(trace.SpanKindConsumer))
		err = retry.Do(msgCtx, func() error { return h(msgCtx, msg.Key, msg.Value) }, c.cfg.Retry)
		if err != nil && ctx.Err() != nil {
			span.End()
			log.Info("consumer stopped mid-message; offset not committed", zap.Int64("offset", msg.Offset))
			return ctx.Err()
		}
		if err != nil {
			span.RecordError(err)
			consumedTotal.WithLabelValues(c.cfg.Topic, "dropped").Inc()
			log.Error("handler failed; message dropped",
				zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
		} else {
			consumedTotal.WithLabelValues(c.cfg.Topic, "ok").Inc()
		}
		span.End()

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				log.Info("commit interrupted by context cancel")
				return ctx.Err()
			}
			log.Warn("commit failed; will retry later", zap.Error(err))
		}
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }
