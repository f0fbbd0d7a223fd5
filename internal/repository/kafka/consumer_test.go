package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/obs/retry"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	done      chan struct{}
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	close(f.done)
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func TestConsume_RetriesThenCommits(t *testing.T) {
	r := &fakeReader{
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte(`{"n":1}`)},
			{Offset: 2, Value: []byte(`garbage`)},
			{Offset: 3, Value: []byte(`{"n":3}`)},
		},
		done: make(chan struct{}),
	}
	c := newConsumer(r, &ConsumerConfig{
		Topic:  "uptimer.transitions",
		Logger: zap.NewNop(),
		Retry: retry.Policy{
			Attempts:  3,
			Backoff:   retry.ExpoJitter{Base: time.Millisecond},
			Retryable: func(err error) bool { return !errors.Is(err, ErrDecode) },
		},
	})

	calls := map[int]int{}
	h := JSONHandler(func(_ context.Context, _ []byte, m struct{ N int }) error {
		calls[m.N]++
		if m.N == 1 && calls[1] < 2 {
			return errors.New("db down")
		}
		if m.N == 3 {
			return errors.New("always fails")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Consume(ctx, h) }()

	<-r.done
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	assert.Equal(t, 2, calls[1])
	assert.Equal(t, 3, calls[3])
	assert.Equal(t, []int64{1, 2, 3}, r.committed)
}

func TestConsume_DoesNotCommitOnShutdown(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{{Offset: 7}}, done: make(chan struct{})}
	c := newConsumer(r, &ConsumerConfig{Topic: "t", Logger: zap.NewNop()})

	ctx, cancel := context.WithCancel(context.Background())
	err := c.Consume(ctx, func(context.Context, []byte, []byte) error {
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.committed)
}
