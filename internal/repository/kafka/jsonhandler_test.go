package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Uptimer/internal/domain/transition"
)

func TestJSONHandler_DecodesValue(t *testing.T) {
	var got transition.Event
	h := JSONHandler(func(_ context.Context, key []byte, ev transition.Event) error {
		assert.Equal(t, "42", string(key))
		got = ev
		return nil
	})

	err := h(context.Background(), KeyFromInt64(42), []byte(`{"target_id":42,"target_name":"api","kind":"down","to":0}`))
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.TargetID)
	assert.Equal(t, transition.KindDown, got.Kind)
}

func TestJSONHandler_RejectsGarbage(t *testing.T) {
	called := false
	h := JSONHandler(func(context.Context, []byte, transition.Event) error {
		called = true
		return nil
	})
	err := h(context.Background(), nil, []byte("not json"))
	require.ErrorIs(t, err, ErrDecode)
	assert.False(t, called)
}

func TestHeaderCarrier_SetsInPlace(t *testing.T) {
	hs := []kafka.Header{{Key: "content-type", Value: []byte("application/json")}}
	c := headerCarrier{hs: &hs}
	c.Set("traceparent", "00-abc-def-01")
	c.Set("content-type", "text/plain")

	assert.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	assert.Equal(t, "text/plain", c.Get("content-type"))
	assert.Equal(t, "", c.Get("missing"))
	assert.Equal(t, []string{"content-type", "traceparent"}, c.Keys())
	assert.Len(t, hs, 2)
}
