package obs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.log")
	log, err := NewLogger(LogConfig{Level: "debug", App: "uptimer/test", Env: "test", File: path})
	require.NoError(t, err)

	log.Info("hello")
	_ = log.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)
	assert.Contains(t, string(b), `"service":"uptimer/test"`)
}

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	log, err := NewLogger(LogConfig{Level: "loud"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.DebugLevel))
	assert.True(t, log.Core().Enabled(zap.InfoLevel))
}

func TestWithTrace(t *testing.T) {
	assert.NotNil(t, WithTrace(context.Background(), nil))

	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	WithTrace(context.Background(), log).Info("plain")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{2},
		TraceFlags: trace.FlagsSampled,
	})
	WithTrace(trace.ContextWithSpanContext(context.Background(), sc), log).Info("traced")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].ContextMap())
	assert.Equal(t, sc.TraceID().String(), entries[1].ContextMap()["trace_id"])
	assert.Equal(t, sc.SpanID().String(), entries[1].ContextMap()["span_id"])
}
