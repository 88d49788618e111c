package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func createObservedLogger(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewZapAdapter(zap.New(core)), logs
}

func TestZapWrapper_Fields(t *testing.T) {
	log, logs := createObservedLogger(zapcore.DebugLevel)

	scoped := log.WithFields(map[string]interface{}{"component": "scheduler"})
	scoped.Info("Job queued", map[string]interface{}{
		"key":    "mindbody:2026-10-19:weekly",
		"queued": 3,
		"force":  true,
		"error":  errors.New("boom"),
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Job queued", entry.Message)

	ctx := entry.ContextMap()
	assert.Equal(t, "scheduler", ctx["component"])
	assert.Equal(t, "mindbody:2026-10-19:weekly", ctx["key"])
	assert.EqualValues(t, 3, ctx["queued"])
	assert.Equal(t, true, ctx["force"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestZapWrapper_Levels(t *testing.T) {
	log, logs := createObservedLogger(zapcore.WarnLevel)

	log.Debug("hidden", nil)
	log.Info("hidden", nil)
	log.Warn("shown", nil)
	log.WithError(errors.New("refused")).Error("shown", nil)

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "refused", logs.All()[1].ContextMap()["error"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNew_FallsBackToNop(t *testing.T) {
	l := New("info", "json", "/nonexistent-dir/designgen.log")
	require.NotNil(t, l)
	l.Info("dropped")
}
