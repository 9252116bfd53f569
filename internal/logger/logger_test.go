package logger

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHttpRequestInfo(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Set(zap.New(core))
	defer restore()

	r := httptest.NewRequest("GET", "/tasks?status=PENDING", nil)
	HttpRequestInfo(r, "HTTP_IN: request started", zap.String("request_id", "abc"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/tasks", fields["path"])
	assert.Equal(t, "status=PENDING", fields["query"])
	assert.Equal(t, "abc", fields["request_id"])
}

func TestErrorAttachesCause(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Set(zap.New(core))
	defer restore()

	Error("Repo: query failed", errors.New("connection reset"))
	Error("Repo: nothing attached", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "connection reset", entries[0].ContextMap()["error"])
	assert.NotContains(t, entries[1].ContextMap(), "error")
}

func TestSetRestores(t *testing.T) {
	before := Logger
	restore := Set(zap.NewExample())
	assert.NotSame(t, before, Logger)
	restore()
	assert.Same(t, before, Logger)
}

func TestInit(t *testing.T) {
	restore := Set(Logger)
	defer restore()

	require.NoError(t, Init(false))
	assert.False(t, Logger.Core().Enabled(zapcore.DebugLevel))
	require.NoError(t, Init(true))
	assert.True(t, Logger.Core().Enabled(zapcore.DebugLevel))
}
