package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Environments(t *testing.T) {
	for _, production := range []bool{true, false} {
		log, err := New(production, "debug")
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel), "production=%v", production)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestRequestLogger_LevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	statuses := []int{http.StatusOK, http.StatusUnauthorized, http.StatusInternalServerError}
	for _, status := range statuses {
		h := middleware.RequestID(RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/products", nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/products", fields["path"])
	assert.NotEmpty(t, fields["request_id"])
}
