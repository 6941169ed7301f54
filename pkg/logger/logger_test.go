package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logger.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, logger.ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("verbose"))
}

func TestNewWriter_Extractors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWriter(&buf, logger.Config{Level: "info"},
		logger.RequestIDExtractor(), logger.ModeExtractor(), nil)

	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx = logger.WithMode(ctx, "user.response:profile")
	log.InfoContext(ctx, "dispatched", slog.Int("status", 200))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "dispatched", rec["msg"])
	assert.Equal(t, "req-1", rec["request_id"])
	assert.Equal(t, "user.response:profile", rec["mode"])
	assert.EqualValues(t, 200, rec["status"])
}

func TestNewWriter_LevelAndFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWriter(&buf, logger.Config{Level: "warn", Format: "text"})

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestExtractor_MissingValue(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWriter(&buf, logger.Config{}, logger.ModeExtractor())
	log.InfoContext(context.Background(), "plain")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotContains(t, rec, "mode")
}

func TestNewWriter_WithAttrsKeepsExtractors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWriter(&buf, logger.Config{}, logger.ModeExtractor()).
		With(slog.String("component", "dispatch")).
		WithGroup("g")

	log.InfoContext(logger.WithMode(context.Background(), "system.response"), "x", slog.Int("n", 1))
	out := buf.String()
	assert.Contains(t, out, `"component":"dispatch"`)
	assert.Contains(t, out, `"mode":"system.response"`)
}

func TestNewNope(t *testing.T) {
	t.Parallel()

	log := logger.NewNope()
	require.NotNil(t, log)
	log.Error("discarded")
}
