package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/pkg/health"
)

func ok(context.Context) error { return nil }

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	health.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	health.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live?format=json", nil))
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	checks := health.Checks{
		"db":    ok,
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req.Header.Set("Accept", "application/json")
	health.ReadinessHandler(checks)(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, health.StatusUnhealthy, resp.Status)
	assert.Equal(t, health.StatusHealthy, resp.Checks["db"].Status)
	assert.Equal(t, "connection refused", resp.Checks["redis"].Error)

	rec = httptest.NewRecorder()
	health.ReadinessHandler(health.Checks{"db": ok})(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()

	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	resp := health.Run(context.Background(), health.Checks{"slow": slow, "db": ok},
		health.WithTimeout(20*time.Millisecond))

	assert.Equal(t, health.StatusUnhealthy, resp.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["slow"].Error)
	assert.Equal(t, health.StatusHealthy, resp.Checks["db"].Status)
}

func TestRun_NoChecks(t *testing.T) {
	t.Parallel()

	resp := health.Run(context.Background(), nil)
	assert.Equal(t, health.StatusHealthy, resp.Status)
	assert.Empty(t, resp.Checks)
}
