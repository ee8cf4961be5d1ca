package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-worker/internal/usecase/dispatch"
)

func newTestHealthServer(stats *Stats) *HealthServer {
	return NewHealthServer("localhost:0", stats, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthServer_Liveness(t *testing.T) {
	server := newTestHealthServer(nil)

	rec := get(t, server.Handler(), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthServer_Readiness(t *testing.T) {
	server := newTestHealthServer(nil)
	handler := server.Handler()

	rec := get(t, handler, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not ready"}`, rec.Body.String())

	server.SetReady(true)
	rec = get(t, handler, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	server.SetReady(false)
	rec = get(t, handler, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthServer_Stats(t *testing.T) {
	stats := NewStats(func() int { return 2 })
	stats.ObserveResult(dispatch.Result{Action: dispatch.Acknowledge})
	stats.ObserveResult(dispatch.Result{Action: dispatch.Retry})
	stats.ObserveResult(dispatch.Result{Action: dispatch.DeadLetter})
	server := newTestHealthServer(stats)
	server.SetReady(true)

	rec := get(t, server.Handler(), "/health/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 3, body["messages_processed"])
	assert.EqualValues(t, 1, body["errors_count"])
	assert.EqualValues(t, 1, body["dlq_messages_count"])
	assert.EqualValues(t, 2, body["in_flight"])
	assert.NotNil(t, body["last_message_processed"])
	assert.Contains(t, body, "uptime_seconds")
}

func TestHealthServer_StatsBeforeReady(t *testing.T) {
	server := newTestHealthServer(nil)

	rec := get(t, server.Handler(), "/health/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "starting", body["status"])
	assert.Nil(t, body["last_message_processed"])
}

func TestHealthServer_RejectsOtherMethods(t *testing.T) {
	server := newTestHealthServer(nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthServer_GracefulShutdown(t *testing.T) {
	server := NewHealthServer("localhost:19093", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://localhost:19093/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, http.ErrServerClosed), "got %v", err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
