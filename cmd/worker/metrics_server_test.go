package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	workerPkg "notification-worker/internal/infra/worker"
	"notification-worker/internal/usecase/notify"
)

type staticChannels []notify.ChannelHealthStatus

func (s staticChannels) GetChannelHealth() []notify.ChannelHealthStatus { return s }

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestMetricsMux_Health(t *testing.T) {
	rec := serve(newMetricsMux(staticChannels{}), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestMetricsMux_Metrics(t *testing.T) {
	rec := serve(newMetricsMux(staticChannels{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetricsMux_ChannelHealth(t *testing.T) {
	tests := []struct {
		name     string
		channels staticChannels
		wantCode int
	}{
		{
			name: "all closed",
			channels: staticChannels{
				{Name: "email", OutputType: "EMAIL", Enabled: true, State: "closed"},
				{Name: "sms", OutputType: "SMS", Enabled: true, State: "closed"},
			},
			wantCode: http.StatusOK,
		},
		{
			name: "enabled channel open",
			channels: staticChannels{
				{Name: "email", OutputType: "EMAIL", Enabled: true, State: "closed"},
				{Name: "push", OutputType: "PUSH", Enabled: true, CircuitBreakerOpen: true, State: "open"},
			},
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name: "disabled channel open",
			channels: staticChannels{
				{Name: "push", OutputType: "PUSH", Enabled: false, CircuitBreakerOpen: true, State: "open"},
			},
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newMetricsMux(tt.channels), "/health/channels")

			require.Equal(t, tt.wantCode, rec.Code)
			var body ChannelHealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode == http.StatusOK, body.Healthy)
			assert.Equal(t, []notify.ChannelHealthStatus(tt.channels), body.Channels)
		})
	}
}

func TestConfigConversions(t *testing.T) {
	cfg := workerPkg.DefaultConfig()
	cfg.PoolSize = 7
	cfg.MaxDeliveryAttempts = 4
	cfg.BackoffCeiling = time.Minute

	pc := pollConfig(&cfg)
	assert.Equal(t, 7, pc.PoolSize)
	assert.Equal(t, cfg.PollBatchSize, pc.BatchSize)
	assert.Equal(t, cfg.VisibilityExtensionInterval, pc.VisibilityExtensionInterval)
	assert.Equal(t, cfg.ShutdownGracePeriod, pc.ShutdownGracePeriod)

	dc := dispatchConfig(&cfg)
	assert.Equal(t, 4, dc.MaxAttempts)
	assert.Equal(t, cfg.BackoffBase, dc.BackoffBase)
	assert.Equal(t, time.Minute, dc.BackoffCeiling)
}

func TestBurst(t *testing.T) {
	assert.Equal(t, 1, burst(0.5))
	assert.Equal(t, 14, burst(14))
	assert.Equal(t, 20, burst(20.9))
}
