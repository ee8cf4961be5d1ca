package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	workerPkg "notification-worker/internal/infra/worker"
	"notification-worker/internal/observability/metrics"
	"notification-worker/internal/observability/tracing"
	"notification-worker/internal/usecase/notify"
)

// HealthResponse is the liveness body of the metrics server.
type HealthResponse struct {
	Status string `json:"status"`
}

// ChannelHealthResponse reports every channel and whether all enabled ones
// can currently deliver.
type ChannelHealthResponse struct {
	Healthy  bool                         `json:"healthy"`
	Channels []notify.ChannelHealthStatus `json:"channels"`
}

// channelHealthSource is satisfied by *notify.Registry.
type channelHealthSource interface {
	GetChannelHealth() []notify.ChannelHealthStatus
}

// newMetricsMux serves /metrics, /health and /health/channels behind the
// tracing and HTTP metrics middleware.
func newMetricsMux(channels channelHealthSource) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
	})
	mux.HandleFunc("GET /health/channels", channelHealthHandler(channels))
	return tracing.Middleware(metrics.Middleware(mux))
}

// startMetricsServer serves newMetricsMux on port until ctx is cancelled.
func startMetricsServer(ctx context.Context, logger *slog.Logger, port int, channels channelHealthSource) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newMetricsMux(channels),
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	go func() {
		_ = workerPkg.Serve(ctx, srv, logger.With(slog.String("server", "metrics")))
	}()
}

// channelHealthHandler answers 503 when any enabled channel's circuit
// breaker is open.
func channelHealthHandler(channels channelHealthSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := ChannelHealthResponse{Healthy: true, Channels: channels.GetChannelHealth()}
		for _, ch := range resp.Channels {
			if ch.Enabled && ch.CircuitBreakerOpen {
				resp.Healthy = false
				break
			}
		}

		code := http.StatusOK
		if !resp.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
