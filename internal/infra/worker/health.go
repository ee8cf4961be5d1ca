package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthServer answers orchestrator health checks. /health is liveness and always
// 200, /health/ready turns 200 while the poller runs, and /health/stats
// reports the processing counters.
type HealthServer struct {
	addr   string
	stats  *Stats
	logger *slog.Logger
	ready  atomic.Bool
	server *http.Server
}

type statusBody struct {
	Status string `json:"status"`
}

// NewHealthServer creates a health server listening on addr. stats may be
// nil, in which case /health/stats reports zero counters.
func NewHealthServer(addr string, stats *Stats, logger *slog.Logger) *HealthServer {
	if stats == nil {
		stats = NewStats(nil)
	}
	return &HealthServer{addr: addr, stats: stats, logger: logger}
}

// Handler returns the endpoint mux.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleLiveness)
	mux.HandleFunc("GET /health/ready", h.handleReadiness)
	mux.HandleFunc("GET /health/stats", h.handleStats)
	return mux
}

// Start serves until ctx is cancelled or the listener fails. It returns
// http.ErrServerClosed after a graceful shutdown.
func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:              h.addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       time.Minute,
	}
	return Serve(ctx, h.server, h.logger.With(slog.String("server", "health")))
}

// SetReady changes the /health/ready answer.
func (h *HealthServer) SetReady(ready bool) {
	h.ready.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, statusBody{Status: "ok"})
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if h.ready.Load() {
		h.writeJSON(w, http.StatusOK, statusBody{Status: "ok"})
		return
	}
	h.writeJSON(w, http.StatusServiceUnavailable, statusBody{Status: "not ready"})
}

func (h *HealthServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	snap := h.stats.Snapshot()
	if !h.ready.Load() {
		snap.Status = "starting"
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *HealthServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
