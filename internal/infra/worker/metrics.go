package worker

import (
	"notification-worker/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics holds the worker runtime's Prometheus metrics: configuration
// fallbacks (embedded), effective settings and the periodic stats job.
//
// Create it once per process; the metrics are registered on the default
// registry and a second call panics.
type WorkerMetrics struct {
	*config.ConfigMetrics

	// ConfigSetting exposes the effective numeric settings, labelled by name.
	ConfigSetting *prometheus.GaugeVec

	// StatsJobRunsTotal counts stats snapshots taken by the cron job.
	StatsJobRunsTotal prometheus.Counter

	// LastProcessedTimestamp is the Unix time of the last processed message.
	LastProcessedTimestamp prometheus.Gauge

	// UptimeSeconds is refreshed by every stats snapshot.
	UptimeSeconds prometheus.Gauge
}

// NewWorkerMetrics creates and registers the worker metrics.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		ConfigSetting: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_config_setting",
			Help: "Effective worker configuration values (durations in seconds)",
		}, []string{"setting"}),

		StatsJobRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_stats_job_runs_total",
			Help: "Total number of stats snapshots taken",
		}),

		LastProcessedTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_last_processed_timestamp",
			Help: "Unix timestamp of the last processed message",
		}),

		UptimeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_uptime_seconds",
			Help: "Seconds since the worker started",
		}),
	}
}

// RecordConfig publishes the effective settings of cfg.
func (m *WorkerMetrics) RecordConfig(cfg *Config) {
	settings := map[string]float64{
		"poll_wait_time_seconds":                cfg.PollWaitTime.Seconds(),
		"poll_batch_size":                       float64(cfg.PollBatchSize),
		"pool_size":                             float64(cfg.PoolSize),
		"max_delivery_attempts":                 float64(cfg.MaxDeliveryAttempts),
		"backoff_base_seconds":                  cfg.BackoffBase.Seconds(),
		"backoff_ceiling_seconds":               cfg.BackoffCeiling.Seconds(),
		"visibility_timeout_seconds":            cfg.VisibilityTimeout.Seconds(),
		"visibility_extension_interval_seconds": cfg.VisibilityExtensionInterval.Seconds(),
		"handler_timeout_seconds":               cfg.HandlerTimeout.Seconds(),
		"shutdown_grace_period_seconds":         cfg.ShutdownGracePeriod.Seconds(),
	}
	for name, v := range settings {
		m.ConfigSetting.WithLabelValues(name).Set(v)
	}
}

// RecordSnapshot publishes a stats snapshot.
func (m *WorkerMetrics) RecordSnapshot(s StatsSnapshot) {
	m.StatsJobRunsTotal.Inc()
	m.UptimeSeconds.Set(s.UptimeSeconds)
	if s.LastProcessedAt != nil {
		m.LastProcessedTimestamp.Set(float64(s.LastProcessedAt.Unix()))
	}
}
