package worker

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewWorkerMetrics(t *testing.T) {
	m := globalTestMetrics

	assert.NotNil(t, m.ConfigMetrics)
	assert.NotNil(t, m.ConfigSetting)
	assert.NotNil(t, m.StatsJobRunsTotal)
	assert.NotNil(t, m.LastProcessedTimestamp)
	assert.NotNil(t, m.UptimeSeconds)
}

func newIsolatedWorkerMetrics() (*WorkerMetrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m := &WorkerMetrics{
		ConfigSetting: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "test_worker_config_setting",
			Help: "Test gauge",
		}, []string{"setting"}),
		StatsJobRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "test_worker_stats_job_runs_total",
			Help: "Test counter",
		}),
		LastProcessedTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "test_worker_last_processed_timestamp",
			Help: "Test gauge",
		}),
		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "test_worker_uptime_seconds",
			Help: "Test gauge",
		}),
	}
	reg.MustRegister(m.ConfigSetting, m.StatsJobRunsTotal, m.LastProcessedTimestamp, m.UptimeSeconds)
	return m, reg
}

func TestWorkerMetrics_RecordConfig(t *testing.T) {
	m, _ := newIsolatedWorkerMetrics()
	cfg := DefaultConfig()
	cfg.PoolSize = 25
	cfg.BackoffCeiling = 2 * time.Minute

	m.RecordConfig(&cfg)

	assert.Equal(t, 25.0, testutil.ToFloat64(m.ConfigSetting.WithLabelValues("pool_size")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.ConfigSetting.WithLabelValues("backoff_ceiling_seconds")))
	assert.Equal(t, 10, testutil.CollectAndCount(m.ConfigSetting))
}

func TestWorkerMetrics_RecordSnapshot(t *testing.T) {
	m, _ := newIsolatedWorkerMetrics()
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.RecordSnapshot(StatsSnapshot{UptimeSeconds: 42})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatsJobRunsTotal))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.UptimeSeconds))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastProcessedTimestamp))

	m.RecordSnapshot(StatsSnapshot{UptimeSeconds: 60, LastProcessedAt: &last})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StatsJobRunsTotal))
	assert.Equal(t, float64(last.Unix()), testutil.ToFloat64(m.LastProcessedTimestamp))
}
