// Package metrics provides centralized Prometheus metrics for the worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics cover the worker's metrics and health listeners.
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path", "status"},
	)
)

// Delivery metrics track notifications through the dispatcher.
var (
	// NotificationsProcessedTotal counts dispatcher results by output type and action
	NotificationsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_processed_total",
			Help: "Total number of notifications processed by output type and resulting action",
		},
		[]string{"output_type", "action"},
	)

	// DeliveryStatusTotal counts ledger status transitions written by the worker
	DeliveryStatusTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_status_transitions_total",
			Help: "Total number of delivery status transitions written to the ledger",
		},
		[]string{"status"},
	)

	// DeadLetterTotal counts messages forwarded to the dead-letter queue
	DeadLetterTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dead_lettered_total",
			Help: "Total number of notifications sent to the dead-letter queue",
		},
		[]string{"reason"}, // reason: parse, permanent, max_attempts
	)

	// ProcessingDuration measures one dispatcher invocation end to end
	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_processing_duration_seconds",
			Help:    "Time taken to process one notification message",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"output_type"},
	)

	// RetryDelaySeconds records the retry delays scheduled after transient failures
	RetryDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notification_retry_delay_seconds",
			Help:    "Scheduled retry delay after a transient delivery failure",
			Buckets: []float64{1, 5, 10, 20, 40, 80, 160, 300, 600},
		},
	)
)

// Ledger metrics track the delivery ledger backend.
var (
	// LedgerOperationDuration measures ledger calls by operation and result
	LedgerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Delivery ledger operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "result"},
	)

	// LedgerRejectedTotal counts writes skipped because the record was terminal
	LedgerRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_writes_rejected_total",
			Help: "Total number of ledger writes rejected because the record was already terminal",
		},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency for every request served by next.
// The listeners expose a fixed set of paths so the raw path is used as a label.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start))
	})
}
