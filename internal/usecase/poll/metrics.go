package poll

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the polling loop
var (
	// inFlightMessages tracks messages currently held by a pool slot
	inFlightMessages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "poller_in_flight_messages",
			Help: "Number of messages currently being processed",
		},
	)

	// poolSize exposes the configured pool size for utilisation ratios
	poolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "poller_pool_size",
			Help: "Configured number of concurrent processing slots",
		},
	)

	// receiveBatchSize tracks how many messages each receive returned
	receiveBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poller_receive_batch_size",
			Help:    "Number of messages returned per receive call",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
		},
	)

	// receiveErrorsTotal tracks failed receive calls
	receiveErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poller_receive_errors_total",
			Help: "Total number of failed receive calls",
		},
	)

	// heartbeatFailuresTotal tracks visibility extensions that failed
	heartbeatFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poller_heartbeat_failures_total",
			Help: "Total number of failed visibility heartbeats",
		},
	)

	// queueActionsTotal tracks the queue action applied after processing
	queueActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poller_queue_actions_total",
			Help: "Total number of queue actions applied by action and result",
		},
		[]string{"action", "result"}, // action: ack|retry|dead_letter|abandon
	)

	// panicsTotal tracks recovered panics in message goroutines
	panicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poller_panics_total",
			Help: "Total number of recovered panics while processing a message",
		},
	)
)

func recordQueueAction(action string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	queueActionsTotal.WithLabelValues(action, result).Inc()
}
