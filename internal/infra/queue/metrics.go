package queue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_operations_total",
			Help: "Total number of SQS operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	queueOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_operation_duration_seconds",
			Help:    "Duration of SQS operations in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 25},
		},
		[]string{"operation"},
	)

	messagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_messages_received_total",
			Help: "Total number of messages received from SQS",
		},
	)
)

func recordQueueOp(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	queueOpsTotal.WithLabelValues(op, result).Inc()
	queueOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
