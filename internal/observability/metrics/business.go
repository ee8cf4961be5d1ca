package metrics

import (
	"time"
)

// RecordNotificationProcessed records one dispatcher result.
// Action is one of "ack", "retry" or "dead_letter".
func RecordNotificationProcessed(outputType, action string, duration time.Duration) {
	if outputType == "" {
		outputType = "unknown"
	}
	NotificationsProcessedTotal.WithLabelValues(outputType, action).Inc()
	ProcessingDuration.WithLabelValues(outputType).Observe(duration.Seconds())
}

// RecordStatusTransition records a status written to the ledger.
func RecordStatusTransition(status string) {
	DeliveryStatusTotal.WithLabelValues(status).Inc()
}

// RecordDeadLetter records a message forwarded to the dead-letter queue.
func RecordDeadLetter(reason string) {
	DeadLetterTotal.WithLabelValues(reason).Inc()
}

// RecordRetryDelay records the visibility delay scheduled for a retry.
func RecordRetryDelay(delay time.Duration) {
	RetryDelaySeconds.Observe(delay.Seconds())
}

// RecordLedgerOperation records the duration of a ledger call.
// Operation should name the call (e.g. "upsert", "get").
func RecordLedgerOperation(operation string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	LedgerOperationDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// RecordLedgerRejected records a write skipped because the record is terminal.
func RecordLedgerRejected() {
	LedgerRejectedTotal.Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
