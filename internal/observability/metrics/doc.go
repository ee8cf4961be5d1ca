// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes the worker's shared metrics:
//   - HTTP metrics for the metrics and health listeners
//   - Delivery metrics (processed messages, status transitions, dead letters)
//   - Delivery ledger and database pool metrics
//
// Component-local metrics (queue, channels, poller) live next to the code
// that records them. All metrics are registered with the Prometheus default
// registry and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "notification-worker/internal/observability/metrics"
//
//	func process(msg queue.Message) {
//	    start := time.Now()
//	    // ... dispatch ...
//	    metrics.RecordNotificationProcessed("EMAIL", "ack", time.Since(start))
//	}
package metrics
