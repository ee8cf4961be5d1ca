// Package observability groups the worker's observability infrastructure:
// structured logging, Prometheus metrics, SLO gauges and OpenTelemetry tracing.
//
// Subpackages:
//   - logging: Structured JSON logging with slog and correlation IDs
//   - metrics: Shared Prometheus metrics and HTTP instrumentation
//   - slo: Delivery SLO gauges refreshed by the stats job
//   - tracing: OpenTelemetry tracer and HTTP middleware
//
// Example usage:
//
//	import (
//	    "notification-worker/internal/observability/logging"
//	    "notification-worker/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("worker started")
//
//	    metrics.RecordStatusTransition("RECEIVED")
//	}
package observability
