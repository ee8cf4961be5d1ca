package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for all worker spans.
const TracerName = "notification-worker"

// GetTracer returns the worker tracer from the global provider.
// It is resolved on each call so a provider installed after package init
// (including test providers) is honoured.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "dispatch.Process")
//	defer span.End()
func GetTracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
