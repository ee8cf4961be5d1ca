// Package tracing provides OpenTelemetry tracing integration.
//
// Dispatch of every queue message runs inside a span named
// "dispatch.Process"; the worker's HTTP endpoints are wrapped by Middleware.
// Without an exporter configured the global no-op provider is used.
package tracing
