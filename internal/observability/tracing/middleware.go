package tracing

import (
	"net/http"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader carries the trace id of a traced request back to the caller.
const TraceIDHeader = "X-Trace-Id"

// untracedPaths are scraped every few seconds and would only add noise.
var untracedPaths = []string{"/metrics"}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Middleware traces every request except Prometheus scrapes, using
// MiddlewareFor with the default filter.
func Middleware(next http.Handler) http.Handler {
	return MiddlewareFor(next, func(r *http.Request) bool {
		return !slices.Contains(untracedPaths, r.URL.Path)
	})
}

// MiddlewareFor starts a server span for each request accepted by traced.
// Incoming W3C trace context is continued, the trace id is echoed in
// X-Trace-Id and 5xx responses mark the span as failed.
func MiddlewareFor(next http.Handler, traced func(*http.Request) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if traced != nil && !traced(r) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := GetTracer().Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			w.Header().Set(TraceIDHeader, sc.TraceID().String())
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}
