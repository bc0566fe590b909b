package observe

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// RouteOther labels every path that is not an operational endpoint. Using a
// fixed label keeps the route attribute bounded no matter what is requested.
const RouteOther = "other"

// opsRoute describes one endpoint of the operations server.
type opsRoute struct {
	label string

	// scraped endpoints are hit by orchestrators and Prometheus every few
	// seconds; a successful call is logged at debug level.
	scraped bool
}

var opsRoutes = map[string]opsRoute{
	"/healthz": {label: "healthz", scraped: true},
	"/readyz":  {label: "readyz", scraped: true},
	"/metrics": {label: "metrics", scraped: true},
}

// Route returns the label recorded for path: "healthz", "readyz",
// "metrics" or [RouteOther].
func Route(path string) string {
	if r, ok := opsRoutes[path]; ok {
		return r.label
	}
	return RouteOther
}

// logLevel picks the completion log level. Scrapes are debug noise unless
// the server failed them.
func logLevel(path string, status int) slog.Level {
	if status >= http.StatusInternalServerError {
		return slog.LevelInfo
	}
	if opsRoutes[path].scraped {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Middleware instruments the operations server (/healthz, /readyz,
// /metrics). Each request continues an incoming W3C trace or starts one,
// gets a server span named after its route, returns the trace ID as
// X-Correlation-ID and is recorded in [Metrics.HTTPRequestDuration] by
// method, route and status. A 5xx marks the span as an error.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := Route(r.URL.Path)

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "ops."+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRoute(route),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			cid := CorrelationID(ctx)
			if cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))
			elapsed := time.Since(start)

			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
				attribute.String("status", strconv.Itoa(rec.status)),
			))
			span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}

			slog.LogAttrs(ctx, logLevel(r.URL.Path, rec.status), "observe: ops request",
				slog.String("trace_id", cid),
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.Int("status", rec.status),
				slog.Duration("elapsed", elapsed),
			)
		})
	}
}
