// Package observe provides application-wide observability primitives for
// voicehac: OpenTelemetry metrics, tracing, trace-aware structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus via [InitProvider]. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voicehac metrics.
const meterName = "github.com/MrWong99/voicehac"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// RecognizeDuration tracks recogniser latency.
	RecognizeDuration metric.Float64Histogram

	// DispatchDuration tracks the end-to-end latency of one utterance.
	DispatchDuration metric.Float64Histogram

	// BackendDuration tracks backend request latency. Use with attribute:
	//   attribute.String("operation", ...)
	BackendDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts processed utterances. Use with attribute:
	//   attribute.String("outcome", ...)
	Utterances metric.Int64Counter

	// SkillSelections counts skill selections. Use with attribute:
	//   attribute.String("skill", ...)
	SkillSelections metric.Int64Counter

	// SkillResults counts skill results. Use with attributes:
	//   attribute.String("skill", ...), attribute.String("status", ...)
	SkillResults metric.Int64Counter

	// BackendRequests counts backend calls. Use with attributes:
	//   attribute.String("operation", ...), attribute.String("status", ...)
	BackendRequests metric.Int64Counter

	// --- Operations server ---

	// HTTPRequestDuration is the latency of /healthz, /readyz and /metrics
	// requests, labelled by method, route (see [Route]) and status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds).
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecognizeDuration, err = m.Float64Histogram("voicehac.recognize.duration",
		metric.WithDescription("Latency of entity recognition."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DispatchDuration, err = m.Float64Histogram("voicehac.dispatch.duration",
		metric.WithDescription("End-to-end latency of one utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BackendDuration, err = m.Float64Histogram("voicehac.backend.duration",
		metric.WithDescription("Latency of smart-home backend requests by operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("voicehac.utterances",
		metric.WithDescription("Total utterances by outcome."),
	); err != nil {
		return nil, err
	}
	if met.SkillSelections, err = m.Int64Counter("voicehac.skill.selections",
		metric.WithDescription("Total skill selections by skill name."),
	); err != nil {
		return nil, err
	}
	if met.SkillResults, err = m.Int64Counter("voicehac.skill.results",
		metric.WithDescription("Total skill results by skill name and status."),
	); err != nil {
		return nil, err
	}
	if met.BackendRequests, err = m.Int64Counter("voicehac.backend.requests",
		metric.WithDescription("Total smart-home backend requests by operation and status."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voicehac.http.request.duration",
		metric.WithDescription("Operations server latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance records one processed utterance with its outcome
// ("ok", "recognition_failed", "skill_not_found").
func (m *Metrics) RecordUtterance(ctx context.Context, outcome string) {
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSkillSelection records that skill won selection.
func (m *Metrics) RecordSkillSelection(ctx context.Context, skill string) {
	m.SkillSelections.Add(ctx, 1, metric.WithAttributes(attribute.String("skill", skill)))
}

// RecordSkillResult records the final status a skill returned.
func (m *Metrics) RecordSkillResult(ctx context.Context, skill, status string) {
	m.SkillResults.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("skill", skill),
			attribute.String("status", status),
		),
	)
}

// RecordBackendRequest records one backend request and its latency.
// status is "ok", "timeout", "unavailable", "not_found" or "error".
func (m *Metrics) RecordBackendRequest(ctx context.Context, operation, status string, seconds float64) {
	m.BackendRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
	m.BackendDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("operation", operation)),
	)
}
