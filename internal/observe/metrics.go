// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing helpers, and HTTP middleware that ties them
// together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/cardvox/cardvox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// DispatchDuration tracks end-to-end utterance dispatch latency, from
	// resolution through the resulting card or speech action.
	DispatchDuration metric.Float64Histogram

	// SpeechDuration tracks speech synthesis plus playback latency.
	SpeechDuration metric.Float64Histogram

	// Intents counts resolved intents. Use with attributes:
	//   attribute.String("intent", ...), attribute.String("status", ...)
	Intents metric.Int64Counter

	// ServiceErrors counts failed calls to external services. Use with
	// attribute: attribute.String("service", ...)
	ServiceErrors metric.Int64Counter

	// ActiveSessions tracks the number of live review sessions (0 or 1).
	ActiveSessions metric.Int64UpDownCounter

	// Listening tracks the number of open recognition streams (0 or 1).
	Listening metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// voice-command round trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DispatchDuration, err = m.Float64Histogram("cardvox.dispatch.duration",
		metric.WithDescription("Latency of utterance dispatch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpeechDuration, err = m.Float64Histogram("cardvox.speech.duration",
		metric.WithDescription("Latency of speech synthesis and playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Intents, err = m.Int64Counter("cardvox.intents",
		metric.WithDescription("Total resolved intents by intent and status."),
	); err != nil {
		return nil, err
	}
	if met.ServiceErrors, err = m.Int64Counter("cardvox.service.errors",
		metric.WithDescription("Total failed external service calls by service."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("cardvox.active_sessions",
		metric.WithDescription("Number of live review sessions."),
	); err != nil {
		return nil, err
	}
	if met.Listening, err = m.Int64UpDownCounter("cardvox.listening",
		metric.WithDescription("Number of open recognition streams."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("cardvox.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// RecordIntent records one resolved intent with the standard attribute set.
func (m *Metrics) RecordIntent(ctx context.Context, intent, status string) {
	m.Intents.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("intent", intent),
			attribute.String("status", status),
		),
	)
}

// RecordServiceError records one failed external service call.
func (m *Metrics) RecordServiceError(ctx context.Context, service string) {
	m.ServiceErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("service", service)),
	)
}
