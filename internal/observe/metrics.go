// Package observe provides the observability primitives of captionlens:
// OpenTelemetry metrics, distributed tracing, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via /metrics. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with their own [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all captionlens metrics.
const meterName = "github.com/MrWong99/captionlens"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// TickDuration tracks the time spent in one session render tick.
	TickDuration metric.Float64Histogram

	// SummarizerDuration tracks end-to-end summary latency, including
	// provider fallback.
	SummarizerDuration metric.Float64Histogram

	// --- Counters ---

	// Merges counts hypothesis merges. Use with attribute:
	//   attribute.String("result", "merged"|"reset"|"fresh")
	Merges metric.Int64Counter

	// Flushes counts live transcript flushes into history. Use with attribute:
	//   attribute.String("reason", "timeout"|"new_utterance")
	Flushes metric.Int64Counter

	// StageTransitions counts entered display stages. Use with attribute:
	//   attribute.String("stage", ...)
	StageTransitions metric.Int64Counter

	// Summaries counts summary requests by outcome. Use with attribute:
	//   attribute.String("status", "requested"|"ok"|"empty"|"error"|"busy")
	Summaries metric.Int64Counter

	// ArchivedLines counts transcript lines handed to the archive.
	ArchivedLines metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of connected caption sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// tickBuckets covers per-frame work at 60 fps (16.6ms budget).
var tickBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.0166, 0.025, 0.05,
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// provider round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TickDuration, err = m.Float64Histogram("captionlens.tick.duration",
		metric.WithDescription("Time spent in one session render tick."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tickBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SummarizerDuration, err = m.Float64Histogram("captionlens.summarizer.duration",
		metric.WithDescription("Latency of summary generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Merges, err = m.Int64Counter("captionlens.transcript.merges",
		metric.WithDescription("Total hypothesis merges by result."),
	); err != nil {
		return nil, err
	}
	if met.Flushes, err = m.Int64Counter("captionlens.transcript.flushes",
		metric.WithDescription("Total live transcript flushes into history by reason."),
	); err != nil {
		return nil, err
	}
	if met.StageTransitions, err = m.Int64Counter("captionlens.stage.transitions",
		metric.WithDescription("Total display stage transitions by entered stage."),
	); err != nil {
		return nil, err
	}
	if met.Summaries, err = m.Int64Counter("captionlens.summaries",
		metric.WithDescription("Total summary requests by status."),
	); err != nil {
		return nil, err
	}
	if met.ArchivedLines, err = m.Int64Counter("captionlens.transcript.archived_lines",
		metric.WithDescription("Total transcript lines written to the archive."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("captionlens.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("captionlens.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("captionlens.active_sessions",
		metric.WithDescription("Number of connected caption sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("captionlens.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordMerge records one hypothesis merge.
func (m *Metrics) RecordMerge(ctx context.Context, result string) {
	m.Merges.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordFlush records one live transcript flush.
func (m *Metrics) RecordFlush(ctx context.Context, reason string) {
	m.Flushes.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordStageTransition records entering a display stage.
func (m *Metrics) RecordStageTransition(ctx context.Context, stage string) {
	m.StageTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordSummary records a summary request outcome.
func (m *Metrics) RecordSummary(ctx context.Context, status string) {
	m.Summaries.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
