// Package observe provides application-wide observability primitives for
// Voxpath: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
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

// meterName is the instrumentation scope name used for all Voxpath metrics.
const meterName = "github.com/voxpath/voxpath"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ConnectDuration tracks how long establishing a voice session takes.
	ConnectDuration metric.Float64Histogram

	// RoadmapDuration tracks career-roadmap generation latency.
	RoadmapDuration metric.Float64Histogram

	// --- Counters ---

	// FramesCaptured counts audio frames delivered by the capture pipeline.
	FramesCaptured metric.Int64Counter

	// FramesDropped counts audio frames discarded because a consumer stalled.
	FramesDropped metric.Int64Counter

	// FramesSent counts audio payloads forwarded to the voice backend.
	FramesSent metric.Int64Counter

	// SendFailures counts payloads the backend refused. Use with attribute:
	//   attribute.String("backend", ...)
	SendFailures metric.Int64Counter

	// TranscriptEntries counts reply deltas appended to the transcript.
	TranscriptEntries metric.Int64Counter

	// SessionTransitions counts session state changes. Use with attributes:
	//   attribute.String("from", ...), attribute.String("to", ...)
	SessionTransitions metric.Int64Counter

	// RoadmapRequests counts roadmap generation calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	RoadmapRequests metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for interactive voice and generation latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ConnectDuration, err = m.Float64Histogram("voxpath.session.connect.duration",
		metric.WithDescription("Latency of establishing a voice session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RoadmapDuration, err = m.Float64Histogram("voxpath.roadmap.duration",
		metric.WithDescription("Latency of career-roadmap generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesCaptured, err = m.Int64Counter("voxpath.audio.frames.captured",
		metric.WithDescription("Total audio frames delivered by the capture pipeline."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("voxpath.audio.frames.dropped",
		metric.WithDescription("Total audio frames discarded due to a stalled consumer."),
	); err != nil {
		return nil, err
	}
	if met.FramesSent, err = m.Int64Counter("voxpath.audio.frames.sent",
		metric.WithDescription("Total audio payloads forwarded to the voice backend."),
	); err != nil {
		return nil, err
	}
	if met.SendFailures, err = m.Int64Counter("voxpath.session.send.failures",
		metric.WithDescription("Total payloads refused by the voice backend."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptEntries, err = m.Int64Counter("voxpath.transcript.entries",
		metric.WithDescription("Total reply deltas appended to the transcript."),
	); err != nil {
		return nil, err
	}
	if met.SessionTransitions, err = m.Int64Counter("voxpath.session.transitions",
		metric.WithDescription("Total session state transitions by from and to state."),
	); err != nil {
		return nil, err
	}
	if met.RoadmapRequests, err = m.Int64Counter("voxpath.roadmap.requests",
		metric.WithDescription("Total roadmap generation requests by provider and status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxpath.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxpath.http.request.duration",
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

// RecordTransition is a convenience method that records a session state
// transition with the standard attribute set.
func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	m.SessionTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}

// RecordSendFailure is a convenience method that records a refused payload.
func (m *Metrics) RecordSendFailure(ctx context.Context, backend string) {
	m.SendFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("backend", backend)),
	)
}

// RecordRoadmapRequest is a convenience method that records a roadmap
// generation call with the standard attribute set.
func (m *Metrics) RecordRoadmapRequest(ctx context.Context, provider, status string) {
	m.RoadmapRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}
