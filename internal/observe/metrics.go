// Package observe provides the application's metrics: OpenTelemetry
// instruments exported through Prometheus and served on /metrics.
//
// Tests should use NewMetrics with their own metric.MeterProvider; Discard
// returns instruments that record nothing.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "spectrograph"

// Metrics holds all instruments. The underlying OTel types are safe for
// concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// TickDuration tracks one capture, transform and render cycle.
	TickDuration metric.Float64Histogram

	// TransformDuration tracks the spectral transform alone. Use with
	// attribute.String("mode", ...).
	TransformDuration metric.Float64Histogram

	// ProbeDuration tracks metadata queries.
	ProbeDuration metric.Float64Histogram

	// --- Counters ---

	// Frames counts captured frames.
	Frames metric.Int64Counter

	// Overflows counts input overflows tolerated by the source.
	Overflows metric.Int64Counter

	// ProbeFailures counts failed metadata queries.
	ProbeFailures metric.Int64Counter

	// TrackChanges counts "now playing" notices.
	TrackChanges metric.Int64Counter

	// RenderFallbacks counts malformed spectra replaced before rendering.
	RenderFallbacks metric.Int64Counter

	// --- Gauges ---

	// InputLevel is the peak level of the last frame, 0 to 1.
	InputLevel metric.Float64Gauge
}

// latencyBuckets are histogram boundaries in seconds, from sub-millisecond
// transforms up to slow network probes.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TickDuration, err = m.Float64Histogram("spectrograph.tick.duration",
		metric.WithDescription("Duration of one capture, transform and render cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TransformDuration, err = m.Float64Histogram("spectrograph.transform.duration",
		metric.WithDescription("Duration of the spectral transform by mode."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProbeDuration, err = m.Float64Histogram("spectrograph.probe.duration",
		metric.WithDescription("Latency of now-playing queries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Frames, err = m.Int64Counter("spectrograph.frames",
		metric.WithDescription("Total captured frames."),
	); err != nil {
		return nil, err
	}
	if met.Overflows, err = m.Int64Counter("spectrograph.overflows",
		metric.WithDescription("Input overflows tolerated during capture."),
	); err != nil {
		return nil, err
	}
	if met.ProbeFailures, err = m.Int64Counter("spectrograph.probe.failures",
		metric.WithDescription("Failed now-playing queries."),
	); err != nil {
		return nil, err
	}
	if met.TrackChanges, err = m.Int64Counter("spectrograph.track.changes",
		metric.WithDescription("Now-playing changes reported."),
	); err != nil {
		return nil, err
	}
	if met.RenderFallbacks, err = m.Int64Counter("spectrograph.render.fallbacks",
		metric.WithDescription("Malformed spectra replaced by an empty default."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.InputLevel, err = m.Float64Gauge("spectrograph.input.level",
		metric.WithDescription("Peak level of the most recent frame."),
		metric.WithUnit("1"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Discard returns instruments that record nothing.
func Discard() *Metrics {
	met, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop instruments failed: " + err.Error())
	}
	return met
}

// RecordTransform records a transform duration for mode.
func (m *Metrics) RecordTransform(ctx context.Context, mode string, seconds float64) {
	m.TransformDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("mode", mode)))
}

// ProbeObserver returns a poll observer recording probe latency and
// failures.
func (m *Metrics) ProbeObserver() func(d time.Duration, err error) {
	return func(d time.Duration, err error) {
		ctx := context.Background()
		m.ProbeDuration.Record(ctx, d.Seconds())
		if err != nil {
			m.ProbeFailures.Add(ctx, 1)
		}
	}
}
