// Package observe provides OpenTelemetry metric instruments for mixd and
// the provider setup that bridges them to a Prometheus scrape endpoint.
// A package-level default instance is available for convenience; tests
// should use NewMetrics with their own metric.MeterProvider to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all mixd metrics.
const meterName = "github.com/mixctl/mixctl"

// Metrics holds all metric instruments for the daemon. The underlying
// OTel types handle their own synchronisation.
type Metrics struct {
	// FramesDecoded counts complete frames read off a transport.
	FramesDecoded metric.Int64Counter

	// FramesRejected counts frames dropped before dispatch. Use with
	// attribute.String("reason", ...) — "oversized" or "malformed".
	FramesRejected metric.Int64Counter

	// Requests counts dispatched requests. Use with attributes:
	//   attribute.String("action", ...), attribute.String("status", ...)
	Requests metric.Int64Counter

	// RequestDuration tracks request handling latency in seconds by action.
	RequestDuration metric.Float64Histogram

	// RequestTimeouts counts requests resolved by the timeout race.
	RequestTimeouts metric.Int64Counter

	// ActuationErrors counts collaborator failures.
	ActuationErrors metric.Int64Counter

	// ActiveSources tracks the number of currently tracked audio sources.
	ActiveSources metric.Int64UpDownCounter
}

// latencyBuckets are histogram boundaries (seconds) sized for local IPC.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised Metrics using the given
// MeterProvider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesDecoded, err = m.Int64Counter("mixd.frames.decoded",
		metric.WithDescription("Total complete frames read off a transport."),
	); err != nil {
		return nil, err
	}
	if met.FramesRejected, err = m.Int64Counter("mixd.frames.rejected",
		metric.WithDescription("Total frames rejected before dispatch, by reason."),
	); err != nil {
		return nil, err
	}
	if met.Requests, err = m.Int64Counter("mixd.requests",
		metric.WithDescription("Total dispatched requests by action and status."),
	); err != nil {
		return nil, err
	}
	if met.RequestDuration, err = m.Float64Histogram("mixd.request.duration",
		metric.WithDescription("Request handling latency by action."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RequestTimeouts, err = m.Int64Counter("mixd.request.timeouts",
		metric.WithDescription("Total requests resolved by the timeout race."),
	); err != nil {
		return nil, err
	}
	if met.ActuationErrors, err = m.Int64Counter("mixd.actuation.errors",
		metric.WithDescription("Total actuator collaborator failures."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSources, err = m.Int64UpDownCounter("mixd.active_sources",
		metric.WithDescription("Number of currently tracked audio sources."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics instance, creating it
// on first call from the global MeterProvider.
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

// RecordRequest records one dispatched request with the standard
// attribute set.
func (m *Metrics) RecordRequest(ctx context.Context, action, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	)
	m.Requests.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("action", action)))
}

// RecordFrameRejected records a pre-dispatch frame rejection.
func (m *Metrics) RecordFrameRejected(ctx context.Context, reason string) {
	m.FramesRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
