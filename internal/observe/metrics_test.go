package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRequest(ctx, "setVolume", "ok", 0.002)
	m.RecordRequest(ctx, "setVolume", "error", 0.001)

	rm := collect(t, reader)

	counter := findMetric(rm, "mixd.requests")
	if counter == nil {
		t.Fatal("mixd.requests not found")
	}
	sum, ok := counter.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("mixd.requests has unexpected data type %T", counter.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Fatalf("expected 2 request increments, got %d", total)
	}

	hist := findMetric(rm, "mixd.request.duration")
	if hist == nil {
		t.Fatal("mixd.request.duration not found")
	}
}

func TestActiveSourcesUpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSources.Add(ctx, 3)
	m.ActiveSources.Add(ctx, -1)

	rm := collect(t, reader)
	gauge := findMetric(rm, "mixd.active_sources")
	if gauge == nil {
		t.Fatal("mixd.active_sources not found")
	}
	sum, ok := gauge.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("mixd.active_sources has unexpected data type %T", gauge.Data)
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
		t.Fatalf("expected active_sources value 2, got %+v", sum.DataPoints)
	}
}

func TestRecordFrameRejected(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordFrameRejected(context.Background(), "oversized")

	rm := collect(t, reader)
	if findMetric(rm, "mixd.frames.rejected") == nil {
		t.Fatal("mixd.frames.rejected not found")
	}
}
