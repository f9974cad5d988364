package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
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

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"voxpath.session.connect.duration", m.ConnectDuration},
		{"voxpath.roadmap.duration", m.RoadmapDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		md := findMetric(rm, tc.name)
		if md == nil {
			t.Errorf("metric %q not found", tc.name)
			continue
		}
		hist, ok := md.Data.(metricdata.Histogram[float64])
		if !ok {
			t.Errorf("metric %q is not a float64 histogram", tc.name)
			continue
		}
		if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 {
			t.Errorf("metric %q: unexpected data points %+v", tc.name, hist.DataPoints)
		}
	}
}

func TestCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FramesCaptured.Add(ctx, 3)
	m.FramesDropped.Add(ctx, 1)
	m.FramesSent.Add(ctx, 2)
	m.TranscriptEntries.Add(ctx, 5)

	rm := collect(t, reader)

	counters := []struct {
		name string
		want int64
	}{
		{"voxpath.audio.frames.captured", 3},
		{"voxpath.audio.frames.dropped", 1},
		{"voxpath.audio.frames.sent", 2},
		{"voxpath.transcript.entries", 5},
	}
	for _, tc := range counters {
		md := findMetric(rm, tc.name)
		if md == nil {
			t.Errorf("metric %q not found", tc.name)
			continue
		}
		sum, ok := md.Data.(metricdata.Sum[int64])
		if !ok || len(sum.DataPoints) != 1 {
			t.Errorf("metric %q: unexpected data %+v", tc.name, md.Data)
			continue
		}
		if got := sum.DataPoints[0].Value; got != tc.want {
			t.Errorf("metric %q = %d; want %d", tc.name, got, tc.want)
		}
	}
}

func TestRecordTransition_Attributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTransition(ctx, "idle", "connecting")
	m.RecordTransition(ctx, "connecting", "active")

	rm := collect(t, reader)
	md := findMetric(rm, "voxpath.session.transitions")
	if md == nil {
		t.Fatal("transition metric not found")
	}
	sum, ok := md.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("transition metric is not an int64 sum")
	}
	if len(sum.DataPoints) != 2 {
		t.Fatalf("got %d data points; want 2", len(sum.DataPoints))
	}
	for _, dp := range sum.DataPoints {
		if _, found := dp.Attributes.Value(attribute.Key("from")); !found {
			t.Error("data point missing 'from' attribute")
		}
		if _, found := dp.Attributes.Value(attribute.Key("to")); !found {
			t.Error("data point missing 'to' attribute")
		}
	}
}

func TestRecordRoadmapRequest_Attributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRoadmapRequest(ctx, "gemini", "ok")
	m.RecordRoadmapRequest(ctx, "gemini", "error")

	rm := collect(t, reader)
	md := findMetric(rm, "voxpath.roadmap.requests")
	if md == nil {
		t.Fatal("roadmap request metric not found")
	}
	sum, ok := md.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("roadmap request metric is not an int64 sum")
	}
	if len(sum.DataPoints) != 2 {
		t.Fatalf("got %d data points; want 2", len(sum.DataPoints))
	}
}

func TestActiveSessions_UpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	rm := collect(t, reader)
	md := findMetric(rm, "voxpath.active_sessions")
	if md == nil {
		t.Fatal("active_sessions metric not found")
	}
	sum, ok := md.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatalf("unexpected data %+v", md.Data)
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active sessions = %d; want 1", got)
	}
}
