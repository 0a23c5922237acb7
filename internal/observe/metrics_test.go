package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
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

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

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

// counterValue sums the data points of an Int64 sum whose attributes contain
// every key/value in want.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string, want ...attribute.KeyValue) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q: got %T, want Sum[int64]", name, met.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		match := true
		for _, kv := range want {
			if v, ok := dp.Attributes.Value(kv.Key); !ok || v != kv.Value {
				match = false
				break
			}
		}
		if match {
			total += dp.Value
		}
	}
	return total
}

func TestRecordHelpers(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordMerge(ctx, "merged")
	m.RecordMerge(ctx, "merged")
	m.RecordMerge(ctx, "fresh")
	m.RecordFlush(ctx, "timeout")
	m.RecordStageTransition(ctx, "summarizing")
	m.RecordSummary(ctx, "ok")
	m.RecordProviderRequest(ctx, "llm", "summary", "error")
	m.RecordProviderError(ctx, "llm", "summary")
	m.ArchivedLines.Add(ctx, 3)

	rm := collect(t, reader)
	tests := []struct {
		name string
		attr []attribute.KeyValue
		want int64
	}{
		{"captionlens.transcript.merges", []attribute.KeyValue{attribute.String("result", "merged")}, 2},
		{"captionlens.transcript.merges", []attribute.KeyValue{attribute.String("result", "fresh")}, 1},
		{"captionlens.transcript.flushes", []attribute.KeyValue{attribute.String("reason", "timeout")}, 1},
		{"captionlens.stage.transitions", []attribute.KeyValue{attribute.String("stage", "summarizing")}, 1},
		{"captionlens.summaries", []attribute.KeyValue{attribute.String("status", "ok")}, 1},
		{"captionlens.provider.requests", []attribute.KeyValue{
			attribute.String("provider", "llm"), attribute.String("kind", "summary"), attribute.String("status", "error"),
		}, 1},
		{"captionlens.provider.errors", []attribute.KeyValue{attribute.String("provider", "llm")}, 1},
		{"captionlens.transcript.archived_lines", nil, 3},
	}
	for _, tt := range tests {
		if got := counterValue(t, rm, tt.name, tt.attr...); got != tt.want {
			t.Errorf("%s%v: got %d, want %d", tt.name, tt.attr, got, tt.want)
		}
	}
}

func TestHistograms(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.TickDuration.Record(ctx, 0.002)
	m.TickDuration.Record(ctx, 0.004)
	m.SummarizerDuration.Record(ctx, 1.5)

	rm := collect(t, reader)
	for name, want := range map[string]uint64{
		"captionlens.tick.duration":       2,
		"captionlens.summarizer.duration": 1,
	} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("metric %q not found", name)
		}
		hist, ok := met.Data.(metricdata.Histogram[float64])
		if !ok || len(hist.DataPoints) != 1 {
			t.Fatalf("metric %q: unexpected data %T", name, met.Data)
		}
		if got := hist.DataPoints[0].Count; got != want {
			t.Errorf("%s count: got %d, want %d", name, got, want)
		}
	}
}

func TestActiveSessions(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	if got := counterValue(t, collect(t, reader), "captionlens.active_sessions"); got != 1 {
		t.Errorf("active_sessions: got %d, want 1", got)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	t.Parallel()
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
