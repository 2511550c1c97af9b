package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
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

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_InvocationCounter(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordInvocation(context.Background(), Invocation{Phase: PhaseRequest, Method: "tools/list"}, time.Millisecond)
	m.RecordInvocation(context.Background(), Invocation{Phase: PhaseResponse, Method: "tools/list"}, time.Millisecond)

	found := findMetric(collect(t, reader), MetricInvocations)
	if found == nil {
		t.Fatalf("%s metric not found", MetricInvocations)
	}
	if got := sumValue(t, found); got != 2 {
		t.Errorf("invocations = %d, want 2", got)
	}
}

func TestMetrics_Attributes(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordInvocation(context.Background(), Invocation{
		Phase:    PhaseResponse,
		Method:   "tools/list",
		Filtered: true,
	}, time.Millisecond)

	found := findMetric(collect(t, reader), MetricInvocations)
	if found == nil {
		t.Fatal("invocations metric not found")
	}
	dp := found.Data.(metricdata.Sum[int64]).DataPoints[0]

	want := map[attribute.Key]string{
		"phase":    PhaseResponse,
		"method":   "tools/list",
		"filtered": "true",
	}
	for k, v := range want {
		got, ok := dp.Attributes.Value(k)
		if !ok {
			t.Errorf("attribute %s missing", k)
			continue
		}
		if got.AsString() != v {
			t.Errorf("attribute %s = %q, want %q", k, got.AsString(), v)
		}
	}
}

func TestMetrics_DurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordInvocation(context.Background(), Invocation{Phase: PhaseResponse}, 25*time.Millisecond)

	found := findMetric(collect(t, reader), MetricDuration)
	if found == nil {
		t.Fatal("duration metric not found")
	}
	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", found.Data)
	}
	if hist.DataPoints[0].Count != 1 {
		t.Errorf("count = %d, want 1", hist.DataPoints[0].Count)
	}
	if hist.DataPoints[0].Sum < 25 {
		t.Errorf("sum = %f, want >= 25", hist.DataPoints[0].Sum)
	}
}

func TestMetrics_ToolsRemoved(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordInvocation(context.Background(), Invocation{
		Phase:    PhaseResponse,
		Filtered: true,
		ToolsIn:  5,
		ToolsOut: 2,
	}, time.Millisecond)

	found := findMetric(collect(t, reader), MetricToolsRemoved)
	if found == nil {
		t.Fatal("tools removed metric not found")
	}
	if got := sumValue(t, found); got != 3 {
		t.Errorf("tools removed = %d, want 3", got)
	}
}

func TestMetrics_UnfilteredRecordsNoRemovals(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordInvocation(context.Background(), Invocation{Phase: PhaseRequest}, time.Millisecond)

	if found := findMetric(collect(t, reader), MetricToolsRemoved); found != nil {
		t.Errorf("unexpected %s data: %+v", MetricToolsRemoved, found.Data)
	}
}

func TestMetrics_DecodeFailures(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordInvocation(context.Background(), Invocation{Phase: PhaseResponse, DecodeFailed: true}, time.Millisecond)
	m.RecordInvocation(context.Background(), Invocation{Phase: PhaseResponse}, time.Millisecond)

	found := findMetric(collect(t, reader), MetricDecodeFailures)
	if found == nil {
		t.Fatal("decode failures metric not found")
	}
	if got := sumValue(t, found); got != 1 {
		t.Errorf("decode failures = %d, want 1", got)
	}
}

func TestInvocation_Removed(t *testing.T) {
	tests := []struct {
		in, out, want int
	}{
		{in: 5, out: 2, want: 3},
		{in: 2, out: 2, want: 0},
		{in: 0, out: 3, want: 0},
	}
	for _, tt := range tests {
		inv := Invocation{ToolsIn: tt.in, ToolsOut: tt.out}
		if got := inv.Removed(); got != tt.want {
			t.Errorf("Removed(%d->%d) = %d, want %d", tt.in, tt.out, got, tt.want)
		}
	}
}
