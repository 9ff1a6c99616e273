package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/id"
	"github.com/alcabon/callout/observability"
)

func newTestExtension() (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	ext := observability.NewMetricsExtensionWithMeter(provider.Meter("test"))
	return ext, reader
}

func newTestRecord() *continuation.Record {
	return &continuation.Record{
		ID:      id.NewContinuationID(),
		Handler: "order-check",
	}
}

// counterValue collects from the reader and returns the summed value of
// the named Int64 counter, or 0 if it was never recorded.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected data type %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetricsExtension_Name(t *testing.T) {
	ext, _ := newTestExtension()
	if ext.Name() != "observability-metrics" {
		t.Errorf("Name = %q", ext.Name())
	}
}

func TestMetricsExtension_Registered(t *testing.T) {
	ext, reader := newTestExtension()
	if err := ext.OnContinuationRegistered(context.Background(), newTestRecord()); err != nil {
		t.Fatalf("OnContinuationRegistered: %v", err)
	}
	if got := counterValue(t, reader, "callout.continuation.registered"); got != 1 {
		t.Errorf("registered = %d, want 1", got)
	}
}

func TestMetricsExtension_ResumedRecordsSuspendedTime(t *testing.T) {
	ext, reader := newTestExtension()
	if err := ext.OnContinuationResumed(context.Background(), newTestRecord(), 250*time.Millisecond); err != nil {
		t.Fatalf("OnContinuationResumed: %v", err)
	}
	if got := counterValue(t, reader, "callout.continuation.resumed"); got != 1 {
		t.Errorf("resumed = %d, want 1", got)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "callout.continuation.suspended_time" {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("suspended_time: unexpected data type %T", m.Data)
			}
			if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
				t.Errorf("suspended_time data points = %+v", hist.DataPoints)
			}
			if s := hist.DataPoints[0].Sum; s < 0.2 || s > 0.3 {
				t.Errorf("suspended_time sum = %v, want ~0.25", s)
			}
			found = true
		}
	}
	if !found {
		t.Error("suspended_time histogram not recorded")
	}
}

func TestMetricsExtension_Chained(t *testing.T) {
	ext, reader := newTestExtension()
	if err := ext.OnContinuationChained(context.Background(), newTestRecord(), newTestRecord(), 1); err != nil {
		t.Fatalf("OnContinuationChained: %v", err)
	}
	if got := counterValue(t, reader, "callout.continuation.chained"); got != 1 {
		t.Errorf("chained = %d, want 1", got)
	}
}

func TestMetricsExtension_TimedOut(t *testing.T) {
	ext, reader := newTestExtension()
	if err := ext.OnContinuationTimedOut(context.Background(), newTestRecord()); err != nil {
		t.Fatalf("OnContinuationTimedOut: %v", err)
	}
	if got := counterValue(t, reader, "callout.continuation.timed_out"); got != 1 {
		t.Errorf("timed_out = %d, want 1", got)
	}
}

func TestMetricsExtension_Cancelled(t *testing.T) {
	ext, reader := newTestExtension()
	if err := ext.OnContinuationCancelled(context.Background(), newTestRecord()); err != nil {
		t.Fatalf("OnContinuationCancelled: %v", err)
	}
	if got := counterValue(t, reader, "callout.continuation.cancelled"); got != 1 {
		t.Errorf("cancelled = %d, want 1", got)
	}
}

func TestMetricsExtension_FailedAndArchived(t *testing.T) {
	ext, reader := newTestExtension()
	cause := errors.New("chain limit exceeded")
	if err := ext.OnContinuationFailed(context.Background(), newTestRecord(), cause); err != nil {
		t.Fatalf("OnContinuationFailed: %v", err)
	}
	if err := ext.OnContinuationArchived(context.Background(), newTestRecord(), cause); err != nil {
		t.Fatalf("OnContinuationArchived: %v", err)
	}
	if got := counterValue(t, reader, "callout.continuation.failed"); got != 1 {
		t.Errorf("failed = %d, want 1", got)
	}
	if got := counterValue(t, reader, "callout.continuation.archived"); got != 1 {
		t.Errorf("archived = %d, want 1", got)
	}
}
