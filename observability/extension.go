package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/hook"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/alcabon/callout/observability"

// Compile-time interface checks.
var (
	_ hook.Extension             = (*MetricsExtension)(nil)
	_ hook.ContinuationRegistered = (*MetricsExtension)(nil)
	_ hook.ContinuationResumed   = (*MetricsExtension)(nil)
	_ hook.ContinuationChained   = (*MetricsExtension)(nil)
	_ hook.ContinuationTimedOut  = (*MetricsExtension)(nil)
	_ hook.ContinuationCancelled = (*MetricsExtension)(nil)
	_ hook.ContinuationFailed    = (*MetricsExtension)(nil)
	_ hook.ContinuationArchived  = (*MetricsExtension)(nil)
)

// MetricsExtension records continuation lifecycle metrics.
// If no MeterProvider is configured, the OTel API supplies noop
// instruments and the extension becomes a pass-through.
type MetricsExtension struct {
	registered    metric.Int64Counter
	resumed       metric.Int64Counter
	chained       metric.Int64Counter
	timedOut      metric.Int64Counter
	cancelled     metric.Int64Counter
	failed        metric.Int64Counter
	archived      metric.Int64Counter
	suspendedTime metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension using the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Use this variant to inject a specific MeterProvider
// for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}
	// Instrument creation errors fall back to noop instruments per the
	// OTel API contract.
	m.registered, _ = meter.Int64Counter("callout.continuation.registered",
		metric.WithDescription("Total continuations registered"),
		metric.WithUnit("{continuation}"))
	m.resumed, _ = meter.Int64Counter("callout.continuation.resumed",
		metric.WithDescription("Total continuations resumed with a final result"),
		metric.WithUnit("{continuation}"))
	m.chained, _ = meter.Int64Counter("callout.continuation.chained",
		metric.WithDescription("Total chained rounds registered"),
		metric.WithUnit("{round}"))
	m.timedOut, _ = meter.Int64Counter("callout.continuation.timed_out",
		metric.WithDescription("Total continuations whose deadline expired with outstanding calls"),
		metric.WithUnit("{continuation}"))
	m.cancelled, _ = meter.Int64Counter("callout.continuation.cancelled",
		metric.WithDescription("Total continuations cancelled before resume"),
		metric.WithUnit("{continuation}"))
	m.failed, _ = meter.Int64Counter("callout.continuation.failed",
		metric.WithDescription("Total continuations failed terminally"),
		metric.WithUnit("{continuation}"))
	m.archived, _ = meter.Int64Counter("callout.continuation.archived",
		metric.WithDescription("Total continuations pushed to the failure archive"),
		metric.WithUnit("{entry}"))
	m.suspendedTime, _ = meter.Float64Histogram("callout.continuation.suspended_time",
		metric.WithDescription("Time from registration to resume in seconds"),
		metric.WithUnit("s"))
	return m
}

// Name implements hook.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func handlerAttr(r *continuation.Record) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("handler", r.Handler))
}

// OnContinuationRegistered implements hook.ContinuationRegistered.
func (m *MetricsExtension) OnContinuationRegistered(ctx context.Context, r *continuation.Record) error {
	m.registered.Add(ctx, 1, handlerAttr(r))
	return nil
}

// OnContinuationResumed implements hook.ContinuationResumed.
func (m *MetricsExtension) OnContinuationResumed(ctx context.Context, r *continuation.Record, elapsed time.Duration) error {
	m.resumed.Add(ctx, 1, handlerAttr(r))
	m.suspendedTime.Record(ctx, elapsed.Seconds(), handlerAttr(r))
	return nil
}

// OnContinuationChained implements hook.ContinuationChained.
func (m *MetricsExtension) OnContinuationChained(ctx context.Context, parent, _ *continuation.Record, depth int) error {
	m.chained.Add(ctx, 1, metric.WithAttributes(
		attribute.String("handler", parent.Handler),
		attribute.Int("depth", depth),
	))
	return nil
}

// OnContinuationTimedOut implements hook.ContinuationTimedOut.
func (m *MetricsExtension) OnContinuationTimedOut(ctx context.Context, r *continuation.Record) error {
	m.timedOut.Add(ctx, 1, handlerAttr(r))
	return nil
}

// OnContinuationCancelled implements hook.ContinuationCancelled.
func (m *MetricsExtension) OnContinuationCancelled(ctx context.Context, r *continuation.Record) error {
	m.cancelled.Add(ctx, 1, handlerAttr(r))
	return nil
}

// OnContinuationFailed implements hook.ContinuationFailed.
func (m *MetricsExtension) OnContinuationFailed(ctx context.Context, r *continuation.Record, _ error) error {
	m.failed.Add(ctx, 1, handlerAttr(r))
	return nil
}

// OnContinuationArchived implements hook.ContinuationArchived.
func (m *MetricsExtension) OnContinuationArchived(ctx context.Context, r *continuation.Record, _ error) error {
	m.archived.Add(ctx, 1, handlerAttr(r))
	return nil
}
