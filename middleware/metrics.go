package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
)

// meterName is the instrumentation scope name for callout metrics.
const meterName = "github.com/alcabon/callout"

// Metrics returns middleware that records per-call dispatch metrics using
// the global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - callout.call.duration (Float64Histogram): dispatch time in seconds,
//     with attributes: handler, host, status
//   - callout.call.dispatches (Int64Counter): total dispatches,
//     with attributes: handler, host, status
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"callout.call.duration",
		metric.WithDescription("Duration of outbound call dispatch in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	dispatches, cErr := meter.Int64Counter(
		"callout.call.dispatches",
		metric.WithDescription("Total number of outbound call dispatches"),
		metric.WithUnit("{dispatch}"),
	)
	_ = cErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, r *continuation.Record, d *call.Descriptor, next Handler) *call.Outcome {
		start := time.Now()
		out := next(ctx)
		elapsed := time.Since(start).Seconds()

		attrs := metric.WithAttributes(
			attribute.String("handler", r.Handler),
			attribute.String("host", d.Host()),
			attribute.String("status", string(out.Status)),
		)

		duration.Record(ctx, elapsed, attrs)
		dispatches.Add(ctx, 1, attrs)

		return out
	}
}
