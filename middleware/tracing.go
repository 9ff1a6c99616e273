package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
)

// tracerName is the instrumentation scope name for callout tracing.
const tracerName = "github.com/alcabon/callout"

// Tracing returns middleware that wraps call dispatch in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop
// tracer is used and this middleware becomes a pass-through with zero
// overhead.
//
// Span attributes include: callout.continuation.id, callout.handler,
// callout.call.label, callout.call.host, callout.chain_depth,
// callout.scope.app_id, callout.scope.org_id.
// On a non-succeeded outcome, the span status is set to codes.Error.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, r *continuation.Record, d *call.Descriptor, next Handler) *call.Outcome {
		ctx, span := tracer.Start(ctx, "callout.call.dispatch",
			trace.WithAttributes(
				attribute.String("callout.continuation.id", r.ID.String()),
				attribute.String("callout.handler", r.Handler),
				attribute.String("callout.call.label", d.Label),
				attribute.String("callout.call.host", d.Host()),
				attribute.Int("callout.chain_depth", r.ChainDepth),
				attribute.String("callout.scope.app_id", r.ScopeAppID),
				attribute.String("callout.scope.org_id", r.ScopeOrgID),
			),
			trace.WithSpanKind(trace.SpanKindClient),
		)
		defer span.End()

		out := next(ctx)
		if out.OK() {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, out.Error)
		}
		span.SetAttributes(attribute.Int("http.response.status_code", out.HTTPStatus))

		return out
	}
}
