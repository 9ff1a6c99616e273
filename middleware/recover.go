package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
)

// Recover returns middleware that recovers from panics in the dispatch
// chain. Panics are converted to failed outcomes and logged with a
// stack trace, so one panicking call settles itself without taking its
// sibling calls down.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, r *continuation.Record, d *call.Descriptor, next Handler) (out *call.Outcome) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := string(debug.Stack())
				logger.Error("call dispatch panicked",
					slog.String("continuation_id", r.ID.String()),
					slog.String("label", d.Label),
					slog.Any("panic", rec),
					slog.String("stack", stack),
				)
				out = call.Failed(d.Label, 0, nil, fmt.Sprintf("panic in call %s: %v", d.Label, rec), 0)
			}
		}()
		return next(ctx)
	}
}
