package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
)

// Timeout returns middleware that enforces the per-call deadline.
// The descriptor's Timeout wins when set; otherwise fallback applies.
// When the deadline is exceeded the context is cancelled and the
// executor settles the call as timed-out.
func Timeout(logger *slog.Logger, fallback time.Duration) Middleware {
	return func(ctx context.Context, r *continuation.Record, d *call.Descriptor, next Handler) *call.Outcome {
		timeout := d.Timeout
		if timeout <= 0 {
			timeout = fallback
		}
		if timeout > 0 {
			logger.Debug("call timeout set",
				slog.String("continuation_id", r.ID.String()),
				slog.String("label", d.Label),
				slog.Duration("timeout", timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
