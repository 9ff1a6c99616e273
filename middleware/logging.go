package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
)

// Logging returns middleware that logs call dispatch and settlement.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, r *continuation.Record, d *call.Descriptor, next Handler) *call.Outcome {
		logger.Info("call dispatched",
			slog.String("continuation_id", r.ID.String()),
			slog.String("label", d.Label),
			slog.String("method", d.EffectiveMethod()),
			slog.String("url", d.URL),
		)

		start := time.Now()
		out := next(ctx)
		elapsed := time.Since(start)

		if out.OK() {
			logger.Info("call settled",
				slog.String("continuation_id", r.ID.String()),
				slog.String("label", d.Label),
				slog.Int("http_status", out.HTTPStatus),
				slog.Duration("elapsed", elapsed),
			)
		} else {
			logger.Warn("call settled with failure",
				slog.String("continuation_id", r.ID.String()),
				slog.String("label", d.Label),
				slog.String("status", string(out.Status)),
				slog.Int("http_status", out.HTTPStatus),
				slog.Duration("elapsed", elapsed),
				slog.String("error", out.Error),
			)
		}

		return out
	}
}
