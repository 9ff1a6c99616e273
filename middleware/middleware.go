// Package middleware provides composable middleware for outbound call
// dispatch. Middleware wraps the HTTP executor synchronously and can
// modify execution (recover from panics, enforce timeouts, log, record
// metrics, add tracing, etc.).
package middleware

import (
	"context"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
)

// Handler is the terminal function that performs the outbound call and
// returns its settled outcome. Outcomes are values, never errors:
// transport failures and timeouts settle the call as failed or
// timed-out rather than propagating up the chain.
type Handler func(ctx context.Context) *call.Outcome

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the record the call belongs to, the
// call's descriptor, and the next handler. Middleware MUST call next to
// continue the chain (unless short-circuiting with a synthetic outcome).
type Middleware func(ctx context.Context, r *continuation.Record, d *call.Descriptor, next Handler) *call.Outcome

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → executor
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, r *continuation.Record, d *call.Descriptor, next Handler) *call.Outcome {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) *call.Outcome {
				return mw(ctx, r, d, prev)
			}
		}
		return h(ctx)
	}
}
