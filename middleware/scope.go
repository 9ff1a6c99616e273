package middleware

import (
	"context"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/scope"
)

// Scope returns middleware that restores multi-tenant scope from the
// record's ScopeAppID/ScopeOrgID fields into the context. Downstream
// middleware and the executor see the same tenant identity as the
// original registration caller.
func Scope() Middleware {
	return func(ctx context.Context, r *continuation.Record, d *call.Descriptor, next Handler) *call.Outcome {
		ctx = scope.Restore(ctx, r.ScopeAppID, r.ScopeOrgID)
		return next(ctx)
	}
}
