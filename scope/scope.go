// Package scope provides helpers to capture and restore multi-tenant
// execution context (app and org identity) from/to context.Context.
//
// Scope is captured at registration time, persisted on the continuation
// record, and restored into the context before the resume handler runs,
// so the handler sees the same tenant identity as the original caller.
package scope

import "context"

type contextKey struct{}

// Scope carries tenant identity across a suspension.
type Scope struct {
	AppID string
	OrgID string
}

// WithScope attaches a scope to the context.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// From extracts the scope from the context.
// Returns false if no scope is present.
func From(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(contextKey{}).(Scope)
	return s, ok
}

// Capture extracts the app and org identifiers from the context.
// Returns empty strings if no scope is present.
func Capture(ctx context.Context) (appID, orgID string) {
	s, ok := From(ctx)
	if !ok {
		return "", ""
	}
	return s.AppID, s.OrgID
}

// Restore attaches a scope to the context using the given app and org IDs.
// If both are empty, the context is returned unchanged (no-op).
func Restore(ctx context.Context, appID, orgID string) context.Context {
	if appID == "" && orgID == "" {
		return ctx
	}
	return WithScope(ctx, Scope{AppID: appID, OrgID: orgID})
}
