// Package hook defines the lifecycle hook system for callout.
// Hooks are notified of continuation lifecycle events (registered,
// settled, resumed, etc.) and can react to them — logging, metrics,
// event streaming, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Continuation lifecycle hooks
// ──────────────────────────────────────────────────

// ContinuationRegistered is called after a record is successfully
// registered, before its calls are dispatched.
type ContinuationRegistered interface {
	OnContinuationRegistered(ctx context.Context, r *continuation.Record) error
}

// CallDispatched is called when the executor begins an outbound call.
type CallDispatched interface {
	OnCallDispatched(ctx context.Context, r *continuation.Record, d *call.Descriptor) error
}

// CallSettled is called when one outbound call settles, before the exit
// condition is checked.
type CallSettled interface {
	OnCallSettled(ctx context.Context, r *continuation.Record, o *call.Outcome) error
}

// ContinuationResumed is called after the resume handler returns a final
// result. elapsed is the time from registration to resume.
type ContinuationResumed interface {
	OnContinuationResumed(ctx context.Context, r *continuation.Record, elapsed time.Duration) error
}

// ContinuationChained is called when a resume handler re-registers a
// child record. depth is the child's chain depth.
type ContinuationChained interface {
	OnContinuationChained(ctx context.Context, parent, child *continuation.Record, depth int) error
}

// ContinuationTimedOut is called when a record's deadline expires with
// calls still outstanding, before the resume handler runs.
type ContinuationTimedOut interface {
	OnContinuationTimedOut(ctx context.Context, r *continuation.Record) error
}

// ContinuationCancelled is called when a record is explicitly cancelled.
type ContinuationCancelled interface {
	OnContinuationCancelled(ctx context.Context, r *continuation.Record) error
}

// ContinuationFailed is called when a record fails terminally (handler
// error or chain depth exceeded).
type ContinuationFailed interface {
	OnContinuationFailed(ctx context.Context, r *continuation.Record, err error) error
}

// ContinuationArchived is called when a failed record is pushed to the
// terminal-failure archive.
type ContinuationArchived interface {
	OnContinuationArchived(ctx context.Context, r *continuation.Record, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
