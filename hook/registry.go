package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type registeredEntry struct {
	name string
	hook ContinuationRegistered
}

type callDispatchedEntry struct {
	name string
	hook CallDispatched
}

type callSettledEntry struct {
	name string
	hook CallSettled
}

type resumedEntry struct {
	name string
	hook ContinuationResumed
}

type chainedEntry struct {
	name string
	hook ContinuationChained
}

type timedOutEntry struct {
	name string
	hook ContinuationTimedOut
}

type cancelledEntry struct {
	name string
	hook ContinuationCancelled
}

type failedEntry struct {
	name string
	hook ContinuationFailed
}

type archivedEntry struct {
	name string
	hook ContinuationArchived
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	registered     []registeredEntry
	callDispatched []callDispatchedEntry
	callSettled    []callSettledEntry
	resumed        []resumedEntry
	chained        []chainedEntry
	timedOut       []timedOutEntry
	cancelled      []cancelledEntry
	failed         []failedEntry
	archived       []archivedEntry
	shutdown       []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(ContinuationRegistered); ok {
		r.registered = append(r.registered, registeredEntry{name, h})
	}
	if h, ok := e.(CallDispatched); ok {
		r.callDispatched = append(r.callDispatched, callDispatchedEntry{name, h})
	}
	if h, ok := e.(CallSettled); ok {
		r.callSettled = append(r.callSettled, callSettledEntry{name, h})
	}
	if h, ok := e.(ContinuationResumed); ok {
		r.resumed = append(r.resumed, resumedEntry{name, h})
	}
	if h, ok := e.(ContinuationChained); ok {
		r.chained = append(r.chained, chainedEntry{name, h})
	}
	if h, ok := e.(ContinuationTimedOut); ok {
		r.timedOut = append(r.timedOut, timedOutEntry{name, h})
	}
	if h, ok := e.(ContinuationCancelled); ok {
		r.cancelled = append(r.cancelled, cancelledEntry{name, h})
	}
	if h, ok := e.(ContinuationFailed); ok {
		r.failed = append(r.failed, failedEntry{name, h})
	}
	if h, ok := e.(ContinuationArchived); ok {
		r.archived = append(r.archived, archivedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Event emitters
// ──────────────────────────────────────────────────

// EmitContinuationRegistered notifies all extensions that implement
// ContinuationRegistered.
func (r *Registry) EmitContinuationRegistered(ctx context.Context, rec *continuation.Record) {
	for _, e := range r.registered {
		if err := e.hook.OnContinuationRegistered(ctx, rec); err != nil {
			r.logHookError("OnContinuationRegistered", e.name, err)
		}
	}
}

// EmitCallDispatched notifies all extensions that implement CallDispatched.
func (r *Registry) EmitCallDispatched(ctx context.Context, rec *continuation.Record, d *call.Descriptor) {
	for _, e := range r.callDispatched {
		if err := e.hook.OnCallDispatched(ctx, rec, d); err != nil {
			r.logHookError("OnCallDispatched", e.name, err)
		}
	}
}

// EmitCallSettled notifies all extensions that implement CallSettled.
func (r *Registry) EmitCallSettled(ctx context.Context, rec *continuation.Record, o *call.Outcome) {
	for _, e := range r.callSettled {
		if err := e.hook.OnCallSettled(ctx, rec, o); err != nil {
			r.logHookError("OnCallSettled", e.name, err)
		}
	}
}

// EmitContinuationResumed notifies all extensions that implement
// ContinuationResumed.
func (r *Registry) EmitContinuationResumed(ctx context.Context, rec *continuation.Record, elapsed time.Duration) {
	for _, e := range r.resumed {
		if err := e.hook.OnContinuationResumed(ctx, rec, elapsed); err != nil {
			r.logHookError("OnContinuationResumed", e.name, err)
		}
	}
}

// EmitContinuationChained notifies all extensions that implement
// ContinuationChained.
func (r *Registry) EmitContinuationChained(ctx context.Context, parent, child *continuation.Record, depth int) {
	for _, e := range r.chained {
		if err := e.hook.OnContinuationChained(ctx, parent, child, depth); err != nil {
			r.logHookError("OnContinuationChained", e.name, err)
		}
	}
}

// EmitContinuationTimedOut notifies all extensions that implement
// ContinuationTimedOut.
func (r *Registry) EmitContinuationTimedOut(ctx context.Context, rec *continuation.Record) {
	for _, e := range r.timedOut {
		if err := e.hook.OnContinuationTimedOut(ctx, rec); err != nil {
			r.logHookError("OnContinuationTimedOut", e.name, err)
		}
	}
}

// EmitContinuationCancelled notifies all extensions that implement
// ContinuationCancelled.
func (r *Registry) EmitContinuationCancelled(ctx context.Context, rec *continuation.Record) {
	for _, e := range r.cancelled {
		if err := e.hook.OnContinuationCancelled(ctx, rec); err != nil {
			r.logHookError("OnContinuationCancelled", e.name, err)
		}
	}
}

// EmitContinuationFailed notifies all extensions that implement
// ContinuationFailed.
func (r *Registry) EmitContinuationFailed(ctx context.Context, rec *continuation.Record, recErr error) {
	for _, e := range r.failed {
		if err := e.hook.OnContinuationFailed(ctx, rec, recErr); err != nil {
			r.logHookError("OnContinuationFailed", e.name, err)
		}
	}
}

// EmitContinuationArchived notifies all extensions that implement
// ContinuationArchived.
func (r *Registry) EmitContinuationArchived(ctx context.Context, rec *continuation.Record, recErr error) {
	for _, e := range r.archived {
		if err := e.hook.OnContinuationArchived(ctx, rec, recErr); err != nil {
			r.logHookError("OnContinuationArchived", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
