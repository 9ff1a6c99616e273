package continuation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/alcabon/callout/call"
)

// HandlerFunc is a type-erased resume handler that accepts the raw JSON
// state payload. The typed Definition[T] is converted to a HandlerFunc at
// registration time by closing over JSON unmarshal + the typed handler.
type HandlerFunc func(ctx context.Context, outcomes []call.Outcome, state []byte) (Result, error)

// Registry maps handler names to type-erased resume handlers.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	opts     map[string]Options
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
		opts:     make(map[string]Options),
	}
}

// RegisterDefinition registers a typed resume-handler definition. The
// generic handler is wrapped in a closure that JSON-unmarshals the state
// payload into T before calling the typed handler.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) {
	handler := func(ctx context.Context, outcomes []call.Outcome, state []byte) (Result, error) {
		var t T
		if len(state) > 0 {
			if err := json.Unmarshal(state, &t); err != nil {
				return Result{}, fmt.Errorf("unmarshal state for handler %q: %w", def.Name, err)
			}
		}
		return def.Handler(ctx, outcomes, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[def.Name] = handler
	r.opts[def.Name] = def.Opts
}

// Get returns the handler for the given name.
// Returns false if no handler is registered.
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Opts returns the registration-time options for the given handler name.
func (r *Registry) Opts(name string) (Options, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.opts[name]
	return o, ok
}

// Names returns all registered handler names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
