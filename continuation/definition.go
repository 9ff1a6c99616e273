package continuation

import (
	"context"

	"github.com/alcabon/callout/call"
)

// Definition is a typed resume-handler definition. T is the caller state
// type (must be JSON-serializable). The handler must be a pure decision
// function of its inputs: same outcomes and state, same Result.
type Definition[T any] struct {
	// Name is the unique identifier for this handler.
	Name string

	// Handler is invoked exactly once per settled record with the
	// outcomes in submission order and the unmarshalled caller state.
	// Returning an error fails the record terminally.
	Handler func(ctx context.Context, outcomes []call.Outcome, state T) (Result, error)

	// Opts configures deadline and chain depth for records started
	// against this definition.
	Opts Options
}

// NewDefinition creates a typed resume-handler definition.
func NewDefinition[T any](name string, handler func(ctx context.Context, outcomes []call.Outcome, state T) (Result, error), opts ...Option) *Definition[T] {
	def := &Definition[T]{
		Name:    name,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}
