package continuation

import (
	"context"
	"time"

	"github.com/alcabon/callout/id"
)

// ListOpts controls pagination and filtering for continuation list queries.
type ListOpts struct {
	// Limit is the maximum number of records to return. Zero means no limit.
	Limit int
	// Offset is the number of records to skip.
	Offset int
	// Handler filters by handler name. Empty means all handlers.
	Handler string
}

// Store defines the persistence contract for continuation records.
type Store interface {
	// RegisterContinuation persists a new record in registered state.
	RegisterContinuation(ctx context.Context, r *Record) error

	// GetContinuation retrieves a record by token.
	GetContinuation(ctx context.Context, token id.ContinuationID) (*Record, error)

	// UpdateContinuation persists changes to an existing record.
	UpdateContinuation(ctx context.Context, r *Record) error

	// DeleteContinuation removes a record by token.
	DeleteContinuation(ctx context.Context, token id.ContinuationID) error

	// ListContinuationsByState returns records matching the given state.
	ListContinuationsByState(ctx context.Context, state State, opts ListOpts) ([]*Record, error)

	// ExpiredContinuations returns non-terminal records whose deadline is
	// at or before the given time. Used by the sweeper as a backstop for
	// records whose in-process timer was lost (e.g. after a restart).
	ExpiredContinuations(ctx context.Context, now time.Time) ([]*Record, error)

	// CountContinuations returns the number of records in the given
	// state. An empty state counts everything.
	CountContinuations(ctx context.Context, state State) (int64, error)
}
