// Package store defines the aggregate persistence interface. Each
// subsystem (continuation, archive) defines its own store interface.
// The composite Store composes them all. Backends: Postgres, Redis,
// and Memory.
package store

import (
	"context"

	"github.com/alcabon/callout/archive"
	"github.com/alcabon/callout/continuation"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface; a single backend
// (postgres, redis, memory) implements all of them.
type Store interface {
	continuation.Store
	archive.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
