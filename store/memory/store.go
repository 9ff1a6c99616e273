// Package memory implements store.Store fully in memory.
// Safe for concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alcabon/callout"
	"github.com/alcabon/callout/archive"
	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/id"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ continuation.Store = (*Store)(nil)
	_ archive.Store      = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	records  map[string]*continuation.Record
	archives map[string]*archive.Entry
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		records:  make(map[string]*continuation.Record),
		archives: make(map[string]*archive.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// cloneRecord deep-copies a record so callers can mutate their copy
// without racing with the store. Calls are owned by live engine state;
// they get fresh PendingCall values.
func cloneRecord(r *continuation.Record) *continuation.Record {
	cp := *r
	cp.Calls = make([]*call.PendingCall, len(r.Calls))
	for i, pc := range r.Calls {
		pcCopy := *pc
		if pc.Outcome != nil {
			o := *pc.Outcome
			pcCopy.Outcome = &o
		}
		cp.Calls[i] = &pcCopy
	}
	return &cp
}

// ──────────────────────────────────────────────────
// Continuation Store
// ──────────────────────────────────────────────────

// RegisterContinuation persists a new record.
func (m *Store) RegisterContinuation(_ context.Context, r *continuation.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := r.ID.String()
	if _, exists := m.records[key]; exists {
		return callout.ErrContinuationExists
	}
	m.records[key] = cloneRecord(r)
	return nil
}

// GetContinuation retrieves a record by token.
func (m *Store) GetContinuation(_ context.Context, token id.ContinuationID) (*continuation.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[token.String()]
	if !ok {
		return nil, callout.ErrContinuationNotFound
	}
	return cloneRecord(r), nil
}

// UpdateContinuation persists changes to an existing record.
func (m *Store) UpdateContinuation(_ context.Context, r *continuation.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := r.ID.String()
	if _, ok := m.records[key]; !ok {
		return callout.ErrContinuationNotFound
	}
	cp := cloneRecord(r)
	cp.UpdatedAt = time.Now().UTC()
	m.records[key] = cp
	return nil
}

// DeleteContinuation removes a record by token.
func (m *Store) DeleteContinuation(_ context.Context, token id.ContinuationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := token.String()
	if _, ok := m.records[key]; !ok {
		return callout.ErrContinuationNotFound
	}
	delete(m.records, key)
	return nil
}

// ListContinuationsByState returns records matching the given state.
func (m *Store) ListContinuationsByState(_ context.Context, state continuation.State, opts continuation.ListOpts) ([]*continuation.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*continuation.Record, 0, len(m.records))
	for _, r := range m.records {
		if r.State != state {
			continue
		}
		if opts.Handler != "" && r.Handler != opts.Handler {
			continue
		}
		result = append(result, cloneRecord(r))
	}

	// Sort by RegisteredAt for deterministic output.
	sort.Slice(result, func(i, k int) bool {
		return result[i].RegisteredAt.Before(result[k].RegisteredAt)
	})

	// Apply offset / limit.
	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// ExpiredContinuations returns suspended records whose deadline is at
// or before the given time.
func (m *Store) ExpiredContinuations(_ context.Context, now time.Time) ([]*continuation.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var expired []*continuation.Record
	for _, r := range m.records {
		if r.State != continuation.StateRegistered && r.State != continuation.StatePending {
			continue
		}
		if r.Deadline.After(now) {
			continue
		}
		expired = append(expired, cloneRecord(r))
	}

	sort.Slice(expired, func(i, k int) bool {
		return expired[i].Deadline.Before(expired[k].Deadline)
	})

	return expired, nil
}

// CountContinuations returns the number of records in the given state.
// An empty state counts everything.
func (m *Store) CountContinuations(_ context.Context, state continuation.State) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, r := range m.records {
		if state != "" && r.State != state {
			continue
		}
		count++
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Archive Store
// ──────────────────────────────────────────────────

// PushArchive adds a failed continuation entry to the archive.
func (m *Store) PushArchive(_ context.Context, entry *archive.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	m.archives[entry.ID.String()] = &cp
	return nil
}

// ListArchive returns archive entries matching the given options.
func (m *Store) ListArchive(_ context.Context, opts archive.ListOpts) ([]*archive.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*archive.Entry, 0, len(m.archives))
	for _, e := range m.archives {
		if opts.Handler != "" && e.Handler != opts.Handler {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].FailedAt.Before(result[k].FailedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// GetArchive retrieves an archive entry by ID.
func (m *Store) GetArchive(_ context.Context, entryID id.ArchiveID) (*archive.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.archives[entryID.String()]
	if !ok {
		return nil, callout.ErrArchiveNotFound
	}
	cp := *e
	return &cp, nil
}

// ReplayArchive marks an archive entry as replayed.
func (m *Store) ReplayArchive(_ context.Context, entryID id.ArchiveID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.archives[entryID.String()]
	if !ok {
		return callout.ErrArchiveNotFound
	}
	now := time.Now().UTC()
	e.ReplayedAt = &now
	return nil
}

// PurgeArchive removes entries with FailedAt before the given time.
func (m *Store) PurgeArchive(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, e := range m.archives {
		if e.FailedAt.Before(before) {
			delete(m.archives, key)
			count++
		}
	}
	return count, nil
}

// CountArchive returns the total number of entries in the archive.
func (m *Store) CountArchive(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.archives)), nil
}
