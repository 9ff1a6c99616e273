package archive

import (
	"context"
	"time"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/id"
)

// Service provides high-level archive operations over a Store.
type Service struct {
	store Store
}

// NewService creates an archive service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Push builds an archive Entry from a terminally failed record and
// persists it. The error string is captured from the failure that
// terminated the record.
func (s *Service) Push(ctx context.Context, r *continuation.Record, recErr error) (*Entry, error) {
	now := time.Now().UTC()
	entry := &Entry{
		ID:             id.NewArchiveID(),
		ContinuationID: r.ID,
		Handler:        r.Handler,
		Payload:        r.Payload,
		Calls:          descriptors(r),
		Outcomes:       r.Outcomes(),
		Error:          recErr.Error(),
		ChainDepth:     r.ChainDepth,
		MaxChain:       r.MaxChain,
		ScopeAppID:     r.ScopeAppID,
		ScopeOrgID:     r.ScopeOrgID,
		FailedAt:       now,
		CreatedAt:      now,
	}
	if err := s.store.PushArchive(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ArchiveStore returns the underlying store for direct access to List,
// Get, Purge, and Count operations.
func (s *Service) ArchiveStore() Store {
	return s.store
}

// descriptors extracts the call descriptors from a record's pending
// calls, in submission order.
func descriptors(r *continuation.Record) []call.Descriptor {
	out := make([]call.Descriptor, 0, len(r.Calls))
	for _, pc := range r.Calls {
		out = append(out, pc.Descriptor)
	}
	return out
}
