package archive

import (
	"context"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/id"
)

// Replayer re-registers archived state as a fresh continuation. The
// engine implements this; the indirection keeps archive free of an
// engine dependency.
type Replayer interface {
	// Replay registers a new record for the given handler with the given
	// state payload and call descriptors. The new record starts at chain
	// depth zero with a fresh deadline.
	Replay(ctx context.Context, handler string, payload []byte, calls []call.Descriptor) (*continuation.Record, error)
}

// Replay re-registers an archived continuation as a fresh record and
// marks the entry as replayed. The new record gets a fresh token, chain
// depth zero, and the handler's configured deadline.
func (s *Service) Replay(ctx context.Context, entryID id.ArchiveID, r Replayer) (*continuation.Record, error) {
	entry, err := s.store.GetArchive(ctx, entryID)
	if err != nil {
		return nil, err
	}

	rec, err := r.Replay(ctx, entry.Handler, entry.Payload, entry.Calls)
	if err != nil {
		return nil, err
	}

	if err := s.store.ReplayArchive(ctx, entryID); err != nil {
		// The record is already registered. Return it but surface the
		// marking error.
		return rec, err
	}

	return rec, nil
}
