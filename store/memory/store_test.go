package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alcabon/callout"
	"github.com/alcabon/callout/archive"
	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/id"
	"github.com/alcabon/callout/store/memory"
)

func newRecord(handler string, deadline time.Time) *continuation.Record {
	return &continuation.Record{
		Entity:       callout.NewEntity(),
		ID:           id.NewContinuationID(),
		Handler:      handler,
		State:        continuation.StateRegistered,
		Deadline:     deadline,
		RegisteredAt: time.Now().UTC(),
		Calls: []*call.PendingCall{
			call.NewPending(call.Get("a", "https://example.com/a")),
		},
	}
}

// ──────────────────────────────────────────────────
// Continuation store
// ──────────────────────────────────────────────────

func TestRegisterAndGetContinuation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	r := newRecord("h", time.Now().Add(time.Minute))
	if err := s.RegisterContinuation(ctx, r); err != nil {
		t.Fatalf("RegisterContinuation: %v", err)
	}

	got, err := s.GetContinuation(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetContinuation: %v", err)
	}
	if got.Handler != "h" || got.State != continuation.StateRegistered {
		t.Errorf("got = %+v", got)
	}

	// Duplicate registration.
	if err := s.RegisterContinuation(ctx, r); !errors.Is(err, callout.ErrContinuationExists) {
		t.Errorf("duplicate register error = %v, want ErrContinuationExists", err)
	}

	// Unknown token.
	if _, err := s.GetContinuation(ctx, id.NewContinuationID()); !errors.Is(err, callout.ErrContinuationNotFound) {
		t.Errorf("get unknown error = %v, want ErrContinuationNotFound", err)
	}
}

func TestGetContinuation_ReturnsIsolatedCopy(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	r := newRecord("h", time.Now().Add(time.Minute))
	if err := s.RegisterContinuation(ctx, r); err != nil {
		t.Fatalf("RegisterContinuation: %v", err)
	}

	got, _ := s.GetContinuation(ctx, r.ID)
	got.State = continuation.StateFailed
	got.Calls[0].Outcome = call.Succeeded("a", 200, nil, 0)

	again, _ := s.GetContinuation(ctx, r.ID)
	if again.State != continuation.StateRegistered {
		t.Error("mutating a returned record leaked into the store")
	}
	if again.Calls[0].Settled() {
		t.Error("mutating a returned record's calls leaked into the store")
	}
}

func TestUpdateContinuation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	r := newRecord("h", time.Now().Add(time.Minute))
	if err := s.RegisterContinuation(ctx, r); err != nil {
		t.Fatalf("RegisterContinuation: %v", err)
	}

	r.State = continuation.StateResumed
	if err := s.UpdateContinuation(ctx, r); err != nil {
		t.Fatalf("UpdateContinuation: %v", err)
	}

	got, _ := s.GetContinuation(ctx, r.ID)
	if got.State != continuation.StateResumed {
		t.Errorf("State = %q, want resumed", got.State)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set on update")
	}

	// Update of a missing record.
	missing := newRecord("h", time.Now())
	if err := s.UpdateContinuation(ctx, missing); !errors.Is(err, callout.ErrContinuationNotFound) {
		t.Errorf("update missing error = %v, want ErrContinuationNotFound", err)
	}
}

func TestDeleteContinuation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	r := newRecord("h", time.Now().Add(time.Minute))
	if err := s.RegisterContinuation(ctx, r); err != nil {
		t.Fatalf("RegisterContinuation: %v", err)
	}
	if err := s.DeleteContinuation(ctx, r.ID); err != nil {
		t.Fatalf("DeleteContinuation: %v", err)
	}
	if _, err := s.GetContinuation(ctx, r.ID); !errors.Is(err, callout.ErrContinuationNotFound) {
		t.Errorf("get after delete = %v, want ErrContinuationNotFound", err)
	}
	if err := s.DeleteContinuation(ctx, r.ID); !errors.Is(err, callout.ErrContinuationNotFound) {
		t.Errorf("double delete = %v, want ErrContinuationNotFound", err)
	}
}

func TestListContinuationsByState(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	for i := range 5 {
		r := newRecord("h", time.Now().Add(time.Minute))
		r.RegisteredAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if i >= 3 {
			r.State = continuation.StatePending
		}
		if err := s.RegisterContinuation(ctx, r); err != nil {
			t.Fatalf("RegisterContinuation: %v", err)
		}
	}

	registered, err := s.ListContinuationsByState(ctx, continuation.StateRegistered, continuation.ListOpts{})
	if err != nil {
		t.Fatalf("ListContinuationsByState: %v", err)
	}
	if len(registered) != 3 {
		t.Errorf("len(registered) = %d, want 3", len(registered))
	}
	for i := 1; i < len(registered); i++ {
		if registered[i].RegisteredAt.Before(registered[i-1].RegisteredAt) {
			t.Error("records not sorted by RegisteredAt")
		}
	}

	// Limit / offset.
	limited, _ := s.ListContinuationsByState(ctx, continuation.StateRegistered, continuation.ListOpts{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("len(limited) = %d, want 2", len(limited))
	}
	offset, _ := s.ListContinuationsByState(ctx, continuation.StateRegistered, continuation.ListOpts{Offset: 2})
	if len(offset) != 1 {
		t.Errorf("len(offset) = %d, want 1", len(offset))
	}

	// Handler filter.
	other := newRecord("other", time.Now().Add(time.Minute))
	s.RegisterContinuation(ctx, other) //nolint:errcheck
	byHandler, _ := s.ListContinuationsByState(ctx, continuation.StateRegistered, continuation.ListOpts{Handler: "other"})
	if len(byHandler) != 1 {
		t.Errorf("len(byHandler) = %d, want 1", len(byHandler))
	}
}

func TestExpiredContinuations(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	past := newRecord("h", now.Add(-time.Minute))
	future := newRecord("h", now.Add(time.Hour))
	terminal := newRecord("h", now.Add(-time.Hour))
	terminal.State = continuation.StateResumed

	for _, r := range []*continuation.Record{past, future, terminal} {
		if err := s.RegisterContinuation(ctx, r); err != nil {
			t.Fatalf("RegisterContinuation: %v", err)
		}
	}

	expired, err := s.ExpiredContinuations(ctx, now)
	if err != nil {
		t.Fatalf("ExpiredContinuations: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("len(expired) = %d, want 1", len(expired))
	}
	if expired[0].ID.String() != past.ID.String() {
		t.Error("wrong record expired")
	}
}

func TestCountContinuations(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	for i := range 4 {
		r := newRecord("h", time.Now().Add(time.Minute))
		if i%2 == 0 {
			r.State = continuation.StatePending
		}
		s.RegisterContinuation(ctx, r) //nolint:errcheck
	}

	total, _ := s.CountContinuations(ctx, "")
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	pending, _ := s.CountContinuations(ctx, continuation.StatePending)
	if pending != 2 {
		t.Errorf("pending = %d, want 2", pending)
	}
}

// ──────────────────────────────────────────────────
// Archive store
// ──────────────────────────────────────────────────

func newArchiveEntry(handler string, failedAt time.Time) *archive.Entry {
	return &archive.Entry{
		ID:             id.NewArchiveID(),
		ContinuationID: id.NewContinuationID(),
		Handler:        handler,
		Error:          "handler returned error",
		FailedAt:       failedAt,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestArchive_PushGetReplay(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	e := newArchiveEntry("h", time.Now().UTC())
	if err := s.PushArchive(ctx, e); err != nil {
		t.Fatalf("PushArchive: %v", err)
	}

	got, err := s.GetArchive(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetArchive: %v", err)
	}
	if got.Handler != "h" || got.ReplayedAt != nil {
		t.Errorf("got = %+v", got)
	}

	if err := s.ReplayArchive(ctx, e.ID); err != nil {
		t.Fatalf("ReplayArchive: %v", err)
	}
	got, _ = s.GetArchive(ctx, e.ID)
	if got.ReplayedAt == nil {
		t.Error("ReplayedAt not set after ReplayArchive")
	}

	if _, err := s.GetArchive(ctx, id.NewArchiveID()); !errors.Is(err, callout.ErrArchiveNotFound) {
		t.Errorf("get unknown = %v, want ErrArchiveNotFound", err)
	}
}

func TestArchive_ListAndPurge(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	old := newArchiveEntry("h", now.Add(-time.Hour))
	recent := newArchiveEntry("h", now)
	other := newArchiveEntry("other", now)

	for _, e := range []*archive.Entry{old, recent, other} {
		if err := s.PushArchive(ctx, e); err != nil {
			t.Fatalf("PushArchive: %v", err)
		}
	}

	all, err := s.ListArchive(ctx, archive.ListOpts{})
	if err != nil {
		t.Fatalf("ListArchive: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
	if all[0].ID.String() != old.ID.String() {
		t.Error("list not sorted by FailedAt ascending")
	}

	byHandler, _ := s.ListArchive(ctx, archive.ListOpts{Handler: "other"})
	if len(byHandler) != 1 {
		t.Errorf("len(byHandler) = %d, want 1", len(byHandler))
	}

	purged, err := s.PurgeArchive(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("PurgeArchive: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	count, _ := s.CountArchive(ctx)
	if count != 2 {
		t.Errorf("count after purge = %d, want 2", count)
	}
}
