package hook_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/hook"
	"github.com/alcabon/callout/id"
)

// tracker implements every hook interface and counts invocations.
type tracker struct {
	registered atomic.Int32
	dispatched atomic.Int32
	settled    atomic.Int32
	resumed    atomic.Int32
	chained    atomic.Int32
	timedOut   atomic.Int32
	cancelled  atomic.Int32
	failed     atomic.Int32
	archived   atomic.Int32
	shutdown   atomic.Int32
}

func (e *tracker) Name() string { return "tracker" }

func (e *tracker) OnContinuationRegistered(_ context.Context, _ *continuation.Record) error {
	e.registered.Add(1)
	return nil
}

func (e *tracker) OnCallDispatched(_ context.Context, _ *continuation.Record, _ *call.Descriptor) error {
	e.dispatched.Add(1)
	return nil
}

func (e *tracker) OnCallSettled(_ context.Context, _ *continuation.Record, _ *call.Outcome) error {
	e.settled.Add(1)
	return nil
}

func (e *tracker) OnContinuationResumed(_ context.Context, _ *continuation.Record, _ time.Duration) error {
	e.resumed.Add(1)
	return nil
}

func (e *tracker) OnContinuationChained(_ context.Context, _, _ *continuation.Record, _ int) error {
	e.chained.Add(1)
	return nil
}

func (e *tracker) OnContinuationTimedOut(_ context.Context, _ *continuation.Record) error {
	e.timedOut.Add(1)
	return nil
}

func (e *tracker) OnContinuationCancelled(_ context.Context, _ *continuation.Record) error {
	e.cancelled.Add(1)
	return nil
}

func (e *tracker) OnContinuationFailed(_ context.Context, _ *continuation.Record, _ error) error {
	e.failed.Add(1)
	return nil
}

func (e *tracker) OnContinuationArchived(_ context.Context, _ *continuation.Record, _ error) error {
	e.archived.Add(1)
	return nil
}

func (e *tracker) OnShutdown(_ context.Context) error {
	e.shutdown.Store(1)
	return nil
}

// partialExt only implements one hook interface; the registry must not
// route other events to it.
type partialExt struct {
	resumed atomic.Int32
}

func (e *partialExt) Name() string { return "partial" }

func (e *partialExt) OnContinuationResumed(_ context.Context, _ *continuation.Record, _ time.Duration) error {
	e.resumed.Add(1)
	return nil
}

func testRecord() *continuation.Record {
	return &continuation.Record{
		ID:      id.NewContinuationID(),
		Handler: "h",
		State:   continuation.StatePending,
	}
}

func TestRegistry_RoutesAllEvents(t *testing.T) {
	reg := hook.NewRegistry(slog.Default())
	tr := &tracker{}
	reg.Register(tr)

	ctx := context.Background()
	rec := testRecord()
	d := call.Get("a", "https://example.com")
	out := call.Succeeded("a", 200, nil, time.Millisecond)

	reg.EmitContinuationRegistered(ctx, rec)
	reg.EmitCallDispatched(ctx, rec, &d)
	reg.EmitCallSettled(ctx, rec, out)
	reg.EmitContinuationResumed(ctx, rec, time.Second)
	reg.EmitContinuationChained(ctx, rec, testRecord(), 1)
	reg.EmitContinuationTimedOut(ctx, rec)
	reg.EmitContinuationCancelled(ctx, rec)
	reg.EmitContinuationFailed(ctx, rec, errors.New("boom"))
	reg.EmitContinuationArchived(ctx, rec, errors.New("boom"))
	reg.EmitShutdown(ctx)

	checks := []struct {
		name string
		got  int32
	}{
		{"registered", tr.registered.Load()},
		{"dispatched", tr.dispatched.Load()},
		{"settled", tr.settled.Load()},
		{"resumed", tr.resumed.Load()},
		{"chained", tr.chained.Load()},
		{"timed_out", tr.timedOut.Load()},
		{"cancelled", tr.cancelled.Load()},
		{"failed", tr.failed.Load()},
		{"archived", tr.archived.Load()},
		{"shutdown", tr.shutdown.Load()},
	}
	for _, c := range checks {
		if c.got != 1 {
			t.Errorf("%s hook fired %d times, want 1", c.name, c.got)
		}
	}
}

func TestRegistry_PartialExtensionOnlyGetsItsEvents(t *testing.T) {
	reg := hook.NewRegistry(slog.Default())
	p := &partialExt{}
	reg.Register(p)

	ctx := context.Background()
	rec := testRecord()

	// None of these should reach the partial extension.
	reg.EmitContinuationRegistered(ctx, rec)
	reg.EmitContinuationTimedOut(ctx, rec)
	reg.EmitShutdown(ctx)

	reg.EmitContinuationResumed(ctx, rec, time.Second)
	if got := p.resumed.Load(); got != 1 {
		t.Errorf("resumed hook fired %d times, want 1", got)
	}
}

func TestRegistry_HookErrorDoesNotStopOthers(t *testing.T) {
	reg := hook.NewRegistry(slog.Default())

	reg.Register(&failingExt{})
	tr := &tracker{}
	reg.Register(tr)

	reg.EmitContinuationResumed(context.Background(), testRecord(), time.Second)
	if got := tr.resumed.Load(); got != 1 {
		t.Errorf("second extension fired %d times, want 1 (error must not short-circuit)", got)
	}
}

type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnContinuationResumed(_ context.Context, _ *continuation.Record, _ time.Duration) error {
	return errors.New("hook error")
}

func TestRegistry_Extensions(t *testing.T) {
	reg := hook.NewRegistry(slog.Default())
	reg.Register(&tracker{})
	reg.Register(&partialExt{})

	if got := len(reg.Extensions()); got != 2 {
		t.Errorf("len(Extensions()) = %d, want 2", got)
	}
}
