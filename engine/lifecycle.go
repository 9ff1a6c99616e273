package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alcabon/callout"
	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/id"
	"github.com/alcabon/callout/scope"
)

// activeRecord is the in-process synchronization point for one in-flight
// continuation. Settlements, the deadline timer, and explicit
// cancellation all race to finalize the record; the finalized flag under
// mu guarantees exactly one of them triggers the resume.
type activeRecord struct {
	mu        sync.Mutex
	rec       *continuation.Record
	timer     *time.Timer
	cancel    context.CancelFunc
	finalized bool
}

// launch transitions a registered record to pending, starts its deadline
// timer, and fans out its calls. If the deadline has already passed
// (rehydrated records), it expires immediately without dispatching.
func (eng *Engine) launch(rec *continuation.Record) {
	ctx, cancel := context.WithCancel(context.Background())
	ar := &activeRecord{rec: rec, cancel: cancel}

	eng.activeMu.Lock()
	eng.active[rec.ID.String()] = ar
	eng.activeMu.Unlock()

	rec.State = continuation.StatePending
	eng.persist(ctx, rec)

	// Rehydrated records may already have every call settled (the
	// process died between the last settlement and the resume).
	if rec.AllSettled() {
		ar.mu.Lock()
		ar.finalized = true
		ar.mu.Unlock()
		eng.resume(ctx, ar)
		return
	}

	remaining := time.Until(rec.Deadline)
	if remaining <= 0 {
		eng.expire(ar)
		return
	}
	ar.timer = time.AfterFunc(remaining, func() { eng.expire(ar) })

	eng.wg.Add(1)
	go func() {
		defer eng.wg.Done()
		eng.exec.DispatchRound(ctx, rec, func(pc *call.PendingCall, out *call.Outcome) {
			eng.settle(ctx, ar, pc, out)
		})
	}()
}

// settle records one call's outcome. When it is the last outstanding
// call, the record's exit condition is met and the resume fires on this
// goroutine.
func (eng *Engine) settle(ctx context.Context, ar *activeRecord, pc *call.PendingCall, out *call.Outcome) {
	ar.mu.Lock()
	if ar.finalized || pc.Settled() {
		// The deadline or a cancel beat this settlement; the outcome slot
		// is already owned by the finalizer.
		ar.mu.Unlock()
		return
	}
	pc.Outcome = out
	eng.persist(ctx, ar.rec)
	last := ar.rec.AllSettled()
	if last {
		ar.finalized = true
		if ar.timer != nil {
			ar.timer.Stop()
		}
	}
	ar.mu.Unlock()

	eng.extensions.EmitCallSettled(ctx, ar.rec, out)

	if last {
		eng.resume(ctx, ar)
	}
}

// expire fires when the record's deadline passes with calls still
// outstanding. Outstanding calls are marked timed-out, in-flight
// requests are cancelled, and the resume fires immediately with the
// mixed outcomes.
func (eng *Engine) expire(ar *activeRecord) {
	ar.mu.Lock()
	if ar.finalized {
		ar.mu.Unlock()
		return
	}
	ar.finalized = true

	rec := ar.rec
	now := time.Now().UTC()
	for _, pc := range rec.Calls {
		if !pc.Settled() {
			pc.Outcome = call.TimedOut(pc.Descriptor.Label, now.Sub(rec.RegisteredAt))
		}
	}
	rec.State = continuation.StateTimedOut
	ar.mu.Unlock()

	ar.cancel()

	ctx := context.Background()
	eng.persist(ctx, rec)
	eng.extensions.EmitContinuationTimedOut(ctx, rec)

	eng.logger.Warn("continuation deadline expired",
		slog.String("continuation_id", rec.ID.String()),
		slog.String("handler", rec.Handler),
	)

	eng.resume(ctx, ar)
}

// resume runs the record's resume handler exactly once with the
// outcomes in submission order, then applies the handler's decision:
// final result, chained round, or terminal failure. The record stays
// in the active map (finalized) until the decision is persisted, so a
// concurrent Cancel sees ErrAlreadyFinalized instead of finding a
// still-pending record in the store.
func (eng *Engine) resume(ctx context.Context, ar *activeRecord) {
	rec := ar.rec
	defer eng.untrack(rec.ID)

	handler, ok := eng.registry.Get(rec.Handler)
	if !ok {
		// The handler was registered at Start; losing it mid-flight means
		// the process was rebuilt without it.
		eng.fail(ctx, rec, fmt.Errorf("%w: %q", callout.ErrHandlerNotFound, rec.Handler))
		return
	}

	hctx := scope.Restore(ctx, rec.ScopeAppID, rec.ScopeOrgID)
	result, err := handler(hctx, rec.Outcomes(), rec.Payload)
	if err != nil {
		eng.fail(ctx, rec, err)
		return
	}

	if result.IsChain() {
		eng.chain(ctx, rec, result.ChainSpec())
		return
	}

	eng.resolve(ctx, rec, result.FinalPayload())
}

// resolve terminates the record with the handler's final result. A
// record that expired keeps its timed_out state; the result and resume
// timestamp are recorded either way.
func (eng *Engine) resolve(ctx context.Context, rec *continuation.Record, payload []byte) {
	now := time.Now().UTC()
	rec.Result = payload
	rec.ResumedAt = &now
	if rec.State != continuation.StateTimedOut {
		rec.State = continuation.StateResumed
	}
	eng.persist(ctx, rec)

	elapsed := now.Sub(rec.RegisteredAt)
	eng.extensions.EmitContinuationResumed(ctx, rec, elapsed)

	eng.logger.Info("continuation resumed",
		slog.String("continuation_id", rec.ID.String()),
		slog.String("handler", rec.Handler),
		slog.Duration("suspended", elapsed),
	)
}

// chain registers the next round requested by the resume handler. The
// chain depth bound turns runaway retry loops into terminal failures.
func (eng *Engine) chain(ctx context.Context, parent *continuation.Record, spec *continuation.ChainSpec) {
	depth := parent.ChainDepth + 1
	if depth > parent.MaxChain {
		eng.fail(ctx, parent, fmt.Errorf("%w: depth %d, limit %d", callout.ErrChainLimitExceeded, depth, parent.MaxChain))
		return
	}

	child, err := eng.buildRecord(ctx, parent.Handler, spec.State, spec.Calls, depth, parent.ID)
	if err != nil {
		eng.fail(ctx, parent, fmt.Errorf("chain round %d: %w", depth, err))
		return
	}
	// The chain inherits the parent's bound and scope rather than
	// re-resolving them; context scope is not available mid-resume.
	child.MaxChain = parent.MaxChain
	child.ScopeAppID = parent.ScopeAppID
	child.ScopeOrgID = parent.ScopeOrgID

	if err := eng.contStore.RegisterContinuation(ctx, child); err != nil {
		eng.fail(ctx, parent, fmt.Errorf("chain round %d: %w", depth, err))
		return
	}

	now := time.Now().UTC()
	parent.State = continuation.StateChained
	parent.ChildID = child.ID
	parent.ResumedAt = &now
	eng.persist(ctx, parent)

	eng.extensions.EmitContinuationRegistered(ctx, child)
	eng.extensions.EmitContinuationChained(ctx, parent, child, depth)

	eng.logger.Info("continuation chained",
		slog.String("continuation_id", parent.ID.String()),
		slog.String("child_id", child.ID.String()),
		slog.Int("depth", depth),
	)

	delay := eng.bo.Delay(depth)
	if delay <= 0 {
		eng.launch(child)
		return
	}

	// Snapshot the stop channel: Start reassigns eng.stopCh under
	// eng.mu, and this goroutine may outlive a Stop/Start cycle.
	eng.mu.Lock()
	stopCh := eng.stopCh
	eng.mu.Unlock()

	eng.wg.Add(1)
	go func() {
		defer eng.wg.Done()
		select {
		case <-time.After(delay):
			eng.launch(child)
		case <-stopCh:
			// Shutdown before the delayed round started; the child stays
			// registered in the store and rehydrates on the next start.
		}
	}()
}

// fail terminates the record, pushes it to the archive, and emits the
// failure events.
func (eng *Engine) fail(ctx context.Context, rec *continuation.Record, recErr error) {
	rec.State = continuation.StateFailed
	rec.LastError = recErr.Error()
	eng.persist(ctx, rec)

	if _, archErr := eng.archiveSvc.Push(ctx, rec, recErr); archErr != nil {
		eng.logger.Error("failed to archive continuation",
			slog.String("continuation_id", rec.ID.String()),
			slog.String("error", archErr.Error()),
		)
	} else {
		eng.extensions.EmitContinuationArchived(ctx, rec, recErr)
	}

	eng.extensions.EmitContinuationFailed(ctx, rec, recErr)

	eng.logger.Warn("continuation failed",
		slog.String("continuation_id", rec.ID.String()),
		slog.String("handler", rec.Handler),
		slog.String("error", recErr.Error()),
	)
}

// Cancel stops a suspended continuation before it resumes. Outstanding
// calls settle as cancelled, in-flight requests are aborted, and the
// resume handler never runs. Cancelling a record that already
// finalized returns ErrAlreadyFinalized.
func (eng *Engine) Cancel(ctx context.Context, token id.ContinuationID) error {
	eng.activeMu.Lock()
	ar := eng.active[token.String()]
	eng.activeMu.Unlock()

	if ar != nil {
		ar.mu.Lock()
		if ar.finalized {
			ar.mu.Unlock()
			return callout.ErrAlreadyFinalized
		}
		ar.finalized = true
		if ar.timer != nil {
			ar.timer.Stop()
		}
		rec := ar.rec
		for _, pc := range rec.Calls {
			if !pc.Settled() {
				pc.Outcome = call.Cancelled(pc.Descriptor.Label)
			}
		}
		rec.State = continuation.StateCancelled
		ar.mu.Unlock()

		ar.cancel()
		eng.untrack(token)

		eng.persist(ctx, rec)
		eng.extensions.EmitContinuationCancelled(ctx, rec)
		return nil
	}

	// Not in flight locally: the record may be suspended in the store
	// (registered but not yet rehydrated).
	rec, err := eng.contStore.GetContinuation(ctx, token)
	if err != nil {
		return err
	}
	if rec.State.Terminal() || rec.State == continuation.StateChained || rec.State == continuation.StateTimedOut {
		return callout.ErrAlreadyFinalized
	}

	for _, pc := range rec.Calls {
		if !pc.Settled() {
			pc.Outcome = call.Cancelled(pc.Descriptor.Label)
		}
	}
	rec.State = continuation.StateCancelled
	if err := eng.contStore.UpdateContinuation(ctx, rec); err != nil {
		return err
	}
	eng.extensions.EmitContinuationCancelled(ctx, rec)
	return nil
}

// Replay implements archive.Replayer: it re-registers archived state as
// a fresh continuation at chain depth zero.
func (eng *Engine) Replay(ctx context.Context, handler string, payload []byte, calls []call.Descriptor) (*continuation.Record, error) {
	return eng.StartRaw(ctx, handler, payload, calls)
}

// persist updates the record in the store, logging failures. Store
// errors must not break the in-process lifecycle; the sweeper and
// rehydration reconcile on the next pass.
func (eng *Engine) persist(ctx context.Context, rec *continuation.Record) {
	rec.UpdatedAt = time.Now().UTC()
	if err := eng.contStore.UpdateContinuation(ctx, rec); err != nil {
		eng.logger.Error("failed to persist continuation",
			slog.String("continuation_id", rec.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (eng *Engine) untrack(token id.ContinuationID) {
	eng.activeMu.Lock()
	delete(eng.active, token.String())
	eng.activeMu.Unlock()
}
