package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/alcabon/callout/continuation"
)

// Start begins background processing. It rehydrates continuations left
// suspended in the store (crash recovery) and launches the deadline
// sweeper. Implements the broker's runner contract; call
// Broker.Start rather than this directly.
func (eng *Engine) Start(ctx context.Context) error {
	eng.mu.Lock()
	if eng.running {
		eng.mu.Unlock()
		return nil
	}
	eng.running = true
	eng.stopCh = make(chan struct{})
	eng.mu.Unlock()

	if err := eng.rehydrate(ctx); err != nil {
		// Best-effort: the sweeper picks up what rehydration missed.
		eng.logger.Warn("rehydration incomplete", slog.String("error", err.Error()))
	}

	eng.wg.Add(1)
	go eng.sweepLoop()

	return nil
}

// Stop signals background goroutines to stop and waits for in-flight
// dispatch rounds to finish. If the context has a deadline, waiting is
// cut short when time runs out; suspended records stay in the store and
// rehydrate on the next start.
func (eng *Engine) Stop(ctx context.Context) error {
	eng.mu.Lock()
	if !eng.running {
		eng.mu.Unlock()
		return nil
	}
	eng.running = false
	close(eng.stopCh)
	eng.mu.Unlock()

	done := make(chan struct{})
	go func() {
		eng.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		eng.logger.Info("engine stopped gracefully")
	case <-ctx.Done():
		eng.logger.Warn("engine shutdown timed out, abandoning in-flight rounds")
		eng.cancelActive()
	}

	return nil
}

// rehydrate relaunches records left in registered or pending state by a
// previous process. Records already tracked locally are skipped.
func (eng *Engine) rehydrate(ctx context.Context) error {
	for _, state := range []continuation.State{continuation.StateRegistered, continuation.StatePending} {
		recs, err := eng.contStore.ListContinuationsByState(ctx, state, continuation.ListOpts{})
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if eng.tracked(rec) {
				continue
			}
			eng.logger.Info("rehydrating continuation",
				slog.String("continuation_id", rec.ID.String()),
				slog.String("handler", rec.Handler),
				slog.String("state", string(rec.State)),
			)
			eng.launch(rec)
		}
	}
	return nil
}

// sweepLoop periodically scans the store for records whose deadline
// passed without an in-process timer firing. It is a backstop: under
// normal operation every active record's timer handles its own expiry.
func (eng *Engine) sweepLoop() {
	defer eng.wg.Done()

	interval := eng.b.Config().SweepInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-eng.stopCh:
			return
		case <-ticker.C:
			eng.sweep()
		}
	}
}

func (eng *Engine) sweep() {
	ctx := context.Background()
	expired, err := eng.contStore.ExpiredContinuations(ctx, time.Now().UTC())
	if err != nil {
		eng.logger.Error("sweep error", slog.String("error", err.Error()))
		return
	}

	for _, rec := range expired {
		if eng.tracked(rec) {
			// The in-process timer owns this one.
			continue
		}
		eng.logger.Info("sweeping expired continuation",
			slog.String("continuation_id", rec.ID.String()),
			slog.String("handler", rec.Handler),
		)
		// launch expires immediately for past-deadline records.
		eng.launch(rec)
	}
}

func (eng *Engine) tracked(rec *continuation.Record) bool {
	eng.activeMu.Lock()
	defer eng.activeMu.Unlock()
	_, ok := eng.active[rec.ID.String()]
	return ok
}

// cancelActive aborts in-flight dispatch rounds during a timed-out
// shutdown. Records are left pending in the store for rehydration.
func (eng *Engine) cancelActive() {
	eng.activeMu.Lock()
	defer eng.activeMu.Unlock()
	for token, ar := range eng.active {
		eng.logger.Warn("abandoning in-flight continuation", slog.String("continuation_id", token))
		ar.cancel()
	}
}
