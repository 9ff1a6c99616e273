// Package executor performs the outbound HTTP calls of a continuation —
// it dispatches each descriptor through the middleware chain, classifies
// the response into a settled outcome, and fans a record's call set out
// concurrently.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/hook"
	"github.com/alcabon/callout/middleware"
	"github.com/alcabon/callout/ratelimit"
)

// defaultMaxBodyBytes caps how much of an upstream response body is
// retained on an outcome.
const defaultMaxBodyBytes = 4 << 20 // 4 MiB

// Executor dispatches a single outbound call through middleware and the
// HTTP client, then classifies the result into a settled outcome.
type Executor struct {
	client          *http.Client
	hooks           *hook.Registry
	limits          *ratelimit.Manager
	mw              middleware.Middleware
	fallbackTimeout time.Duration
	maxBodyBytes    int64
	logger          *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithClient sets the HTTP client used for outbound calls.
func WithClient(c *http.Client) Option {
	return func(e *Executor) { e.client = c }
}

// WithLimits sets the per-host rate limit manager.
func WithLimits(m *ratelimit.Manager) Option {
	return func(e *Executor) { e.limits = m }
}

// WithMiddleware sets the dispatch middleware chain.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Executor) { e.mw = middleware.Chain(mws...) }
}

// WithFallbackTimeout sets the per-call timeout applied when a
// descriptor carries none.
func WithFallbackTimeout(d time.Duration) Option {
	return func(e *Executor) { e.fallbackTimeout = d }
}

// WithMaxBodyBytes caps how much of a response body is retained on the
// outcome. Bodies beyond the cap are truncated, not failed.
func WithMaxBodyBytes(n int64) Option {
	return func(e *Executor) { e.maxBodyBytes = n }
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(hooks *hook.Registry, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		client:       http.DefaultClient,
		hooks:        hooks,
		mw:           middleware.Chain(),
		maxBodyBytes: defaultMaxBodyBytes,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatch performs one outbound call and returns its settled outcome.
// The outcome is always non-nil: transport errors, timeouts, and
// cancellations are classified, never propagated.
func (e *Executor) Dispatch(ctx context.Context, r *continuation.Record, pc *call.PendingCall) *call.Outcome {
	d := &pc.Descriptor
	e.hooks.EmitCallDispatched(ctx, r, d)

	host := d.Host()
	if e.limits != nil {
		if err := e.limits.Acquire(ctx, host); err != nil {
			return classifyErr(d.Label, err, 0)
		}
		defer e.limits.Release(host)
	}

	terminal := func(ctx context.Context) *call.Outcome {
		return e.perform(ctx, d)
	}

	return e.mw(ctx, r, d, terminal)
}

// perform issues the HTTP request and classifies the response.
func (e *Executor) perform(ctx context.Context, d *call.Descriptor) *call.Outcome {
	start := time.Now()

	var body io.Reader
	if len(d.Body) > 0 {
		body = bytes.NewReader(d.Body)
	}

	req, err := http.NewRequestWithContext(ctx, d.EffectiveMethod(), d.URL, body)
	if err != nil {
		return call.Failed(d.Label, 0, nil, fmt.Sprintf("build request: %v", err), time.Since(start))
	}
	for k, vs := range d.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := e.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return classifyErr(d.Label, err, elapsed)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, e.maxBodyBytes))
	if readErr != nil {
		return classifyErr(d.Label, readErr, time.Since(start))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		detail := fmt.Sprintf("upstream returned %s", resp.Status)
		return call.Failed(d.Label, resp.StatusCode, respBody, detail, elapsed)
	}

	return call.Succeeded(d.Label, resp.StatusCode, respBody, elapsed)
}

// classifyErr maps a transport or context error to a settled outcome.
func classifyErr(label string, err error, elapsed time.Duration) *call.Outcome {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return call.TimedOut(label, elapsed)
	case errors.Is(err, context.Canceled):
		return call.Cancelled(label)
	default:
		return call.Failed(label, 0, nil, err.Error(), elapsed)
	}
}

// DispatchRound fans out all unsettled calls of a record concurrently.
// settle is invoked once per call as it settles; it runs on the call's
// goroutine and must be safe for concurrent use (the engine serializes
// it under the record lock). DispatchRound returns when every call has
// settled.
func (e *Executor) DispatchRound(ctx context.Context, r *continuation.Record, settle func(pc *call.PendingCall, out *call.Outcome)) {
	g, gctx := errgroup.WithContext(ctx)
	for _, pc := range r.Calls {
		if pc.Settled() {
			continue
		}
		g.Go(func() error {
			out := e.Dispatch(gctx, r, pc)
			settle(pc, out)
			// Per-call failures never preempt sibling calls.
			return nil
		})
	}
	// Goroutines always return nil; Wait is for joining only.
	_ = g.Wait()
}
