// Package backoff provides pluggable delay strategies for chained
// continuation rounds. When a resume handler re-registers (a retry), the
// engine asks the strategy how long to wait before dispatching the next
// round's calls. All strategies are safe for concurrent use (they are
// stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before dispatching chained round n.
type Strategy interface {
	// Delay returns how long to wait before round n (1-indexed).
	// Round 1 is the first chained round after the initial registration.
	Delay(round int) time.Duration
}

// ──────────────────────────────────────────────────
// None
// ──────────────────────────────────────────────────

// None dispatches chained rounds immediately.
type None struct{}

// NewNone creates a no-delay strategy.
func NewNone() *None { return &None{} }

// Delay always returns zero.
func (*None) Delay(_ int) time.Duration { return 0 }

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of round number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each round.
// Delay = min(Initial * 2^(round-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(round-1), capped at Max.
func (e *Exponential) Delay(round int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(round-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter applies full jitter to an exponential base.
// Delay = random value in [0, min(Initial * 2^(round-1), Max)].
// This prevents thundering herd when many chained rounds target the
// same slow upstream simultaneously.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(round-1), Max)].
func (e *ExponentialWithJitter) Delay(round int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(round-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the default chain backoff used by the engine:
// None. Retrying against a slow upstream is a handler decision; delaying
// it is opt-in.
func DefaultStrategy() Strategy {
	return NewNone()
}
