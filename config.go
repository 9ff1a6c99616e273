package callout

import "time"

// Config holds configuration for the Broker.
type Config struct {
	// MaxCalls is the maximum number of call descriptors a single
	// continuation may carry. Registrations exceeding it are rejected.
	MaxCalls int

	// MaxChainDepth is the maximum number of chained rounds a
	// continuation may go through before the broker surfaces a terminal
	// failure instead of re-registering.
	MaxChainDepth int

	// DefaultDeadline is the wall-clock budget for a continuation round
	// when the registration does not set its own. On expiry, outstanding
	// calls are marked timed-out and the resume fires immediately.
	DefaultDeadline time.Duration

	// DefaultCallTimeout is the per-call deadline applied when a
	// descriptor does not set its own.
	DefaultCallTimeout time.Duration

	// SweepInterval is how often the engine scans the store for
	// continuations whose deadline passed without an in-process timer
	// (e.g. records rehydrated from a durable store).
	SweepInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxCalls:           3,
		MaxChainDepth:      3,
		DefaultDeadline:    2 * time.Minute,
		DefaultCallTimeout: 30 * time.Second,
		SweepInterval:      15 * time.Second,
		ShutdownTimeout:    30 * time.Second,
	}
}
