package continuation

import "time"

// Options configures per-record behavior such as deadline and chain
// depth. Zero values defer to the broker's Config defaults.
type Options struct {
	// Deadline is the wall-clock budget for one suspension round.
	Deadline time.Duration

	// MaxChain bounds the number of chained rounds.
	MaxChain int
}

// DefaultOptions returns Options that defer everything to the broker
// configuration.
func DefaultOptions() Options {
	return Options{}
}

// Option is a functional option for configuring a record registration.
type Option func(*Options)

// WithDeadline sets the wall-clock budget for the suspension round.
func WithDeadline(d time.Duration) Option {
	return func(o *Options) {
		o.Deadline = d
	}
}

// WithMaxChain sets the maximum number of chained rounds.
func WithMaxChain(n int) Option {
	return func(o *Options) {
		o.MaxChain = n
	}
}
