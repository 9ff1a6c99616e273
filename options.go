package callout

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Broker.
type Option func(*Broker) error

// Storer is the minimal store interface held by the Broker.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used in subsystem layers that don't create import
// cycles. Implementations satisfy store.Store which embeds all
// subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// runner is an internal interface for the engine's background lifecycle
// (deadline sweeper, rehydration).
type runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// hookEmitter is an internal interface for hook lifecycle events.
type hookEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Broker is the central coordinator for continuation registration,
// outbound call dispatch, and resumption.
//
// Create one with New() and functional options. The Broker holds
// references to subsystem components via internal interfaces to avoid
// import cycles; use engine.Build to wire everything together.
type Broker struct {
	config Config
	logger *slog.Logger
	store  Storer
	hooks  hookEmitter
	runner runner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Broker with the given options.
func New(opts ...Option) (*Broker, error) {
	b := &Broker{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Logger returns the broker's logger.
func (b *Broker) Logger() *slog.Logger { return b.logger }

// Store returns the broker's store.
func (b *Broker) Store() Storer { return b.store }

// Config returns a copy of the broker's configuration.
func (b *Broker) Config() Config { return b.config }

// SetRunner sets the engine runner (called by the engine package).
func (b *Broker) SetRunner(r runner) { b.runner = r }

// SetHooks sets the hook emitter (called by the engine package).
func (b *Broker) SetHooks(h hookEmitter) { b.hooks = h }

// Start begins background processing: rehydration of persisted
// continuations and the deadline sweeper.
func (b *Broker) Start(ctx context.Context) error {
	if b.runner == nil {
		return ErrNoStore
	}
	if err := b.runner.Start(ctx); err != nil {
		return err
	}
	b.started = true
	return nil
}

// Stop gracefully shuts down the broker.
func (b *Broker) Stop(ctx context.Context) error {
	if b.runner != nil && b.started {
		if err := b.runner.Stop(ctx); err != nil {
			b.logger.Error("engine stop error", "error", err)
		}
	}
	if b.hooks != nil {
		b.hooks.EmitShutdown(ctx)
	}
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}

// WithStore sets the persistence backend for the broker.
// The store must implement Storer at minimum; typically it will be a
// store.Store which embeds all subsystem store interfaces.
func WithStore(s Storer) Option {
	return func(b *Broker) error {
		b.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the broker.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) error {
		b.logger = l
		return nil
	}
}

// WithMaxCalls sets the maximum number of calls per continuation.
func WithMaxCalls(n int) Option {
	return func(b *Broker) error {
		b.config.MaxCalls = n
		return nil
	}
}

// WithMaxChainDepth sets the maximum number of chained rounds before the
// broker surfaces a terminal failure.
func WithMaxChainDepth(n int) Option {
	return func(b *Broker) error {
		b.config.MaxChainDepth = n
		return nil
	}
}

// WithDefaultDeadline sets the default wall-clock budget per
// continuation round.
func WithDefaultDeadline(d time.Duration) Option {
	return func(b *Broker) error {
		b.config.DefaultDeadline = d
		return nil
	}
}

// WithDefaultCallTimeout sets the default per-call deadline.
func WithDefaultCallTimeout(d time.Duration) Option {
	return func(b *Broker) error {
		b.config.DefaultCallTimeout = d
		return nil
	}
}

// WithSweepInterval sets how often the engine sweeps the store for
// expired continuations.
func WithSweepInterval(d time.Duration) Option {
	return func(b *Broker) error {
		b.config.SweepInterval = d
		return nil
	}
}
