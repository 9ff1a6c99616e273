package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/alcabon/callout"
	"github.com/alcabon/callout/archive"
	"github.com/alcabon/callout/backoff"
	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/executor"
	"github.com/alcabon/callout/hook"
	"github.com/alcabon/callout/id"
	mw "github.com/alcabon/callout/middleware"
	"github.com/alcabon/callout/observability"
	"github.com/alcabon/callout/ratelimit"
	"github.com/alcabon/callout/scope"
)

// Engine wraps a Broker with typed subsystem access.
// Use Build() to create one from a Broker.
type Engine struct {
	b          *callout.Broker
	extensions *hook.Registry
	registry   *continuation.Registry
	contStore  continuation.Store
	archiveSvc *archive.Service
	bo         backoff.Strategy
	exec       *executor.Executor
	mws        []mw.Middleware
	client     *http.Client
	logger     *slog.Logger

	// Rate limit subsystem.
	limitConfigs []ratelimit.Config
	limits       *ratelimit.Manager

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// In-flight records. Guards exactly-once resumption: a record's
	// activeRecord is the single synchronization point for its calls'
	// settlements, its deadline timer, and explicit cancellation.
	activeMu sync.Mutex
	active   map[string]*activeRecord

	// Background lifecycle.
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e hook.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's dispatch chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithChainBackoff sets the delay strategy applied before a chained
// round's calls are dispatched. If not set, backoff.DefaultStrategy()
// (no delay) is used.
func WithChainBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithHTTPClient sets the HTTP client used for outbound calls.
func WithHTTPClient(c *http.Client) Option {
	return func(eng *Engine) {
		eng.client = c
	}
}

// WithHostConfig registers per-host rate limiting and concurrency
// configurations. Hosts not listed have no limits.
func WithHostConfig(configs ...ratelimit.Config) Option {
	return func(eng *Engine) {
		eng.limitConfigs = append(eng.limitConfigs, configs...)
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the global one.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the metrics middleware and the observability extension
// use this provider instead of the global one.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an existing Broker.
// The Broker's store must implement continuation.Store and archive.Store.
func Build(b *callout.Broker, opts ...Option) (*Engine, error) {
	logger := b.Logger()
	store := b.Store()

	if store == nil {
		return nil, callout.ErrNoStore
	}

	cs, ok := store.(continuation.Store)
	if !ok {
		return nil, fmt.Errorf("callout: store does not implement continuation.Store")
	}

	as, ok := store.(archive.Store)
	if !ok {
		return nil, fmt.Errorf("callout: store does not implement archive.Store")
	}

	eng := &Engine{
		b:          b,
		extensions: hook.NewRegistry(logger),
		registry:   continuation.NewRegistry(),
		contStore:  cs,
		client:     http.DefaultClient,
		logger:     logger,
		active:     make(map[string]*activeRecord),
		stopCh:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.bo == nil {
		eng.bo = backoff.DefaultStrategy()
	}

	eng.archiveSvc = archive.NewService(as)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracer := eng.tracerProvider.Tracer("github.com/alcabon/callout")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/alcabon/callout")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/alcabon/callout/observability")
		obsExt = observability.NewMetricsExtensionWithMeter(meter)
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	config := b.Config()

	// Build default middleware stack: recover → tracing → metrics → logging → scope → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Scope(),
		mw.Timeout(logger, config.DefaultCallTimeout),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	execOpts := []executor.Option{
		executor.WithClient(eng.client),
		executor.WithMiddleware(allMws...),
		executor.WithFallbackTimeout(config.DefaultCallTimeout),
	}

	if len(eng.limitConfigs) > 0 {
		eng.limits = ratelimit.NewManager(eng.limitConfigs...)
		execOpts = append(execOpts, executor.WithLimits(eng.limits))
	}

	eng.exec = executor.NewExecutor(eng.extensions, logger, execOpts...)

	// Wire back into the Broker.
	b.SetRunner(eng)
	b.SetHooks(eng.extensions)

	return eng, nil
}

// Register registers a typed resume-handler definition with the engine.
func Register[T any](eng *Engine, def *continuation.Definition[T]) {
	continuation.RegisterDefinition(eng.registry, def)
}

// Start registers a continuation with a typed state payload and
// dispatches its calls. It returns the record whose ID is the token the
// caller holds across the suspension.
func Start[T any](ctx context.Context, eng *Engine, handler string, state T, calls []call.Descriptor, opts ...continuation.Option) (*continuation.Record, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal state for handler %q: %w", handler, err)
	}

	return eng.StartRaw(ctx, handler, data, calls, opts...)
}

// StartRaw registers a continuation with a pre-serialized state payload.
// Validation failures surface synchronously, before anything is
// persisted or dispatched.
func (eng *Engine) StartRaw(ctx context.Context, handler string, payload []byte, calls []call.Descriptor, opts ...continuation.Option) (*continuation.Record, error) {
	rec, err := eng.buildRecord(ctx, handler, payload, calls, 0, id.Nil, opts...)
	if err != nil {
		return nil, err
	}

	if err := eng.contStore.RegisterContinuation(ctx, rec); err != nil {
		return nil, err
	}

	eng.extensions.EmitContinuationRegistered(ctx, rec)
	eng.launch(rec)

	return rec, nil
}

// buildRecord validates inputs and assembles a record ready for
// registration. chainDepth and parentID are zero for first
// registrations.
func (eng *Engine) buildRecord(ctx context.Context, handler string, payload []byte, calls []call.Descriptor, chainDepth int, parentID id.ContinuationID, opts ...continuation.Option) (*continuation.Record, error) {
	if _, ok := eng.registry.Get(handler); !ok {
		return nil, fmt.Errorf("%w: %q", callout.ErrHandlerNotFound, handler)
	}

	config := eng.b.Config()

	if len(calls) == 0 {
		return nil, callout.ErrNoCalls
	}
	if config.MaxCalls > 0 && len(calls) > config.MaxCalls {
		return nil, fmt.Errorf("%w: %d calls, limit %d", callout.ErrTooManyCalls, len(calls), config.MaxCalls)
	}

	seen := make(map[string]struct{}, len(calls))
	for i := range calls {
		if err := calls[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", callout.ErrInvalidDescriptor, err)
		}
		if _, dup := seen[calls[i].Label]; dup {
			return nil, fmt.Errorf("%w: %q", callout.ErrDuplicateLabel, calls[i].Label)
		}
		seen[calls[i].Label] = struct{}{}
	}

	// Resolve options: per-start opts > handler registration opts > config.
	resolved := continuation.DefaultOptions()
	if handlerOpts, ok := eng.registry.Opts(handler); ok {
		resolved = handlerOpts
	}
	for _, opt := range opts {
		opt(&resolved)
	}

	deadline := resolved.Deadline
	if deadline <= 0 {
		deadline = config.DefaultDeadline
	}
	maxChain := resolved.MaxChain
	if maxChain <= 0 {
		maxChain = config.MaxChainDepth
	}

	appID, orgID := scope.Capture(ctx)

	now := time.Now().UTC()
	rec := &continuation.Record{
		Entity:       callout.NewEntity(),
		ID:           id.NewContinuationID(),
		Handler:      handler,
		Payload:      payload,
		State:        continuation.StateRegistered,
		ChainDepth:   chainDepth,
		MaxChain:     maxChain,
		Deadline:     now.Add(deadline),
		ParentID:     parentID,
		ScopeAppID:   appID,
		ScopeOrgID:   orgID,
		RegisteredAt: now,
	}

	rec.Calls = make([]*call.PendingCall, 0, len(calls))
	for _, d := range calls {
		rec.Calls = append(rec.Calls, call.NewPending(d))
	}

	return rec, nil
}

// Continuation retrieves a record by token.
func (eng *Engine) Continuation(ctx context.Context, token id.ContinuationID) (*continuation.Record, error) {
	return eng.contStore.GetContinuation(ctx, token)
}

// Extensions returns the hook registry.
func (eng *Engine) Extensions() *hook.Registry { return eng.extensions }

// Registry returns the resume-handler registry.
func (eng *Engine) Registry() *continuation.Registry { return eng.registry }

// Broker returns the underlying Broker.
func (eng *Engine) Broker() *callout.Broker { return eng.b }

// ArchiveService returns the engine's archive service for replay and
// inspection of terminally failed continuations.
func (eng *Engine) ArchiveService() *archive.Service { return eng.archiveSvc }

// Limits returns the per-host rate limit manager, or nil if no host
// configs were provided.
func (eng *Engine) Limits() *ratelimit.Manager { return eng.limits }
