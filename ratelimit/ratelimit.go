// Package ratelimit controls per-host dispatch rate and concurrency for
// outbound calls. Each upstream host gets a token-bucket rate limiter
// and a concurrency semaphore; calls block in Acquire until both admit
// them or the context is cancelled.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-host behaviour such as rate limiting and concurrency.
type Config struct {
	// Host is the upstream host identifier (must match the call
	// descriptor URL's host component, including port if present).
	Host string

	// MaxConcurrency limits how many calls to this host may be in flight
	// simultaneously. Zero means no host-specific limit.
	MaxConcurrency int

	// RateLimit is the maximum sustained dispatches per second to this
	// host. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// hostState tracks runtime state for a single upstream host.
type hostState struct {
	config  Config
	limiter *rate.Limiter
	// slots is a semaphore channel bounding in-flight calls.
	// Nil when MaxConcurrency is zero.
	slots chan struct{}
}

// Manager controls per-host rate limiting and concurrency.
// It is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	hosts map[string]*hostState
}

// NewManager creates a Manager with the given host configurations.
// Hosts not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		hosts: make(map[string]*hostState, len(configs)),
	}
	for _, cfg := range configs {
		m.hosts[cfg.Host] = newHostState(cfg)
	}
	return m
}

func newHostState(cfg Config) *hostState {
	hs := &hostState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		hs.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.MaxConcurrency > 0 {
		hs.slots = make(chan struct{}, cfg.MaxConcurrency)
	}
	return hs
}

// Acquire blocks until the host's rate limiter and concurrency semaphore
// both admit the call, or until ctx is cancelled. A nil error means the
// caller holds a slot and MUST call Release when the call settles.
func (m *Manager) Acquire(ctx context.Context, host string) error {
	hs := m.state(host)
	if hs == nil {
		return nil
	}

	if hs.slots != nil {
		select {
		case hs.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if hs.limiter != nil {
		if err := hs.limiter.Wait(ctx); err != nil {
			// Give the slot back; the call never dispatched.
			if hs.slots != nil {
				<-hs.slots
			}
			return err
		}
	}

	return nil
}

// Release frees the concurrency slot for the host. Must be called
// exactly once per successful Acquire.
func (m *Manager) Release(host string) {
	hs := m.state(host)
	if hs == nil || hs.slots == nil {
		return
	}
	select {
	case <-hs.slots:
	default:
	}
}

// SetHostConfig dynamically updates (or creates) a host configuration.
// In-flight calls keep the slots they hold; new limits apply to
// subsequent acquires.
func (m *Manager) SetHostConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hosts[cfg.Host] = newHostState(cfg)
}

// InFlight returns the current number of in-flight calls for a host.
// Always zero for hosts without a concurrency limit.
func (m *Manager) InFlight(host string) int {
	hs := m.state(host)
	if hs == nil || hs.slots == nil {
		return 0
	}
	return len(hs.slots)
}

func (m *Manager) state(host string) *hostState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hosts[host]
}
