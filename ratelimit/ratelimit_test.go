package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alcabon/callout/ratelimit"
)

func TestAcquire_UnconfiguredHostIsUnlimited(t *testing.T) {
	m := ratelimit.NewManager()

	for range 100 {
		if err := m.Acquire(context.Background(), "anything.example.com"); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
}

func TestAcquire_ConcurrencyCap(t *testing.T) {
	m := ratelimit.NewManager(ratelimit.Config{
		Host:           "api.example.com",
		MaxConcurrency: 2,
	})

	ctx := context.Background()
	if err := m.Acquire(ctx, "api.example.com"); err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	if err := m.Acquire(ctx, "api.example.com"); err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}
	if got := m.InFlight("api.example.com"); got != 2 {
		t.Errorf("InFlight = %d, want 2", got)
	}

	// Third acquire must block until a slot is released.
	acquired := make(chan struct{})
	go func() {
		if err := m.Acquire(ctx, "api.example.com"); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("third Acquire succeeded while both slots held")
	case <-time.After(50 * time.Millisecond):
	}

	m.Release("api.example.com")

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("third Acquire still blocked after Release")
	}
}

func TestAcquire_ContextCancellation(t *testing.T) {
	m := ratelimit.NewManager(ratelimit.Config{
		Host:           "slow.example.com",
		MaxConcurrency: 1,
	})

	if err := m.Acquire(context.Background(), "slow.example.com"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := m.Acquire(ctx, "slow.example.com"); err == nil {
		t.Error("Acquire succeeded with slot held and cancelled context")
	}
}

func TestAcquire_RateLimit(t *testing.T) {
	// 10 rps with burst 1: second acquire should take ~100ms.
	m := ratelimit.NewManager(ratelimit.Config{
		Host:      "limited.example.com",
		RateLimit: 10,
		RateBurst: 1,
	})

	ctx := context.Background()
	start := time.Now()
	for range 2 {
		if err := m.Acquire(ctx, "limited.example.com"); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		m.Release("limited.example.com")
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("2 acquires at 10rps took %v, expected rate limiting delay", elapsed)
	}
}

func TestConcurrentAcquireRelease(t *testing.T) {
	m := ratelimit.NewManager(ratelimit.Config{
		Host:           "busy.example.com",
		MaxConcurrency: 4,
	})

	var peak atomic.Int32
	var current atomic.Int32
	var wg sync.WaitGroup

	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Acquire(context.Background(), "busy.example.com"); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			current.Add(-1)
			m.Release("busy.example.com")
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > 4 {
		t.Errorf("peak concurrency = %d, want <= 4", p)
	}
	if got := m.InFlight("busy.example.com"); got != 0 {
		t.Errorf("InFlight after all released = %d, want 0", got)
	}
}

func TestSetHostConfig_AddsLimitsAtRuntime(t *testing.T) {
	m := ratelimit.NewManager()
	m.SetHostConfig(ratelimit.Config{Host: "late.example.com", MaxConcurrency: 1})

	ctx := context.Background()
	if err := m.Acquire(ctx, "late.example.com"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	blocked, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := m.Acquire(blocked, "late.example.com"); err == nil {
		t.Error("Acquire ignored config added via SetHostConfig")
	}
}
