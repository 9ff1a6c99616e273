package stream

import (
	"sync"
	"sync/atomic"
)

// Subscriber is one consumer of continuation lifecycle traffic — a
// token holder watching its own continuation settle, or an operator
// tailing a handler's records. Delivery is lossy by contract: a
// subscriber that cannot keep up loses events rather than slowing the
// resume path. Two mechanisms bound the damage: a buffered inbox, and
// a credit balance the consumer replenishes as it drains events.
type Subscriber struct {
	id    string
	inbox chan *Event

	// credits is the number of events this subscriber may still be
	// handed before the consumer replenishes via AddCredits. At or
	// below zero, publishes to this subscriber drop.
	credits atomic.Int64

	// closed guards the inbox against publish-after-Close.
	closed atomic.Bool

	mu     sync.RWMutex
	topics map[string]struct{}
	filter func(*Event) bool
}

// NewSubscriber creates a subscriber whose inbox holds bufferSize
// events and which starts with the given credit balance.
func NewSubscriber(id string, bufferSize int, credits int64) *Subscriber {
	s := &Subscriber{
		id:     id,
		inbox:  make(chan *Event, bufferSize),
		topics: make(map[string]struct{}),
	}
	s.credits.Store(credits)
	return s
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// C is the channel the consumer drains lifecycle events from. It is
// closed by Close (and by broker shutdown).
func (s *Subscriber) C() <-chan *Event { return s.inbox }

// AddCredits grants the subscriber permission for n more deliveries.
// Consumers typically replenish in batches as they drain the inbox.
func (s *Subscriber) AddCredits(n int64) { s.credits.Add(n) }

// Credits reports the remaining delivery allowance.
func (s *Subscriber) Credits() int64 { return s.credits.Load() }

// SetFilter narrows delivery to events the predicate accepts. A
// filtered-out event costs no credit. Set before subscribing; a nil
// predicate delivers everything.
func (s *Subscriber) SetFilter(fn func(*Event) bool) {
	s.mu.Lock()
	s.filter = fn
	s.mu.Unlock()
}

// Topics returns the topics this subscriber is currently attached to.
func (s *Subscriber) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.topics))
	for name := range s.topics {
		names = append(names, name)
	}
	return names
}

func (s *Subscriber) addTopic(topic string) {
	s.mu.Lock()
	s.topics[topic] = struct{}{}
	s.mu.Unlock()
}

func (s *Subscriber) removeTopic(topic string) {
	s.mu.Lock()
	delete(s.topics, topic)
	s.mu.Unlock()
}

// send hands one event to the subscriber. It reports false when the
// event was dropped: subscriber closed, filtered out, out of credits,
// or inbox full. A drop never blocks the publishing goroutine — the
// resume path is on the other end of it.
func (s *Subscriber) send(evt *Event) bool {
	if s.closed.Load() {
		return false
	}

	s.mu.RLock()
	filter := s.filter
	s.mu.RUnlock()
	if filter != nil && !filter(evt) {
		return false
	}

	// Take one credit. A concurrent taker may drive the balance
	// negative momentarily; every failed taker puts its credit back.
	if s.credits.Add(-1) < 0 {
		s.credits.Add(1)
		return false
	}

	select {
	case s.inbox <- evt:
		return true
	default:
		s.credits.Add(1)
		return false
	}
}

// Close closes the inbox. Safe to call more than once; later sends
// report a drop.
func (s *Subscriber) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.inbox)
	}
}
