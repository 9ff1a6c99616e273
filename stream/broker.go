package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/hook"
)

// Compile-time interface checks.
var (
	_ hook.Extension              = (*Broker)(nil)
	_ hook.ContinuationRegistered = (*Broker)(nil)
	_ hook.CallDispatched         = (*Broker)(nil)
	_ hook.CallSettled            = (*Broker)(nil)
	_ hook.ContinuationResumed    = (*Broker)(nil)
	_ hook.ContinuationChained    = (*Broker)(nil)
	_ hook.ContinuationTimedOut   = (*Broker)(nil)
	_ hook.ContinuationCancelled  = (*Broker)(nil)
	_ hook.ContinuationFailed     = (*Broker)(nil)
	_ hook.ContinuationArchived   = (*Broker)(nil)
	_ hook.Shutdown               = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credits for new subscribers.
const DefaultCredits int64 = 1000

// Broker is the real-time stream broker. It implements the
// hook.Extension interface to receive lifecycle events and fans them
// out to subscribers via topic-based pub/sub.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	// Subscriber management.
	subscribers sync.Map // subscriberID → *Subscriber

	// Metrics.
	totalPublished atomic.Int64
	totalDropped   atomic.Int64

	// Config.
	bufferSize     int
	defaultCredits int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// WithDefaultCredits sets the initial credits for new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.defaultCredits = credits }
}

// NewBroker creates a new stream broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	b := &Broker{
		topics:         NewTopicRegistry(),
		logger:         logger,
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements hook.Extension.
func (b *Broker) Name() string { return "stream-broker" }

// Topics returns the topic registry for external use (e.g. a websocket
// gateway layered on top).
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe creates a new subscriber on the given topics.
func (b *Broker) Subscribe(subscriberID string, topics ...string) *Subscriber {
	sub := NewSubscriber(subscriberID, b.bufferSize, b.defaultCredits)
	b.subscribers.Store(subscriberID, sub)
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// SubscribeTo adds an existing subscriber to additional topics.
func (b *Broker) SubscribeTo(subscriberID string, topics ...string) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return
	}
	sub := val.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
}

// Unsubscribe removes a subscriber from specific topics.
func (b *Broker) Unsubscribe(subscriberID string, topics ...string) {
	for _, topic := range topics {
		b.topics.Unsubscribe(topic, subscriberID)
	}
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	if val, ok := b.subscribers.LoadAndDelete(subscriberID); ok {
		val.(*Subscriber).Close() //nolint:errcheck // sync.Map always stores *Subscriber
	}
}

// GetSubscriber returns a subscriber by ID.
func (b *Broker) GetSubscriber(subscriberID string) (*Subscriber, bool) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return nil, false
	}
	return val.(*Subscriber), true //nolint:errcheck // sync.Map always stores *Subscriber
}

// Stats returns broker statistics.
func (b *Broker) Stats() BrokerStats {
	count := 0
	b.subscribers.Range(func(_, _ any) bool {
		count++
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
		TotalDropped:    b.totalDropped.Load(),
	}
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// publish creates an event and broadcasts it to all matching topics.
func (b *Broker) publish(evt *Event, handler string) {
	topics := resolveTopics(evt, handler)
	delivered := b.topics.Broadcast(topics, evt)
	b.totalPublished.Add(int64(delivered))
}

// mustMarshal marshals data to JSON, panicking on error (programming error).
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("stream: marshal event data: " + err.Error())
	}
	return data
}

func continuationData(r *continuation.Record) ContinuationEventData {
	return ContinuationEventData{
		ContinuationID: r.ID.String(),
		Handler:        r.Handler,
		State:          string(r.State),
		ChainDepth:     r.ChainDepth,
		ScopeAppID:     r.ScopeAppID,
		ScopeOrgID:     r.ScopeOrgID,
	}
}

func (b *Broker) publishContinuation(t EventType, r *continuation.Record, mutate func(*ContinuationEventData)) {
	data := continuationData(r)
	if mutate != nil {
		mutate(&data)
	}
	b.publish(&Event{
		Type:      t,
		Timestamp: time.Now().UTC(),
		Topic:     ContinuationTopic(r.ID.String()),
		Data:      mustMarshal(data),
	}, r.Handler)
}

// ── Continuation lifecycle hooks ────────────────────

func (b *Broker) OnContinuationRegistered(_ context.Context, r *continuation.Record) error {
	b.publishContinuation(EventContinuationRegistered, r, nil)
	return nil
}

func (b *Broker) OnContinuationResumed(_ context.Context, r *continuation.Record, elapsed time.Duration) error {
	b.publishContinuation(EventContinuationResumed, r, func(d *ContinuationEventData) {
		d.ElapsedMs = elapsed.Milliseconds()
	})
	return nil
}

func (b *Broker) OnContinuationChained(_ context.Context, parent, child *continuation.Record, depth int) error {
	b.publishContinuation(EventContinuationChained, parent, func(d *ContinuationEventData) {
		d.ChainDepth = depth
		d.ChildID = child.ID.String()
	})
	return nil
}

func (b *Broker) OnContinuationTimedOut(_ context.Context, r *continuation.Record) error {
	b.publishContinuation(EventContinuationTimedOut, r, nil)
	return nil
}

func (b *Broker) OnContinuationCancelled(_ context.Context, r *continuation.Record) error {
	b.publishContinuation(EventContinuationCancelled, r, nil)
	return nil
}

func (b *Broker) OnContinuationFailed(_ context.Context, r *continuation.Record, recErr error) error {
	b.publishContinuation(EventContinuationFailed, r, func(d *ContinuationEventData) {
		d.Error = recErr.Error()
	})
	return nil
}

func (b *Broker) OnContinuationArchived(_ context.Context, r *continuation.Record, recErr error) error {
	b.publishContinuation(EventContinuationArchived, r, func(d *ContinuationEventData) {
		d.Error = recErr.Error()
	})
	return nil
}

// ── Call lifecycle hooks ────────────────────────────

func (b *Broker) OnCallDispatched(_ context.Context, r *continuation.Record, d *call.Descriptor) error {
	b.publish(&Event{
		Type:      EventCallDispatched,
		Timestamp: time.Now().UTC(),
		Topic:     ContinuationTopic(r.ID.String()),
		Data: mustMarshal(CallEventData{
			ContinuationID: r.ID.String(),
			Handler:        r.Handler,
			Label:          d.Label,
			Host:           d.Host(),
		}),
	}, r.Handler)
	return nil
}

func (b *Broker) OnCallSettled(_ context.Context, r *continuation.Record, o *call.Outcome) error {
	b.publish(&Event{
		Type:      EventCallSettled,
		Timestamp: time.Now().UTC(),
		Topic:     ContinuationTopic(r.ID.String()),
		Data: mustMarshal(CallEventData{
			ContinuationID: r.ID.String(),
			Handler:        r.Handler,
			Label:          o.Label,
			Status:         string(o.Status),
			HTTPStatus:     o.HTTPStatus,
			ElapsedMs:      o.Elapsed.Milliseconds(),
			Error:          o.Error,
		}),
	}, r.Handler)
	return nil
}

// ── Shutdown ────────────────────────────────────────

func (b *Broker) OnShutdown(_ context.Context) error {
	b.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
		sub.Close()
		b.subscribers.Delete(key)
		return true
	})
	b.logger.Info("stream broker shut down")
	return nil
}
