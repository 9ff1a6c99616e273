package stream_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/id"
	"github.com/alcabon/callout/stream"
)

func testRecord() *continuation.Record {
	return &continuation.Record{
		ID:           id.NewContinuationID(),
		Handler:      "order-check",
		State:        continuation.StatePending,
		RegisteredAt: time.Now().UTC(),
	}
}

func drain(t *testing.T, sub *stream.Subscriber) *stream.Event {
	t.Helper()
	select {
	case evt := <-sub.C():
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// ──────────────────────────────────────────────────
// Topics
// ──────────────────────────────────────────────────

func TestTopicHelpers(t *testing.T) {
	if got := stream.ContinuationTopic("cont_abc"); got != "continuation:cont_abc" {
		t.Errorf("ContinuationTopic = %q", got)
	}
	if got := stream.HandlerTopic("order-check"); got != "handler:order-check" {
		t.Errorf("HandlerTopic = %q", got)
	}

	entityType, entityID := stream.ParseTopicEntity("continuation:cont_abc")
	if entityType != "continuation" || entityID != "cont_abc" {
		t.Errorf("ParseTopicEntity = (%q, %q)", entityType, entityID)
	}

	if err := stream.ValidateTopic("handler:x"); err != nil {
		t.Errorf("ValidateTopic(handler:x) = %v", err)
	}
	if err := stream.ValidateTopic("bogus:x"); err == nil {
		t.Error("ValidateTopic(bogus:x) succeeded")
	}
}

func TestTopicRegistry_PublishAndUnsubscribe(t *testing.T) {
	tr := stream.NewTopicRegistry()
	sub := stream.NewSubscriber("s1", 16, 100)

	tr.Subscribe("t1", sub)
	if got := tr.SubscriberCount("t1"); got != 1 {
		t.Errorf("SubscriberCount = %d, want 1", got)
	}

	delivered := tr.Publish("t1", &stream.Event{Type: stream.EventContinuationRegistered})
	if delivered != 1 {
		t.Errorf("Publish delivered %d, want 1", delivered)
	}

	tr.Unsubscribe("t1", "s1")
	delivered = tr.Publish("t1", &stream.Event{Type: stream.EventContinuationRegistered})
	if delivered != 0 {
		t.Errorf("Publish after unsubscribe delivered %d, want 0", delivered)
	}
}

// ──────────────────────────────────────────────────
// Subscriber flow control
// ──────────────────────────────────────────────────

func TestSubscriber_CreditsExhaust(t *testing.T) {
	tr := stream.NewTopicRegistry()
	sub := stream.NewSubscriber("s1", 16, 2)
	tr.Subscribe("t", sub)

	evt := &stream.Event{Type: stream.EventCallSettled}
	if got := tr.Publish("t", evt); got != 1 {
		t.Errorf("publish 1 delivered %d", got)
	}
	if got := tr.Publish("t", evt); got != 1 {
		t.Errorf("publish 2 delivered %d", got)
	}
	// Credits exhausted: dropped.
	if got := tr.Publish("t", evt); got != 0 {
		t.Errorf("publish 3 delivered %d, want 0 (no credits)", got)
	}

	sub.AddCredits(1)
	if got := tr.Publish("t", evt); got != 1 {
		t.Errorf("publish after AddCredits delivered %d, want 1", got)
	}
}

func TestSubscriber_Filter(t *testing.T) {
	tr := stream.NewTopicRegistry()
	sub := stream.NewSubscriber("s1", 16, 100)
	sub.SetFilter(func(evt *stream.Event) bool {
		return evt.Type == stream.EventContinuationResumed
	})
	tr.Subscribe("t", sub)

	if got := tr.Publish("t", &stream.Event{Type: stream.EventCallSettled}); got != 0 {
		t.Errorf("filtered event delivered %d, want 0", got)
	}
	if got := tr.Publish("t", &stream.Event{Type: stream.EventContinuationResumed}); got != 1 {
		t.Errorf("matching event delivered %d, want 1", got)
	}
}

func TestSubscriber_CloseIsIdempotent(t *testing.T) {
	sub := stream.NewSubscriber("s1", 1, 10)
	sub.Close()
	sub.Close() // must not panic

	if _, open := <-sub.C(); open {
		t.Error("channel still open after Close")
	}
}

// ──────────────────────────────────────────────────
// Broker event bridging
// ──────────────────────────────────────────────────

func TestBroker_PublishesToFirehoseAndScopedTopics(t *testing.T) {
	b := stream.NewBroker(slog.Default())
	rec := testRecord()

	firehose := b.Subscribe("fh", stream.TopicFirehose)
	perToken := b.Subscribe("tok", stream.ContinuationTopic(rec.ID.String()))
	perHandler := b.Subscribe("h", stream.HandlerTopic(rec.Handler))

	if err := b.OnContinuationRegistered(context.Background(), rec); err != nil {
		t.Fatalf("OnContinuationRegistered: %v", err)
	}

	for _, sub := range []*stream.Subscriber{firehose, perToken, perHandler} {
		evt := drain(t, sub)
		if evt.Type != stream.EventContinuationRegistered {
			t.Errorf("%s: Type = %q", sub.ID(), evt.Type)
		}

		var data stream.ContinuationEventData
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if data.ContinuationID != rec.ID.String() || data.Handler != "order-check" {
			t.Errorf("%s: data = %+v", sub.ID(), data)
		}
	}
}

func TestBroker_CallEvents(t *testing.T) {
	b := stream.NewBroker(slog.Default())
	rec := testRecord()
	sub := b.Subscribe("s", stream.TopicCalls)

	d := call.Get("ship", "https://api.example.com/ship")
	if err := b.OnCallDispatched(context.Background(), rec, &d); err != nil {
		t.Fatalf("OnCallDispatched: %v", err)
	}

	evt := drain(t, sub)
	if evt.Type != stream.EventCallDispatched {
		t.Errorf("Type = %q", evt.Type)
	}
	var data stream.CallEventData
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.Label != "ship" || data.Host != "api.example.com" {
		t.Errorf("data = %+v", data)
	}

	out := call.Succeeded("ship", 200, nil, 42*time.Millisecond)
	if err := b.OnCallSettled(context.Background(), rec, out); err != nil {
		t.Fatalf("OnCallSettled: %v", err)
	}
	evt = drain(t, sub)
	if evt.Type != stream.EventCallSettled {
		t.Errorf("Type = %q", evt.Type)
	}
}

func TestBroker_ChainedEventCarriesChild(t *testing.T) {
	b := stream.NewBroker(slog.Default())
	parent := testRecord()
	child := testRecord()
	sub := b.Subscribe("s", stream.TopicContinuations)

	if err := b.OnContinuationChained(context.Background(), parent, child, 2); err != nil {
		t.Fatalf("OnContinuationChained: %v", err)
	}

	evt := drain(t, sub)
	var data stream.ContinuationEventData
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.ChildID != child.ID.String() || data.ChainDepth != 2 {
		t.Errorf("data = %+v", data)
	}
}

func TestBroker_ShutdownClosesSubscribers(t *testing.T) {
	b := stream.NewBroker(slog.Default())
	sub := b.Subscribe("s", stream.TopicFirehose)

	if err := b.OnShutdown(context.Background()); err != nil {
		t.Fatalf("OnShutdown: %v", err)
	}

	select {
	case _, open := <-sub.C():
		if open {
			t.Error("subscriber channel still open after shutdown")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed after shutdown")
	}
}

func TestBroker_Stats(t *testing.T) {
	b := stream.NewBroker(slog.Default())
	b.Subscribe("a", stream.TopicFirehose)
	b.Subscribe("b", stream.TopicFirehose, stream.TopicCalls)

	stats := b.Stats()
	if stats.SubscriberCount != 2 {
		t.Errorf("SubscriberCount = %d, want 2", stats.SubscriberCount)
	}
	if stats.TopicCount < 2 {
		t.Errorf("TopicCount = %d, want >= 2", stats.TopicCount)
	}
}
