// Package stream provides a real-time event broker for callout
// lifecycle events. It bridges the hook.Extension system to connected
// clients via topic-based pub/sub: dashboards or callers holding a
// token can watch a suspended continuation settle call by call.
package stream

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Continuation events.
	EventContinuationRegistered EventType = "continuation.registered"
	EventContinuationResumed    EventType = "continuation.resumed"
	EventContinuationChained    EventType = "continuation.chained"
	EventContinuationTimedOut   EventType = "continuation.timed_out"
	EventContinuationCancelled  EventType = "continuation.cancelled"
	EventContinuationFailed     EventType = "continuation.failed"
	EventContinuationArchived   EventType = "continuation.archived"

	// Call events.
	EventCallDispatched EventType = "call.dispatched"
	EventCallSettled    EventType = "call.settled"
)

// Event is the envelope sent to subscribers on a topic channel.
type Event struct {
	// Type identifies the lifecycle event.
	Type EventType `json:"type"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"ts"`

	// Topic is the channel this event was published on.
	Topic string `json:"topic"`

	// Data is the event-specific payload.
	Data json.RawMessage `json:"data"`
}

// ContinuationEventData is the payload for continuation lifecycle events.
type ContinuationEventData struct {
	ContinuationID string `json:"continuation_id"`
	Handler        string `json:"handler"`
	State          string `json:"state"`
	ChainDepth     int    `json:"chain_depth,omitempty"`
	ChildID        string `json:"child_id,omitempty"`
	ScopeAppID     string `json:"scope_app_id,omitempty"`
	ScopeOrgID     string `json:"scope_org_id,omitempty"`
	ElapsedMs      int64  `json:"elapsed_ms,omitempty"`
	Error          string `json:"error,omitempty"`
}

// CallEventData is the payload for call lifecycle events.
type CallEventData struct {
	ContinuationID string `json:"continuation_id"`
	Handler        string `json:"handler"`
	Label          string `json:"label"`
	Host           string `json:"host,omitempty"`
	Status         string `json:"status,omitempty"`
	HTTPStatus     int    `json:"http_status,omitempty"`
	ElapsedMs      int64  `json:"elapsed_ms,omitempty"`
	Error          string `json:"error,omitempty"`
}
