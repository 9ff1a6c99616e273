package continuation

import (
	"time"

	"github.com/alcabon/callout"
	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/id"
)

// State represents the lifecycle state of a continuation record.
type State string

const (
	// StateRegistered means the record is persisted but its calls have
	// not been dispatched yet.
	StateRegistered State = "registered"
	// StatePending means the calls are in flight and the record is
	// suspended waiting for them to settle.
	StatePending State = "pending"
	// StateResumed means the resume handler ran and returned a final
	// result. Terminal.
	StateResumed State = "resumed"
	// StateChained means the resume handler re-registered a child record;
	// ChildID points at it.
	StateChained State = "chained"
	// StateTimedOut means the record's deadline expired before all calls
	// settled. The resume handler still runs with the mixed outcomes;
	// the record stays timed_out only if the handler does not chain.
	StateTimedOut State = "timed_out"
	// StateCancelled means the record was explicitly cancelled before
	// resuming. The resume handler never runs. Terminal.
	StateCancelled State = "cancelled"
	// StateFailed means the handler errored or the chain depth limit was
	// exceeded; the record is archived. Terminal.
	StateFailed State = "failed"
)

// Terminal reports whether a state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateResumed, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// Record groups one or more pending calls under one token. The engine
// resumes a record exactly once: either after all its calls settle or
// after the deadline expires, whichever comes first. Per-call failures
// settle that call only and never preempt the siblings.
type Record struct {
	callout.Entity

	// ID is the token returned to the caller at registration.
	ID id.ContinuationID `json:"id"`

	// Handler names the registered resume handler for this record.
	Handler string `json:"handler"`

	// Payload is opaque caller state, passed through to the resume
	// handler unmodified. The broker never inspects it.
	Payload []byte `json:"payload,omitempty"`

	// Calls holds the pending calls in submission order. Outcomes are
	// delivered to the resume handler in this order regardless of
	// settlement order.
	Calls []*call.PendingCall `json:"calls"`

	State State `json:"state"`

	// ChainDepth counts how many chained rounds preceded this record.
	// The first registration is depth zero.
	ChainDepth int `json:"chain_depth"`

	// MaxChain bounds ChainDepth; exceeding it fails the record.
	MaxChain int `json:"max_chain"`

	// Deadline is the wall-clock time at which outstanding calls are
	// marked timed-out and the resume fires.
	Deadline time.Time `json:"deadline"`

	// ParentID links a chained record back to the record whose handler
	// created it. Nil for first registrations.
	ParentID id.ContinuationID `json:"parent_id,omitempty"`

	// ChildID links a chained record forward, set when State is chained.
	ChildID id.ContinuationID `json:"child_id,omitempty"`

	ScopeAppID string `json:"scope_app_id,omitempty"`
	ScopeOrgID string `json:"scope_org_id,omitempty"`

	// Result is the final payload returned by the resume handler, set
	// when State is resumed.
	Result []byte `json:"result,omitempty"`

	// LastError carries terminal failure detail (handler error, chain
	// limit) when State is failed.
	LastError string `json:"last_error,omitempty"`

	RegisteredAt time.Time  `json:"registered_at"`
	ResumedAt    *time.Time `json:"resumed_at,omitempty"`
}

// Find returns the pending call with the given label, or nil.
func (r *Record) Find(label string) *call.PendingCall {
	for _, pc := range r.Calls {
		if pc.Descriptor.Label == label {
			return pc
		}
	}
	return nil
}

// AllSettled reports whether every call has an outcome.
func (r *Record) AllSettled() bool {
	for _, pc := range r.Calls {
		if !pc.Settled() {
			return false
		}
	}
	return true
}

// Outcomes returns the settled outcomes in submission order. Unsettled
// calls yield nil entries; callers that need a complete set must check
// AllSettled first.
func (r *Record) Outcomes() []call.Outcome {
	out := make([]call.Outcome, 0, len(r.Calls))
	for _, pc := range r.Calls {
		if pc.Outcome != nil {
			out = append(out, *pc.Outcome)
		}
	}
	return out
}
