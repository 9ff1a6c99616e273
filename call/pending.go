package call

import "github.com/alcabon/callout/id"

// PendingCall associates one Descriptor with its outcome slot. It is
// owned exclusively by the engine: the Outcome pointer is nil until the
// call settles and is written exactly once, under the engine's record
// lock.
type PendingCall struct {
	ID         id.CallID  `json:"id"`
	Descriptor Descriptor `json:"descriptor"`
	Outcome    *Outcome   `json:"outcome,omitempty"`
}

// NewPending wraps a descriptor in an unsettled PendingCall.
func NewPending(d Descriptor) *PendingCall {
	return &PendingCall{ID: id.NewCallID(), Descriptor: d}
}

// Settled reports whether the call has an outcome.
func (p *PendingCall) Settled() bool { return p.Outcome != nil }
