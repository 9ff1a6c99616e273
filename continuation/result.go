package continuation

import (
	"encoding/json"
	"fmt"

	"github.com/alcabon/callout/call"
)

// ChainSpec describes the next suspension round a resume handler wants:
// a fresh state payload and a new set of call descriptors. The engine
// registers it as a child record with ChainDepth+1 and a fresh deadline.
type ChainSpec struct {
	State []byte
	Calls []call.Descriptor
}

// Result is the value a resume handler returns: either a final payload,
// which terminates the record, or a ChainSpec, which registers another
// round. The engine bounds chaining by the record's MaxChain.
type Result struct {
	final []byte
	chain *ChainSpec
}

// Final marshals v to JSON and wraps it as a terminating result.
func Final(v any) (Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Result{}, fmt.Errorf("continuation: marshal final result: %w", err)
	}
	return Result{final: data}, nil
}

// FinalRaw wraps a pre-serialized payload as a terminating result.
func FinalRaw(payload []byte) Result {
	return Result{final: payload}
}

// Chain marshals state to JSON and wraps it with the next round's call
// descriptors.
func Chain(state any, calls ...call.Descriptor) (Result, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return Result{}, fmt.Errorf("continuation: marshal chain state: %w", err)
	}
	return Result{chain: &ChainSpec{State: data, Calls: calls}}, nil
}

// ChainRaw wraps a pre-serialized state payload with the next round's
// call descriptors.
func ChainRaw(state []byte, calls ...call.Descriptor) Result {
	return Result{chain: &ChainSpec{State: state, Calls: calls}}
}

// IsChain reports whether the result requests another round.
func (r Result) IsChain() bool { return r.chain != nil }

// FinalPayload returns the terminating payload. Nil when IsChain.
func (r Result) FinalPayload() []byte { return r.final }

// ChainSpec returns the requested next round. Nil unless IsChain.
func (r Result) ChainSpec() *ChainSpec { return r.chain }
