// Package engine wires all callout subsystems together. It creates the
// hook registry, handler registry, middleware chain, HTTP executor, and
// archive service, and provides the Start/Cancel/Replay operations.
//
// This package exists to break the import cycle: the root callout
// package defines Entity (imported by continuation, archive, etc.) and
// so cannot import those packages back. The engine package sits above
// all subsystem packages and below the application layer.
//
// # Lifecycle
//
// Start validates the call set, persists a record in registered state,
// and dispatches its calls concurrently. The record then suspends: the
// caller holds only the token. The engine resumes the record exactly
// once — when every call has settled, or when the record's deadline
// expires, whichever comes first. On expiry, outstanding calls are
// marked timed-out and the resume handler runs immediately with the
// mixed outcomes. A per-call failure settles that call only; sibling
// calls always run to their own settlement.
//
// The resume handler decides what happens next: a final result
// terminates the record, a chain spec registers a fresh round with
// ChainDepth+1. Chaining past the record's MaxChain fails the record
// terminally and pushes it to the archive.
package engine
