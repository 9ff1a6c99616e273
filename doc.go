// Package callout provides an external-call suspension/resumption broker
// for Go. A caller registers a continuation — one or more outbound HTTP
// call descriptors, an opaque state payload, and a named resume handler —
// and receives an opaque token immediately, without blocking on network
// I/O. The calls execute asynchronously; when all of them settle (or the
// record's deadline expires first), the resume handler is invoked exactly
// once with the settled outcomes in submission order.
//
// # Quick Start
//
//	b, err := callout.New(
//	    callout.WithStore(memory.New()),
//	    callout.WithMaxChainDepth(3),
//	)
//
// # Architecture
//
// Callout follows a composable store pattern where each subsystem
// (continuation, archive) defines its own store interface. A single
// backend implements all of them. The engine package wires the handler
// registry, the outbound executor, and the lifecycle hook registry into
// a running broker.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package callout
