// Package archive provides the terminal-failure archive for
// continuations. When a record fails terminally — its resume handler
// errored or the chain depth limit was exceeded — the engine pushes an
// archive entry capturing everything needed for inspection and replay:
// the handler name, the last state payload, the settled outcomes, and
// the failure detail.
//
// Archived records can be replayed: Replay re-registers the archived
// state as a fresh continuation with chain depth zero.
package archive
