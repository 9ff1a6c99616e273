// Package call defines the outbound call model: the immutable Descriptor
// a caller submits, the Outcome a settled call produces, and the
// PendingCall that pairs the two inside a continuation record.
//
// Outcomes are values, never errors: a failed or timed-out call settles
// with a failure outcome so that no exception-style control flow crosses
// the suspension boundary. The resume handler inspects outcomes and
// decides what to do with them.
package call
