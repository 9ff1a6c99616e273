// Package observability provides a hook extension that records
// system-wide continuation lifecycle metrics via OpenTelemetry.
//
// Register it with the engine to automatically track registration
// rates, resume counts, chain depth, timeout rates, cancellations, and
// archive pushes. Per-call dispatch metrics are handled separately by
// the metrics middleware.
package observability
