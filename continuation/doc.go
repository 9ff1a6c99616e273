// Package continuation defines the continuation record — the unit the
// broker suspends and resumes — together with its lifecycle states, the
// typed resume-handler definition and registry, the Result a handler
// returns, and the persistence contract.
//
// A Record groups one or more pending calls under one token, carries an
// opaque caller state payload the broker never interprets, and names the
// resume handler to invoke once the calls settle. A record resumes at
// most once; chaining produces a fresh child record rather than reusing
// the parent.
package continuation
