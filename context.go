package callout

import "context"

// Context is the execution context for callout resume handlers.
// It is an alias for context.Context; tenant scope is injected via the
// scope package on the stdlib context.
type Context = context.Context
