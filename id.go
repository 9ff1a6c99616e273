package callout

import "github.com/alcabon/callout/id"

// ID is the primary identifier type for all callout entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
