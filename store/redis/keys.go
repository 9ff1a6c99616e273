package redis

// Redis key naming conventions for callout data.
// All keys are prefixed with "callout:" to avoid collisions.

const keyPrefix = "callout:"

// ── Continuation keys ──

// contKey returns the key for a record entity: callout:cont:{token}
func contKey(token string) string { return keyPrefix + "cont:" + token }

// contIDsKey is the Set tracking all record tokens for enumeration.
const contIDsKey = keyPrefix + "cont_ids"

// stateKey returns the Set key indexing tokens by state: callout:state:{state}
func stateKey(state string) string { return keyPrefix + "state:" + state }

// deadlinesKey is the Sorted Set of suspended tokens scored by deadline
// (unix milliseconds). Drives ExpiredContinuations.
const deadlinesKey = keyPrefix + "deadlines"

// ── Archive keys ──

// archiveKey returns the key for an archive entry: callout:archive:{id}
func archiveKey(id string) string { return keyPrefix + "archive:" + id }

// archiveIDsKey is the Set tracking all archive entry IDs for enumeration.
const archiveIDsKey = keyPrefix + "archive_ids"
