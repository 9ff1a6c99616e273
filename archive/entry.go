package archive

import (
	"time"

	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/id"
)

// Entry represents a continuation that failed terminally and was moved
// to the archive for inspection or replay.
type Entry struct {
	ID             id.ArchiveID      `json:"id"`
	ContinuationID id.ContinuationID `json:"continuation_id"`
	Handler        string            `json:"handler"`
	Payload        []byte            `json:"payload,omitempty"`
	Calls          []call.Descriptor `json:"calls"`
	Outcomes       []call.Outcome    `json:"outcomes,omitempty"`
	Error          string            `json:"error"`
	ChainDepth     int               `json:"chain_depth"`
	MaxChain       int               `json:"max_chain"`
	ScopeAppID     string            `json:"scope_app_id,omitempty"`
	ScopeOrgID     string            `json:"scope_org_id,omitempty"`
	FailedAt       time.Time         `json:"failed_at"`
	ReplayedAt     *time.Time        `json:"replayed_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
