package routing

import (
	"time"

	"modex-hq/aegis/pkg/backend"
)

// VersionWeight assigns a percentage of traffic to one backend version.
type VersionWeight struct {
	// Version is the backend version name.
	Version string `json:"version"`

	// Weight is the percentage of traffic, 0-100. Weights for one kind
	// sum to exactly 100.
	Weight int `json:"weight"`

	// MinTrafficFloor is the minimum percentage this version must keep
	// receiving while it appears in the policy. It cannot exceed Weight;
	// the deterministic draw then guarantees the floor by construction.
	MinTrafficFloor int `json:"min_traffic_floor,omitempty"`
}

// Assignment is the result of a routing decision.
type Assignment struct {
	// Kind is the backend kind the assignment is for.
	Kind backend.Kind

	// Version is the selected backend version.
	Version string

	// PolicyVersion is the snapshot the assignment was drawn under.
	PolicyVersion int64

	// Sticky indicates the assignment came from the sticky cache rather
	// than a fresh draw.
	Sticky bool
}

// StickyEntry is one pinned client assignment.
type StickyEntry struct {
	// Version is the pinned backend version.
	Version string

	// PolicyVersion is the policy snapshot the pin was created under.
	// Pins from older snapshots are ignored: a policy change re-draws
	// every client.
	PolicyVersion int64

	// ExpiresAt is when the entry expires (zero = no expiry).
	ExpiresAt time.Time

	// CreatedAt is when the entry was created.
	CreatedAt time.Time

	// LastAccessedAt is when the entry was last read. Used for LRU eviction.
	LastAccessedAt time.Time

	// AccessCount is the number of times the entry was read.
	AccessCount int64
}
