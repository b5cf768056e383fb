package routing

import (
	"sync"

	"modex-hq/aegis/pkg/backend"
)

// VersionStats counts selections for one backend version.
type VersionStats struct {
	// Selections is the total number of times the version was selected.
	Selections int64 `json:"selections"`

	// StickyHits is how many selections came from the sticky cache.
	StickyHits int64 `json:"sticky_hits"`
}

// Stats accumulates per-version selection counters. Exposed on the admin
// routing endpoint so operators can verify a rollout is actually splitting
// traffic as configured.
type Stats struct {
	mu       sync.RWMutex
	counters map[backend.Kind]map[string]*VersionStats
}

// NewStats creates an empty stats accumulator.
func NewStats() *Stats {
	return &Stats{
		counters: make(map[backend.Kind]map[string]*VersionStats),
	}
}

// Record counts one selection.
func (s *Stats) Record(kind backend.Kind, version string, sticky bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, ok := s.counters[kind]
	if !ok {
		versions = make(map[string]*VersionStats)
		s.counters[kind] = versions
	}
	vs, ok := versions[version]
	if !ok {
		vs = &VersionStats{}
		versions[version] = vs
	}
	vs.Selections++
	if sticky {
		vs.StickyHits++
	}
}

// Snapshot returns a copy of all counters.
func (s *Stats) Snapshot() map[backend.Kind]map[string]VersionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[backend.Kind]map[string]VersionStats, len(s.counters))
	for kind, versions := range s.counters {
		copied := make(map[string]VersionStats, len(versions))
		for version, vs := range versions {
			copied[version] = *vs
		}
		snapshot[kind] = copied
	}
	return snapshot
}
