package routing

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/config"
)

// Policy is an immutable rollout policy snapshot. Once published it is never
// mutated; changes produce a new snapshot with a higher Version.
type Policy struct {
	// Version is the monotonically increasing snapshot number.
	Version int64

	// CreatedAt is when the snapshot was built.
	CreatedAt time.Time

	// weights holds the per-kind version weights, in configured order.
	weights map[backend.Kind][]VersionWeight

	// cumulative holds, per kind, the exclusive upper bound of each
	// version's slice of the [0,100) draw space. Parallel to weights.
	cumulative map[backend.Kind][]int
}

// Weights returns the version weights for a kind. The returned slice is
// shared with the snapshot and must not be modified.
func (p *Policy) Weights(kind backend.Kind) []VersionWeight {
	return p.weights[kind]
}

// Kinds returns the kinds the policy covers, in canonical order.
func (p *Policy) Kinds() []backend.Kind {
	var kinds []backend.Kind
	for _, kind := range backend.Kinds() {
		if _, ok := p.weights[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// versionFor maps a point in [0,100) to a version for the kind.
func (p *Policy) versionFor(kind backend.Kind, point int) (string, bool) {
	bounds, ok := p.cumulative[kind]
	if !ok {
		return "", false
	}
	for i, bound := range bounds {
		if point < bound {
			return p.weights[kind][i].Version, true
		}
	}
	return "", false
}

// contains reports whether the policy lists version under kind.
func (p *Policy) contains(kind backend.Kind, version string) bool {
	for _, vw := range p.weights[kind] {
		if vw.Version == version {
			return true
		}
	}
	return false
}

// newPolicy validates the weights and builds a snapshot. It returns an
// InvalidPolicyError listing every problem found.
func newPolicy(version int64, weights map[backend.Kind][]VersionWeight) (*Policy, error) {
	var problems []string

	cumulative := make(map[backend.Kind][]int, len(weights))
	for kind, vws := range weights {
		if !kind.Valid() {
			problems = append(problems, fmt.Sprintf("unknown backend kind %q", kind))
			continue
		}
		if len(vws) == 0 {
			problems = append(problems, fmt.Sprintf("%s: no versions listed", kind))
			continue
		}

		seen := make(map[string]bool, len(vws))
		total := 0
		bounds := make([]int, len(vws))
		for i, vw := range vws {
			if vw.Version == "" {
				problems = append(problems, fmt.Sprintf("%s[%d]: empty version name", kind, i))
			}
			if seen[vw.Version] {
				problems = append(problems, fmt.Sprintf("%s: duplicate version %q", kind, vw.Version))
			}
			seen[vw.Version] = true
			if vw.Weight < 0 || vw.Weight > 100 {
				problems = append(problems, fmt.Sprintf("%s/%s: weight %d out of range", kind, vw.Version, vw.Weight))
			}
			if vw.MinTrafficFloor < 0 || vw.MinTrafficFloor > vw.Weight {
				problems = append(problems, fmt.Sprintf("%s/%s: min traffic floor %d exceeds weight %d",
					kind, vw.Version, vw.MinTrafficFloor, vw.Weight))
			}
			total += vw.Weight
			bounds[i] = total
		}
		if total != 100 {
			problems = append(problems, fmt.Sprintf("%s: weights sum to %d, want 100", kind, total))
		}
		cumulative[kind] = bounds
	}

	if len(problems) > 0 {
		return nil, &InvalidPolicyError{Problems: problems}
	}

	return &Policy{
		Version:    version,
		CreatedAt:  time.Now(),
		weights:    weights,
		cumulative: cumulative,
	}, nil
}

// Store publishes policy snapshots. Readers load the current snapshot
// without locking; writers serialize through Install.
type Store struct {
	current atomic.Pointer[Policy]
	nextVer atomic.Int64
	logger  *slog.Logger
}

// NewStore creates a store with an initial policy built from weights.
func NewStore(weights map[backend.Kind][]VersionWeight) (*Store, error) {
	s := &Store{
		logger: slog.Default().With("component", "routing.store"),
	}
	if _, err := s.Install(weights); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStoreFromConfig creates a store from the routing configuration section.
func NewStoreFromConfig(cfg config.RoutingConfig) (*Store, error) {
	return NewStore(WeightsFromConfig(cfg.Policy))
}

// Current returns the current policy snapshot.
func (s *Store) Current() *Policy {
	return s.current.Load()
}

// Install validates weights and publishes them as the new current snapshot.
// On validation failure the previous snapshot stays active.
func (s *Store) Install(weights map[backend.Kind][]VersionWeight) (*Policy, error) {
	policy, err := newPolicy(s.nextVer.Add(1), weights)
	if err != nil {
		return nil, err
	}

	s.current.Store(policy)
	s.logger.Info("routing policy installed",
		"policy_version", policy.Version,
		"kinds", len(policy.weights),
	)
	return policy, nil
}

// Promote publishes a new snapshot that sends 100% of the kind's traffic to
// version. Other kinds keep their current weights. The version must already
// appear in the current policy for that kind, and no other version of the
// kind may hold a minimum traffic floor — retiring it would silently break
// that guarantee.
func (s *Store) Promote(kind backend.Kind, version string) (*Policy, error) {
	current := s.Current()
	if current == nil || current.weights[kind] == nil {
		return nil, &NoPolicyError{Kind: kind}
	}
	if !current.contains(kind, version) {
		return nil, fmt.Errorf("%w: %s/%s", ErrVersionNotInPolicy, kind, version)
	}
	for _, vw := range current.weights[kind] {
		if vw.Version != version && vw.MinTrafficFloor > 0 {
			return nil, fmt.Errorf("%w: %s/%s requires at least %d%%",
				ErrTrafficFloorViolated, kind, vw.Version, vw.MinTrafficFloor)
		}
	}

	weights := make(map[backend.Kind][]VersionWeight, len(current.weights))
	for k, vws := range current.weights {
		if k != kind {
			weights[k] = vws
			continue
		}
		weights[k] = []VersionWeight{{Version: version, Weight: 100}}
	}

	policy, err := s.Install(weights)
	if err != nil {
		return nil, err
	}

	s.logger.Info("version promoted",
		"kind", string(kind),
		"version", version,
		"policy_version", policy.Version,
	)
	return policy, nil
}

// WeightsFromConfig converts the YAML policy representation into routing
// weights.
func WeightsFromConfig(policy map[string][]config.VersionWeightConfig) map[backend.Kind][]VersionWeight {
	weights := make(map[backend.Kind][]VersionWeight, len(policy))
	for kind, vws := range policy {
		converted := make([]VersionWeight, len(vws))
		for i, vw := range vws {
			converted[i] = VersionWeight{
				Version:         vw.Version,
				Weight:          vw.Weight,
				MinTrafficFloor: vw.MinTrafficFloor,
			}
		}
		weights[backend.Kind(kind)] = converted
	}
	return weights
}
