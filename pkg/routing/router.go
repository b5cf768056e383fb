package routing

import (
	"hash/fnv"
	"log/slog"

	"modex-hq/aegis/pkg/backend"
)

// Router performs version selection. The request path is lock-free: it loads
// the current policy snapshot, hashes the request ID into the weight space,
// and walks the snapshot's precomputed ranges.
type Router struct {
	store  *Store
	sticky *StickyCache // nil when sticky routing is disabled
	stats  *Stats
	logger *slog.Logger
}

// NewRouter creates a router over the policy store. Pass a nil sticky cache
// to disable sticky routing.
func NewRouter(store *Store, sticky *StickyCache) *Router {
	return &Router{
		store:  store,
		sticky: sticky,
		stats:  NewStats(),
		logger: slog.Default().With("component", "routing.router"),
	}
}

// Store returns the underlying policy store.
func (r *Router) Store() *Store {
	return r.store
}

// Stats returns the selection counters.
func (r *Router) Stats() *Stats {
	return r.stats
}

// Select picks the backend version for one request. The draw is a pure
// function of (requestID, kind, policy snapshot): retries of the same
// request land on the same version. When sticky routing is enabled and
// clientKey is non-empty, a pin created under the current snapshot wins
// over the draw.
func (r *Router) Select(kind backend.Kind, requestID, clientKey string) (Assignment, error) {
	return r.selectFrom(r.store.Current(), kind, requestID, clientKey)
}

// SelectAll resolves every canonical kind against a single policy snapshot,
// loaded once at the start. A policy install landing mid-call never splits
// one request's assignments across two snapshots.
func (r *Router) SelectAll(requestID, clientKey string) (map[backend.Kind]Assignment, error) {
	policy := r.store.Current()

	assignments := make(map[backend.Kind]Assignment, len(backend.Kinds()))
	for _, kind := range backend.Kinds() {
		assignment, err := r.selectFrom(policy, kind, requestID, clientKey)
		if err != nil {
			return nil, err
		}
		assignments[kind] = assignment
	}
	return assignments, nil
}

// selectFrom picks the version for one kind within the given snapshot.
func (r *Router) selectFrom(policy *Policy, kind backend.Kind, requestID, clientKey string) (Assignment, error) {
	if policy == nil || policy.weights[kind] == nil {
		return Assignment{}, &NoPolicyError{Kind: kind}
	}

	if r.sticky != nil && clientKey != "" {
		cacheKey := string(kind) + ":" + clientKey
		if version, ok := r.sticky.Get(cacheKey, policy.Version); ok {
			r.stats.Record(kind, version, true)
			return Assignment{
				Kind:          kind,
				Version:       version,
				PolicyVersion: policy.Version,
				Sticky:        true,
			}, nil
		}

		version, ok := policy.versionFor(kind, draw(requestID, kind))
		if !ok {
			return Assignment{}, &NoPolicyError{Kind: kind}
		}
		r.sticky.Set(cacheKey, version, policy.Version)
		r.stats.Record(kind, version, false)
		return Assignment{
			Kind:          kind,
			Version:       version,
			PolicyVersion: policy.Version,
		}, nil
	}

	version, ok := policy.versionFor(kind, draw(requestID, kind))
	if !ok {
		return Assignment{}, &NoPolicyError{Kind: kind}
	}
	r.stats.Record(kind, version, false)
	return Assignment{
		Kind:          kind,
		Version:       version,
		PolicyVersion: policy.Version,
	}, nil
}

// draw hashes the request ID and kind into the [0,100) weight space.
// FNV-1a keeps the draw cheap and stable across processes.
func draw(requestID string, kind backend.Kind) int {
	h := fnv.New64a()
	h.Write([]byte(requestID))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	return int(h.Sum64() % 100)
}
