package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"modex-hq/aegis/pkg/config"
)

// Invoker is the interface the rest of the engine uses to talk to one
// backend version. Client is the production implementation; tests substitute
// scripted fakes.
type Invoker interface {
	// Kind returns the backend kind this invoker serves.
	Kind() Kind

	// Version returns the backend version this invoker serves.
	Version() string

	// SupportsBatch reports whether batched calls are accepted.
	SupportsBatch() bool

	// Invoke performs a single call and always returns a terminal outcome.
	Invoke(ctx context.Context, call Call) Outcome

	// InvokeBatch performs a batched call, returning one terminal outcome
	// per input call in input order.
	InvokeBatch(ctx context.Context, calls []Call) []Outcome

	// Load asks the backend to load this version's model. The rollout
	// control path calls it before a version starts taking traffic.
	Load(ctx context.Context) error

	// Unload asks the backend to release this version's model after it
	// is retired from the rollout policy.
	Unload(ctx context.Context) error

	// HealthCheck probes the backend.
	HealthCheck(ctx context.Context) error

	// IsHealthy reports the current health verdict.
	IsHealthy() bool

	// GetHealth returns a health snapshot.
	GetHealth() Health

	// Close releases resources.
	Close() error
}

// Registry holds every configured backend client, keyed by kind and version.
// It is the lookup surface for routing, the batch assembler, and the health
// checker. Lookups are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	clients map[Kind]map[string]Invoker
	closed  bool
	logger  *slog.Logger
}

// NewRegistry builds a registry from the backend configuration, creating one
// client per configured version.
func NewRegistry(backends map[string]config.BackendConfig) (*Registry, error) {
	r := &Registry{
		clients: make(map[Kind]map[string]Invoker),
		logger:  slog.Default().With("component", "backend.registry"),
	}

	for name, backendCfg := range backends {
		kind := Kind(name)
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
		}

		versions := make(map[string]Invoker, len(backendCfg.Versions))
		for version, versionCfg := range backendCfg.Versions {
			versions[version] = NewClient(kind, version, versionCfg, versionCfg.SupportsBatch)
		}
		r.clients[kind] = versions

		r.logger.Info("backend kind registered",
			"kind", name,
			"versions", len(versions),
		)
	}

	return r, nil
}

// Register installs an invoker, replacing any existing one for the same kind
// and version. Used by tests and by dynamic backend management.
func (r *Registry) Register(inv Invoker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}

	kind := inv.Kind()
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if r.clients[kind] == nil {
		r.clients[kind] = make(map[string]Invoker)
	}
	r.clients[kind][inv.Version()] = inv
	return nil
}

// Client returns the invoker for the given kind and version.
func (r *Registry) Client(kind Kind, version string) (Invoker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	versions, ok := r.clients[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	inv, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownVersion, kind, version)
	}
	return inv, nil
}

// Versions returns the configured version names for a kind, sorted.
func (r *Registry) Versions(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := make([]string, 0, len(r.clients[kind]))
	for version := range r.clients[kind] {
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions
}

// Kinds returns the configured kinds in canonical order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var kinds []Kind
	for _, kind := range Kinds() {
		if _, ok := r.clients[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// HealthSnapshot returns a health snapshot for every registered backend,
// keyed "kind/version".
func (r *Registry) HealthSnapshot() map[string]Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]Health)
	for kind, versions := range r.clients {
		for version, inv := range versions {
			snapshot[fmt.Sprintf("%s/%s", kind, version)] = inv.GetHealth()
		}
	}
	return snapshot
}

// Close closes every registered client. Lookups fail after Close.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	for _, versions := range r.clients {
		for _, inv := range versions {
			if err := inv.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	r.logger.Info("backend registry closed")
	return firstErr
}
