// Package backends provides scripted in-memory backend invokers for tests.
package backends

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"modex-hq/aegis/pkg/backend"
)

// Fake is a scripted backend.Invoker. Tests set Script to control the outcome
// of every call; the zero script returns a failure outcome.
type Fake struct {
	BackendKind    backend.Kind
	BackendVersion string
	Batch          bool

	// Script produces the outcome for one call. When nil, calls fail.
	Script func(call backend.Call) backend.Outcome

	// Healthy is the health verdict reported to the registry.
	Healthy bool

	// HealthErr is returned by HealthCheck when set.
	HealthErr error

	// LoadErr is returned by Load when set.
	LoadErr error

	// UnloadErr is returned by Unload when set.
	UnloadErr error

	mu         sync.Mutex
	calls      []backend.Call
	batchSizes []int
	loads      int
	unloads    int
	closed     atomic.Bool
}

// NewFake creates a healthy fake for one kind and version.
func NewFake(kind backend.Kind, version string) *Fake {
	return &Fake{
		BackendKind:    kind,
		BackendVersion: version,
		Healthy:        true,
	}
}

func (f *Fake) Kind() backend.Kind  { return f.BackendKind }
func (f *Fake) Version() string     { return f.BackendVersion }
func (f *Fake) SupportsBatch() bool { return f.Batch }

func (f *Fake) Invoke(ctx context.Context, call backend.Call) backend.Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.Script == nil {
		return backend.Failure(f.BackendKind, f.BackendVersion, backend.ErrUnknownKind, 0)
	}
	return f.Script(call)
}

func (f *Fake) InvokeBatch(ctx context.Context, calls []backend.Call) []backend.Outcome {
	f.mu.Lock()
	f.batchSizes = append(f.batchSizes, len(calls))
	f.mu.Unlock()

	outcomes := make([]backend.Outcome, len(calls))
	for i, call := range calls {
		outcomes[i] = f.Invoke(ctx, call)
	}
	return outcomes
}

func (f *Fake) Load(ctx context.Context) error {
	f.mu.Lock()
	f.loads++
	f.mu.Unlock()
	return f.LoadErr
}

func (f *Fake) Unload(ctx context.Context) error {
	f.mu.Lock()
	f.unloads++
	f.mu.Unlock()
	return f.UnloadErr
}

func (f *Fake) HealthCheck(ctx context.Context) error { return f.HealthErr }
func (f *Fake) IsHealthy() bool                       { return f.Healthy }

func (f *Fake) GetHealth() backend.Health {
	return backend.Health{
		IsHealthy: f.Healthy,
		LastError: f.HealthErr,
	}
}

func (f *Fake) Close() error {
	f.closed.Store(true)
	return nil
}

// Calls returns every call seen so far.
func (f *Fake) Calls() []backend.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.Call(nil), f.calls...)
}

// BatchSizes returns the size of every batch dispatched to InvokeBatch.
func (f *Fake) BatchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.batchSizes...)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool { return f.closed.Load() }

// Loads returns the number of Load calls received.
func (f *Fake) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

// Unloads returns the number of Unload calls received.
func (f *Fake) Unloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unloads
}

// ApproveAll scripts the fake to return a benign payload for its kind.
func (f *Fake) ApproveAll() *Fake {
	f.Script = func(call backend.Call) backend.Outcome {
		return backend.Success(f.BackendKind, f.BackendVersion, BenignPayload(f.BackendKind), 0.99, time.Millisecond)
	}
	return f
}

// BenignPayload returns a payload for kind that interprets to an APPROVE vote
// under default thresholds.
func BenignPayload(kind backend.Kind) any {
	switch kind {
	case backend.KindClassifier:
		return &backend.ClassifierResult{
			ClassID:    0,
			Label:      "general",
			Scores:     []float64{0.97, 0.02, 0.01},
			Confidence: 0.97,
		}
	case backend.KindSafety:
		return &backend.SafetyResult{
			Scores:     []float64{0.97, 0.01, 0.01, 0.005, 0.005},
			IsSafe:     true,
			RiskLevel:  "LOW",
			Confidence: 0.97,
		}
	case backend.KindOCR:
		return &backend.OCRResult{
			Texts:       []string{"hello"},
			Confidences: []float64{0.95},
			Language:    "en",
		}
	default:
		return nil
	}
}
