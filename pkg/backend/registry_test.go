package backend

import (
	"context"
	"errors"
	"testing"
)

// stubInvoker is the minimal Invoker used for registry lookups.
type stubInvoker struct {
	kind    Kind
	version string
	healthy bool
	closed  bool
}

func (s *stubInvoker) Kind() Kind          { return s.kind }
func (s *stubInvoker) Version() string     { return s.version }
func (s *stubInvoker) SupportsBatch() bool { return false }

func (s *stubInvoker) Invoke(ctx context.Context, call Call) Outcome {
	return Success(s.kind, s.version, nil, 1.0, 0)
}

func (s *stubInvoker) InvokeBatch(ctx context.Context, calls []Call) []Outcome {
	outcomes := make([]Outcome, len(calls))
	for i, call := range calls {
		outcomes[i] = s.Invoke(ctx, call)
	}
	return outcomes
}

func (s *stubInvoker) Load(ctx context.Context) error   { return nil }
func (s *stubInvoker) Unload(ctx context.Context) error { return nil }

func (s *stubInvoker) HealthCheck(ctx context.Context) error { return nil }
func (s *stubInvoker) IsHealthy() bool                       { return s.healthy }
func (s *stubInvoker) GetHealth() Health                     { return Health{IsHealthy: s.healthy} }
func (s *stubInvoker) Close() error {
	s.closed = true
	return nil
}

func newTestRegistry(t *testing.T, invokers ...*stubInvoker) *Registry {
	t.Helper()
	r, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	for _, inv := range invokers {
		if err := r.Register(inv); err != nil {
			t.Fatalf("Register(%s/%s) failed: %v", inv.kind, inv.version, err)
		}
	}
	return r
}

func TestRegistryClientLookup(t *testing.T) {
	inv := &stubInvoker{kind: KindSafety, version: "v1", healthy: true}
	r := newTestRegistry(t, inv)
	defer r.Close()

	got, err := r.Client(KindSafety, "v1")
	if err != nil {
		t.Fatalf("Client failed: %v", err)
	}
	if got != Invoker(inv) {
		t.Error("lookup returned a different invoker")
	}

	if _, err := r.Client(KindClassifier, "v1"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unregistered kind: err = %v, want ErrUnknownKind", err)
	}
	if _, err := r.Client(KindSafety, "v9"); !errors.Is(err, ErrUnknownVersion) {
		t.Errorf("unregistered version: err = %v, want ErrUnknownVersion", err)
	}
}

func TestRegistryRejectsUnknownKind(t *testing.T) {
	r := newTestRegistry(t)
	defer r.Close()

	err := r.Register(&stubInvoker{kind: Kind("sentiment"), version: "v1"})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}

func TestRegistryVersionsSorted(t *testing.T) {
	r := newTestRegistry(t,
		&stubInvoker{kind: KindClassifier, version: "v2"},
		&stubInvoker{kind: KindClassifier, version: "v10"},
		&stubInvoker{kind: KindClassifier, version: "v1"},
	)
	defer r.Close()

	got := r.Versions(KindClassifier)
	want := []string{"v1", "v10", "v2"}
	if len(got) != len(want) {
		t.Fatalf("got %d versions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("versions[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryKindsCanonicalOrder(t *testing.T) {
	// Registered out of order; Kinds must still report canonical order.
	r := newTestRegistry(t,
		&stubInvoker{kind: KindOCR, version: "v1"},
		&stubInvoker{kind: KindClassifier, version: "v1"},
		&stubInvoker{kind: KindSafety, version: "v1"},
	)
	defer r.Close()

	got := r.Kinds()
	want := []Kind{KindClassifier, KindSafety, KindOCR}
	if len(got) != len(want) {
		t.Fatalf("got %d kinds, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kinds[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRegistryHealthSnapshot(t *testing.T) {
	r := newTestRegistry(t,
		&stubInvoker{kind: KindSafety, version: "v1", healthy: true},
		&stubInvoker{kind: KindSafety, version: "v2", healthy: false},
	)
	defer r.Close()

	snapshot := r.HealthSnapshot()
	if len(snapshot) != 2 {
		t.Fatalf("snapshot has %d entries, want 2", len(snapshot))
	}
	if h, ok := snapshot["safety/v1"]; !ok || !h.IsHealthy {
		t.Errorf(`snapshot["safety/v1"] = %+v, %t`, h, ok)
	}
	if h, ok := snapshot["safety/v2"]; !ok || h.IsHealthy {
		t.Errorf(`snapshot["safety/v2"] = %+v, %t`, h, ok)
	}
}

func TestRegistryCloseRejectsLookups(t *testing.T) {
	inv := &stubInvoker{kind: KindSafety, version: "v1"}
	r := newTestRegistry(t, inv)

	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !inv.closed {
		t.Error("registry close did not close the client")
	}

	if _, err := r.Client(KindSafety, "v1"); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("lookup after close: err = %v, want ErrRegistryClosed", err)
	}
	if err := r.Register(&stubInvoker{kind: KindOCR, version: "v1"}); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("register after close: err = %v, want ErrRegistryClosed", err)
	}

	// Double close is a no-op.
	if err := r.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
