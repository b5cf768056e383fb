package routing

import (
	"errors"
	"strings"
	"testing"

	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/config"
)

func testWeights() map[backend.Kind][]VersionWeight {
	return map[backend.Kind][]VersionWeight{
		backend.KindClassifier: {
			{Version: "v1", Weight: 90},
			{Version: "v2", Weight: 10},
		},
		backend.KindSafety: {
			{Version: "v1", Weight: 100},
		},
		backend.KindOCR: {
			{Version: "v1", Weight: 100},
		},
	}
}

func TestNewStoreValidPolicy(t *testing.T) {
	store, err := NewStore(testWeights())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	policy := store.Current()
	if policy == nil {
		t.Fatal("expected an installed policy")
	}
	if policy.Version != 1 {
		t.Errorf("initial policy version = %d, want 1", policy.Version)
	}
}

func TestNewStoreRejectsInvalidPolicy(t *testing.T) {
	tests := []struct {
		name        string
		weights     map[backend.Kind][]VersionWeight
		wantProblem string
	}{
		{
			name: "weights not summing to 100",
			weights: map[backend.Kind][]VersionWeight{
				backend.KindSafety: {
					{Version: "v1", Weight: 60},
					{Version: "v2", Weight: 30},
				},
			},
			wantProblem: "sum to 90",
		},
		{
			name: "duplicate version",
			weights: map[backend.Kind][]VersionWeight{
				backend.KindSafety: {
					{Version: "v1", Weight: 50},
					{Version: "v1", Weight: 50},
				},
			},
			wantProblem: "duplicate version",
		},
		{
			name: "floor above weight",
			weights: map[backend.Kind][]VersionWeight{
				backend.KindSafety: {
					{Version: "v1", Weight: 20, MinTrafficFloor: 30},
					{Version: "v2", Weight: 80},
				},
			},
			wantProblem: "min traffic floor",
		},
		{
			name: "empty version list",
			weights: map[backend.Kind][]VersionWeight{
				backend.KindSafety: {},
			},
			wantProblem: "no versions",
		},
		{
			name: "unknown kind",
			weights: map[backend.Kind][]VersionWeight{
				backend.Kind("sentiment"): {
					{Version: "v1", Weight: 100},
				},
			},
			wantProblem: "unknown backend kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStore(tt.weights)
			if err == nil {
				t.Fatal("expected policy validation to fail")
			}
			if !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("expected ErrInvalidPolicy, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantProblem) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantProblem)
			}
		})
	}
}

func TestInstallRejectedPolicyKeepsPrevious(t *testing.T) {
	store, err := NewStore(testWeights())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	before := store.Current()

	_, err = store.Install(map[backend.Kind][]VersionWeight{
		backend.KindSafety: {{Version: "v1", Weight: 50}},
	})
	if err == nil {
		t.Fatal("expected install to fail")
	}

	after := store.Current()
	if after != before {
		t.Error("rejected install replaced the active snapshot")
	}
}

func TestInstallBumpsVersion(t *testing.T) {
	store, err := NewStore(testWeights())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	policy, err := store.Install(testWeights())
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if policy.Version != 2 {
		t.Errorf("policy version = %d, want 2", policy.Version)
	}
	if store.Current().Version != 2 {
		t.Errorf("current version = %d, want 2", store.Current().Version)
	}
}

func TestPromote(t *testing.T) {
	store, err := NewStore(testWeights())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	policy, err := store.Promote(backend.KindClassifier, "v2")
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}

	weights := policy.Weights(backend.KindClassifier)
	if len(weights) != 1 || weights[0].Version != "v2" || weights[0].Weight != 100 {
		t.Errorf("promoted weights = %+v, want v2 at 100", weights)
	}

	// Other kinds keep their weights.
	if got := policy.Weights(backend.KindSafety); len(got) != 1 || got[0].Version != "v1" {
		t.Errorf("safety weights changed by unrelated promotion: %+v", got)
	}
}

func TestPromoteRespectsTrafficFloor(t *testing.T) {
	store, err := NewStore(map[backend.Kind][]VersionWeight{
		backend.KindClassifier: {
			{Version: "v1", Weight: 90, MinTrafficFloor: 10},
			{Version: "v2", Weight: 10},
		},
		backend.KindSafety: {{Version: "v1", Weight: 100}},
		backend.KindOCR:    {{Version: "v1", Weight: 100}},
	})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	before := store.Current()

	_, err = store.Promote(backend.KindClassifier, "v2")
	if !errors.Is(err, ErrTrafficFloorViolated) {
		t.Errorf("expected ErrTrafficFloorViolated, got %v", err)
	}
	if store.Current() != before {
		t.Error("rejected promotion replaced the active policy")
	}

	// The floored version itself may be promoted: 100% satisfies its floor.
	if _, err := store.Promote(backend.KindClassifier, "v1"); err != nil {
		t.Errorf("promoting the floored version failed: %v", err)
	}
}

func TestPromoteUnknownVersion(t *testing.T) {
	store, err := NewStore(testWeights())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if _, err := store.Promote(backend.KindClassifier, "v9"); !errors.Is(err, ErrVersionNotInPolicy) {
		t.Errorf("expected ErrVersionNotInPolicy, got %v", err)
	}
}

func TestVersionForCoversDrawSpace(t *testing.T) {
	policy, err := newPolicy(1, testWeights())
	if err != nil {
		t.Fatalf("newPolicy failed: %v", err)
	}

	for point := 0; point < 100; point++ {
		version, ok := policy.versionFor(backend.KindClassifier, point)
		if !ok {
			t.Fatalf("point %d mapped to no version", point)
		}
		want := "v1"
		if point >= 90 {
			want = "v2"
		}
		if version != want {
			t.Errorf("point %d -> %s, want %s", point, version, want)
		}
	}
}

func TestWeightsFromConfig(t *testing.T) {
	weights := WeightsFromConfig(map[string][]config.VersionWeightConfig{
		"classifier": {
			{Version: "v1", Weight: 75, MinTrafficFloor: 10},
			{Version: "v2", Weight: 25},
		},
	})

	vws := weights[backend.KindClassifier]
	if len(vws) != 2 {
		t.Fatalf("got %d weights, want 2", len(vws))
	}
	if vws[0].Version != "v1" || vws[0].Weight != 75 || vws[0].MinTrafficFloor != 10 {
		t.Errorf("first weight = %+v", vws[0])
	}
}
