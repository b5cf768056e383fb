package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"modex-hq/aegis/internal/backends"
	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/config"
	"modex-hq/aegis/pkg/ensemble"
	"modex-hq/aegis/pkg/routing"
)

func testDecisionConfig() config.DecisionConfig {
	return config.DecisionConfig{
		SafetyReject:        0.85,
		SafetyEscalate:      0.6,
		NSFWEscalate:        0.3,
		ContentConfidence:   0.7,
		TextConfidence:      0.6,
		BlockedKeywords:     []string{"violence", "weapon"},
		SensitiveCategories: []int{7, 9},
		Weights: map[string]float64{
			"classifier": 0.3,
			"safety":     0.5,
			"ocr":        0.2,
		},
	}
}

// newTestEngine wires an engine over scripted fakes, one per kind, all
// routed at 100% to v1.
func newTestEngine(t *testing.T, fakes ...*backends.Fake) *Engine {
	t.Helper()

	registry, err := backend.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	t.Cleanup(func() { registry.Close() })
	for _, f := range fakes {
		if err := registry.Register(f); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	store, err := routing.NewStore(map[backend.Kind][]routing.VersionWeight{
		backend.KindClassifier: {{Version: "v1", Weight: 100}},
		backend.KindSafety:     {{Version: "v1", Weight: 100}},
		backend.KindOCR:        {{Version: "v1", Weight: 100}},
	})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	router := routing.NewRouter(store, nil)
	invoker := ensemble.NewInvoker(registry, nil, 16)
	interpreter := ensemble.NewInterpreter(testDecisionConfig())

	return New(router, invoker, interpreter, nil, nil, nil)
}

func approveFakes() []*backends.Fake {
	return []*backends.Fake{
		backends.NewFake(backend.KindClassifier, "v1").ApproveAll(),
		backends.NewFake(backend.KindSafety, "v1").ApproveAll(),
		backends.NewFake(backend.KindOCR, "v1").ApproveAll(),
	}
}

func testRequest(id string) backend.Request {
	return backend.Request{
		ID:          id,
		Image:       []byte{0xFF, 0xD8, 0xFF},
		ContentType: "image/jpeg",
		Filename:    id + ".jpg",
		ReceivedAt:  time.Now(),
	}
}

func TestModerateBenignContentApproved(t *testing.T) {
	engine := newTestEngine(t, approveFakes()...)

	decision, err := engine.Moderate(context.Background(), testRequest("req-1"), "")
	if err != nil {
		t.Fatalf("Moderate failed: %v", err)
	}

	if decision.Verdict != ensemble.VerdictApproved {
		t.Errorf("verdict = %s, want APPROVED", decision.Verdict)
	}
	if decision.RequestID != "req-1" {
		t.Errorf("request id = %q, want req-1", decision.RequestID)
	}
	if decision.Category != "general" {
		t.Errorf("category = %q, want general", decision.Category)
	}
	if decision.Confidence <= 0 || decision.Confidence > 1 {
		t.Errorf("confidence = %v, want in (0,1]", decision.Confidence)
	}
	if len(decision.Factors) != 3 {
		t.Fatalf("got %d factors, want 3", len(decision.Factors))
	}
	for kind, version := range decision.Manifest {
		if version != "v1" {
			t.Errorf("manifest[%s] = %q, want v1", kind, version)
		}
	}
	if decision.ProcessingTime <= 0 {
		t.Error("processing time not recorded")
	}
}

func TestModerateUnsafeContentRejected(t *testing.T) {
	fakes := approveFakes()
	fakes[1].Script = func(call backend.Call) backend.Outcome {
		return backend.Success(backend.KindSafety, "v1", &backend.SafetyResult{
			Scores:     []float64{0.04, 0.92, 0.02, 0.01, 0.01},
			IsSafe:     false,
			RiskLevel:  "HIGH",
			Confidence: 0.92,
		}, 0.92, time.Millisecond)
	}
	engine := newTestEngine(t, fakes...)

	decision, err := engine.Moderate(context.Background(), testRequest("req-1"), "")
	if err != nil {
		t.Fatalf("Moderate failed: %v", err)
	}

	if decision.Verdict != ensemble.VerdictRejected {
		t.Errorf("verdict = %s, want REJECTED", decision.Verdict)
	}
	for _, factor := range decision.Factors {
		if factor.Kind == backend.KindSafety && factor.Vote != ensemble.VoteReject {
			t.Errorf("safety vote = %s, want REJECT", factor.Vote)
		}
	}
}

func TestModerateBackendFailureDegradesToReview(t *testing.T) {
	fakes := approveFakes()
	fakes[1].Script = nil // safety backend fails every call
	engine := newTestEngine(t, fakes...)

	decision, err := engine.Moderate(context.Background(), testRequest("req-1"), "")
	if err != nil {
		t.Fatalf("a backend failure must degrade the decision, not error: %v", err)
	}

	if decision.Verdict != ensemble.VerdictReviewRequired {
		t.Errorf("verdict = %s, want REVIEW_REQUIRED", decision.Verdict)
	}
	for _, factor := range decision.Factors {
		if factor.Kind == backend.KindSafety {
			if factor.Vote != ensemble.VoteUnknown {
				t.Errorf("failed backend's vote = %s, want UNKNOWN", factor.Vote)
			}
			if factor.Weight != 0 {
				t.Errorf("failed backend's weight = %v, want 0", factor.Weight)
			}
		}
	}
}

func TestModerateNoPolicyIsPolicyError(t *testing.T) {
	registry, err := backend.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	t.Cleanup(func() { registry.Close() })

	// Policy covers the classifier only; safety and ocr have no versions.
	store, err := routing.NewStore(map[backend.Kind][]routing.VersionWeight{
		backend.KindClassifier: {{Version: "v1", Weight: 100}},
	})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	engine := New(
		routing.NewRouter(store, nil),
		ensemble.NewInvoker(registry, nil, 16),
		ensemble.NewInterpreter(testDecisionConfig()),
		nil, nil, nil,
	)

	_, err = engine.Moderate(context.Background(), testRequest("req-1"), "")
	if !errors.Is(err, ErrPolicy) {
		t.Fatalf("err = %v, want ErrPolicy", err)
	}
	var perr *PolicyError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %T, want *PolicyError", err)
	}
	if !errors.Is(perr.Cause, routing.ErrNoPolicy) {
		t.Errorf("cause = %v, want ErrNoPolicy", perr.Cause)
	}
}

func TestModerateBatchItemsAreIndependent(t *testing.T) {
	rejectID := "req-1"
	fakes := approveFakes()
	benign := fakes[1].Script
	fakes[1].Script = func(call backend.Call) backend.Outcome {
		if call.RequestID == rejectID {
			return backend.Success(backend.KindSafety, "v1", &backend.SafetyResult{
				Scores:     []float64{0.04, 0.92, 0.02, 0.01, 0.01},
				IsSafe:     false,
				RiskLevel:  "HIGH",
				Confidence: 0.92,
			}, 0.92, time.Millisecond)
		}
		return benign(call)
	}
	engine := newTestEngine(t, fakes...)

	reqs := []backend.Request{
		testRequest("req-0"),
		testRequest("req-1"),
		testRequest("req-2"),
	}
	results := engine.ModerateBatch(context.Background(), reqs, "")

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, result := range results {
		if result.Index != i {
			t.Errorf("result %d carries index %d", i, result.Index)
		}
		if result.Err != nil {
			t.Fatalf("item %d failed: %v", i, result.Err)
		}
	}

	if v := results[0].Decision.Verdict; v != ensemble.VerdictApproved {
		t.Errorf("item 0 verdict = %s, want APPROVED", v)
	}
	if v := results[1].Decision.Verdict; v != ensemble.VerdictRejected {
		t.Errorf("item 1 verdict = %s, want REJECTED (one bad item must not taint the batch)", v)
	}
	if v := results[2].Decision.Verdict; v != ensemble.VerdictApproved {
		t.Errorf("item 2 verdict = %s, want APPROVED", v)
	}
}
