package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"modex-hq/aegis/internal/backends"
	"modex-hq/aegis/pkg/api/middleware"
	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/config"
	"modex-hq/aegis/pkg/engine"
	"modex-hq/aegis/pkg/ensemble"
	"modex-hq/aegis/pkg/routing"
)

var pngImage = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{
		MaxImageBytes: 1 << 20,
		MaxBatchFiles: 3,
	}
}

func testDecisionConfig() config.DecisionConfig {
	return config.DecisionConfig{
		SafetyReject:      0.85,
		SafetyEscalate:    0.6,
		NSFWEscalate:      0.3,
		ContentConfidence: 0.7,
		TextConfidence:    0.6,
		Weights: map[string]float64{
			"classifier": 0.3,
			"safety":     0.5,
			"ocr":        0.2,
		},
	}
}

// newTestEngine wires an engine over approving fakes, with every kind routed
// to v1. The registry is returned for handlers that need it directly.
func newTestEngine(t *testing.T) (*engine.Engine, *backend.Registry) {
	t.Helper()

	registry, err := backend.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	t.Cleanup(func() { registry.Close() })
	for _, kind := range backend.Kinds() {
		if err := registry.Register(backends.NewFake(kind, "v1").ApproveAll()); err != nil {
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

	eng := engine.New(
		routing.NewRouter(store, nil),
		ensemble.NewInvoker(registry, nil, 16),
		ensemble.NewInterpreter(testDecisionConfig()),
		nil, nil, nil,
	)
	return eng, registry
}

// multipartUpload builds a multipart request body with one part per file.
func multipartUpload(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range files {
		part, err := writer.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("writing part failed: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing multipart writer failed: %v", err)
	}
	return body, writer.FormDataContentType()
}

func postUpload(t *testing.T, handler http.Handler, path, field string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, field, files)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	middleware.RequestID(handler).ServeHTTP(rec, req)
	return rec
}

func TestModerateHandlerApproves(t *testing.T) {
	eng, _ := newTestEngine(t)
	handler := NewModerateHandler(eng, testLimits(), nil)

	rec := postUpload(t, handler, "/moderate-image", "file", map[string][]byte{"cat.png": pngImage})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp ModerationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.ModerationDecision != "APPROVED" {
		t.Errorf("decision = %q, want APPROVED", resp.ModerationDecision)
	}
	if resp.ConfidenceScore <= 0 {
		t.Errorf("confidence = %v, want > 0", resp.ConfidenceScore)
	}
	if resp.ProcessingMetadata.RequestID == "" {
		t.Error("response missing the request id")
	}
	if len(resp.ProcessingMetadata.DecisionFactors) != 3 {
		t.Errorf("got %d decision factors, want 3", len(resp.ProcessingMetadata.DecisionFactors))
	}
	if resp.ProcessingMetadata.ModelVersions["safety"] != "v1" {
		t.Errorf("model versions = %v, want safety v1", resp.ProcessingMetadata.ModelVersions)
	}
}

func TestModerateHandlerMissingFile(t *testing.T) {
	eng, _ := newTestEngine(t)
	handler := NewModerateHandler(eng, testLimits(), nil)

	rec := postUpload(t, handler, "/moderate-image", "wrong_field", map[string][]byte{"cat.png": pngImage})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if !strings.Contains(resp.Error, "missing file") {
		t.Errorf("error = %q, want it to mention the missing file", resp.Error)
	}
}

func TestModerateHandlerRejectsNonImage(t *testing.T) {
	eng, _ := newTestEngine(t)
	handler := NewModerateHandler(eng, testLimits(), nil)

	rec := postUpload(t, handler, "/moderate-image", "file", map[string][]byte{
		"notes.txt": []byte("just some text"),
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported image type") {
		t.Errorf("body %q does not explain the rejection", rec.Body.String())
	}
}

func TestModerateHandlerOversizeUpload(t *testing.T) {
	eng, _ := newTestEngine(t)
	limits := testLimits()
	limits.MaxImageBytes = 128
	handler := NewModerateHandler(eng, limits, nil)

	big := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 512)...)
	rec := postUpload(t, handler, "/moderate-image", "file", map[string][]byte{"big.png": big})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "maximum size") {
		t.Errorf("body %q does not mention the size limit", rec.Body.String())
	}
}

func TestModerateHandlerMethodNotAllowed(t *testing.T) {
	eng, _ := newTestEngine(t)
	handler := NewModerateHandler(eng, testLimits(), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/moderate-image", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestModerateHandlerPolicyErrorIs503(t *testing.T) {
	registry, err := backend.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	t.Cleanup(func() { registry.Close() })

	store, err := routing.NewStore(map[backend.Kind][]routing.VersionWeight{
		backend.KindClassifier: {{Version: "v1", Weight: 100}},
	})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	eng := engine.New(
		routing.NewRouter(store, nil),
		ensemble.NewInvoker(registry, nil, 16),
		ensemble.NewInterpreter(testDecisionConfig()),
		nil, nil, nil,
	)
	handler := NewModerateHandler(eng, testLimits(), nil)

	rec := postUpload(t, handler, "/moderate-image", "file", map[string][]byte{"cat.png": pngImage})

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 for a missing policy", rec.Code)
	}
}

func TestBatchHandlerMixedItems(t *testing.T) {
	eng, _ := newTestEngine(t)
	handler := NewBatchHandler(eng, testLimits(), nil)

	rec := postUpload(t, handler, "/batch-moderate", "files", map[string][]byte{
		"one.png":   pngImage,
		"two.png":   pngImage,
		"notes.txt": []byte("just some text"),
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp BatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.TotalImages != 3 {
		t.Errorf("total images = %d, want 3", resp.TotalImages)
	}
	if resp.ProcessedImages != 2 {
		t.Errorf("processed images = %d, want 2", resp.ProcessedImages)
	}
	if len(resp.BatchResults) != 3 {
		t.Fatalf("got %d results, want 3", len(resp.BatchResults))
	}
	if resp.ProcessingTimeMs < 0 {
		t.Errorf("processing time = %d ms", resp.ProcessingTimeMs)
	}
	if resp.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}

	for _, item := range resp.BatchResults {
		if item.Filename == "notes.txt" {
			if item.Error == "" {
				t.Error("invalid item carries no error")
			}
			if item.ModerationResponse != nil {
				t.Error("invalid item carries a decision")
			}
			continue
		}
		if item.Error != "" {
			t.Errorf("item %s failed: %s", item.Filename, item.Error)
		}
		if item.ModerationResponse == nil || item.ModerationDecision != "APPROVED" {
			t.Errorf("item %s: want an APPROVED decision, got %+v", item.Filename, item.ModerationResponse)
		}
	}
}

func TestBatchHandlerTooManyFiles(t *testing.T) {
	eng, _ := newTestEngine(t)
	handler := NewBatchHandler(eng, testLimits(), nil)

	rec := postUpload(t, handler, "/batch-moderate", "files", map[string][]byte{
		"a.png": pngImage,
		"b.png": pngImage,
		"c.png": pngImage,
		"d.png": pngImage,
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "too many files") {
		t.Errorf("body %q does not explain the rejection", rec.Body.String())
	}
}

func TestBatchHandlerNoFiles(t *testing.T) {
	eng, _ := newTestEngine(t)
	handler := NewBatchHandler(eng, testLimits(), nil)

	rec := postUpload(t, handler, "/batch-moderate", "files", nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no files") {
		t.Errorf("body %q does not explain the rejection", rec.Body.String())
	}
}

func TestBatchHandlerMethodNotAllowed(t *testing.T) {
	eng, _ := newTestEngine(t)
	handler := NewBatchHandler(eng, testLimits(), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch-moderate", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
