package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"modex-hq/aegis/pkg/config"
	"modex-hq/aegis/pkg/limits"
)

func TestRequestIDHonorsClientHeader(t *testing.T) {
	var gotID, gotClientKey string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetRequestID(r.Context())
		gotClientKey = GetClientKey(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/moderate-image", nil)
	req.Header.Set(RequestIDHeader, "req-from-client")
	req.Header.Set(ClientKeyHeader, "client-a")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if gotID != "req-from-client" {
		t.Errorf("request id = %q, want the client's header value", gotID)
	}
	if gotClientKey != "client-a" {
		t.Errorf("client key = %q, want client-a", gotClientKey)
	}
	if rec.Header().Get(RequestIDHeader) != "req-from-client" {
		t.Error("request id not echoed in the response header")
	}
}

func TestRequestIDGeneratesWhenAbsent(t *testing.T) {
	var gotID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/moderate-image", nil))

	if gotID == "" {
		t.Fatal("no request id assigned")
	}
	if rec.Header().Get(RequestIDHeader) != gotID {
		t.Error("generated id not echoed in the response header")
	}
}

func TestDeadlineFromHeader(t *testing.T) {
	tests := []struct {
		name         string
		header       string
		wantDeadline bool
	}{
		{name: "valid milliseconds", header: "250", wantDeadline: true},
		{name: "absent", header: "", wantDeadline: false},
		{name: "not a number", header: "soon", wantDeadline: false},
		{name: "negative", header: "-5", wantDeadline: false},
		{name: "zero", header: "0", wantDeadline: false},
		{name: "capped at five minutes", header: "99999999", wantDeadline: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deadline time.Time
			var ok bool
			handler := Deadline(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				deadline, ok = r.Context().Deadline()
			}))

			req := httptest.NewRequest(http.MethodPost, "/moderate-image", nil)
			if tt.header != "" {
				req.Header.Set(DeadlineHeader, tt.header)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if ok != tt.wantDeadline {
				t.Fatalf("deadline set = %t, want %t", ok, tt.wantDeadline)
			}
			if ok && time.Until(deadline) > maxClientDeadline {
				t.Errorf("deadline %v exceeds the cap %v", time.Until(deadline), maxClientDeadline)
			}
		})
	}
}

func TestAdmissionRejectsOverCapacity(t *testing.T) {
	limiter := limits.NewConcurrentLimiter(1)
	if !limiter.Acquire() {
		t.Fatal("setup acquire failed")
	}
	defer limiter.Release()

	handler := Admission(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached over capacity")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/moderate-image", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("rejection body is not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Error("rejection body has no error message")
	}
}

func TestAdmissionExemptPathsBypassTheCap(t *testing.T) {
	limiter := limits.NewConcurrentLimiter(1)
	if !limiter.Acquire() {
		t.Fatal("setup acquire failed")
	}
	defer limiter.Release()

	reached := false
	handler := Admission(limiter, "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if !reached {
		t.Error("exempt path rejected under load")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAdmissionReleasesSlot(t *testing.T) {
	limiter := limits.NewConcurrentLimiter(1)
	handler := Admission(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/moderate-image", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200 (slot must be released)", i, rec.Code)
		}
	}
	if limiter.Current() != 0 {
		t.Errorf("in-flight count = %d after completion, want 0", limiter.Current())
	}
}

func TestRecoveryConvertsPanicTo500(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/moderate-image", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Errorf("error = %q, internals must not leak", body["error"])
	}
}

func testCORSConfig() config.CORSConfig {
	return config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://app.example.com"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         3600,
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	handler := CORS(testCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/moderate-image", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow-origin = %q, want the request origin", got)
	}
	if rec.Header().Get("Vary") != "Origin" {
		t.Error("expected Vary: Origin for a non-wildcard policy")
	}
}

func TestCORSDisallowedOrigin(t *testing.T) {
	handler := CORS(testCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/moderate-image", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin = %q for a disallowed origin", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(testCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/moderate-image", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("preflight response missing allowed methods")
	}
	if rec.Header().Get("Access-Control-Max-Age") != "3600" {
		t.Errorf("max-age = %q, want 3600", rec.Header().Get("Access-Control-Max-Age"))
	}
}

func TestCORSWildcard(t *testing.T) {
	cfg := testCORSConfig()
	cfg.AllowedOrigins = []string{"*"}
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q, want *", got)
	}
}

func TestCORSDisabledIsPassThrough(t *testing.T) {
	cfg := testCORSConfig()
	cfg.Enabled = false
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/moderate-image", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disabled CORS still set headers: %q", got)
	}
}
