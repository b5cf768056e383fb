package middleware

import (
	"encoding/json"
	"net/http"

	"modex-hq/aegis/pkg/limits"
)

// Admission rejects requests over the concurrency cap with 503 instead of
// queueing them. Health, readiness, and metrics endpoints bypass the cap so
// probes keep working under overload.
func Admission(limiter *limits.ConcurrentLimiter, exempt ...string) func(http.Handler) http.Handler {
	exemptPaths := make(map[string]bool, len(exempt))
	for _, path := range exempt {
		exemptPaths[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Acquire() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":      "server is at capacity, retry later",
					"request_id": GetRequestID(r.Context()),
				})
				return
			}
			defer limiter.Release()

			next.ServeHTTP(w, r)
		})
	}
}
