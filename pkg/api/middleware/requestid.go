package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the HTTP header for the request ID.
	RequestIDHeader = "X-Request-ID"

	// ClientKeyHeader is the HTTP header for the sticky-routing client key.
	ClientKeyHeader = "X-Client-Key"
)

// RequestID assigns every request an ID and propagates the client key. A
// client-supplied X-Request-ID is honored (it also seeds the deterministic
// routing draw, so replaying a request with the same ID reproduces its
// version assignment); otherwise a UUID is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		if clientKey := r.Header.Get(ClientKeyHeader); clientKey != "" {
			ctx = context.WithValue(ctx, ClientKeyKey, clientKey)
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
