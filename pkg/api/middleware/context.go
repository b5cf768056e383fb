// Package middleware provides the HTTP middleware chain for the moderation
// API: request identity, logging, panic recovery, CORS, deadlines, and
// admission control.
package middleware

import "context"

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for the request ID.
	RequestIDKey contextKey = "request_id"

	// ClientKeyKey is the context key for the sticky-routing client key.
	ClientKeyKey contextKey = "client_key"

	// StartTimeKey is the context key for the request start time.
	StartTimeKey contextKey = "start_time"
)

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetClientKey retrieves the client key from the context.
func GetClientKey(ctx context.Context) string {
	if clientKey, ok := ctx.Value(ClientKeyKey).(string); ok {
		return clientKey
	}
	return ""
}
