package logging

import "context"

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// ClientKeyKey is the context key for sticky-routing client keys.
	ClientKeyKey contextKey = "client_key"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithClientKey adds a client key to the context.
func WithClientKey(ctx context.Context, clientKey string) context.Context {
	return context.WithValue(ctx, ClientKeyKey, clientKey)
}

// GetClientKey retrieves the client key from the context.
func GetClientKey(ctx context.Context) string {
	if clientKey, ok := ctx.Value(ClientKeyKey).(string); ok {
		return clientKey
	}
	return ""
}
