package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RequestAttributes builds the span attributes for one moderation request.
func RequestAttributes(requestID string, imageBytes int) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("moderation.request_id", requestID),
		attribute.Int("moderation.image_bytes", imageBytes),
	)
}

// BackendAttributes builds the span attributes for one backend call.
func BackendAttributes(kind, version string, batched bool) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("backend.kind", kind),
		attribute.String("backend.version", version),
		attribute.Bool("backend.batched", batched),
	)
}

// DecisionAttributes builds the span attributes recorded once a decision is
// made.
func DecisionAttributes(verdict string, confidence float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("moderation.verdict", verdict),
		attribute.Float64("moderation.confidence", confidence),
	}
}
