// Package handlers implements the moderation API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"modex-hq/aegis/pkg/ensemble"
)

// ModerationResponse is the wire form of a moderation decision.
type ModerationResponse struct {
	ModerationDecision string             `json:"moderation_decision"`
	ConfidenceScore    float64            `json:"confidence_score"`
	ContentCategory    string             `json:"content_category"`
	SafetyAssessment   string             `json:"safety_assessment"`
	ExtractedText      []string           `json:"extracted_text"`
	ProcessingTimeMs   int64              `json:"processing_time_ms"`
	ProcessingMetadata ProcessingMetadata `json:"processing_metadata"`
	Timestamp          time.Time          `json:"timestamp"`
}

// ProcessingMetadata carries the decision's supporting detail.
type ProcessingMetadata struct {
	RequestID       string            `json:"request_id"`
	DecisionFactors []ensemble.Factor `json:"decision_factors"`
	ModelVersions   map[string]string `json:"model_versions"`
}

// BatchItemResponse is one item's result inside a batch response. Failed
// items carry an error message instead of a decision.
type BatchItemResponse struct {
	Filename string `json:"filename"`
	Error    string `json:"error,omitempty"`
	*ModerationResponse
}

// BatchResponse is the envelope for POST /batch-moderate.
type BatchResponse struct {
	BatchResults     []BatchItemResponse `json:"batch_results"`
	TotalImages      int                 `json:"total_images"`
	ProcessedImages  int                 `json:"processed_images"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
	Timestamp        time.Time           `json:"timestamp"`
}

// ErrorResponse is the wire form of a request-level error.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// toResponse converts a decision to its wire form.
func toResponse(d ensemble.Decision) *ModerationResponse {
	return &ModerationResponse{
		ModerationDecision: string(d.Verdict),
		ConfidenceScore:    d.Confidence,
		ContentCategory:    d.Category,
		SafetyAssessment:   d.SafetyAssessment,
		ExtractedText:      d.ExtractedText,
		ProcessingTimeMs:   d.ProcessingTime.Milliseconds(),
		ProcessingMetadata: ProcessingMetadata{
			RequestID:       d.RequestID,
			DecisionFactors: d.Factors,
			ModelVersions:   d.Manifest,
		},
		Timestamp: d.DecidedAt,
	}
}

// writeJSON encodes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError encodes a JSON error response.
func writeError(w http.ResponseWriter, code int, message, requestID string) {
	writeJSON(w, code, ErrorResponse{Error: message, RequestID: requestID})
}
