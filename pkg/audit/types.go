// Package audit defines the decision audit log: every moderation decision is
// persisted as an immutable record so verdicts can be replayed and disputed
// decisions investigated.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"modex-hq/aegis/pkg/ensemble"
)

// DecisionRecord is one persisted moderation decision.
type DecisionRecord struct {
	// ID is the storage-assigned row identifier.
	ID int64

	// RequestID is the originating request's ID.
	RequestID string

	// Verdict is the final verdict (APPROVED, REJECTED, REVIEW_REQUIRED).
	Verdict string

	// Confidence is the final confidence score.
	Confidence float64

	// Category is the classified content category.
	Category string

	// SafetyAssessment is the safety detector's summary line.
	SafetyAssessment string

	// ExtractedText holds the OCR fragments.
	ExtractedText []string

	// Factors holds the per-backend decision factors.
	Factors []ensemble.Factor

	// Manifest maps backend kinds to the versions that served the request.
	Manifest map[string]string

	// PolicyVersion is the routing policy snapshot the request ran under.
	PolicyVersion int64

	// ProcessingTime is the end-to-end pipeline duration.
	ProcessingTime time.Duration

	// CreatedAt is when the decision was made.
	CreatedAt time.Time
}

// FromDecision builds a record from a moderation decision.
func FromDecision(d ensemble.Decision, policyVersion int64) *DecisionRecord {
	return &DecisionRecord{
		RequestID:        d.RequestID,
		Verdict:          string(d.Verdict),
		Confidence:       d.Confidence,
		Category:         d.Category,
		SafetyAssessment: d.SafetyAssessment,
		ExtractedText:    d.ExtractedText,
		Factors:          d.Factors,
		Manifest:         d.Manifest,
		PolicyVersion:    policyVersion,
		ProcessingTime:   d.ProcessingTime,
		CreatedAt:        d.DecidedAt,
	}
}

// MarshalFactors serializes the factors for storage.
func (r *DecisionRecord) MarshalFactors() string {
	data, _ := json.Marshal(r.Factors)
	return string(data)
}

// Storage is the persistence interface for decision records.
type Storage interface {
	// Store persists one record.
	Store(ctx context.Context, record *DecisionRecord) error

	// GetByRequestID retrieves a record by request ID.
	// Returns ErrRecordNotFound when absent.
	GetByRequestID(ctx context.Context, requestID string) (*DecisionRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// DeleteOlderThan removes records created before cutoff, returning
	// how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteOldest removes the n oldest records, returning how many were
	// deleted.
	DeleteOldest(ctx context.Context, n int64) (int64, error)

	// Close releases storage resources.
	Close() error
}
