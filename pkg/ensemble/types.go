package ensemble

import (
	"time"

	"modex-hq/aegis/pkg/backend"
)

// Verdict is the final moderation decision for a request.
type Verdict string

const (
	// VerdictApproved means the content passed every check.
	VerdictApproved Verdict = "APPROVED"

	// VerdictRejected means at least one factor voted REJECT.
	VerdictRejected Verdict = "REJECTED"

	// VerdictReviewRequired means the content needs human review:
	// a borderline factor, a failed backend, or total unavailability.
	VerdictReviewRequired Verdict = "REVIEW_REQUIRED"
)

// Vote is one factor's contribution to the final verdict.
type Vote string

const (
	// VoteApprove means the factor found nothing concerning.
	VoteApprove Vote = "APPROVE"

	// VoteReject means the factor found disqualifying content.
	VoteReject Vote = "REJECT"

	// VoteEscalate means the factor is borderline and wants human review.
	VoteEscalate Vote = "ESCALATE"

	// VoteUnknown means the backend failed or timed out. UNKNOWN factors
	// carry weight zero and force review unless something else rejects.
	VoteUnknown Vote = "UNKNOWN"
)

// Factor is one backend's interpreted contribution to a decision.
type Factor struct {
	// Kind is the backend kind the factor came from.
	Kind backend.Kind `json:"kind"`

	// Version is the backend version that produced the outcome.
	Version string `json:"version"`

	// Vote is the factor's verdict.
	Vote Vote `json:"vote"`

	// Confidence is the factor's confidence in its vote.
	Confidence float64 `json:"confidence"`

	// Weight is the factor's share of the final confidence score.
	// UNKNOWN factors always have weight 0.
	Weight float64 `json:"weight"`

	// Reason is a short human-readable explanation.
	Reason string `json:"reason"`

	// Status records how the underlying call terminated.
	Status backend.Status `json:"status"`

	// Latency is the underlying call's duration.
	Latency time.Duration `json:"-"`
}

// Decision is the final, immutable moderation decision for one request.
// Exactly one Decision is produced per admitted request.
type Decision struct {
	// RequestID is the originating request's ID.
	RequestID string

	// Verdict is the final verdict.
	Verdict Verdict

	// Confidence is the weighted mean of participating factor
	// confidences, in [0,1]. Zero when every factor is UNKNOWN.
	Confidence float64

	// Category is the classifier's content category name, or "unknown"
	// when the classifier did not produce a result.
	Category string

	// SafetyAssessment is the safety detector's summary line
	// (e.g. "Risk: LOW, Safe: true").
	SafetyAssessment string

	// ExtractedText holds the OCR text fragments, empty when OCR
	// produced nothing or failed.
	ExtractedText []string

	// Factors lists one factor per backend kind, in canonical kind
	// order. Failed backends appear as UNKNOWN, never omitted.
	Factors []Factor

	// Manifest maps each backend kind to the version that served it.
	Manifest map[string]string

	// ProcessingTime is the end-to-end pipeline duration.
	ProcessingTime time.Duration

	// DecidedAt is when the decision was produced.
	DecidedAt time.Time
}
