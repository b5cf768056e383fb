package backend

import "time"

// Kind identifies a family of moderation backends.
type Kind string

const (
	// KindClassifier backends categorize image content.
	KindClassifier Kind = "classifier"

	// KindSafety backends score images for unsafe content.
	KindSafety Kind = "safety"

	// KindOCR backends extract text from images.
	KindOCR Kind = "ocr"
)

// Kinds returns all backend kinds in canonical order. Aggregation and
// reporting always iterate kinds in this order so results are deterministic
// regardless of completion order.
func Kinds() []Kind {
	return []Kind{KindClassifier, KindSafety, KindOCR}
}

// String returns the kind as a string.
func (k Kind) String() string {
	return string(k)
}

// Valid reports whether the kind is one of the canonical kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindClassifier, KindSafety, KindOCR:
		return true
	}
	return false
}

// Request is a validated moderation request. The raw upload has already
// passed format and size checks by the time a Request is constructed.
type Request struct {
	// ID uniquely identifies the request. Assigned by the API layer
	// (or taken from the X-Request-ID header) and carried through
	// routing, batching, and audit records.
	ID string

	// Image is the raw image payload.
	Image []byte

	// ContentType is the sniffed media type (image/jpeg or image/png).
	ContentType string

	// Filename is the client-supplied file name, used only for reporting.
	Filename string

	// ReceivedAt is when the request entered the engine.
	ReceivedAt time.Time

	// Deadline is the absolute deadline for the whole request.
	// Zero means no client-imposed deadline.
	Deadline time.Time
}

// Call is a single invocation of one backend version on behalf of a request.
// The batch assembler groups calls with the same kind and version into one
// wire request when the backend supports it.
type Call struct {
	// RequestID is the originating request's ID.
	RequestID string

	// Kind is the backend kind being invoked.
	Kind Kind

	// Version is the backend version selected by routing.
	Version string

	// Image is the image payload to submit.
	Image []byte
}

// ClassifierResult is the payload returned by classifier backends.
type ClassifierResult struct {
	// ClassID is the numeric category identifier.
	ClassID int `json:"class_id"`

	// Label is the human-readable category name.
	Label string `json:"label"`

	// Scores holds the per-class probability distribution.
	Scores []float64 `json:"scores,omitempty"`

	// Confidence is the probability of the winning class.
	Confidence float64 `json:"confidence"`
}

// SafetyResult is the payload returned by safety backends. Scores are ordered
// [safe, nsfw, violence, hate, drugs].
type SafetyResult struct {
	// Scores holds the per-category risk distribution.
	Scores []float64 `json:"scores"`

	// IsSafe is the backend's own binary verdict.
	IsSafe bool `json:"is_safe"`

	// RiskLevel is the backend's coarse risk bucket (LOW, MEDIUM, HIGH).
	RiskLevel string `json:"risk_level"`

	// Confidence is the probability mass on the dominant category.
	Confidence float64 `json:"confidence"`
}

// Safety score indices within SafetyResult.Scores.
const (
	SafetyScoreSafe     = 0
	SafetyScoreNSFW     = 1
	SafetyScoreViolence = 2
	SafetyScoreHate     = 3
	SafetyScoreDrugs    = 4
)

// OCRResult is the payload returned by OCR backends.
type OCRResult struct {
	// Texts holds the extracted text fragments in reading order.
	Texts []string `json:"texts"`

	// Confidences holds the per-fragment recognition confidence,
	// parallel to Texts.
	Confidences []float64 `json:"confidences,omitempty"`

	// Language is the detected language code, if the backend reports one.
	Language string `json:"language,omitempty"`
}

// Health is a point-in-time snapshot of one backend version's health.
type Health struct {
	// IsHealthy indicates whether the backend is currently considered healthy.
	IsHealthy bool

	// LastCheck is the timestamp of the last health probe or request.
	LastCheck time.Time

	// LastError is the most recent error encountered (nil if healthy).
	LastError error

	// ConsecutiveFailures counts sequential failed calls.
	ConsecutiveFailures int

	// TotalCalls is the total number of wire calls sent to this backend.
	TotalCalls int64

	// FailedCalls is the total number of failed wire calls.
	FailedCalls int64
}
