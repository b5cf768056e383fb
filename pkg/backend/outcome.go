package backend

import "time"

// Status classifies how a backend call terminated.
type Status string

const (
	// StatusSuccess means the backend returned a usable payload.
	StatusSuccess Status = "success"

	// StatusFailure means the call failed (transport error, bad status,
	// or an unparseable response).
	StatusFailure Status = "failure"

	// StatusTimeout means the call's deadline elapsed before a response
	// arrived. Timeouts are reported separately from failures so callers
	// can distinguish a slow backend from a broken one.
	StatusTimeout Status = "timeout"
)

// Outcome is the terminal result of one backend call. Every call produces
// exactly one Outcome; there is no path that leaves a call unresolved.
type Outcome struct {
	// Kind is the backend kind that was invoked.
	Kind Kind

	// Version is the backend version that was invoked.
	Version string

	// Status classifies the termination.
	Status Status

	// Payload holds the decoded result on success: *ClassifierResult,
	// *SafetyResult, or *OCRResult depending on Kind. Nil otherwise.
	Payload any

	// Confidence is the backend's reported confidence on success, 0 otherwise.
	Confidence float64

	// Latency is the wall-clock duration of the call.
	Latency time.Duration

	// Err is the terminal error for failures and timeouts, nil on success.
	Err error
}

// Success constructs a successful outcome.
func Success(kind Kind, version string, payload any, confidence float64, latency time.Duration) Outcome {
	return Outcome{
		Kind:       kind,
		Version:    version,
		Status:     StatusSuccess,
		Payload:    payload,
		Confidence: confidence,
		Latency:    latency,
	}
}

// Failure constructs a failed outcome.
func Failure(kind Kind, version string, err error, latency time.Duration) Outcome {
	return Outcome{
		Kind:    kind,
		Version: version,
		Status:  StatusFailure,
		Latency: latency,
		Err:     err,
	}
}

// Timeout constructs a timed-out outcome.
func Timeout(kind Kind, version string, err error, latency time.Duration) Outcome {
	return Outcome{
		Kind:    kind,
		Version: version,
		Status:  StatusTimeout,
		Latency: latency,
		Err:     err,
	}
}

// OK reports whether the outcome carries a usable payload.
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// Classifier returns the classifier payload, or nil if the outcome is not a
// successful classifier result.
func (o Outcome) Classifier() *ClassifierResult {
	p, _ := o.Payload.(*ClassifierResult)
	return p
}

// Safety returns the safety payload, or nil if the outcome is not a
// successful safety result.
func (o Outcome) Safety() *SafetyResult {
	p, _ := o.Payload.(*SafetyResult)
	return p
}

// OCR returns the OCR payload, or nil if the outcome is not a successful
// OCR result.
func (o Outcome) OCR() *OCRResult {
	p, _ := o.Payload.(*OCRResult)
	return p
}
