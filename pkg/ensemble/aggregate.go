package ensemble

import (
	"fmt"
	"time"

	"modex-hq/aegis/pkg/backend"
)

// Aggregate combines per-backend outcomes into the final decision. It is
// deterministic over its inputs: the verdict and confidence depend only on
// the outcomes and the configured thresholds.
//
// Precedence, highest first: any REJECT factor forces REJECTED; otherwise
// any ESCALATE or UNKNOWN factor forces REVIEW_REQUIRED; otherwise APPROVED.
// If every factor is UNKNOWN the confidence is exactly 0 and the verdict is
// REVIEW_REQUIRED — total backend failure never silently approves.
func (in *Interpreter) Aggregate(requestID string, outcomes map[backend.Kind]backend.Outcome) Decision {
	factors := make([]Factor, 0, len(backend.Kinds()))
	manifest := make(map[string]string, len(backend.Kinds()))

	// Factors always appear in canonical kind order so the decision is
	// independent of backend completion order.
	for _, kind := range backend.Kinds() {
		out, ok := outcomes[kind]
		if !ok {
			factors = append(factors, Factor{
				Kind:   kind,
				Vote:   VoteUnknown,
				Reason: "backend not invoked",
				Status: backend.StatusFailure,
			})
			continue
		}
		factors = append(factors, in.Interpret(out))
		manifest[string(kind)] = out.Version
	}

	verdict := combineVotes(factors)
	confidence, participating := weightedConfidence(factors)
	if participating == 0 {
		confidence = 0
		verdict = VerdictReviewRequired
	}

	return Decision{
		RequestID:        requestID,
		Verdict:          verdict,
		Confidence:       confidence,
		Category:         categoryOf(outcomes),
		SafetyAssessment: safetyAssessmentOf(outcomes),
		ExtractedText:    extractedTextOf(outcomes),
		Factors:          factors,
		Manifest:         manifest,
		DecidedAt:        time.Now(),
	}
}

// combineVotes applies the precedence rules to the factor votes.
func combineVotes(factors []Factor) Verdict {
	verdict := VerdictApproved
	for _, f := range factors {
		switch f.Vote {
		case VoteReject:
			return VerdictRejected
		case VoteEscalate, VoteUnknown:
			verdict = VerdictReviewRequired
		}
	}
	return verdict
}

// weightedConfidence computes the weighted mean confidence over non-UNKNOWN
// factors. It returns the mean and the number of participating factors.
func weightedConfidence(factors []Factor) (float64, int) {
	var weighted, totalWeight float64
	participating := 0

	for _, f := range factors {
		if f.Vote == VoteUnknown {
			continue
		}
		participating++
		weighted += f.Confidence * f.Weight
		totalWeight += f.Weight
	}

	if participating == 0 || totalWeight == 0 {
		return 0, participating
	}
	return weighted / totalWeight, participating
}

// categoryOf extracts the content category name from the classifier outcome.
func categoryOf(outcomes map[backend.Kind]backend.Outcome) string {
	out, ok := outcomes[backend.KindClassifier]
	if !ok || !out.OK() {
		return "unknown"
	}
	r := out.Classifier()
	if r == nil {
		return "unknown"
	}
	if r.Label != "" {
		return r.Label
	}
	return fmt.Sprintf("class_%d", r.ClassID)
}

// safetyAssessmentOf formats the safety detector's summary line.
func safetyAssessmentOf(outcomes map[backend.Kind]backend.Outcome) string {
	out, ok := outcomes[backend.KindSafety]
	if !ok || !out.OK() {
		return "Risk: UNKNOWN, Safe: false"
	}
	r := out.Safety()
	if r == nil {
		return "Risk: UNKNOWN, Safe: false"
	}
	return fmt.Sprintf("Risk: %s, Safe: %t", r.RiskLevel, r.IsSafe)
}

// extractedTextOf returns the OCR fragments, never nil.
func extractedTextOf(outcomes map[backend.Kind]backend.Outcome) []string {
	out, ok := outcomes[backend.KindOCR]
	if !ok || !out.OK() {
		return []string{}
	}
	r := out.OCR()
	if r == nil || r.Texts == nil {
		return []string{}
	}
	return r.Texts
}
