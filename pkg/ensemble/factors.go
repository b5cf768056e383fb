package ensemble

import (
	"fmt"
	"strings"

	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/config"
)

// Interpreter maps backend outcomes to decision factors using the configured
// threshold rules. It holds only immutable derived state, so one Interpreter
// serves all requests concurrently.
type Interpreter struct {
	cfg       config.DecisionConfig
	sensitive map[int]bool
	blocked   []string
}

// NewInterpreter builds an interpreter from the decision configuration.
func NewInterpreter(cfg config.DecisionConfig) *Interpreter {
	sensitive := make(map[int]bool, len(cfg.SensitiveCategories))
	for _, id := range cfg.SensitiveCategories {
		sensitive[id] = true
	}

	blocked := make([]string, len(cfg.BlockedKeywords))
	for i, kw := range cfg.BlockedKeywords {
		blocked[i] = strings.ToLower(kw)
	}

	return &Interpreter{
		cfg:       cfg,
		sensitive: sensitive,
		blocked:   blocked,
	}
}

// weight returns the configured weight for a kind. Unconfigured kinds carry
// weight 1.0.
func (in *Interpreter) weight(kind backend.Kind) float64 {
	if w, ok := in.cfg.Weights[string(kind)]; ok {
		return w
	}
	return 1.0
}

// Interpret derives a decision factor from one backend outcome. Failures and
// timeouts become UNKNOWN factors with weight 0.
func (in *Interpreter) Interpret(out backend.Outcome) Factor {
	if !out.OK() {
		reason := "backend failed"
		if out.Status == backend.StatusTimeout {
			reason = "backend timed out"
		}
		return Factor{
			Kind:    out.Kind,
			Version: out.Version,
			Vote:    VoteUnknown,
			Reason:  reason,
			Status:  out.Status,
			Latency: out.Latency,
		}
	}

	factor := Factor{
		Kind:    out.Kind,
		Version: out.Version,
		Weight:  in.weight(out.Kind),
		Status:  out.Status,
		Latency: out.Latency,
	}

	switch out.Kind {
	case backend.KindClassifier:
		factor.Vote, factor.Confidence, factor.Reason = in.interpretClassifier(out.Classifier())
	case backend.KindSafety:
		factor.Vote, factor.Confidence, factor.Reason = in.interpretSafety(out.Safety())
	case backend.KindOCR:
		factor.Vote, factor.Confidence, factor.Reason = in.interpretOCR(out.OCR())
	default:
		factor.Vote = VoteUnknown
		factor.Weight = 0
		factor.Reason = "unrecognized backend kind"
	}

	return factor
}

// interpretClassifier applies the content category rules: sensitive
// categories reject, low-confidence classifications escalate.
func (in *Interpreter) interpretClassifier(r *ClassifierPayload) (Vote, float64, string) {
	if r == nil {
		return VoteUnknown, 0, "missing classifier payload"
	}
	if in.sensitive[r.ClassID] {
		return VoteReject, r.Confidence, "sensitive category"
	}
	if r.Confidence < in.cfg.ContentConfidence {
		return VoteEscalate, r.Confidence, "low classification confidence"
	}
	return VoteApprove, r.Confidence, "appropriate content category"
}

// interpretSafety applies the safety rules: high risk or an unsafe verdict
// rejects, moderate risk or an elevated NSFW score escalates.
func (in *Interpreter) interpretSafety(r *SafetyPayload) (Vote, float64, string) {
	if r == nil {
		return VoteUnknown, 0, "missing safety payload"
	}

	risk := maxRiskScore(r.Scores)
	if !r.IsSafe || r.RiskLevel == "HIGH" || risk >= in.cfg.SafetyReject {
		return VoteReject, 0.95, "safety violation"
	}
	if r.RiskLevel == "MEDIUM" || risk >= in.cfg.SafetyEscalate || nsfwScore(r.Scores) > in.cfg.NSFWEscalate {
		return VoteEscalate, 0.7, "moderate risk detected"
	}

	safe := 1.0
	if len(r.Scores) > backend.SafetyScoreSafe {
		safe = r.Scores[backend.SafetyScoreSafe]
	}
	return VoteApprove, safe, "content appears safe"
}

// interpretOCR applies the text rules: blocked keywords reject, low
// recognition confidence escalates, no text approves outright.
func (in *Interpreter) interpretOCR(r *OCRPayload) (Vote, float64, string) {
	if r == nil {
		return VoteUnknown, 0, "missing ocr payload"
	}

	combined := strings.ToLower(strings.TrimSpace(strings.Join(r.Texts, " ")))
	if combined == "" {
		return VoteApprove, 1.0, "no text detected"
	}

	for _, keyword := range in.blocked {
		if strings.Contains(combined, keyword) {
			return VoteReject, 0.9, fmt.Sprintf("blocked keyword: %s", keyword)
		}
	}

	avg := meanOrZero(r.Confidences)
	if avg < in.cfg.TextConfidence {
		return VoteEscalate, avg, "low ocr confidence"
	}
	return VoteApprove, avg, "text content acceptable"
}

// Payload aliases keep the interpretation rules readable without importing
// backend types at every call site.
type (
	ClassifierPayload = backend.ClassifierResult
	SafetyPayload     = backend.SafetyResult
	OCRPayload        = backend.OCRResult
)

// maxRiskScore returns the highest non-safe score, 0 when absent.
func maxRiskScore(scores []float64) float64 {
	var max float64
	for i, s := range scores {
		if i == backend.SafetyScoreSafe {
			continue
		}
		if s > max {
			max = s
		}
	}
	return max
}

// nsfwScore returns the NSFW score, 0 when absent.
func nsfwScore(scores []float64) float64 {
	if len(scores) > backend.SafetyScoreNSFW {
		return scores[backend.SafetyScoreNSFW]
	}
	return 0
}

// meanOrZero averages values, returning 0 for an empty slice.
func meanOrZero(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
