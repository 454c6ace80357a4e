package contract

import "fmt"

type AgentType string

const (
	AgentTypeGenerator AgentType = "generator"
	AgentTypeEvaluator AgentType = "evaluator"
)

// Verdict is the binary outcome of a recommendation evaluation.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

const (
	ScoreMin = 1
	ScoreMax = 10
)

// Evaluation pairs a numeric quality score with the verdict derived from it.
// The pairing is computed exclusively by the evaluator component; callers
// must never recompute a verdict from the score.
type Evaluation struct {
	Verdict  Verdict `json:"verdict"`
	Score    int     `json:"score"`
	Feedback string  `json:"feedback"`
}

// NewEvaluation derives the verdict for a raw score against the passing
// cutoff. Scores outside [ScoreMin, ScoreMax] are rejected rather than
// clamped; a clamped score would corrupt the retry loop's termination signal.
func NewEvaluation(score int, feedback string, cutoff int) (Evaluation, error) {
	if score < ScoreMin || score > ScoreMax {
		return Evaluation{}, fmt.Errorf("%w: score=%d", ErrMalformedEvaluation, score)
	}

	verdict := VerdictFail
	if score >= cutoff {
		verdict = VerdictPass
	}
	return Evaluation{
		Verdict:  verdict,
		Score:    score,
		Feedback: feedback,
	}, nil
}

// Passed reports whether the evaluation verdict is PASS.
func (e Evaluation) Passed() bool {
	return e.Verdict == VerdictPass
}

// CustomerRiskContext is the read-only churn signal for the customer a query
// refers to. ChurnRiskScore is in [0, 1].
type CustomerRiskContext struct {
	CustomerID     string  `json:"customer_id"`
	Industry       string  `json:"industry,omitempty"`
	ChurnRiskScore float64 `json:"churn_risk_score"`
}

// GenerationRequest is the input to the generator capability. Query already
// carries any accumulated evaluator feedback from prior failed attempts;
// Research is the optional web-research augmentation text.
type GenerationRequest struct {
	Query    string `json:"query"`
	Context  string `json:"context"`
	Research string `json:"research,omitempty"`
}
