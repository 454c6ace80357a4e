package contract

import "context"

// Generator produces a recommendation draft. Failures are transient by
// contract; callers decide retry policy.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// Evaluator scores a draft against the original query and derives the
// pass/fail verdict. May fail with ErrEvaluationUnavailable (transient) or
// ErrMalformedEvaluation (contract violation, never retried).
type Evaluator interface {
	Evaluate(ctx context.Context, query string, draft string) (Evaluation, error)
}

type Registry interface {
	Generator() Generator
	Evaluator() Evaluator
}

// Researcher performs the optional web-research augmentation for high-risk
// customers. Failure degrades gracefully; the loop proceeds unaugmented.
type Researcher interface {
	Research(ctx context.Context, topicHint string) (string, error)
}

// RiskSource resolves the churn risk score for a customer id.
type RiskSource interface {
	GetRisk(ctx context.Context, customerID string) (float64, error)
}

// LoopObserver receives structured progress events from the recommendation
// loop. Implementations must be fast and must not block; the loop's control
// flow does not depend on them.
type LoopObserver interface {
	AttemptStarted(attempt int)
	AttemptEvaluated(attempt int, eval Evaluation)
	AttemptFailed(attempt int, err error)
}
