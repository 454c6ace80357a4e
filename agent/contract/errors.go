package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrValidation      = errors.New("validation failed")

	ErrGenerationUnavailable = errors.New("generation capability unavailable")
	ErrEvaluationUnavailable = errors.New("evaluation capability unavailable")
	ErrMalformedEvaluation   = errors.New("evaluation score out of range")
	ErrMemoryUnavailable     = errors.New("memory store unavailable")
	ErrInvalidSession        = errors.New("session id is empty")
	ErrInvalidQuery          = errors.New("query is empty")
)
