package recommender

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/anti-churn-agent/agent/contract"
)

// DefaultPassCutoff is the minimum score that earns a PASS verdict.
const DefaultPassCutoff = 7

type evaluatorImpl struct {
	runner compose.Runnable[map[string]any, evaluatorLLMOutput]
	cutoff int
}

type evaluatorLLMOutput struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

func newEvaluator(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, cutoff int) (*evaluatorImpl, error) {
	if cutoff < contractx.ScoreMin || cutoff > contractx.ScoreMax {
		return nil, fmt.Errorf("%w: pass cutoff %d out of range", contractx.ErrValidation, cutoff)
	}

	runner, err := compileEvaluatorGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile evaluator graph: %v", contractx.ErrModelInvoke, err)
	}
	return &evaluatorImpl{runner: runner, cutoff: cutoff}, nil
}

func (e *evaluatorImpl) Evaluate(ctx context.Context, query string, draft string) (contractx.Evaluation, error) {
	if strings.TrimSpace(draft) == "" {
		return contractx.Evaluation{}, fmt.Errorf("%w: draft is required", contractx.ErrValidation)
	}

	payload := map[string]any{
		"question": query,
		"draft":    draft,
	}
	inputBytes, err := json.Marshal(payload)
	if err != nil {
		return contractx.Evaluation{}, fmt.Errorf("%w: marshal evaluator payload: %v", contractx.ErrValidation, err)
	}

	out, err := e.runner.Invoke(ctx, map[string]any{
		"input": string(inputBytes),
	})
	if err != nil {
		return contractx.Evaluation{}, fmt.Errorf("%w: evaluator invoke: %v", contractx.ErrModelInvoke, err)
	}

	eval, err := contractx.NewEvaluation(out.Score, strings.TrimSpace(out.Feedback), e.cutoff)
	if err != nil {
		return contractx.Evaluation{}, err
	}
	return eval, nil
}
