// Package recommender builds the two model-backed roles of the
// recommendation loop: the generator that drafts retention advice and the
// evaluator that scores each draft.
package recommender

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/anti-churn-agent/agent/contract"
	llmx "github.com/tanpawarit/anti-churn-agent/agent/llm"
	promptx "github.com/tanpawarit/anti-churn-agent/agent/prompt"
	openrouterx "github.com/tanpawarit/anti-churn-agent/pkg/openrouter"
)

type registryImpl struct {
	generator contractx.Generator
	evaluator contractx.Evaluator
}

func (r *registryImpl) Generator() contractx.Generator {
	return r.generator
}

func (r *registryImpl) Evaluator() contractx.Evaluator {
	return r.evaluator
}

func NewRegistry(ctx context.Context, cfg llmx.Config, passCutoff int) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if passCutoff == 0 {
		passCutoff = DefaultPassCutoff
	}

	prompts := promptx.LoadPromptSet()

	generatorModelCfg := cfg.OpenRouterFor(contractx.AgentTypeGenerator)
	client := openrouterx.NewClient(generatorModelCfg)
	if client == nil {
		return nil, fmt.Errorf("%w: create generator client", contractx.ErrModelInvoke)
	}
	generator, err := newGenerator(
		client,
		generatorModelCfg.Model,
		prompts.Recommender,
		generatorModelCfg.Temperature,
		cfg.MaxCompletionToken,
	)
	if err != nil {
		return nil, err
	}

	evaluatorModelCfg := cfg.OpenRouterFor(contractx.AgentTypeEvaluator)
	evaluatorModel, err := evaluatorModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create evaluator model: %v", contractx.ErrModelInvoke, err)
	}
	evaluator, err := newEvaluator(ctx, evaluatorModel, prompts.Evaluator, passCutoff)
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		generator: generator,
		evaluator: evaluator,
	}, nil
}
