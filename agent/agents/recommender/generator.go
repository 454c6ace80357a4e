package recommender

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	contractx "github.com/tanpawarit/anti-churn-agent/agent/contract"
)

type generatorImpl struct {
	client       *openaisdk.Client
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int64
}

func newGenerator(client *openaisdk.Client, model string, systemPrompt string, temperature float32, maxTokens int) (*generatorImpl, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: openai client is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("%w: generator model is required", contractx.ErrValidation)
	}
	return &generatorImpl{
		client:       client,
		model:        strings.TrimSpace(model),
		systemPrompt: systemPrompt,
		temperature:  float64(temperature),
		maxTokens:    int64(maxTokens),
	}, nil
}

func (g *generatorImpl) Generate(ctx context.Context, req contractx.GenerationRequest) (string, error) {
	if strings.TrimSpace(req.Query) == "" {
		return "", fmt.Errorf("%w: query is required", contractx.ErrValidation)
	}

	resp, err := g.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(g.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(g.systemPrompt),
			openaisdk.UserMessage(renderGenerationInput(req)),
		},
		Temperature: openaisdk.Float(g.temperature),
		MaxTokens:   openaisdk.Int(g.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("%w: generator invoke: %v", contractx.ErrModelInvoke, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: generator returned no choices", contractx.ErrSchemaViolation)
	}
	draft := strings.TrimSpace(resp.Choices[0].Message.Content)
	if draft == "" {
		return "", fmt.Errorf("%w: generator returned an empty draft", contractx.ErrSchemaViolation)
	}
	return draft, nil
}

func renderGenerationInput(req contractx.GenerationRequest) string {
	var sb strings.Builder
	sb.WriteString(req.Query)
	if ctxBlock := strings.TrimSpace(req.Context); ctxBlock != "" {
		sb.WriteString("\n\nCustomer context:\n")
		sb.WriteString(ctxBlock)
	}
	if research := strings.TrimSpace(req.Research); research != "" {
		sb.WriteString("\n\n")
		sb.WriteString(research)
	}
	return sb.String()
}
