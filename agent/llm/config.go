package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/anti-churn-agent/agent/contract"
	openrouterx "github.com/tanpawarit/anti-churn-agent/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	GeneratorModel       string  `envconfig:"GENERATOR_MODEL" split_words:"true"`
	EvaluatorModel       string  `envconfig:"EVALUATOR_MODEL" split_words:"true"`
	GeneratorTemperature float32 `envconfig:"GENERATOR_TEMPERATURE" split_words:"true" default:"-1"`
	EvaluatorTemperature float32 `envconfig:"EVALUATOR_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model configuration for one agent role,
// applying per-role model and temperature overrides on top of the defaults.
func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch agentType {
	case contractx.AgentTypeGenerator:
		if v := strings.TrimSpace(c.GeneratorModel); v != "" {
			modelName = v
		}
		if c.GeneratorTemperature >= 0 {
			temp = c.GeneratorTemperature
		}
	case contractx.AgentTypeEvaluator:
		if v := strings.TrimSpace(c.EvaluatorModel); v != "" {
			modelName = v
		}
		if c.EvaluatorTemperature >= 0 {
			temp = c.EvaluatorTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
