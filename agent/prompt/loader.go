package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/recommender.txt
	recommenderRaw string

	//go:embed template/evaluator.txt
	evaluatorRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Recommender string
	Evaluator   string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Recommender: strings.TrimSpace(recommenderRaw),
		Evaluator:   strings.TrimSpace(evaluatorRaw),
	}
}
