package ai

import (
	"math"
	"sort"
)

// Per-1K-token pricing in USD.
type modelPrice struct {
	Prompt     float64
	Completion float64
}

var pricing = map[string]modelPrice{
	"gpt-3.5-turbo":       {Prompt: 0.0005, Completion: 0.0015},
	"gpt-3.5-turbo-16k":   {Prompt: 0.001, Completion: 0.002},
	"gpt-4":               {Prompt: 0.03, Completion: 0.06},
	"gpt-4-turbo-preview": {Prompt: 0.01, Completion: 0.03},
}

// KnownModels lists the models with configured pricing, sorted.
func KnownModels() []string {
	models := make([]string, 0, len(pricing))
	for model := range pricing {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// Cost computes the USD cost of one call, rounded to 6 decimals.
// Unknown models are billed at the gpt-3.5-turbo rate.
func Cost(model string, usage Usage) float64 {
	price, ok := pricing[model]
	if !ok {
		price = pricing["gpt-3.5-turbo"]
	}
	cost := float64(usage.PromptTokens)/1000*price.Prompt +
		float64(usage.CompletionTokens)/1000*price.Completion
	return math.Round(cost*1e6) / 1e6
}

// EstimateTokens approximates the token count of text as one token
// per four characters, rounded up.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// SplitEstimate divides an estimated total into prompt and completion
// shares when the provider omits usage, weighted 30/70.
func SplitEstimate(total int) Usage {
	prompt := total * 30 / 100
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: total - prompt,
		TotalTokens:      total,
	}
}
