package huggingface

import "strings"

// ModelPricing contains per-token pricing information for router models
// Prices are in USD per million tokens
type ModelPricing struct {
	PromptPrice     float64 // USD per 1M prompt tokens
	CompletionPrice float64 // USD per 1M completion tokens
}

// modelPricing contains hardcoded pricing for common router models, keyed
// by lowercased model ID
// TODO: Replace with dynamic pricing pulled from the router's models endpoint
var modelPricing = map[string]ModelPricing{
	"meta-llama/llama-3.1-8b-instruct": {
		PromptPrice:     0.055, // $0.055 per 1M prompt tokens
		CompletionPrice: 0.055, // $0.055 per 1M completion tokens
	},
	"meta-llama/llama-3.1-70b-instruct": {
		PromptPrice:     0.52, // $0.52 per 1M prompt tokens
		CompletionPrice: 0.75, // $0.75 per 1M completion tokens
	},
	"meta-llama/llama-3.1-405b-instruct": {
		PromptPrice:     2.70, // $2.70 per 1M prompt tokens
		CompletionPrice: 2.70, // $2.70 per 1M completion tokens
	},
	"meta-llama/llama-3.3-70b-instruct": {
		PromptPrice:     0.59, // $0.59 per 1M prompt tokens (estimate)
		CompletionPrice: 0.79, // $0.79 per 1M completion tokens (estimate)
	},
	"mistralai/mistral-7b-instruct-v0.3": {
		PromptPrice:     0.055, // $0.055 per 1M prompt tokens (estimate)
		CompletionPrice: 0.055, // $0.055 per 1M completion tokens (estimate)
	},
}

// DefaultPricingFallback is the fallback cost per request when model pricing is unknown
// Set to $0.01 (1 cent) per request as a conservative estimate
const DefaultPricingFallback = 0.01

// CalculateCost computes the cost of an API call based on token usage
// Returns cost in USD
func CalculateCost(model string, promptTokens, completionTokens int) float64 {
	pricing, found := modelPricing[strings.ToLower(model)]

	if !found {
		// Unknown model - use fallback pricing
		return DefaultPricingFallback
	}

	// Calculate cost: (tokens / 1,000,000) * price_per_million
	promptCost := (float64(promptTokens) / 1_000_000.0) * pricing.PromptPrice
	completionCost := (float64(completionTokens) / 1_000_000.0) * pricing.CompletionPrice

	return promptCost + completionCost
}

// GetPricing returns pricing information for a model, if available
func GetPricing(model string) (ModelPricing, bool) {
	pricing, found := modelPricing[strings.ToLower(model)]
	return pricing, found
}
