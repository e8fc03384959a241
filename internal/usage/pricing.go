// Package usage provides usage tracking and cost estimation.
package usage

import "strings"

// ModelPricing defines the cost per million tokens for a model.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
	CachedPerMillion float64
}

// PricingTable maps model name prefixes to pricing in USD per million
// tokens. Lookup is longest-prefix, so family rows act as fallbacks for
// dated ids.
var PricingTable = map[string]ModelPricing{
	// Anthropic Claude families served through Kiro
	"claude-opus-4":   {15.00, 75.00, 1.50},
	"claude-sonnet-4": {3.00, 15.00, 0.30},
	"claude-haiku-4":  {0.80, 4.00, 0.08},

	// OpenAI GPT/Codex families served through Codex
	"gpt-5-codex": {8.00, 24.00, 4.00},
	"gpt-5":       {10.00, 30.00, 5.00},
	"o3":          {2.00, 8.00, 0.50},

	// Google Gemini families served through gemini-cli
	"gemini-3-pro":     {1.25, 5.00, 0.3125},
	"gemini-3-flash":   {0.15, 0.60, 0.0375},
	"gemini-2.5-pro":   {1.25, 5.00, 0.3125},
	"gemini-2.5-flash": {0.15, 0.60, 0.0375},

	// Qwen models
	"qwen3-coder": {0.80, 2.00, 0.40},
	"qwen-turbo":  {0.30, 0.60, 0.15},
	"qwen-plus":   {0.80, 2.00, 0.40},
	"qwen-max":    {2.40, 9.60, 1.20},

	// Zhipu GLM models served through zai
	"glm-4.6": {1.20, 3.60, 0.60},
	"glm-4.5": {1.00, 3.00, 0.50},
}

// EstimateCost returns the estimated USD cost for the given counts. The
// second return reports whether a pricing row matched; unknown models cost
// zero rather than guessing.
func EstimateCost(model string, counts Counts) (float64, bool) {
	pricing, ok := lookupPricing(model)
	if !ok {
		return 0, false
	}
	billedInput := counts.InputTokens - counts.CachedTokens
	if billedInput < 0 {
		billedInput = 0
	}
	cost := float64(billedInput) * pricing.InputPerMillion / 1e6
	cost += float64(counts.CachedTokens) * pricing.CachedPerMillion / 1e6
	cost += float64(counts.OutputTokens) * pricing.OutputPerMillion / 1e6
	return cost, true
}

func lookupPricing(model string) (ModelPricing, bool) {
	m := strings.ToLower(strings.TrimSpace(model))
	if m == "" {
		return ModelPricing{}, false
	}
	if pricing, ok := PricingTable[m]; ok {
		return pricing, true
	}
	bestLen := 0
	var best ModelPricing
	for prefix, pricing := range PricingTable {
		if strings.HasPrefix(m, prefix) && len(prefix) > bestLen {
			bestLen = len(prefix)
			best = pricing
		}
	}
	return best, bestLen > 0
}
