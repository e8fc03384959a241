package util

import (
	"strconv"
	"strings"
)

// Metadata keys attached to a request when a thinking suffix is stripped from
// the inbound model id. Translators read these to populate provider-native
// reasoning fields.
const (
	ThinkingOriginalModelMetadataKey = "thinking_original_model"
	ThinkingBudgetMetadataKey        = "thinking_budget"
	ReasoningEffortMetadataKey       = "reasoning_effort"
)

// NormalizeThinkingModel splits a model id carrying an inline thinking
// control from its base id. Two encodings are recognized:
//
//	base(16000)              -> budget tokens
//	base(high)               -> reasoning effort
//	base-thinking-16000      -> budget tokens
//	base-thinking-high       -> reasoning effort
//
// The returned metadata is nil when the id carries no recognized suffix.
func NormalizeThinkingModel(model string) (string, map[string]any) {
	trimmed := strings.TrimSpace(model)
	if trimmed == "" {
		return trimmed, nil
	}

	if strings.HasSuffix(trimmed, ")") {
		if idx := strings.LastIndex(trimmed, "("); idx > 0 {
			base := strings.TrimSpace(trimmed[:idx])
			value := strings.TrimSpace(trimmed[idx+1 : len(trimmed)-1])
			if base != "" && value != "" {
				if budget, err := strconv.Atoi(value); err == nil {
					return base, thinkingMetadata(trimmed, ThinkingBudgetMetadataKey, budget)
				}
				if level, ok := reasoningEffortLevel(value); ok {
					return base, thinkingMetadata(trimmed, ReasoningEffortMetadataKey, level)
				}
			}
		}
		return trimmed, nil
	}

	lower := strings.ToLower(trimmed)
	if idx := strings.LastIndex(lower, "-thinking-"); idx > 0 {
		base := trimmed[:idx]
		value := trimmed[idx+len("-thinking-"):]
		if budget, err := strconv.Atoi(value); err == nil {
			return base, thinkingMetadata(trimmed, ThinkingBudgetMetadataKey, budget)
		}
		if level, ok := reasoningEffortLevel(value); ok {
			return base, thinkingMetadata(trimmed, ReasoningEffortMetadataKey, level)
		}
	}

	return trimmed, nil
}

func thinkingMetadata(original, key string, value any) map[string]any {
	return map[string]any{
		ThinkingOriginalModelMetadataKey: original,
		key:                              value,
	}
}

func reasoningEffortLevel(value string) (string, bool) {
	level := strings.ToLower(strings.TrimSpace(value))
	switch level {
	case "none", "auto", "minimal", "low", "medium", "high", "xhigh":
		return level, true
	}
	return "", false
}
