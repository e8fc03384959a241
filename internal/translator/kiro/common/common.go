// Package common holds helpers shared by the Kiro translator packages:
// tolerant readers for decoded event payloads and the thinking-mode marker
// text Kiro models read from the system prompt.
package common

import (
	"fmt"
	"strings"
)

// Kiro models stream reasoning inline, wrapped in these tags.
const (
	ThinkingStartTag = "<thinking>"
	ThinkingEndTag   = "</thinking>"
)

// Thinking budget bounds accepted through the system prompt marker.
const (
	DefaultThinkingBudget = 20000
	MaxThinkingBudget     = 24576
	DefaultThinkingEffort = "high"
)

// thinkingMarkers are the tags a system prompt may already carry; a prompt
// containing any of them keeps its own thinking configuration.
var thinkingMarkers = []string{"<thinking_mode>", "<max_thinking_length>", "<thinking_effort>"}

// GetString returns the string at key, untrimmed, or "" when the key is
// absent or holds a non-string. Use for content fields where whitespace is
// part of the payload.
func GetString(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

// GetStringValue returns the trimmed string at key, or "" when the key is
// absent or holds a non-string. Use for identifiers and names.
func GetStringValue(m map[string]any, key string) string {
	return strings.TrimSpace(GetString(m, key))
}

// ThinkingHint derives the marker text for a decoded Claude request, or ""
// when the request does not enable thinking.
//
// The thinking field accepts the documented object form
// ({"type":"enabled","budget_tokens":N}), the adaptive form, a bare true and
// the string forms "enabled"/"adaptive". Adaptive mode reads its effort from
// output_config.effort.
func ThinkingHint(req map[string]any) string {
	switch thinkingMode(req["thinking"]) {
	case "adaptive":
		return fmt.Sprintf("<thinking_mode>adaptive</thinking_mode><thinking_effort>%s</thinking_effort>", thinkingEffort(req))
	case "enabled":
		return fmt.Sprintf("<thinking_mode>enabled</thinking_mode><max_thinking_length>%d</max_thinking_length>", thinkingBudget(req["thinking"]))
	}
	return ""
}

// InjectThinkingHint prepends hint to the system text. A prompt that already
// carries a thinking marker is returned unchanged, and an empty system text
// becomes the hint alone.
func InjectThinkingHint(system, hint string) string {
	if hint == "" {
		return system
	}
	for _, marker := range thinkingMarkers {
		if strings.Contains(system, marker) {
			return system
		}
	}
	if system == "" {
		return hint
	}
	return hint + "\n\n" + system
}

func thinkingMode(cfg any) string {
	switch v := cfg.(type) {
	case bool:
		if v {
			return "enabled"
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "enabled", "adaptive":
			return strings.ToLower(strings.TrimSpace(v))
		}
	case map[string]any:
		switch strings.ToLower(GetStringValue(v, "type")) {
		case "enabled":
			return "enabled"
		case "adaptive":
			return "adaptive"
		}
		if thinkingBudgetValue(v) > 0 {
			return "enabled"
		}
	}
	return ""
}

func thinkingBudget(cfg any) int {
	m, ok := cfg.(map[string]any)
	if !ok {
		return DefaultThinkingBudget
	}
	b := thinkingBudgetValue(m)
	if b <= 0 {
		return DefaultThinkingBudget
	}
	if b > MaxThinkingBudget {
		return MaxThinkingBudget
	}
	return b
}

// thinkingBudgetValue reads budget_tokens; JSON numbers decode as float64.
func thinkingBudgetValue(m map[string]any) int {
	switch v := m["budget_tokens"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func thinkingEffort(req map[string]any) string {
	oc, ok := req["output_config"].(map[string]any)
	if !ok {
		oc, ok = req["outputConfig"].(map[string]any)
	}
	if ok {
		if effort := strings.ToLower(GetStringValue(oc, "effort")); effort != "" {
			return effort
		}
	}
	return DefaultThinkingEffort
}
