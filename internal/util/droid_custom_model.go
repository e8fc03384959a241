package util

import (
	"strings"
	"unicode"
)

// droidFamilyMarkers are the ":-<family>" separators Factory Droid inserts
// between its label prefix and the real model id. Scanning for these keeps a
// "reasoning:-low" fragment from being mistaken for the id boundary.
var droidFamilyMarkers = []string{
	":-antigravity-",
	":-gemini-",
	":-gpt-",
	":-claude-",
	":-qwen",
	":-glm-",
}

// NormalizeDroidCustomModel maps a Factory Droid "custom:*" model id onto the
// id this gateway routes on.
//
//	custom:AntiHub-(local):-gemini-claude-opus-4-5-thinking-12 -> gemini-claude-opus-4-5-thinking
//	custom:AntiHub-(local):-gpt-5.2-(reasoning:-medium)-2      -> gpt-5.2(medium)
func NormalizeDroidCustomModel(model string) string {
	model = strings.TrimSpace(model)
	if !strings.HasPrefix(strings.ToLower(model), "custom:") {
		return model
	}

	candidate := droidModelCandidate(strings.TrimPrefix(model, "custom:"))
	candidate = trimDroidIndexSuffix(candidate)

	if mapped, ok := droidReasoningSuffix(candidate); ok {
		return mapped
	}
	return candidate
}

// droidModelCandidate cuts the Droid label prefix off the id. A known family
// marker wins over the plain last-":-" fallback so the reasoning fragment
// stays attached to the id it belongs to.
func droidModelCandidate(raw string) string {
	lower := strings.ToLower(raw)
	for _, marker := range droidFamilyMarkers {
		if idx := strings.LastIndex(lower, marker); idx >= 0 {
			return strings.TrimSpace(raw[idx+len(":-"):])
		}
	}
	if idx := strings.LastIndex(raw, ":-"); idx >= 0 && idx+2 < len(raw) {
		return strings.TrimSpace(raw[idx+2:])
	}
	return strings.TrimSpace(raw)
}

// droidReasoningSuffix rewrites Droid's "-(reasoning:-level)" encoding into
// the "(level)" form NormalizeThinkingModel understands. The second return is
// false when the candidate carries no recognizable reasoning fragment.
func droidReasoningSuffix(candidate string) (string, bool) {
	const marker = "-(reasoning:-"
	idx := strings.Index(strings.ToLower(candidate), marker)
	if idx < 0 {
		return "", false
	}
	base := strings.TrimSpace(candidate[:idx])
	if base == "" {
		return "", false
	}
	rest := candidate[idx+len(marker):]
	if end := strings.Index(rest, ")"); end >= 0 {
		rest = rest[:end]
	}
	level, ok := reasoningEffortLevel(strings.Trim(rest, "-"))
	if !ok {
		return "", false
	}
	return base + "(" + level + ")", true
}

// trimDroidIndexSuffix drops the trailing "-<digits>" counter Droid appends
// to deduplicate custom entries.
func trimDroidIndexSuffix(s string) string {
	s = strings.TrimSpace(s)
	cut := strings.LastIndex(s, "-")
	if cut < 0 || cut == len(s)-1 {
		return s
	}
	for _, r := range s[cut+1:] {
		if !unicode.IsDigit(r) {
			return s
		}
	}
	return strings.TrimSpace(s[:cut])
}
