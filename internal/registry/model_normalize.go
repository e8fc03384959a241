package registry

import "strings"

// claudeFamilies are the model families whose dash versions collapse to the
// dot form upstreams expect (claude-sonnet-4-6 -> claude-sonnet-4.6).
var claudeFamilies = []string{"claude-sonnet", "claude-opus", "claude-haiku"}

// NormalizeModelID maps friendly client model ids onto canonical upstream
// ids. Provider prefixes (openrouter-style "vendor/model") are preserved and
// only the last segment is normalized. The "-thinking" suffix is a UI alias,
// never part of the upstream id, and is stripped before matching. Ids outside
// the Claude 4.x families pass through unchanged.
func NormalizeModelID(model string) string {
	raw := strings.TrimSpace(model)
	if raw == "" {
		return ""
	}

	prefix := ""
	modelID := raw
	if idx := strings.LastIndex(raw, "/"); idx >= 0 {
		prefix = raw[:idx]
		modelID = strings.TrimSpace(raw[idx+1:])
	}
	if modelID == "" {
		return raw
	}

	lowered := strings.ToLower(modelID)
	if strings.HasSuffix(lowered, "-thinking") {
		modelID = modelID[:len(modelID)-len("-thinking")]
		lowered = strings.ToLower(modelID)
	}

	normalized := modelID
	for _, family := range claudeFamilies {
		if !strings.HasPrefix(lowered, family+"-") {
			continue
		}
		switch {
		case strings.Contains(lowered, "4-6"), strings.Contains(lowered, "4.6"):
			normalized = family + "-4.6"
		case strings.Contains(lowered, "4-5"), strings.Contains(lowered, "4.5"):
			normalized = family + "-4.5"
		case strings.HasPrefix(lowered, family+"-4"):
			// date-suffixed ids like claude-sonnet-4-20250514
			normalized = family + "-4"
		}
		break
	}

	if prefix == "" {
		return normalized
	}
	return prefix + "/" + normalized
}
