package util

import (
	"strings"

	"github.com/router-for-me/AntiHubAPI/internal/registry"
)

// providerPreferences breaks registration-count ties for model families that
// more than one provider can serve. Listed providers move to the front of the
// candidate order; everything else keeps its registry order.
var providerPreferences = []struct {
	prefix    string
	providers []string
}{
	{prefix: "gemini-3-", providers: []string{"antigravity"}},
}

// GetProviderName returns the provider types able to serve modelID, best
// candidate first. Handlers walk the list until the allowlist admits one.
func GetProviderName(modelID string) []string {
	providers := registry.GetGlobalRegistry().GetModelProviders(modelID)
	if len(providers) < 2 {
		return providers
	}

	lowered := strings.ToLower(strings.TrimSpace(modelID))
	for _, pref := range providerPreferences {
		if !strings.HasPrefix(lowered, pref.prefix) {
			continue
		}
		return promoteProviders(providers, pref.providers)
	}
	return providers
}

// promoteProviders moves the preferred providers (in their stated order) to
// the front without reordering the remainder.
func promoteProviders(providers, preferred []string) []string {
	out := make([]string, 0, len(providers))
	taken := make(map[string]bool, len(preferred))
	for _, want := range preferred {
		for _, p := range providers {
			if p == want && !taken[p] {
				out = append(out, p)
				taken[p] = true
			}
		}
	}
	for _, p := range providers {
		if !taken[p] {
			out = append(out, p)
		}
	}
	return out
}
