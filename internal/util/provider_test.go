package util

import (
	"reflect"
	"testing"

	"github.com/router-for-me/AntiHubAPI/internal/registry"
)

// registerRoutingClient registers one client in the global registry and
// removes it when the test finishes.
func registerRoutingClient(t *testing.T, clientID, provider, modelID string) {
	t.Helper()
	reg := registry.GetGlobalRegistry()
	reg.RegisterClient(clientID, provider, []*registry.ModelInfo{
		{ID: modelID, Object: "model", OwnedBy: "test"},
	})
	t.Cleanup(func() { reg.UnregisterClient(clientID) })
}

func TestGetProviderNamePrefersAntigravityForGemini3(t *testing.T) {
	// gemini-cli holds more clients, so without the family preference it
	// would sort first.
	const modelID = "gemini-3-pro-routing-pref"
	registerRoutingClient(t, "routing-pref-gcli-1", "gemini-cli", modelID)
	registerRoutingClient(t, "routing-pref-gcli-2", "gemini-cli", modelID)
	registerRoutingClient(t, "routing-pref-agy", "antigravity", modelID)

	got := GetProviderName(modelID)
	want := []string{"antigravity", "gemini-cli"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GetProviderName(%s) = %v, want %v", modelID, got, want)
	}
}

func TestGetProviderNameMatchesFamilyCaseInsensitively(t *testing.T) {
	const modelID = "Gemini-3-Pro-Routing-Case"
	registerRoutingClient(t, "routing-case-gcli-1", "gemini-cli", modelID)
	registerRoutingClient(t, "routing-case-gcli-2", "gemini-cli", modelID)
	registerRoutingClient(t, "routing-case-agy", "antigravity", modelID)

	got := GetProviderName(modelID)
	if len(got) != 2 || got[0] != "antigravity" {
		t.Fatalf("GetProviderName(%s) = %v, want antigravity first", modelID, got)
	}
}

func TestGetProviderNameSingleProviderUnchanged(t *testing.T) {
	const modelID = "gemini-3-flash-routing-single"
	registerRoutingClient(t, "routing-single-gcli", "gemini-cli", modelID)

	got := GetProviderName(modelID)
	if len(got) != 1 || got[0] != "gemini-cli" {
		t.Fatalf("GetProviderName(%s) = %v, want [gemini-cli]", modelID, got)
	}
}

func TestGetProviderNameLeavesOtherFamiliesAlone(t *testing.T) {
	const modelID = "qwen3-coder-plus-routing-plain"
	registerRoutingClient(t, "routing-plain-qwen-1", "qwen", modelID)
	registerRoutingClient(t, "routing-plain-qwen-2", "qwen", modelID)
	registerRoutingClient(t, "routing-plain-codex", "codex", modelID)

	got := GetProviderName(modelID)
	want := []string{"qwen", "codex"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GetProviderName(%s) = %v, want %v", modelID, got, want)
	}
}

func TestPromoteProviders(t *testing.T) {
	cases := []struct {
		name      string
		providers []string
		preferred []string
		want      []string
	}{
		{
			name:      "preferred moves to front",
			providers: []string{"gemini-cli", "antigravity", "qwen"},
			preferred: []string{"antigravity"},
			want:      []string{"antigravity", "gemini-cli", "qwen"},
		},
		{
			name:      "absent preference keeps order",
			providers: []string{"gemini-cli", "qwen"},
			preferred: []string{"antigravity"},
			want:      []string{"gemini-cli", "qwen"},
		},
		{
			name:      "preferences keep their stated order",
			providers: []string{"kiro", "codex", "qwen"},
			preferred: []string{"qwen", "kiro"},
			want:      []string{"qwen", "kiro", "codex"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := promoteProviders(tc.providers, tc.preferred)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("promoteProviders(%v, %v) = %v, want %v", tc.providers, tc.preferred, got, tc.want)
			}
		})
	}
}
