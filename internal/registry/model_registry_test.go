package registry

import (
	"strconv"
	"sync"
	"testing"
)

func TestRegisterClientRecordsModels(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("kiro-1", "kiro", []*ModelInfo{
		{ID: "claude-sonnet-4-5", OwnedBy: "anthropic", Type: "claude"},
		{ID: "claude-haiku-4-5", OwnedBy: "anthropic", Type: "claude"},
	})

	if got := r.GetModelCount("claude-sonnet-4-5"); got != 1 {
		t.Errorf("GetModelCount(claude-sonnet-4-5) = %d, want 1", got)
	}
	if !r.ClientSupportsModel("kiro-1", "claude-haiku-4-5") {
		t.Error("client should support claude-haiku-4-5")
	}
	if got := r.GetModelProviders("claude-sonnet-4-5"); len(got) != 1 || got[0] != "kiro" {
		t.Errorf("GetModelProviders = %v, want [kiro]", got)
	}
}

func TestRegisterClientSkipsNilAndUnnamedModels(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("codex-1", "codex", []*ModelInfo{
		nil,
		{OwnedBy: "openai"},
		{ID: "gpt-5.2", OwnedBy: "openai"},
	})

	if got := len(r.models); got != 1 {
		t.Fatalf("registered models = %d, want 1", got)
	}
	if r.GetModelInfo("gpt-5.2") == nil {
		t.Error("gpt-5.2 should be registered")
	}
}

func TestRegisterClientWithoutValidModelsRemovesClient(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("kiro-1", "kiro", []*ModelInfo{{ID: "claude-sonnet-4-5"}})
	r.RegisterClient("kiro-1", "kiro", nil)

	if r.ClientSupportsModel("kiro-1", "claude-sonnet-4-5") {
		t.Error("client should have been removed")
	}
	if got := r.GetModelCount("claude-sonnet-4-5"); got != 0 {
		t.Errorf("GetModelCount = %d, want 0", got)
	}
	if _, ok := r.clientProviders["kiro-1"]; ok {
		t.Error("provider mapping should have been removed")
	}
}

func TestRegisterClientReplacesPreviousRegistration(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("agy-1", "antigravity", []*ModelInfo{
		{ID: "gemini-3-pro-preview", OwnedBy: "google"},
		{ID: "gemini-3-flash-preview", OwnedBy: "google"},
	})
	r.RegisterClient("agy-1", "gemini-cli", []*ModelInfo{
		{ID: "gemini-3-pro-preview", OwnedBy: "google"},
	})

	if got := r.GetModelCount("gemini-3-flash-preview"); got != 0 {
		t.Errorf("dropped model count = %d, want 0", got)
	}
	if got := r.GetModelProviders("gemini-3-pro-preview"); len(got) != 1 || got[0] != "gemini-cli" {
		t.Errorf("GetModelProviders = %v, want [gemini-cli]", got)
	}
}

func TestRegisterClientDeduplicatesModelIDs(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("kiro-1", "kiro", []*ModelInfo{
		{ID: "claude-opus-4-5", DisplayName: "first"},
		{ID: "claude-opus-4-5", DisplayName: "second"},
	})

	models := r.GetModelsForClient("kiro-1")
	if len(models) != 1 {
		t.Fatalf("GetModelsForClient returned %d models, want 1", len(models))
	}
	// The later entry wins when a client repeats an id.
	if models[0].DisplayName != "second" {
		t.Errorf("DisplayName = %q, want %q", models[0].DisplayName, "second")
	}
	if got := r.GetModelCount("claude-opus-4-5"); got != 1 {
		t.Errorf("GetModelCount = %d, want 1", got)
	}
}

func TestSharedModelCountedPerClient(t *testing.T) {
	r := NewModelRegistry()
	for _, id := range []string{"kiro-1", "kiro-2", "kiro-3"} {
		r.RegisterClient(id, "kiro", []*ModelInfo{{ID: "claude-sonnet-4-5", OwnedBy: "anthropic"}})
	}

	if got := r.GetModelCount("claude-sonnet-4-5"); got != 3 {
		t.Errorf("GetModelCount = %d, want 3", got)
	}

	r.UnregisterClient("kiro-2")
	if got := r.GetModelCount("claude-sonnet-4-5"); got != 2 {
		t.Errorf("GetModelCount after unregister = %d, want 2", got)
	}
}

func TestUnregisterClientDropsExclusiveModels(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("kiro-1", "kiro", []*ModelInfo{
		{ID: "claude-sonnet-4-5"},
		{ID: "claude-opus-4-5"},
	})
	r.RegisterClient("kiro-2", "kiro", []*ModelInfo{{ID: "claude-sonnet-4-5"}})

	r.UnregisterClient("kiro-1")

	if r.GetModelInfo("claude-opus-4-5") != nil {
		t.Error("exclusive model should be dropped with its client")
	}
	if got := r.GetModelCount("claude-sonnet-4-5"); got != 1 {
		t.Errorf("shared model count = %d, want 1", got)
	}

	// Unknown ids are a no-op.
	r.UnregisterClient("ghost")
	if got := r.GetModelCount("claude-sonnet-4-5"); got != 1 {
		t.Errorf("count after no-op unregister = %d, want 1", got)
	}
}

func TestQuotaMarksAffectAvailability(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("kiro-1", "kiro", []*ModelInfo{{ID: "claude-opus-4-5"}})
	r.RegisterClient("kiro-2", "kiro", []*ModelInfo{{ID: "claude-opus-4-5"}})

	r.SetModelQuotaExceeded("kiro-1", "claude-opus-4-5")
	if got := r.GetModelCount("claude-opus-4-5"); got != 1 {
		t.Errorf("count with one exhausted client = %d, want 1", got)
	}

	r.ClearModelQuotaExceeded("kiro-1", "claude-opus-4-5")
	if got := r.GetModelCount("claude-opus-4-5"); got != 2 {
		t.Errorf("count after clearing = %d, want 2", got)
	}

	// Marks against unknown models are ignored.
	r.SetModelQuotaExceeded("kiro-1", "claude-9")
	r.ClearModelQuotaExceeded("kiro-1", "claude-9")
	if got := r.GetModelCount("claude-opus-4-5"); got != 2 {
		t.Errorf("count after unknown-model marks = %d, want 2", got)
	}
}

func TestSuspendAndResumeClientModel(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("gcli-1", "gemini-cli", []*ModelInfo{{ID: "gemini-3-pro-preview"}})
	r.RegisterClient("gcli-2", "gemini-cli", []*ModelInfo{{ID: "gemini-3-pro-preview"}})

	r.SuspendClientModel("gcli-1", "gemini-3-pro-preview", "quota cooldown")
	if got := r.GetModelCount("gemini-3-pro-preview"); got != 1 {
		t.Errorf("count while suspended = %d, want 1", got)
	}

	r.ResumeClientModel("gcli-1", "gemini-3-pro-preview")
	if got := r.GetModelCount("gemini-3-pro-preview"); got != 2 {
		t.Errorf("count after resume = %d, want 2", got)
	}
}

func TestGetModelProvidersOrdersByClientCount(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("gcli-1", "gemini-cli", []*ModelInfo{{ID: "gemini-3-pro-preview"}})
	r.RegisterClient("gcli-2", "gemini-cli", []*ModelInfo{{ID: "gemini-3-pro-preview"}})
	r.RegisterClient("agy-1", "antigravity", []*ModelInfo{{ID: "gemini-3-pro-preview"}})

	got := r.GetModelProviders("gemini-3-pro-preview")
	if len(got) != 2 || got[0] != "gemini-cli" || got[1] != "antigravity" {
		t.Errorf("GetModelProviders = %v, want [gemini-cli antigravity]", got)
	}

	if r.GetModelProviders("unknown-model") != nil {
		t.Error("unknown model should yield nil providers")
	}
}

func TestGetModelProvidersAlphabeticalOnTie(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("gcli-1", "gemini-cli", []*ModelInfo{{ID: "gemini-3-flash-preview"}})
	r.RegisterClient("agy-1", "antigravity", []*ModelInfo{{ID: "gemini-3-flash-preview"}})

	got := r.GetModelProviders("gemini-3-flash-preview")
	if len(got) != 2 || got[0] != "antigravity" || got[1] != "gemini-cli" {
		t.Errorf("GetModelProviders = %v, want [antigravity gemini-cli]", got)
	}
}

func TestClientSupportsModel(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("codex-1", "codex", []*ModelInfo{{ID: "gpt-5.2"}})

	cases := []struct {
		clientID string
		modelID  string
		want     bool
	}{
		{"codex-1", "gpt-5.2", true},
		{"codex-1", "gpt-5.2-codex", false},
		{"codex-2", "gpt-5.2", false},
		{"", "gpt-5.2", false},
		{"codex-1", "", false},
	}
	for _, tc := range cases {
		if got := r.ClientSupportsModel(tc.clientID, tc.modelID); got != tc.want {
			t.Errorf("ClientSupportsModel(%q, %q) = %v, want %v", tc.clientID, tc.modelID, got, tc.want)
		}
	}
}

func TestGetModelsForClientKeepsOrderAndCopies(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("codex-1", "codex", []*ModelInfo{
		{ID: "gpt-5.2", SupportedParameters: []string{"temperature"}},
		{ID: "gpt-5.2-codex"},
	})

	models := r.GetModelsForClient("codex-1")
	if len(models) != 2 {
		t.Fatalf("GetModelsForClient returned %d models, want 2", len(models))
	}
	if models[0].ID != "gpt-5.2" || models[1].ID != "gpt-5.2-codex" {
		t.Errorf("model order = [%s %s], want registration order", models[0].ID, models[1].ID)
	}

	// Mutating the returned copy must not leak into the registry.
	models[0].SupportedParameters[0] = "mutated"
	again := r.GetModelsForClient("codex-1")
	if again[0].SupportedParameters[0] != "temperature" {
		t.Error("returned models should be detached copies")
	}

	if r.GetModelsForClient("ghost") != nil {
		t.Error("unknown client should yield nil")
	}
}

func TestGetModelInfoProviderFilter(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("gcli-1", "gemini-cli", []*ModelInfo{
		{ID: "gemini-3-pro-preview", OwnedBy: "google", DisplayName: "Gemini 3 Pro"},
	})

	info := r.GetModelInfo("gemini-3-pro-preview")
	if info == nil {
		t.Fatal("GetModelInfo returned nil for a registered model")
	}
	if info.DisplayName != "Gemini 3 Pro" {
		t.Errorf("DisplayName = %q, want %q", info.DisplayName, "Gemini 3 Pro")
	}

	if r.GetModelInfo("gemini-3-pro-preview", "kiro") != nil {
		t.Error("provider filter should exclude clients of other providers")
	}
	if r.GetModelInfo("gemini-3-pro-preview", "gemini-cli") == nil {
		t.Error("provider filter should match the registering provider")
	}
	if r.GetModelInfo("unknown-model") != nil {
		t.Error("unknown model should yield nil")
	}
}

func TestGetAvailableModelsOpenAIShape(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("codex-1", "codex", []*ModelInfo{
		{
			ID:                  "gpt-5.2",
			OwnedBy:             "openai",
			Created:             1764000000,
			ContextLength:       400000,
			MaxCompletionTokens: 128000,
		},
		{ID: "gpt-5.2-codex", OwnedBy: "openai"},
	})

	models := r.GetAvailableModels("openai")
	if len(models) != 2 {
		t.Fatalf("listing returned %d models, want 2", len(models))
	}
	// Listings sort by id so repeated calls render identically.
	if models[0]["id"] != "gpt-5.2" || models[1]["id"] != "gpt-5.2-codex" {
		t.Errorf("listing order = [%v %v], want sorted ids", models[0]["id"], models[1]["id"])
	}

	first := models[0]
	if first["object"] != "model" {
		t.Errorf("object = %v, want model", first["object"])
	}
	if first["owned_by"] != "openai" {
		t.Errorf("owned_by = %v, want openai", first["owned_by"])
	}
	if first["context_length"] != 400000 {
		t.Errorf("context_length = %v, want 400000", first["context_length"])
	}
	if first["max_completion_tokens"] != 128000 {
		t.Errorf("max_completion_tokens = %v, want 128000", first["max_completion_tokens"])
	}

	if _, ok := models[1]["context_length"]; ok {
		t.Error("zero context_length should be omitted")
	}
}

func TestGetAvailableModelsClaudeShape(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("kiro-1", "kiro", []*ModelInfo{
		{
			ID:          "claude-opus-4-5",
			OwnedBy:     "anthropic",
			Type:        "claude",
			Created:     1764547200,
			DisplayName: "Claude Opus 4.5",
			Thinking:    &ThinkingSupport{Min: 1024, Max: 65536, ZeroAllowed: true},
		},
		{ID: "claude-haiku-4-5", OwnedBy: "anthropic", Type: "claude", DisplayName: "Claude Haiku 4.5"},
	})

	models := r.GetAvailableModels("claude")
	if len(models) != 2 {
		t.Fatalf("listing returned %d models, want 2", len(models))
	}
	haiku, opus := models[0], models[1]
	if opus["type"] != "model" || opus["display_name"] != "Claude Opus 4.5" {
		t.Errorf("unexpected opus entry: %v", opus)
	}
	if opus["created_at"] != "2025-12-01T00:00:00Z" {
		t.Errorf("created_at = %v, want 2025-12-01T00:00:00Z", opus["created_at"])
	}
	if _, ok := opus["thinking"]; !ok {
		t.Error("thinking support should be listed when declared")
	}
	if _, ok := haiku["thinking"]; ok {
		t.Error("thinking should be omitted when not declared")
	}
}

func TestGetAvailableModelsGeminiShape(t *testing.T) {
	r := NewModelRegistry()
	r.RegisterClient("gcli-1", "gemini-cli", []*ModelInfo{
		{
			ID:                         "gemini-3-pro-preview",
			DisplayName:                "Gemini 3 Pro",
			Version:                    "3.0",
			InputTokenLimit:            1048576,
			OutputTokenLimit:           65536,
			SupportedGenerationMethods: []string{"generateContent", "streamGenerateContent"},
		},
	})

	models := r.GetAvailableModels("gemini")
	if len(models) != 1 {
		t.Fatalf("listing returned %d models, want 1", len(models))
	}
	entry := models[0]
	if entry["name"] != "models/gemini-3-pro-preview" {
		t.Errorf("name = %v, want models/gemini-3-pro-preview", entry["name"])
	}
	if entry["displayName"] != "Gemini 3 Pro" {
		t.Errorf("displayName = %v, want Gemini 3 Pro", entry["displayName"])
	}
	methods, ok := entry["supportedGenerationMethods"].([]string)
	if !ok || len(methods) != 2 {
		t.Errorf("supportedGenerationMethods = %v", entry["supportedGenerationMethods"])
	}
}

func TestCloneModelInfoDetachesNestedState(t *testing.T) {
	original := &ModelInfo{
		ID:                         "gemini-3-pro-preview",
		SupportedGenerationMethods: []string{"generateContent"},
		Thinking:                   &ThinkingSupport{Levels: []string{"low", "high"}},
	}

	clone := cloneModelInfo(original)
	clone.SupportedGenerationMethods[0] = "countTokens"
	clone.Thinking.Levels[0] = "none"
	clone.Thinking.Max = 32768

	if original.SupportedGenerationMethods[0] != "generateContent" {
		t.Error("clone shares the methods slice with the original")
	}
	if original.Thinking.Levels[0] != "low" || original.Thinking.Max != 0 {
		t.Error("clone shares thinking state with the original")
	}
	if cloneModelInfo(nil) != nil {
		t.Error("cloneModelInfo(nil) should return nil")
	}
}

func TestModelRegistryConcurrentUse(t *testing.T) {
	r := NewModelRegistry()
	var wg sync.WaitGroup

	const workers = 16
	const rounds = 200

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			clientID := "client-" + strconv.Itoa(n)
			models := []*ModelInfo{
				{ID: "claude-sonnet-4-5", OwnedBy: "anthropic"},
				{ID: "model-" + strconv.Itoa(n), OwnedBy: "anthropic"},
			}
			for j := 0; j < rounds; j++ {
				switch j % 5 {
				case 0:
					r.RegisterClient(clientID, "kiro", models)
				case 1:
					r.GetAvailableModels("claude")
					r.GetModelProviders("claude-sonnet-4-5")
				case 2:
					r.SetModelQuotaExceeded(clientID, "claude-sonnet-4-5")
					r.ClearModelQuotaExceeded(clientID, "claude-sonnet-4-5")
				case 3:
					r.SuspendClientModel(clientID, "claude-sonnet-4-5", "cooldown")
					r.ResumeClientModel(clientID, "claude-sonnet-4-5")
				case 4:
					r.GetModelCount("claude-sonnet-4-5")
					r.GetModelsForClient(clientID)
				}
			}
			r.UnregisterClient(clientID)
		}(i)
	}
	wg.Wait()

	if got := len(r.models); got != 0 {
		t.Errorf("models remaining after all clients unregistered = %d, want 0", got)
	}
}
