// Package registry provides model definitions for the upstream providers the
// gateway can route to. This file contains static model definitions that can
// be used by clients when registering their supported models.
package registry

// GetKiroModels returns the Claude model definitions served through the Kiro
// (AWS CodeWhisperer) upstream. IDs use the Anthropic dash form accepted on
// the wire; the Kiro request mapper converts them to the dot form the
// CodeWhisperer API expects.
func GetKiroModels() []*ModelInfo {
	return []*ModelInfo{
		{
			ID:                  "claude-sonnet-4-5",
			Object:              "model",
			Created:             1759104000, // 2025-09-29
			OwnedBy:             "kiro",
			Type:                "kiro",
			DisplayName:         "Claude 4.5 Sonnet",
			ContextLength:       200000,
			MaxCompletionTokens: 64000,
			Thinking:            &ThinkingSupport{Min: 1024, Max: 24576, ZeroAllowed: true, DynamicAllowed: true},
		},
		{
			ID:                  "claude-sonnet-4-5-20250929",
			Object:              "model",
			Created:             1759104000, // 2025-09-29
			OwnedBy:             "kiro",
			Type:                "kiro",
			DisplayName:         "Claude 4.5 Sonnet",
			ContextLength:       200000,
			MaxCompletionTokens: 64000,
			Thinking:            &ThinkingSupport{Min: 1024, Max: 24576, ZeroAllowed: true, DynamicAllowed: true},
		},
		{
			ID:                  "claude-sonnet-4-6",
			Object:              "model",
			Created:             1770249600, // 2026-02-05
			OwnedBy:             "kiro",
			Type:                "kiro",
			DisplayName:         "Claude 4.6 Sonnet",
			ContextLength:       200000,
			MaxCompletionTokens: 64000,
			Thinking:            &ThinkingSupport{Min: 1024, Max: 24576, ZeroAllowed: true, DynamicAllowed: true},
		},
		{
			ID:                  "claude-sonnet-4-20250514",
			Object:              "model",
			Created:             1747180800, // 2025-05-14
			OwnedBy:             "kiro",
			Type:                "kiro",
			DisplayName:         "Claude 4 Sonnet",
			ContextLength:       200000,
			MaxCompletionTokens: 64000,
			Thinking:            &ThinkingSupport{Min: 1024, Max: 24576, ZeroAllowed: true, DynamicAllowed: true},
		},
		{
			ID:                  "claude-opus-4-5-20251101",
			Object:              "model",
			Created:             1761955200, // 2025-11-01
			OwnedBy:             "kiro",
			Type:                "kiro",
			DisplayName:         "Claude 4.5 Opus",
			ContextLength:       200000,
			MaxCompletionTokens: 64000,
			Thinking:            &ThinkingSupport{Min: 1024, Max: 24576, ZeroAllowed: true, DynamicAllowed: true},
		},
		{
			ID:                  "claude-opus-4-6",
			Object:              "model",
			Created:             1770249600, // 2026-02-05
			OwnedBy:             "kiro",
			Type:                "kiro",
			DisplayName:         "Claude 4.6 Opus",
			ContextLength:       200000,
			MaxCompletionTokens: 64000,
			Thinking:            &ThinkingSupport{Min: 1024, Max: 24576, ZeroAllowed: true, DynamicAllowed: true},
		},
		{
			ID:                  "claude-haiku-4-5-20251001",
			Object:              "model",
			Created:             1759276800, // 2025-10-01
			OwnedBy:             "kiro",
			Type:                "kiro",
			DisplayName:         "Claude 4.5 Haiku",
			ContextLength:       200000,
			MaxCompletionTokens: 64000,
			// Thinking: not supported for Haiku models
		},
	}
}

// GetCodexModels returns the OpenAI model definitions served through the
// Codex upstream.
func GetCodexModels() []*ModelInfo {
	return []*ModelInfo{
		{
			ID:                  "gpt-5.2-codex",
			Object:              "model",
			Created:             1765440000,
			OwnedBy:             "openai",
			Type:                "openai",
			Version:             "gpt-5.2",
			DisplayName:         "GPT 5.2 Codex",
			Description:         "Stable version of GPT 5.2 Codex, The best model for coding and agentic tasks across domains.",
			ContextLength:       400000,
			MaxCompletionTokens: 128000,
			SupportedParameters: []string{"tools"},
			Thinking:            &ThinkingSupport{Levels: []string{"low", "medium", "high", "xhigh"}},
		},
		{
			ID:                  "gpt-5.1-codex-max",
			Object:              "model",
			Created:             1763510400,
			OwnedBy:             "openai",
			Type:                "openai",
			Version:             "gpt-5.1",
			DisplayName:         "GPT 5.1 Codex Max",
			Description:         "GPT 5.1 Codex Max, tuned for long-running agentic coding sessions.",
			ContextLength:       400000,
			MaxCompletionTokens: 128000,
			SupportedParameters: []string{"tools"},
			Thinking:            &ThinkingSupport{Levels: []string{"low", "medium", "high", "xhigh"}},
		},
		{
			ID:                  "gpt-5-codex",
			Object:              "model",
			Created:             1757894400,
			OwnedBy:             "openai",
			Type:                "openai",
			Version:             "gpt-5",
			DisplayName:         "GPT 5 Codex",
			Description:         "GPT 5 Codex",
			ContextLength:       400000,
			MaxCompletionTokens: 128000,
			SupportedParameters: []string{"tools"},
			Thinking:            &ThinkingSupport{Levels: []string{"low", "medium", "high"}},
		},
	}
}

// GetGeminiModels returns the standard Gemini model definitions
func GetGeminiModels() []*ModelInfo {
	return []*ModelInfo{
		{
			ID:                         "gemini-2.5-pro",
			Object:                     "model",
			Created:                    1750118400,
			OwnedBy:                    "google",
			Type:                       "gemini",
			Name:                       "models/gemini-2.5-pro",
			Version:                    "2.5",
			DisplayName:                "Gemini 2.5 Pro",
			Description:                "Stable release (June 17th, 2025) of Gemini 2.5 Pro",
			InputTokenLimit:            1048576,
			OutputTokenLimit:           65536,
			SupportedGenerationMethods: []string{"generateContent", "countTokens", "createCachedContent", "batchGenerateContent"},
			Thinking:                   &ThinkingSupport{Min: 128, Max: 32768, ZeroAllowed: false, DynamicAllowed: true},
		},
		{
			ID:                         "gemini-2.5-flash",
			Object:                     "model",
			Created:                    1750118400,
			OwnedBy:                    "google",
			Type:                       "gemini",
			Name:                       "models/gemini-2.5-flash",
			Version:                    "001",
			DisplayName:                "Gemini 2.5 Flash",
			Description:                "Stable version of Gemini 2.5 Flash, our mid-size multimodal model that supports up to 1 million tokens, released in June of 2025.",
			InputTokenLimit:            1048576,
			OutputTokenLimit:           65536,
			SupportedGenerationMethods: []string{"generateContent", "countTokens", "createCachedContent", "batchGenerateContent"},
			Thinking:                   &ThinkingSupport{Min: 0, Max: 24576, ZeroAllowed: true, DynamicAllowed: true},
		},
		{
			ID:                         "gemini-2.5-flash-lite",
			Object:                     "model",
			Created:                    1753142400,
			OwnedBy:                    "google",
			Type:                       "gemini",
			Name:                       "models/gemini-2.5-flash-lite",
			Version:                    "2.5",
			DisplayName:                "Gemini 2.5 Flash Lite",
			Description:                "Our smallest and most cost effective model, built for at scale usage.",
			InputTokenLimit:            1048576,
			OutputTokenLimit:           65536,
			SupportedGenerationMethods: []string{"generateContent", "countTokens", "createCachedContent", "batchGenerateContent"},
			Thinking:                   &ThinkingSupport{Min: 0, Max: 24576, ZeroAllowed: true, DynamicAllowed: true},
		},
	}
}

// GetGeminiCLIModels returns GetGeminiModels - consolidated
func GetGeminiCLIModels() []*ModelInfo {
	return GetGeminiModels()
}

// GetQwenModels returns the standard Qwen model definitions
func GetQwenModels() []*ModelInfo {
	return []*ModelInfo{
		{
			ID:                  "qwen3-coder-plus",
			Object:              "model",
			Created:             1753228800,
			OwnedBy:             "qwen",
			Type:                "qwen",
			Version:             "3.0",
			DisplayName:         "Qwen3 Coder Plus",
			Description:         "Advanced code generation and understanding model",
			ContextLength:       32768,
			MaxCompletionTokens: 8192,
			SupportedParameters: []string{"temperature", "top_p", "max_tokens", "stream", "stop"},
		},
		{
			ID:                  "qwen3-coder-flash",
			Object:              "model",
			Created:             1753228800,
			OwnedBy:             "qwen",
			Type:                "qwen",
			Version:             "3.0",
			DisplayName:         "Qwen3 Coder Flash",
			Description:         "Fast code generation model",
			ContextLength:       8192,
			MaxCompletionTokens: 2048,
			SupportedParameters: []string{"temperature", "top_p", "max_tokens", "stream", "stop"},
		},
	}
}

// GetZaiImageModels returns the image generation models served through the
// Z.AI upstream. These are only reachable through the Gemini generateContent
// surface; responses carry inline image data instead of text.
func GetZaiImageModels() []*ModelInfo {
	entries := []struct {
		ID          string
		DisplayName string
		Description string
	}{
		{ID: "glm-image", DisplayName: "GLM Image", Description: "Z.AI GLM image generation model"},
		{ID: "gemini-3-pro-image-preview", DisplayName: "Gemini 3 Pro Image Preview", Description: "Gemini 3 Pro image generation preview via Z.AI"},
		{ID: "gemini-3-pro-image", DisplayName: "Gemini 3 Pro Image", Description: "Gemini 3 Pro image generation via Z.AI"},
	}
	models := make([]*ModelInfo, 0, len(entries))
	for _, entry := range entries {
		models = append(models, &ModelInfo{
			ID:                         entry.ID,
			Object:                     "model",
			Created:                    1759190400,
			OwnedBy:                    "zai",
			Type:                       "gemini",
			Name:                       "models/" + entry.ID,
			Version:                    "1.0",
			DisplayName:                entry.DisplayName,
			Description:                entry.Description,
			InputTokenLimit:            32768,
			OutputTokenLimit:           8192,
			SupportedGenerationMethods: []string{"generateContent"},
		})
	}
	return models
}

// GetAntigravityModels returns the default model definitions for antigravity
// accounts. The live list comes from the upstream /models endpoint when a
// client registers; this static set is the fallback when that fetch fails.
func GetAntigravityModels() []*ModelInfo {
	config := GetAntigravityModelConfig()
	entries := []struct {
		ID          string
		DisplayName string
		Description string
	}{
		{ID: "gemini-3-pro-preview", DisplayName: "Gemini 3 Pro Preview", Description: "Gemini 3 Pro Preview via antigravity"},
		{ID: "gemini-3-flash-preview", DisplayName: "Gemini 3 Flash Preview", Description: "Gemini 3 Flash Preview via antigravity"},
		{ID: "gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash", Description: "Gemini 2.5 Flash via antigravity"},
		{ID: "claude-sonnet-4-5", DisplayName: "Claude Sonnet 4.5", Description: "Claude Sonnet 4.5 via antigravity"},
		{ID: "claude-sonnet-4-5-thinking", DisplayName: "Claude Sonnet 4.5 (Thinking)", Description: "Claude Sonnet 4.5 with extended thinking via antigravity"},
		{ID: "claude-opus-4-5-thinking", DisplayName: "Claude Opus 4.5 (Thinking)", Description: "Claude Opus 4.5 with extended thinking via antigravity"},
	}
	models := make([]*ModelInfo, 0, len(entries))
	for _, entry := range entries {
		info := &ModelInfo{
			ID:          entry.ID,
			Object:      "model",
			Created:     1763510400,
			OwnedBy:     "antigravity",
			Type:        "antigravity",
			DisplayName: entry.DisplayName,
			Description: entry.Description,
		}
		if override, ok := config[entry.ID]; ok && override != nil {
			info.Thinking = override.Thinking
			info.MaxCompletionTokens = override.MaxCompletionTokens
		}
		models = append(models, info)
	}
	return models
}

// AntigravityModelConfig captures static antigravity model overrides, including
// Thinking budget limits and provider max completion tokens.
type AntigravityModelConfig struct {
	Thinking            *ThinkingSupport
	MaxCompletionTokens int
}

// GetAntigravityModelConfig returns static configuration for antigravity models.
// Keys use the ALIASED model names (after modelName2Alias conversion) for direct lookup.
func GetAntigravityModelConfig() map[string]*AntigravityModelConfig {
	return map[string]*AntigravityModelConfig{
		"gemini-2.5-flash":           {Thinking: &ThinkingSupport{Min: 0, Max: 24576, ZeroAllowed: true, DynamicAllowed: true}},
		"gemini-2.5-flash-lite":      {Thinking: &ThinkingSupport{Min: 0, Max: 24576, ZeroAllowed: true, DynamicAllowed: true}},
		"gemini-3-pro-preview":       {Thinking: &ThinkingSupport{Min: 128, Max: 32768, ZeroAllowed: false, DynamicAllowed: true, Levels: []string{"low", "high"}}},
		"gemini-3-pro-high":          {Thinking: &ThinkingSupport{Min: 128, Max: 32768, ZeroAllowed: false, DynamicAllowed: true, Levels: []string{"low", "high"}}},
		"gemini-3-pro-image-preview": {Thinking: &ThinkingSupport{Min: 128, Max: 32768, ZeroAllowed: false, DynamicAllowed: true, Levels: []string{"low", "high"}}},
		"gemini-3-pro-image":         {Thinking: &ThinkingSupport{Min: 128, Max: 32768, ZeroAllowed: false, DynamicAllowed: true, Levels: []string{"low", "high"}}},
		"gemini-3-flash-preview":     {Thinking: &ThinkingSupport{Min: 128, Max: 32768, ZeroAllowed: false, DynamicAllowed: true, Levels: []string{"minimal", "low", "medium", "high"}}},
		"gemini-3-flash":             {Thinking: &ThinkingSupport{Min: 128, Max: 32768, ZeroAllowed: false, DynamicAllowed: true, Levels: []string{"minimal", "low", "medium", "high"}}},
		"claude-sonnet-4-5-thinking": {Thinking: &ThinkingSupport{Min: 1024, Max: 128000, ZeroAllowed: true, DynamicAllowed: true}, MaxCompletionTokens: 64000},
		"claude-opus-4-5-thinking":   {Thinking: &ThinkingSupport{Min: 1024, Max: 128000, ZeroAllowed: true, DynamicAllowed: true}, MaxCompletionTokens: 64000},
		"claude-sonnet-4-5":          {MaxCompletionTokens: 64000},
	}
}
