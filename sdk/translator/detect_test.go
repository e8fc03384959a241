package translator

import (
	"testing"
)

func TestDetectFormat_OpenAI(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		expected Format
	}{
		{
			name: "chat completions with GPT model",
			payload: []byte(`{
				"model": "gpt-4",
				"messages": [{"role": "user", "content": "Hello"}]
			}`),
			expected: FormatOpenAI,
		},
		{
			name: "chat completions with string content",
			payload: []byte(`{
				"model": "qwen3-coder-plus",
				"messages": [{"role": "user", "content": "Hello"}],
				"presence_penalty": 0.5
			}`),
			expected: FormatOpenAI,
		},
		{
			name: "messages plus model defaults to chat completions",
			payload: []byte(`{
				"model": "unknown-model",
				"messages": []
			}`),
			expected: FormatOpenAI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectFormat(tt.payload)
			if result != tt.expected {
				t.Errorf("DetectFormat() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestDetectFormat_Claude(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		expected Format
	}{
		{
			name: "anthropic_version marker",
			payload: []byte(`{
				"model": "claude-3",
				"messages": [{"role": "user", "content": "Hello"}],
				"anthropic_version": "2023-06-01"
			}`),
			expected: FormatClaude,
		},
		{
			name: "claude model name",
			payload: []byte(`{
				"model": "claude-sonnet-4.5",
				"messages": [{"role": "user", "content": "Hello"}]
			}`),
			expected: FormatClaude,
		},
		{
			name: "tagged content blocks",
			payload: []byte(`{
				"model": "custom-alias",
				"messages": [
					{"role": "assistant", "content": [{"type": "tool_use", "id": "t1", "name": "f", "input": {}}]},
					{"role": "user", "content": [{"type": "tool_result", "tool_use_id": "t1", "content": "ok"}]}
				]
			}`),
			expected: FormatClaude,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectFormat(tt.payload)
			if result != tt.expected {
				t.Errorf("DetectFormat() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestDetectFormat_Gemini(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		expected Format
	}{
		{
			name: "contents and generationConfig",
			payload: []byte(`{
				"contents": [{"parts": [{"text": "Hello"}]}],
				"generationConfig": {"temperature": 0.7}
			}`),
			expected: FormatGemini,
		},
		{
			name: "contents with parts only",
			payload: []byte(`{
				"contents": [{"parts": [{"text": "Hello"}], "role": "user"}]
			}`),
			expected: FormatGemini,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectFormat(tt.payload)
			if result != tt.expected {
				t.Errorf("DetectFormat() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestDetectFormat_GeminiCLIEnvelope(t *testing.T) {
	payload := []byte(`{
		"model": "gemini-2.5-pro",
		"request": {
			"contents": [{"parts": [{"text": "Hello"}]}]
		}
	}`)

	result := DetectFormat(payload)
	if result != FormatGeminiCLI {
		t.Errorf("DetectFormat() = %v, want %v", result, FormatGeminiCLI)
	}
}

func TestDetectFormat_OpenAIResponse(t *testing.T) {
	payload := []byte(`{
		"input": "Hello",
		"instructions": "Be helpful"
	}`)

	result := DetectFormat(payload)
	if result != FormatOpenAIResponse {
		t.Errorf("DetectFormat() = %v, want %v", result, FormatOpenAIResponse)
	}
}

func TestDetectFormat_Empty(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"nil payload", nil},
		{"empty payload", []byte{}},
		{"non-object JSON", []byte(`["array"]`)},
		{"invalid JSON", []byte(`{invalid}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectFormat(tt.payload)
			if result != "" {
				t.Errorf("DetectFormat() = %v, want empty string", result)
			}
		})
	}
}

func TestMustDetectFormat_Success(t *testing.T) {
	payload := []byte(`{"model": "gpt-4", "messages": []}`)

	result := MustDetectFormat(payload)
	if result != FormatOpenAI {
		t.Errorf("MustDetectFormat() = %v, want %v", result, FormatOpenAI)
	}
}

func TestMustDetectFormat_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustDetectFormat should panic on undetectable format")
		}
	}()

	MustDetectFormat([]byte(`{"unknown": "structure"}`))
}

func TestIsKnownFormat(t *testing.T) {
	knownFormats := []Format{
		FormatOpenAI,
		FormatOpenAIResponse,
		FormatClaude,
		FormatGemini,
		FormatGeminiCLI,
		FormatCodex,
		FormatKiro,
	}

	for _, f := range knownFormats {
		if !IsKnownFormat(f) {
			t.Errorf("IsKnownFormat(%v) = false, want true", f)
		}
	}

	unknownFormats := []Format{
		"unknown",
		"custom-format",
		"",
	}

	for _, f := range unknownFormats {
		if IsKnownFormat(f) {
			t.Errorf("IsKnownFormat(%v) = true, want false", f)
		}
	}
}

func TestFromString(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"openai", FormatOpenAI},
		{"OpenAI", FormatOpenAI},
		{"chat-completions", FormatOpenAI},
		{"openai-responses", FormatOpenAIResponse},
		{"responses", FormatOpenAIResponse},
		{"anthropic", FormatClaude},
		{"claude", FormatClaude},
		{"gemini", FormatGemini},
		{"gemini-cli", FormatGeminiCLI},
		{"codex", FormatCodex},
		{"kiro", FormatKiro},
		{" Kiro ", FormatKiro},
		{"something-else", Format("something-else")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := FromString(tt.in); got != tt.want {
				t.Errorf("FromString(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
