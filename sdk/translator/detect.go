package translator

import (
	"strings"

	"github.com/tidwall/gjson"
)

// DetectFormat attempts to detect the format of a JSON payload by examining
// its structure. Returns empty Format if the format cannot be determined.
func DetectFormat(payload []byte) Format {
	if len(payload) == 0 {
		return ""
	}

	result := gjson.ParseBytes(payload)
	if !result.IsObject() {
		return ""
	}

	// Gemini CLI envelope: the request body nested under "request"
	if result.Get("request.contents").Exists() {
		return FormatGeminiCLI
	}

	// Gemini: contents with generationConfig, or contents whose entries carry parts
	if result.Get("contents").Exists() && result.Get("generationConfig").Exists() {
		return FormatGemini
	}
	if contents := result.Get("contents"); contents.Exists() && contents.IsArray() {
		if arr := contents.Array(); len(arr) > 0 && arr[0].Get("parts").Exists() {
			return FormatGemini
		}
	}

	// OpenAI Responses: input items plus instructions
	if result.Get("input").Exists() && (result.Get("instructions").Exists() || result.Get("max_output_tokens").Exists()) {
		return FormatOpenAIResponse
	}

	// Messages-based formats (Claude, OpenAI chat)
	if result.Get("messages").Exists() && result.Get("model").Exists() {
		modelLower := strings.ToLower(result.Get("model").String())

		if result.Get("anthropic_version").Exists() {
			return FormatClaude
		}
		if strings.Contains(modelLower, "claude") || strings.Contains(modelLower, "anthropic") {
			return FormatClaude
		}

		// Claude content blocks use tagged types the chat schema does not have.
		messages := result.Get("messages")
		if messages.IsArray() {
			for _, msg := range messages.Array() {
				content := msg.Get("content")
				if !content.IsArray() {
					continue
				}
				for _, block := range content.Array() {
					switch block.Get("type").String() {
					case "tool_use", "tool_result", "thinking":
						return FormatClaude
					}
				}
			}
		}

		return FormatOpenAI
	}

	return ""
}

// MustDetectFormat detects format or panics if detection fails.
func MustDetectFormat(payload []byte) Format {
	f := DetectFormat(payload)
	if f == "" {
		panic("translator: unable to detect format from payload")
	}
	return f
}
