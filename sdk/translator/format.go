// Package translator provides the format registry used to convert request and
// response payloads between the wire protocols this gateway speaks: the front
// protocols clients use (Claude Messages, OpenAI Chat Completions, OpenAI
// Responses, Gemini generateContent) and the upstream protocols providers
// expose (Kiro event streams, Codex responses, Gemini CLI envelopes,
// OpenAI-compatible chat).
package translator

import "strings"

// Format identifies a request/response wire schema.
type Format string

const (
	// FormatOpenAI is the OpenAI Chat Completions schema.
	FormatOpenAI Format = "openai"
	// FormatOpenAIResponse is the OpenAI Responses schema.
	FormatOpenAIResponse Format = "openai-response"
	// FormatClaude is the Anthropic Messages schema.
	FormatClaude Format = "claude"
	// FormatGemini is the Gemini generateContent schema.
	FormatGemini Format = "gemini"
	// FormatGeminiCLI is the Gemini CLI envelope ({"model":...,"request":{...}}).
	FormatGeminiCLI Format = "gemini-cli"
	// FormatCodex is the Codex upstream schema (OpenAI Responses dialect).
	FormatCodex Format = "codex"
	// FormatKiro is the CodeWhisperer conversationState schema used by Kiro.
	FormatKiro Format = "kiro"
)

// String returns the string value of the format.
func (f Format) String() string {
	return string(f)
}

// FromString parses a format name, tolerating case and a few aliases.
func FromString(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "openai-chat", "chat-completions":
		return FormatOpenAI
	case "openai-response", "openai-responses", "responses":
		return FormatOpenAIResponse
	case "claude", "anthropic":
		return FormatClaude
	case "gemini":
		return FormatGemini
	case "gemini-cli":
		return FormatGeminiCLI
	case "codex":
		return FormatCodex
	case "kiro":
		return FormatKiro
	default:
		return Format(strings.ToLower(strings.TrimSpace(s)))
	}
}

// IsKnownFormat reports whether f is one of the schemas this gateway handles.
func IsKnownFormat(f Format) bool {
	switch f {
	case FormatOpenAI, FormatOpenAIResponse, FormatClaude, FormatGemini, FormatGeminiCLI, FormatCodex, FormatKiro:
		return true
	default:
		return false
	}
}
