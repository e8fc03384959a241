// Package constant defines the wire-format names and upstream config types
// used across the gateway. The format names are dot-imported by translator
// packages so registrations read as Register(Claude, Kiro, ...).
package constant

// Wire-format names. Values match sdk/translator Format constants.
const (
	OpenAI         = "openai"
	OpenaiResponse = "openai-response"
	Claude         = "claude"
	Gemini         = "gemini"
	GeminiCLI      = "gemini-cli"
	Codex          = "codex"
	Kiro           = "kiro"
)

// Upstream account config types as they appear in configuration and in the
// allowlist matrices.
const (
	ConfigTypeCodex       = "codex"
	ConfigTypeKiro        = "kiro"
	ConfigTypeQwen        = "qwen"
	ConfigTypeAntigravity = "antigravity"
	ConfigTypeGeminiCLI   = "gemini-cli"
	ConfigTypeZaiImage    = "zai-image"
)
