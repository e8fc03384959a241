// Package codex provides translation functionality for the Codex API compatibility.
// It registers translators for converting between OpenAI Chat Completions, OpenAI
// Responses, and the Codex backend's Responses dialect.
package codex

import (
	_ "github.com/router-for-me/AntiHubAPI/internal/translator/codex/openai/chat-completions"
	_ "github.com/router-for-me/AntiHubAPI/internal/translator/codex/openai/responses"
)
