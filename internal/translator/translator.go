// Package translator pulls in every translation pair the gateway ships.
// Importing it for side effects populates the registry with the full
// front-to-upstream matrix; nothing here is called directly.
package translator

import (
	_ "github.com/router-for-me/AntiHubAPI/internal/translator/codex"
	_ "github.com/router-for-me/AntiHubAPI/internal/translator/gemini/openai/chat-completions"
	_ "github.com/router-for-me/AntiHubAPI/internal/translator/geminicli"
	_ "github.com/router-for-me/AntiHubAPI/internal/translator/kiro"
	_ "github.com/router-for-me/AntiHubAPI/internal/translator/openai/claude"
	_ "github.com/router-for-me/AntiHubAPI/internal/translator/openai/gemini"
)
