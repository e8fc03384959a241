// Package geminicli provides translation functionality for Gemini CLI (cloudcode-pa) API compatibility.
// It registers translators for converting between Gemini, OpenAI, and Gemini CLI API formats,
// handling the request envelope and response unwrapping the upstream requires.
package geminicli

import (
	_ "github.com/router-for-me/AntiHubAPI/internal/translator/geminicli/gemini"
	_ "github.com/router-for-me/AntiHubAPI/internal/translator/geminicli/openai/chat-completions"
)
