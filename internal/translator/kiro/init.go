// Package kiro registers the translator pairs for the Kiro (CodeWhisperer)
// upstream: the Claude Messages front passes through and the Chat Completions
// front converts via the claude/openai pair.
package kiro

import (
	_ "github.com/router-for-me/AntiHubAPI/internal/translator/kiro/claude"
	_ "github.com/router-for-me/AntiHubAPI/internal/translator/kiro/openai/chat-completions"
)
