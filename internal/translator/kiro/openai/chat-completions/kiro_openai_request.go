package chat_completions

import (
	"bytes"

	claudechatcompletions "github.com/router-for-me/AntiHubAPI/internal/translator/claude/openai/chat-completions"
)

// ConvertOpenAIRequestToKiro converts a Chat Completions request into the
// Claude Messages body the Kiro executor wraps into conversationState.
func ConvertOpenAIRequestToKiro(modelName string, rawJSON []byte, stream bool) []byte {
	return claudechatcompletions.ConvertOpenAIRequestToClaude(modelName, bytes.Clone(rawJSON), stream)
}
