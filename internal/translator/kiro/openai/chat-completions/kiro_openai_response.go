package chat_completions

import (
	"context"

	claudechatcompletions "github.com/router-for-me/AntiHubAPI/internal/translator/claude/openai/chat-completions"
)

// ConvertKiroResponseToOpenAI converts the executor's re-framed Anthropic SSE
// blocks into Chat Completions stream chunks.
func ConvertKiroResponseToOpenAI(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	return claudechatcompletions.ConvertClaudeResponseToOpenAI(ctx, modelName, originalRequestRawJSON, requestRawJSON, rawJSON, param)
}

// ConvertKiroResponseToOpenAINonStream converts the assembled Claude message
// into a Chat Completions response.
func ConvertKiroResponseToOpenAINonStream(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	return claudechatcompletions.ConvertClaudeResponseToOpenAINonStream(ctx, modelName, originalRequestRawJSON, requestRawJSON, rawJSON, param)
}
