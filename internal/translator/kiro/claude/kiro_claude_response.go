package claude

import (
	"context"
	"fmt"
)

// ConvertKiroResponseToClaude passes re-framed stream chunks through: the
// Kiro executor already rebuilds Anthropic SSE blocks from the binary event
// stream.
func ConvertKiroResponseToClaude(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	return []string{string(rawJSON)}
}

// ConvertKiroResponseToClaudeNonStream passes the assembled Claude message
// through unchanged.
func ConvertKiroResponseToClaudeNonStream(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	return string(rawJSON)
}

// ClaudeTokenCount renders a token count as a Claude count_tokens response.
func ClaudeTokenCount(ctx context.Context, count int64) string {
	return fmt.Sprintf(`{"input_tokens":%d}`, count)
}
