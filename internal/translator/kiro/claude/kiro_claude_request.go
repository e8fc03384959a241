package claude

import "bytes"

// ConvertClaudeRequestToKiro keeps the Claude Messages body as is: Kiro
// speaks Claude internally, and the executor wraps the body into the
// conversationState envelope via BuildKiroPayload.
func ConvertClaudeRequestToKiro(modelName string, rawJSON []byte, stream bool) []byte {
	return bytes.Clone(rawJSON)
}
