package responses

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
)

// codexStreamState latches stream termination between calls.
type codexStreamState struct {
	done bool
}

// ConvertCodexResponseToOpenAIResponses re-frames Codex response.* events for
// the Responses front. Codex already speaks the Responses protocol, so each
// payload passes through unchanged with its event line restored. Terminal
// events latch the stream so trailing upstream noise is dropped.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used for the response
//   - originalRequestRawJSON: The original request JSON before any translation
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: One Codex SSE data payload
//   - param: A pointer to a parameter object for maintaining state between calls
//
// Returns:
//   - []string: Responses SSE events ("event: ...\ndata: ..." blocks)
func ConvertCodexResponseToOpenAIResponses(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &codexStreamState{}
	}
	state := (*param).(*codexStreamState)
	if state.done {
		return []string{}
	}

	payload := strings.TrimSpace(string(rawJSON))
	payload = strings.TrimSpace(strings.TrimPrefix(payload, "data:"))
	if payload == "" || payload == "[DONE]" {
		return []string{}
	}

	root := gjson.Parse(payload)
	eventType := strings.TrimSpace(root.Get("type").String())
	if eventType == "" {
		return []string{}
	}
	switch {
	case eventType == "response.completed",
		eventType == "response.failed",
		eventType == "error",
		strings.HasSuffix(eventType, ".error"):
		state.done = true
	}
	return []string{"event: " + eventType + "\ndata: " + payload}
}

// ConvertCodexResponseToOpenAIResponsesNonStream returns the aggregated Codex
// response object for the Responses front. A response.completed envelope left
// by the executor is unwrapped first.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used for the response
//   - originalRequestRawJSON: The original request JSON before any translation
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: The complete Codex response body
//   - param: A pointer to a parameter object for the conversion
//
// Returns:
//   - string: An OpenAI Responses-compatible JSON response
func ConvertCodexResponseToOpenAIResponsesNonStream(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	if resp := gjson.GetBytes(rawJSON, "response"); resp.IsObject() {
		return resp.Raw
	}
	return string(rawJSON)
}
