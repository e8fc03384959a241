// Response translation for Gemini CLI to OpenAI Chat Completions compatibility.
// Gemini CLI events carry standard Gemini payloads inside a response envelope,
// which the Gemini-to-OpenAI converters unwrap transparently, so the
// translation delegates to them directly.
package chat_completions

import (
	"context"
	"fmt"

	geminichatcompletions "github.com/router-for-me/AntiHubAPI/internal/translator/gemini/openai/chat-completions"
)

// ConvertGeminiCLIResponseToOpenAI converts Gemini CLI streaming events to
// OpenAI Chat Completions chunks by delegating to the Gemini-to-OpenAI
// converter, which handles the CLI response envelope.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used for the response
//   - originalRequestRawJSON: The original request JSON before any translation
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: One Gemini CLI SSE event
//   - param: A pointer to a parameter object for maintaining state between calls
//
// Returns:
//   - []string: A slice of strings, each containing an OpenAI-compatible JSON response chunk
func ConvertGeminiCLIResponseToOpenAI(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	return geminichatcompletions.ConvertGeminiResponseToOpenAI(ctx, modelName, originalRequestRawJSON, requestRawJSON, rawJSON, param)
}

// ConvertGeminiCLIResponseToOpenAINonStream converts a complete Gemini CLI
// response to a non-streaming OpenAI response by delegating to the
// Gemini-to-OpenAI converter, which handles the CLI response envelope.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used for the response
//   - originalRequestRawJSON: The original request JSON before any translation
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: The complete Gemini CLI response body
//   - param: A pointer to a parameter object for the conversion
//
// Returns:
//   - string: An OpenAI-compatible JSON response
func ConvertGeminiCLIResponseToOpenAINonStream(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	return geminichatcompletions.ConvertGeminiResponseToOpenAINonStream(ctx, modelName, originalRequestRawJSON, requestRawJSON, rawJSON, param)
}

// OpenAITokenCount returns the token count in OpenAI format.
func OpenAITokenCount(ctx context.Context, count int64) string {
	return fmt.Sprintf(`{"prompt_tokens":%d}`, count)
}
