// Package chat_completions provides request translation functionality for OpenAI to Gemini CLI compatibility.
// It converts OpenAI Chat Completions API requests to Gemini format and wraps
// them in the Gemini CLI envelope with the cloudcode-pa compatibility fixes.
package chat_completions

import (
	"bytes"

	geminichatcompletions "github.com/router-for-me/AntiHubAPI/internal/translator/gemini/openai/chat-completions"
	geminicligemini "github.com/router-for-me/AntiHubAPI/internal/translator/geminicli/gemini"
)

// ConvertOpenAIRequestToGeminiCLI converts an OpenAI Chat Completions API request to Gemini CLI format.
// The OpenAI request is first translated to a plain Gemini generateContent
// request, then wrapped in the Gemini CLI envelope, which also applies the
// thought-signature, media-field, and safety-setting normalization the
// upstream requires. The executor fills in the envelope's project id.
//
// Parameters:
//   - modelName: The name of the model to use for the request
//   - rawJSON: The raw JSON request data from the OpenAI API
//   - stream: A boolean indicating if the request is for a streaming response
//
// Returns:
//   - []byte: The transformed request data in Gemini CLI format
func ConvertOpenAIRequestToGeminiCLI(modelName string, rawJSON []byte, stream bool) []byte {
	geminiRequest := geminichatcompletions.ConvertOpenAIRequestToGemini(modelName, bytes.Clone(rawJSON), stream)
	return geminicligemini.ConvertGeminiRequestToGeminiCLI(modelName, geminiRequest, stream)
}
