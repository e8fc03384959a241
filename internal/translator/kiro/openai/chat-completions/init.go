// Package chat_completions serves the OpenAI Chat Completions front on the
// Kiro upstream. Kiro speaks Claude internally, so every direction delegates
// to the claude/openai converters: requests become Claude Messages bodies for
// the executor to wrap, and the executor's re-framed Anthropic SSE blocks
// become chat chunks.
package chat_completions

import (
	. "github.com/router-for-me/AntiHubAPI/internal/constant"
	"github.com/router-for-me/AntiHubAPI/internal/interfaces"
	claudechatcompletions "github.com/router-for-me/AntiHubAPI/internal/translator/claude/openai/chat-completions"
	"github.com/router-for-me/AntiHubAPI/sdk/translator"
)

func init() {
	// Register OpenAI -> Kiro translation for /v1/chat/completions
	translator.Register(
		OpenAI,
		Kiro,
		ConvertOpenAIRequestToKiro,
		interfaces.TranslateResponse{
			Stream:     ConvertKiroResponseToOpenAI,
			NonStream:  ConvertKiroResponseToOpenAINonStream,
			TokenCount: claudechatcompletions.OpenAITokenCount,
		},
	)
}
