package chat_completions

import (
	. "github.com/router-for-me/AntiHubAPI/internal/constant"
	"github.com/router-for-me/AntiHubAPI/internal/interfaces"
	"github.com/router-for-me/AntiHubAPI/sdk/translator"
)

func init() {
	// Register OpenAI -> Codex translation for /v1/chat/completions endpoint
	translator.Register(
		OpenAI,
		Codex,
		ConvertOpenAIRequestToCodex,
		interfaces.TranslateResponse{
			Stream:     ConvertCodexResponseToOpenAI,
			NonStream:  ConvertCodexResponseToOpenAINonStream,
			TokenCount: OpenAITokenCount,
		},
	)
}
