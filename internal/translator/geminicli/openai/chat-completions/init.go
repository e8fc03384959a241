package chat_completions

import (
	. "github.com/router-for-me/AntiHubAPI/internal/constant"
	"github.com/router-for-me/AntiHubAPI/internal/interfaces"
	"github.com/router-for-me/AntiHubAPI/sdk/translator"
)

func init() {
	// Register OpenAI -> Gemini CLI translation for /v1/chat/completions
	translator.Register(
		OpenAI,
		GeminiCLI,
		ConvertOpenAIRequestToGeminiCLI,
		interfaces.TranslateResponse{
			Stream:     ConvertGeminiCLIResponseToOpenAI,
			NonStream:  ConvertGeminiCLIResponseToOpenAINonStream,
			TokenCount: OpenAITokenCount,
		},
	)
}
