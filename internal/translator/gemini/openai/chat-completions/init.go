package chat_completions

import (
	. "github.com/router-for-me/AntiHubAPI/internal/constant"
	"github.com/router-for-me/AntiHubAPI/internal/interfaces"
	"github.com/router-for-me/AntiHubAPI/sdk/translator"
)

func init() {
	translator.Register(
		OpenAI,
		Gemini,
		ConvertOpenAIRequestToGemini,
		interfaces.TranslateResponse{
			Stream:    ConvertGeminiResponseToOpenAI,
			NonStream: ConvertGeminiResponseToOpenAINonStream,
		},
	)
}
