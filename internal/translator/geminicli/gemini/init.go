package gemini

import (
	. "github.com/router-for-me/AntiHubAPI/internal/constant"
	"github.com/router-for-me/AntiHubAPI/internal/interfaces"
	"github.com/router-for-me/AntiHubAPI/sdk/translator"
)

func init() {
	// Register Gemini -> Gemini CLI translation for /v1beta/models
	translator.Register(
		Gemini,
		GeminiCLI,
		ConvertGeminiRequestToGeminiCLI,
		interfaces.TranslateResponse{
			Stream:     ConvertGeminiCLIResponseToGemini,
			NonStream:  ConvertGeminiCLIResponseToGeminiNonStream,
			TokenCount: GeminiTokenCount,
		},
	)
}
