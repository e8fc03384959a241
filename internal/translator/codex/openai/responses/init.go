package responses

import (
	. "github.com/router-for-me/AntiHubAPI/internal/constant"
	"github.com/router-for-me/AntiHubAPI/internal/interfaces"
	"github.com/router-for-me/AntiHubAPI/sdk/translator"
)

func init() {
	// Register OpenaiResponse -> Codex translation for /v1/responses endpoint
	translator.Register(
		OpenaiResponse,
		Codex,
		ConvertOpenAIResponsesRequestToCodex,
		interfaces.TranslateResponse{
			Stream:    ConvertCodexResponseToOpenAIResponses,
			NonStream: ConvertCodexResponseToOpenAIResponsesNonStream,
		},
	)
}
