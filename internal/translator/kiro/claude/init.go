// Package claude translates between the Claude Messages schema and the Kiro
// upstream. Kiro speaks Claude internally, so the registered pair mostly
// passes bodies through; the real work is the conversationState payload
// building and the event-stream re-framing the executor drives through this
// package.
package claude

import (
	. "github.com/router-for-me/AntiHubAPI/internal/constant"
	"github.com/router-for-me/AntiHubAPI/internal/interfaces"
	"github.com/router-for-me/AntiHubAPI/sdk/translator"
)

func init() {
	// Register Claude -> Kiro translation for /v1/messages
	translator.Register(
		Claude,
		Kiro,
		ConvertClaudeRequestToKiro,
		interfaces.TranslateResponse{
			Stream:     ConvertKiroResponseToClaude,
			NonStream:  ConvertKiroResponseToClaudeNonStream,
			TokenCount: ClaudeTokenCount,
		},
	)
}
