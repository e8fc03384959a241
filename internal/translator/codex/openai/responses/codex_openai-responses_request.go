// Package responses provides request translation functionality for OpenAI Responses API to Codex compatibility.
// Codex speaks the Responses protocol natively, so translation is a normalization pass: the model id is
// resolved, fields the Codex backend rejects are stripped, and reasoning effort is derived from the model id.
package responses

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/router-for-me/AntiHubAPI/internal/util"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ConvertOpenAIResponsesRequestToCodex normalizes an OpenAI Responses API request for the Codex backend.
//
// Parameters:
//   - modelName: The name of the model to use for the request
//   - inputRawJSON: The raw JSON request data from the OpenAI Responses API
//   - stream: A boolean indicating if the request is for a streaming response
//
// Returns:
//   - []byte: The normalized request data ready for the Codex upstream
func ConvertOpenAIResponsesRequestToCodex(modelName string, inputRawJSON []byte, _ bool) []byte {
	rawJSON := bytes.Clone(inputRawJSON)

	baseModel, thinking := util.NormalizeThinkingModel(modelName)
	if baseModel == "" {
		baseModel = strings.TrimSpace(gjson.GetBytes(rawJSON, "model").String())
	}
	rawJSON, _ = sjson.SetBytes(rawJSON, "model", baseModel)

	// Codex replies over SSE regardless of the caller's stream flag; the executor
	// aggregates events when the front asked for a non-streaming response.
	rawJSON, _ = sjson.SetBytes(rawJSON, "stream", true)
	rawJSON, _ = sjson.SetBytes(rawJSON, "store", false)
	rawJSON, _ = sjson.SetBytes(rawJSON, "parallel_tool_calls", true)
	rawJSON, _ = sjson.SetBytes(rawJSON, "include", []string{"reasoning.encrypted_content"})
	// Codex Responses rejects token limit and sampling fields, so strip them out before forwarding.
	rawJSON, _ = sjson.DeleteBytes(rawJSON, "max_output_tokens")
	rawJSON, _ = sjson.DeleteBytes(rawJSON, "max_completion_tokens")
	rawJSON, _ = sjson.DeleteBytes(rawJSON, "temperature")
	rawJSON, _ = sjson.DeleteBytes(rawJSON, "top_p")
	rawJSON, _ = sjson.DeleteBytes(rawJSON, "service_tier")
	rawJSON, _ = sjson.DeleteBytes(rawJSON, "user")

	rawJSON = applyCodexReasoningEffort(rawJSON, thinking)

	inputResult := gjson.GetBytes(rawJSON, "input")
	if inputResult.Type == gjson.String {
		newInput := `[{"type":"message","role":"user","content":[{"type":"input_text","text":""}]}]`
		newInput, _ = sjson.SetRaw(newInput, "0.content.0.text", inputResult.Raw)
		rawJSON, _ = sjson.SetRawBytes(rawJSON, "input", []byte(newInput))
	} else if inputResult.IsArray() {
		// The Codex backend rejects role=system in input ("System messages are not allowed").
		for i, item := range inputResult.Array() {
			if item.Get("type").String() != "message" {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(item.Get("role").String())) {
			case "system", "developer":
				rawJSON, _ = sjson.SetBytes(rawJSON, fmt.Sprintf("input.%d.role", i), "user")
			}
		}
	}
	return rawJSON
}

// applyCodexReasoningEffort injects a reasoning effort parsed from an inline
// thinking suffix on the model id. An effort the caller already set wins; a
// chat-style reasoning_effort field is folded into the Responses shape.
func applyCodexReasoningEffort(rawJSON []byte, thinking map[string]any) []byte {
	effort := strings.TrimSpace(gjson.GetBytes(rawJSON, "reasoning_effort").String())
	rawJSON, _ = sjson.DeleteBytes(rawJSON, "reasoning_effort")
	if gjson.GetBytes(rawJSON, "reasoning.effort").Exists() {
		return rawJSON
	}
	if effort == "" && thinking != nil {
		if level, ok := thinking[util.ReasoningEffortMetadataKey].(string); ok {
			effort = level
		} else if budget, ok := thinking[util.ThinkingBudgetMetadataKey].(int); ok {
			effort = codexEffortForBudget(budget)
		}
	}
	if effort != "" {
		rawJSON, _ = sjson.SetBytes(rawJSON, "reasoning.effort", effort)
	}
	return rawJSON
}

// codexEffortForBudget buckets a thinking token budget into a reasoning
// effort level.
func codexEffortForBudget(budget int) string {
	switch {
	case budget <= 4096:
		return "low"
	case budget <= 16384:
		return "medium"
	default:
		return "high"
	}
}
