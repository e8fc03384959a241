package gemini

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/router-for-me/AntiHubAPI/internal/util"
)

// streamFunctionCall accumulates one tool call across chat deltas. OpenAI
// streams arguments incrementally while Gemini emits complete functionCall
// parts, so calls buffer here until the finish chunk.
type streamFunctionCall struct {
	name      string
	arguments string
}

// openAIToGeminiState tracks per-stream conversion state between calls.
type openAIToGeminiState struct {
	lastUsage string
	toolCalls map[int]*streamFunctionCall
	flushed   bool
	done      bool
}

// ConvertOpenAIResponseToGemini converts OpenAI Chat Completions streaming
// chunks to Gemini streamGenerateContent payloads. Content and reasoning
// deltas pass through as text and thought parts; tool call fragments buffer
// until the finish chunk, which carries the assembled functionCall parts,
// the mapped finishReason, and usageMetadata.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used for the response
//   - originalRequestRawJSON: The original request JSON before any translation
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: One chat completions chunk, or the [DONE] marker
//   - param: A pointer to a parameter object for maintaining state between calls
//
// Returns:
//   - []string: Gemini-compatible JSON response payloads
func ConvertOpenAIResponseToGemini(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &openAIToGeminiState{toolCalls: map[int]*streamFunctionCall{}}
	}
	state := (*param).(*openAIToGeminiState)
	if state.done {
		return []string{}
	}

	payload := bytes.TrimSpace(rawJSON)
	payload = bytes.TrimSpace(bytes.TrimPrefix(payload, []byte("data:")))
	if len(payload) == 0 {
		return []string{}
	}

	if string(payload) == "[DONE]" {
		state.done = true
		// An upstream that never sent finish_reason still owes the client
		// any buffered tool calls.
		if !state.flushed && len(state.toolCalls) > 0 {
			return []string{state.finishPayload("", "stop")}
		}
		return []string{}
	}

	root := gjson.ParseBytes(payload)
	if errObj := root.Get("error"); errObj.Exists() {
		state.done = true
		return []string{geminiErrorPayload(errObj)}
	}

	if usage := root.Get("usage"); usage.IsObject() {
		state.lastUsage = usage.Raw
	}

	choice := root.Get("choices.0")
	if !choice.Exists() {
		return []string{}
	}
	delta := choice.Get("delta")

	delta.Get("tool_calls").ForEach(func(_, tc gjson.Result) bool {
		idx := int(tc.Get("index").Int())
		call := state.toolCalls[idx]
		if call == nil {
			call = &streamFunctionCall{}
			state.toolCalls[idx] = call
		}
		if name := tc.Get("function.name").String(); name != "" {
			call.name = name
		}
		call.arguments += tc.Get("function.arguments").String()
		return true
	})

	var outs []string
	if reasoning := delta.Get("reasoning_content").String(); reasoning != "" {
		outs = append(outs, geminiTextPayload(reasoning, true))
	}

	textDelta := ""
	if v := delta.Get("content"); v.Type == gjson.String {
		textDelta = v.String()
	}
	finish := strings.TrimSpace(choice.Get("finish_reason").String())

	if finish == "" {
		if textDelta != "" {
			outs = append(outs, geminiTextPayload(textDelta, false))
		}
		return outs
	}

	outs = append(outs, state.finishPayload(textDelta, finish))
	return outs
}

// finishPayload assembles the final streaming payload: trailing text, the
// buffered functionCall parts in index order, the mapped finishReason, and
// usage when the upstream reported any.
func (s *openAIToGeminiState) finishPayload(textDelta, finish string) string {
	parts := "[]"
	if textDelta != "" {
		part, _ := sjson.Set(`{"text":""}`, "text", textDelta)
		parts, _ = sjson.SetRaw(parts, "-1", part)
	}
	if !s.flushed {
		indexes := make([]int, 0, len(s.toolCalls))
		for idx := range s.toolCalls {
			indexes = append(indexes, idx)
		}
		sort.Ints(indexes)
		for _, idx := range indexes {
			parts, _ = sjson.SetRaw(parts, "-1", functionCallPart(s.toolCalls[idx]))
		}
		s.flushed = true
	}

	out := `{"candidates":[{"content":{"role":"model","parts":[]},"finishReason":""}]}`
	out, _ = sjson.SetRaw(out, "candidates.0.content.parts", parts)
	out, _ = sjson.Set(out, "candidates.0.finishReason", mapOpenAIFinishReason(finish))
	if s.lastUsage != "" {
		out, _ = sjson.SetRaw(out, "usageMetadata", openAIUsageToGeminiUsage(s.lastUsage))
	}
	return out
}

// ConvertOpenAIResponseToGeminiNonStream converts a complete OpenAI Chat
// Completions response into a single Gemini generateContent response.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used for the response
//   - originalRequestRawJSON: The original request JSON before any translation
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: The complete chat completions response body
//   - param: A pointer to a parameter object for the conversion
//
// Returns:
//   - string: A Gemini-compatible JSON response
func ConvertOpenAIResponseToGeminiNonStream(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	root := gjson.ParseBytes(rawJSON)
	msg := root.Get("choices.0.message")

	parts := "[]"
	if reasoning := msg.Get("reasoning_content").String(); reasoning != "" {
		part, _ := sjson.Set(`{"text":"","thought":true}`, "text", reasoning)
		parts, _ = sjson.SetRaw(parts, "-1", part)
	}
	if text := openAIMessageText(msg); text != "" {
		part, _ := sjson.Set(`{"text":""}`, "text", text)
		parts, _ = sjson.SetRaw(parts, "-1", part)
	}
	msg.Get("tool_calls").ForEach(func(_, tc gjson.Result) bool {
		if tc.Get("type").Exists() && tc.Get("type").String() != "function" {
			return true
		}
		call := &streamFunctionCall{
			name: strings.TrimSpace(tc.Get("function.name").String()),
		}
		if args := tc.Get("function.arguments"); args.Type == gjson.String {
			call.arguments = args.String()
		} else if args.IsObject() {
			call.arguments = args.Raw
		}
		parts, _ = sjson.SetRaw(parts, "-1", functionCallPart(call))
		return true
	})

	out := `{"candidates":[{"content":{"role":"model","parts":[]},"finishReason":""}]}`
	out, _ = sjson.SetRaw(out, "candidates.0.content.parts", parts)
	out, _ = sjson.Set(out, "candidates.0.finishReason", mapOpenAIFinishReason(root.Get("choices.0.finish_reason").String()))
	if usage := root.Get("usage"); usage.IsObject() {
		out, _ = sjson.SetRaw(out, "usageMetadata", openAIUsageToGeminiUsage(usage.Raw))
	}
	return out
}

// GeminiTokenCount returns the token count in Gemini countTokens format.
func GeminiTokenCount(ctx context.Context, count int64) string {
	return fmt.Sprintf(`{"totalTokens":%d}`, count)
}

// openAIMessageText extracts the text of a chat message, joining text blocks
// when the content uses the array form.
func openAIMessageText(msg gjson.Result) string {
	content := msg.Get("content")
	if content.Type == gjson.String {
		return content.String()
	}
	if !content.IsArray() {
		return ""
	}
	var texts []string
	content.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			if t := block.Get("text"); t.Type == gjson.String {
				texts = append(texts, t.String())
			}
		}
		return true
	})
	return strings.Join(texts, "")
}

// functionCallPart renders a buffered tool call as a Gemini functionCall
// part. Arguments that cannot be recovered as a JSON object collapse to {}.
func functionCallPart(call *streamFunctionCall) string {
	args := util.RepairToolArgumentsString(call.arguments)
	if args == "" {
		args = "{}"
	}
	part, _ := sjson.Set(`{"functionCall":{"name":"","args":{}}}`, "functionCall.name", call.name)
	part, _ = sjson.SetRaw(part, "functionCall.args", args)
	return part
}

// geminiTextPayload wraps one text delta in a Gemini streaming payload,
// marking it as a thought part for reasoning deltas.
func geminiTextPayload(text string, thought bool) string {
	part, _ := sjson.Set(`{"text":""}`, "text", text)
	if thought {
		part, _ = sjson.Set(part, "thought", true)
	}
	out := `{"candidates":[{"content":{"role":"model","parts":[]}}]}`
	out, _ = sjson.SetRaw(out, "candidates.0.content.parts.-1", part)
	return out
}

// geminiErrorPayload renders an upstream error object as a Gemini error
// payload, keeping the upstream status code when one is recognizable.
func geminiErrorPayload(errObj gjson.Result) string {
	message := strings.TrimSpace(errObj.Get("message").String())
	if message == "" {
		message = strings.TrimSpace(errObj.Get("detail").String())
	}
	if message == "" {
		message = "upstream_error"
	}
	code := int64(500)
	for _, key := range []string{"code", "status", "status_code"} {
		if v := errObj.Get(key); v.Type == gjson.Number {
			code = v.Int()
			break
		}
	}
	out, _ := sjson.Set(`{"error":{"message":"","code":500}}`, "error.message", message)
	out, _ = sjson.Set(out, "error.code", code)
	return out
}

// mapOpenAIFinishReason maps an OpenAI finish reason onto the Gemini
// finishReason vocabulary, uppercasing anything without a direct equivalent.
func mapOpenAIFinishReason(reason string) string {
	switch fr := strings.ToLower(strings.TrimSpace(reason)); fr {
	case "", "stop":
		return "STOP"
	case "length":
		return "MAX_TOKENS"
	default:
		return strings.ToUpper(fr)
	}
}

// openAIUsageToGeminiUsage converts a chat usage object into Gemini
// usageMetadata, surfacing reasoning token details as thoughtsTokenCount.
func openAIUsageToGeminiUsage(usageRaw string) string {
	usage := gjson.Parse(usageRaw)
	prompt := usage.Get("prompt_tokens").Int()
	completion := usage.Get("completion_tokens").Int()
	total := usage.Get("total_tokens").Int()
	if total == 0 {
		total = prompt + completion
	}
	out, _ := sjson.Set(`{"promptTokenCount":0,"candidatesTokenCount":0,"totalTokenCount":0}`, "promptTokenCount", prompt)
	out, _ = sjson.Set(out, "candidatesTokenCount", completion)
	out, _ = sjson.Set(out, "totalTokenCount", total)
	if thoughts := usage.Get("completion_tokens_details.reasoning_tokens").Int(); thoughts > 0 {
		out, _ = sjson.Set(out, "thoughtsTokenCount", thoughts)
	}
	return out
}
