// Package chat_completions provides response translation functionality for Gemini to OpenAI API compatibility.
// It converts Gemini generateContent responses, streaming and non-streaming, into OpenAI Chat Completions
// payloads. Gemini CLI envelopes carrying a response field are unwrapped transparently so the Gemini CLI
// translators can delegate here.
package chat_completions

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// geminiToOpenAIState tracks per-stream conversion state between calls.
type geminiToOpenAIState struct {
	created       int64
	functionIndex int
}

// geminiFinishReasonToOpenAI maps Gemini finish reasons onto OpenAI finish
// reasons. Unknown reasons pass through lowercased.
var geminiFinishReasonToOpenAI = map[string]string{
	"STOP":       "stop",
	"MAX_TOKENS": "length",
}

// ConvertGeminiResponseToOpenAI converts Gemini streaming response chunks to
// OpenAI Chat Completions streaming chunks. Each call receives one Gemini SSE
// payload and returns zero or more OpenAI chunk payloads; every candidate
// part yields its own chunk so text, thought, function call, and inline image
// parts stay ordered.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used for the response
//   - originalRequestRawJSON: The original request JSON before any translation
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: One Gemini stream payload, bare or wrapped in a CLI envelope
//   - param: A pointer to a parameter object for maintaining state between calls
//
// Returns:
//   - []string: OpenAI-compatible JSON chunk payloads
func ConvertGeminiResponseToOpenAI(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &geminiToOpenAIState{}
	}
	state := (*param).(*geminiToOpenAIState)

	payload := bytes.TrimSpace(rawJSON)
	if len(payload) == 0 {
		return []string{}
	}
	if string(payload) == "[DONE]" {
		return []string{"[DONE]"}
	}

	root := gjson.ParseBytes(payload)
	if errObj := root.Get("error"); errObj.Exists() {
		chunk, _ := sjson.SetRaw(`{}`, "error", errObj.Raw)
		return []string{chunk, "[DONE]"}
	}
	if resp := root.Get("response"); resp.IsObject() {
		root = resp
	}

	if created := parseRFC3339Unix(root.Get("createTime").String()); created > 0 {
		state.created = created
	}
	created := state.created
	if created == 0 {
		created = time.Now().Unix()
	}

	id := root.Get("responseId").String()
	model := root.Get("modelVersion").String()
	if model == "" {
		model = modelName
	}

	finish := ""
	if fr := strings.TrimSpace(root.Get("candidates.0.finishReason").String()); fr != "" {
		finish = mapGeminiFinishReason(fr)
	}

	newChunk := func() string {
		chunk := `{"object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":null}]}`
		chunk, _ = sjson.Set(chunk, "id", id)
		chunk, _ = sjson.Set(chunk, "created", created)
		chunk, _ = sjson.Set(chunk, "model", model)
		if finish != "" {
			chunk, _ = sjson.Set(chunk, "choices.0.finish_reason", finish)
		}
		return attachGeminiUsage(chunk, root, false)
	}

	parts := root.Get("candidates.0.content.parts").Array()
	if len(parts) == 0 {
		return []string{newChunk()}
	}

	var chunks []string
	for _, part := range parts {
		if !part.IsObject() {
			continue
		}

		text := part.Get("text")
		fnCall := geminiPartField(part, "functionCall", "function_call")
		inline := geminiPartField(part, "inlineData", "inline_data")
		if geminiThoughtSignature(part) != "" && !text.Exists() && !fnCall.Exists() && !inline.Exists() {
			// Signature-only parts carry no payload for OpenAI clients.
			continue
		}

		switch {
		case text.Type == gjson.String && text.String() != "":
			chunk, _ := sjson.Set(newChunk(), "choices.0.delta.role", "assistant")
			if geminiThoughtPart(part) {
				chunk, _ = sjson.Set(chunk, "choices.0.delta.reasoning_content", text.String())
			} else {
				chunk, _ = sjson.Set(chunk, "choices.0.delta.content", text.String())
			}
			chunks = append(chunks, chunk)

		case fnCall.IsObject() && strings.TrimSpace(fnCall.Get("name").String()) != "":
			name := strings.TrimSpace(fnCall.Get("name").String())
			call := `{"type":"function","function":{}}`
			call, _ = sjson.Set(call, "id", nextGeminiToolCallID(name))
			call, _ = sjson.Set(call, "index", state.functionIndex)
			call, _ = sjson.Set(call, "function.name", name)
			call, _ = sjson.Set(call, "function.arguments", functionCallArgsString(fnCall.Get("args")))
			state.functionIndex++

			chunk, _ := sjson.Set(newChunk(), "choices.0.delta.role", "assistant")
			chunk, _ = sjson.SetRaw(chunk, "choices.0.delta.tool_calls.0", call)
			chunk, _ = sjson.Set(chunk, "choices.0.finish_reason", "tool_calls")
			chunks = append(chunks, chunk)

		case inline.IsObject() && strings.TrimSpace(inline.Get("data").String()) != "":
			chunk, _ := sjson.Set(newChunk(), "choices.0.delta.role", "assistant")
			chunk, _ = sjson.SetRaw(chunk, "choices.0.delta.images.0", geminiInlineDataToImage(inline))
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// ConvertGeminiResponseToOpenAINonStream converts a complete Gemini
// generateContent response into a single OpenAI Chat Completions response.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used for the response
//   - originalRequestRawJSON: The original request JSON before any translation
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: The complete Gemini response body, bare or wrapped in a CLI envelope
//   - param: A pointer to a parameter object for the conversion
//
// Returns:
//   - string: An OpenAI-compatible chat completion JSON response
func ConvertGeminiResponseToOpenAINonStream(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	root := gjson.ParseBytes(rawJSON)
	if resp := root.Get("response"); resp.IsObject() {
		root = resp
	}

	id := strings.TrimSpace(root.Get("responseId").String())
	if id == "" {
		id = "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	model := root.Get("modelVersion").String()
	if model == "" {
		model = modelName
	}
	created := parseRFC3339Unix(root.Get("createTime").String())
	if created == 0 {
		created = time.Now().Unix()
	}

	finish := "stop"
	if fr := strings.TrimSpace(root.Get("candidates.0.finishReason").String()); fr != "" {
		finish = mapGeminiFinishReason(fr)
	}

	var contentTexts []string
	var reasoningTexts []string
	toolCalls := "[]"
	toolCallCount := 0
	images := "[]"
	imageCount := 0

	root.Get("candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		if !part.IsObject() {
			return true
		}

		text := part.Get("text")
		fnCall := geminiPartField(part, "functionCall", "function_call")
		inline := geminiPartField(part, "inlineData", "inline_data")
		if geminiThoughtSignature(part) != "" && !text.Exists() && !fnCall.Exists() && !inline.Exists() {
			return true
		}

		switch {
		case text.Type == gjson.String && text.String() != "":
			if geminiThoughtPart(part) {
				reasoningTexts = append(reasoningTexts, text.String())
			} else {
				contentTexts = append(contentTexts, text.String())
			}

		case fnCall.IsObject() && strings.TrimSpace(fnCall.Get("name").String()) != "":
			name := strings.TrimSpace(fnCall.Get("name").String())
			call := `{"type":"function","function":{}}`
			call, _ = sjson.Set(call, "id", nextGeminiToolCallID(name))
			call, _ = sjson.Set(call, "index", toolCallCount)
			call, _ = sjson.Set(call, "function.name", name)
			call, _ = sjson.Set(call, "function.arguments", functionCallArgsString(fnCall.Get("args")))
			toolCalls, _ = sjson.SetRaw(toolCalls, "-1", call)
			toolCallCount++

		case inline.IsObject() && strings.TrimSpace(inline.Get("data").String()) != "":
			images, _ = sjson.SetRaw(images, "-1", geminiInlineDataToImage(inline))
			imageCount++
		}
		return true
	})

	out := `{"object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"stop"}]}`
	out, _ = sjson.Set(out, "id", id)
	out, _ = sjson.Set(out, "created", created)
	out, _ = sjson.Set(out, "model", model)

	if len(contentTexts) > 0 {
		out, _ = sjson.Set(out, "choices.0.message.content", strings.Join(contentTexts, ""))
	}
	if len(reasoningTexts) > 0 {
		out, _ = sjson.Set(out, "choices.0.message.reasoning_content", strings.Join(reasoningTexts, ""))
	}
	if toolCallCount > 0 {
		out, _ = sjson.SetRaw(out, "choices.0.message.tool_calls", toolCalls)
		finish = "tool_calls"
	}
	if imageCount > 0 {
		out, _ = sjson.SetRaw(out, "choices.0.message.images", images)
	}
	out, _ = sjson.Set(out, "choices.0.finish_reason", finish)

	return attachGeminiUsage(out, root, true)
}

// mapGeminiFinishReason maps a Gemini finishReason onto the OpenAI finish
// reason vocabulary, lowercasing anything without a direct equivalent.
func mapGeminiFinishReason(reason string) string {
	if mapped, ok := geminiFinishReasonToOpenAI[reason]; ok {
		return mapped
	}
	return strings.ToLower(reason)
}

// attachGeminiUsage copies usageMetadata token counts onto an OpenAI payload.
// Thought tokens are billed as prompt-side reasoning by Gemini, so they fold
// into prompt_tokens and surface again under completion_tokens_details.
// Streaming chunks carry usage only once counts are present; the final
// response always does.
func attachGeminiUsage(payload string, root gjson.Result, always bool) string {
	usage := root.Get("usageMetadata")
	prompt := usage.Get("promptTokenCount").Int()
	completion := usage.Get("candidatesTokenCount").Int()
	total := usage.Get("totalTokenCount").Int()
	if total == 0 {
		total = prompt + completion
	}
	thoughts := usage.Get("thoughtsTokenCount").Int()

	if total == 0 && !always {
		return payload
	}
	payload, _ = sjson.Set(payload, "usage.prompt_tokens", prompt+thoughts)
	payload, _ = sjson.Set(payload, "usage.completion_tokens", completion)
	payload, _ = sjson.Set(payload, "usage.total_tokens", total)
	if thoughts > 0 {
		payload, _ = sjson.Set(payload, "usage.completion_tokens_details.reasoning_tokens", thoughts)
	}
	return payload
}

// geminiPartField reads a part field that upstreams spell in camelCase or
// snake_case depending on the transport.
func geminiPartField(part gjson.Result, camel, snake string) gjson.Result {
	if v := part.Get(camel); v.Exists() {
		return v
	}
	return part.Get(snake)
}

// geminiThoughtSignature returns the part's thought signature, or "".
func geminiThoughtSignature(part gjson.Result) string {
	if sig := strings.TrimSpace(part.Get("thoughtSignature").String()); sig != "" {
		return sig
	}
	return strings.TrimSpace(part.Get("thought_signature").String())
}

// geminiThoughtPart reports whether a part carries model thinking rather than
// answer text. Some upstreams omit the thought flag and mark thinking parts
// with a thought signature only.
func geminiThoughtPart(part gjson.Result) bool {
	if part.Get("thought").Bool() {
		return true
	}
	return geminiThoughtSignature(part) != ""
}

// geminiInlineDataToImage converts an inlineData part into the OpenAI
// image_url content shape using a base64 data URL.
func geminiInlineDataToImage(inline gjson.Result) string {
	mime := strings.TrimSpace(inline.Get("mimeType").String())
	if mime == "" {
		mime = strings.TrimSpace(inline.Get("mime_type").String())
	}
	if mime == "" {
		mime = "image/png"
	}
	b64 := strings.TrimSpace(inline.Get("data").String())
	image := `{"type":"image_url","image_url":{}}`
	image, _ = sjson.Set(image, "image_url.url", fmt.Sprintf("data:%s;base64,%s", mime, b64))
	return image
}

// functionCallArgsString renders Gemini functionCall args as the OpenAI
// arguments string. Objects and arrays keep their JSON text, strings pass
// through as-is, and anything else collapses to an empty object.
func functionCallArgsString(args gjson.Result) string {
	if args.IsObject() || args.IsArray() {
		return args.Raw
	}
	if args.Type == gjson.String {
		return args.String()
	}
	return "{}"
}

// nextGeminiToolCallID derives a unique tool call id from the function name.
// Gemini does not assign call ids, so the id only has to be stable within the
// response for tool messages to refer back to.
func nextGeminiToolCallID(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		n = "tool"
	}
	return fmt.Sprintf("%s-%d-%s", n, time.Now().UnixMicro(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// parseRFC3339Unix parses an RFC 3339 timestamp into unix seconds, returning
// 0 when the value is missing or malformed.
func parseRFC3339Unix(value string) int64 {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return 0
	}
	return t.Unix()
}
