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

// claudeToOpenAIState tracks per-stream conversion state between calls.
type claudeToOpenAIState struct {
	id           string
	created      int64
	blockKinds   map[int64]string
	toolIndexes  map[int64]int
	nextToolIdx  int
	inputTokens  int64
	outputTokens int64
}

// anthropicStopReasonToOpenAI maps Claude stop reasons onto OpenAI finish
// reasons. Context window exhaustion surfaces as length so OpenAI clients
// treat it as a truncated response.
var anthropicStopReasonToOpenAI = map[string]string{
	"end_turn":                      "stop",
	"max_tokens":                    "length",
	"stop_sequence":                 "stop",
	"tool_use":                      "tool_calls",
	"model_context_window_exceeded": "length",
}

// ConvertClaudeResponseToOpenAI converts Claude Messages SSE events to OpenAI
// Chat Completions streaming chunks. Each call receives one Claude SSE event
// and returns zero or more OpenAI chunk payloads; the terminating message_stop
// event yields the [DONE] marker.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used for the response
//   - originalRequestRawJSON: The original request JSON before any translation
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: One Claude SSE event, either a bare JSON object or a full SSE block
//   - param: A pointer to a parameter object for maintaining state between calls
//
// Returns:
//   - []string: OpenAI-compatible JSON chunk payloads
func ConvertClaudeResponseToOpenAI(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &claudeToOpenAIState{
			id:          fmt.Sprintf("chatcmpl-%s", strings.ReplaceAll(uuid.NewString(), "-", "")),
			created:     time.Now().Unix(),
			blockKinds:  make(map[int64]string),
			toolIndexes: make(map[int64]int),
		}
	}
	state := (*param).(*claudeToOpenAIState)

	data := claudeStreamEventData(rawJSON)
	if len(data) == 0 {
		return []string{}
	}
	event := gjson.ParseBytes(data)

	switch event.Get("type").String() {
	case "message_start":
		if id := event.Get("message.id").String(); id != "" {
			state.id = "chatcmpl-" + strings.TrimPrefix(id, "msg_")
		}
		if v := event.Get("message.usage.input_tokens"); v.Exists() {
			state.inputTokens = v.Int()
		}
		chunk := newChatChunk(state, modelName)
		chunk, _ = sjson.Set(chunk, "choices.0.delta.role", "assistant")
		chunk, _ = sjson.Set(chunk, "choices.0.delta.content", "")
		return []string{chunk}

	case "content_block_start":
		index := event.Get("index").Int()
		kind := event.Get("content_block.type").String()
		state.blockKinds[index] = kind
		if kind != "tool_use" {
			return []string{}
		}
		toolIdx := state.nextToolIdx
		state.nextToolIdx++
		state.toolIndexes[index] = toolIdx
		chunk := newChatChunk(state, modelName)
		call := `{"type":"function","function":{"arguments":""}}`
		call, _ = sjson.Set(call, "index", toolIdx)
		call, _ = sjson.Set(call, "id", event.Get("content_block.id").String())
		call, _ = sjson.Set(call, "function.name", event.Get("content_block.name").String())
		chunk, _ = sjson.SetRaw(chunk, "choices.0.delta.tool_calls.0", call)
		return []string{chunk}

	case "content_block_delta":
		index := event.Get("index").Int()
		delta := event.Get("delta")
		switch delta.Get("type").String() {
		case "text_delta":
			chunk := newChatChunk(state, modelName)
			chunk, _ = sjson.Set(chunk, "choices.0.delta.content", delta.Get("text").String())
			return []string{chunk}
		case "thinking_delta":
			chunk := newChatChunk(state, modelName)
			chunk, _ = sjson.Set(chunk, "choices.0.delta.reasoning_content", delta.Get("thinking").String())
			return []string{chunk}
		case "input_json_delta":
			toolIdx, ok := state.toolIndexes[index]
			if !ok {
				return []string{}
			}
			chunk := newChatChunk(state, modelName)
			call, _ := sjson.Set(`{"function":{}}`, "index", toolIdx)
			call, _ = sjson.Set(call, "function.arguments", delta.Get("partial_json").String())
			chunk, _ = sjson.SetRaw(chunk, "choices.0.delta.tool_calls.0", call)
			return []string{chunk}
		}
		// signature_delta carries no OpenAI equivalent.
		return []string{}

	case "message_delta":
		if v := event.Get("usage.input_tokens"); v.Exists() {
			state.inputTokens = v.Int()
		}
		if v := event.Get("usage.output_tokens"); v.Exists() {
			state.outputTokens = v.Int()
		}
		finish := "stop"
		if mapped, ok := anthropicStopReasonToOpenAI[event.Get("delta.stop_reason").String()]; ok {
			finish = mapped
		}
		chunk := newChatChunk(state, modelName)
		chunk, _ = sjson.Set(chunk, "choices.0.finish_reason", finish)
		chunk, _ = sjson.Set(chunk, "usage.prompt_tokens", state.inputTokens)
		chunk, _ = sjson.Set(chunk, "usage.completion_tokens", state.outputTokens)
		chunk, _ = sjson.Set(chunk, "usage.total_tokens", state.inputTokens+state.outputTokens)
		return []string{chunk}

	case "message_stop":
		return []string{"[DONE]"}

	case "error":
		chunk, _ := sjson.SetRaw(`{}`, "error", event.Get("error").Raw)
		return []string{chunk, "[DONE]"}
	}

	return []string{}
}

// ConvertClaudeResponseToOpenAINonStream converts a complete Claude Messages
// response into a single OpenAI Chat Completions response.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used for the response
//   - originalRequestRawJSON: The original request JSON before any translation
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: The complete Claude Messages response body
//   - param: A pointer to a parameter object for the conversion
//
// Returns:
//   - string: An OpenAI-compatible chat completion JSON response
func ConvertClaudeResponseToOpenAINonStream(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	root := gjson.ParseBytes(rawJSON)

	out := `{"object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant"},"finish_reason":"stop"}]}`
	id := root.Get("id").String()
	if id == "" {
		id = uuid.NewString()
	}
	out, _ = sjson.Set(out, "id", "chatcmpl-"+strings.TrimPrefix(id, "msg_"))
	out, _ = sjson.Set(out, "created", time.Now().Unix())
	out, _ = sjson.Set(out, "model", modelName)

	var textParts []string
	var reasoningParts []string
	signature := ""
	toolCalls := "[]"
	toolCallCount := 0

	root.Get("content").ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			textParts = append(textParts, block.Get("text").String())
		case "thinking":
			reasoningParts = append(reasoningParts, block.Get("thinking").String())
			if sig := block.Get("signature").String(); sig != "" && signature == "" {
				signature = sig
			}
		case "tool_use":
			call := `{"type":"function","function":{}}`
			callID := block.Get("id").String()
			if callID == "" {
				callID = "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
			}
			call, _ = sjson.Set(call, "id", callID)
			call, _ = sjson.Set(call, "function.name", block.Get("name").String())
			args := "{}"
			if input := block.Get("input"); input.IsObject() {
				args = input.Raw
			}
			call, _ = sjson.Set(call, "function.arguments", args)
			toolCalls, _ = sjson.SetRaw(toolCalls, "-1", call)
			toolCallCount++
		}
		return true
	})

	if len(textParts) > 0 {
		out, _ = sjson.Set(out, "choices.0.message.content", strings.Join(textParts, ""))
	} else {
		out, _ = sjson.SetRaw(out, "choices.0.message.content", "null")
	}
	if len(reasoningParts) > 0 {
		out, _ = sjson.Set(out, "choices.0.message.reasoning_content", strings.Join(reasoningParts, ""))
	}
	if signature != "" {
		out, _ = sjson.Set(out, "choices.0.message.signature", signature)
	}
	if toolCallCount > 0 {
		out, _ = sjson.SetRaw(out, "choices.0.message.tool_calls", toolCalls)
	}

	finish := "stop"
	if mapped, ok := anthropicStopReasonToOpenAI[root.Get("stop_reason").String()]; ok {
		finish = mapped
	}
	if toolCallCount > 0 {
		finish = "tool_calls"
	}
	out, _ = sjson.Set(out, "choices.0.finish_reason", finish)

	inputTokens := root.Get("usage.input_tokens").Int()
	outputTokens := root.Get("usage.output_tokens").Int()
	out, _ = sjson.Set(out, "usage.prompt_tokens", inputTokens)
	out, _ = sjson.Set(out, "usage.completion_tokens", outputTokens)
	out, _ = sjson.Set(out, "usage.total_tokens", inputTokens+outputTokens)

	return out
}

// OpenAITokenCount returns the token count in OpenAI format.
func OpenAITokenCount(ctx context.Context, count int64) string {
	return fmt.Sprintf(`{"prompt_tokens":%d}`, count)
}

// newChatChunk builds the chunk scaffold shared by all streaming events.
func newChatChunk(state *claudeToOpenAIState, modelName string) string {
	chunk := `{"object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":null}]}`
	chunk, _ = sjson.Set(chunk, "id", state.id)
	chunk, _ = sjson.Set(chunk, "created", state.created)
	chunk, _ = sjson.Set(chunk, "model", modelName)
	return chunk
}

// claudeStreamEventData extracts the JSON payload from a Claude stream unit,
// accepting either a bare JSON object or a full "event: ...\ndata: ..." block.
func claudeStreamEventData(rawJSON []byte) []byte {
	trimmed := bytes.TrimSpace(rawJSON)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '{' {
		return trimmed
	}
	for _, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if bytes.HasPrefix(line, []byte("data:")) {
			return bytes.TrimSpace(line[len("data:"):])
		}
	}
	return nil
}
