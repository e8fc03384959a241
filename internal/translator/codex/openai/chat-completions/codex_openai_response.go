package chat_completions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// codexToOpenAIState tracks per-stream conversion state between calls.
type codexToOpenAIState struct {
	done         bool
	roleEmitted  bool
	completionID string
	created      int64
	model        string
	toolIndex    map[string]int
	sawToolCall  bool
}

// ConvertCodexResponseToOpenAI converts Codex Responses SSE events to OpenAI
// Chat Completions chunks. Each call receives one response.* event payload;
// output_text deltas become content deltas, reasoning deltas become
// reasoning_content, function_call events become tool_calls deltas, and
// response.completed closes the stream with a finish chunk plus [DONE].
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used for the response
//   - originalRequestRawJSON: The original request JSON before any translation
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: One Codex SSE data payload
//   - param: A pointer to a parameter object for maintaining state between calls
//
// Returns:
//   - []string: OpenAI-compatible JSON chunk payloads
func ConvertCodexResponseToOpenAI(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &codexToOpenAIState{toolIndex: map[string]int{}}
	}
	state := (*param).(*codexToOpenAIState)
	if state.done {
		return []string{}
	}

	payload := strings.TrimSpace(string(rawJSON))
	payload = strings.TrimSpace(strings.TrimPrefix(payload, "data:"))
	if payload == "" {
		return []string{}
	}
	if payload == "[DONE]" {
		state.done = true
		return []string{codexFinalChunk(state, originalRequestRawJSON, gjson.Result{}), "[DONE]"}
	}

	root := gjson.Parse(payload)

	errObj := root.Get("error")
	if !errObj.Exists() || errObj.Type == gjson.Null {
		if respErr := root.Get("response.error"); respErr.Exists() && respErr.Type != gjson.Null {
			errObj = respErr
		}
	}
	eventType := strings.TrimSpace(root.Get("type").String())
	if (errObj.Exists() && errObj.Type != gjson.Null) || eventType == "error" || strings.HasSuffix(eventType, ".error") {
		state.done = true
		return []string{codexErrorChunk(errObj), "[DONE]"}
	}

	switch eventType {
	case "response.output_text.delta":
		delta := root.Get("delta")
		if delta.Type != gjson.String || delta.String() == "" {
			return []string{}
		}
		chunk, _ := sjson.Set(newCodexChunk(state, originalRequestRawJSON), "choices.0.delta.content", delta.String())
		return []string{codexEnsureRole(state, chunk)}

	case "response.reasoning_summary_text.delta", "response.reasoning_text.delta":
		delta := root.Get("delta")
		if delta.Type != gjson.String || delta.String() == "" {
			return []string{}
		}
		chunk, _ := sjson.Set(newCodexChunk(state, originalRequestRawJSON), "choices.0.delta.reasoning_content", delta.String())
		return []string{codexEnsureRole(state, chunk)}

	case "response.output_item.added":
		item := root.Get("item")
		if item.Get("type").String() != "function_call" {
			return []string{}
		}
		key := strings.TrimSpace(item.Get("id").String())
		if key == "" {
			key = strings.TrimSpace(item.Get("call_id").String())
		}
		index := len(state.toolIndex)
		if key != "" {
			state.toolIndex[key] = index
		}
		state.sawToolCall = true

		callID := strings.TrimSpace(item.Get("call_id").String())
		if callID == "" {
			callID = generateCallID()
		}
		call := `{"index":0,"type":"function","function":{"name":"","arguments":""}}`
		call, _ = sjson.Set(call, "index", index)
		call, _ = sjson.Set(call, "id", callID)
		call, _ = sjson.Set(call, "function.name", item.Get("name").String())
		if args := item.Get("arguments"); args.Type == gjson.String && args.String() != "" {
			call, _ = sjson.Set(call, "function.arguments", args.String())
		}
		chunk, _ := sjson.SetRaw(newCodexChunk(state, originalRequestRawJSON), "choices.0.delta.tool_calls.0", call)
		return []string{codexEnsureRole(state, chunk)}

	case "response.function_call_arguments.delta":
		delta := root.Get("delta")
		if delta.Type != gjson.String || delta.String() == "" {
			return []string{}
		}
		key := strings.TrimSpace(root.Get("item_id").String())
		index, ok := state.toolIndex[key]
		if !ok {
			// Argument deltas for an item never announced still stream by index.
			index = len(state.toolIndex)
			if key != "" {
				state.toolIndex[key] = index
			}
			state.sawToolCall = true
		}
		call := `{"index":0,"function":{"arguments":""}}`
		call, _ = sjson.Set(call, "index", index)
		call, _ = sjson.Set(call, "function.arguments", delta.String())
		chunk, _ := sjson.SetRaw(newCodexChunk(state, originalRequestRawJSON), "choices.0.delta.tool_calls.0", call)
		return []string{codexEnsureRole(state, chunk)}

	case "response.completed":
		state.done = true
		return []string{codexFinalChunk(state, originalRequestRawJSON, root.Get("response.usage")), "[DONE]"}
	}

	return []string{}
}

// ConvertCodexResponseToOpenAINonStream converts a complete Codex response
// object into a single OpenAI Chat Completions response.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used for the response
//   - originalRequestRawJSON: The original request JSON before any translation
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: The complete Codex response body, bare or wrapped in a
//     response.completed envelope
//   - param: A pointer to a parameter object for the conversion
//
// Returns:
//   - string: An OpenAI-compatible chat completion JSON response
func ConvertCodexResponseToOpenAINonStream(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	root := gjson.ParseBytes(rawJSON)
	if resp := root.Get("response"); resp.IsObject() {
		root = resp
	}

	respID := strings.TrimSpace(root.Get("id").String())
	completionID := "chatcmpl_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if strings.HasPrefix(respID, "chatcmpl_") {
		completionID = respID
	} else if respID != "" {
		completionID = "chatcmpl_" + respID
	}

	created := root.Get("created_at").Int()
	if created == 0 {
		created = time.Now().Unix()
	}
	model := strings.TrimSpace(root.Get("model").String())
	if model == "" {
		model = strings.TrimSpace(gjson.GetBytes(originalRequestRawJSON, "model").String())
	}
	if model == "" {
		model = modelName
	}

	var texts []string
	var reasonings []string
	toolCalls := "[]"
	toolCallCount := 0

	root.Get("output").ForEach(func(_, item gjson.Result) bool {
		switch item.Get("type").String() {
		case "message":
			if item.Get("role").String() != "assistant" {
				return true
			}
			content := item.Get("content")
			if content.Type == gjson.String {
				texts = append(texts, content.String())
				return true
			}
			content.ForEach(func(_, part gjson.Result) bool {
				switch part.Get("type").String() {
				case "output_text", "text":
					if part.Get("text").Type == gjson.String {
						texts = append(texts, part.Get("text").String())
					}
				}
				return true
			})

		case "function_call":
			callID := strings.TrimSpace(item.Get("call_id").String())
			if callID == "" {
				callID = strings.TrimSpace(item.Get("id").String())
			}
			if callID == "" {
				callID = generateCallID()
			}
			call := `{"index":0,"type":"function","function":{"name":"","arguments":""}}`
			call, _ = sjson.Set(call, "index", toolCallCount)
			call, _ = sjson.Set(call, "id", callID)
			call, _ = sjson.Set(call, "function.name", item.Get("name").String())
			call, _ = sjson.Set(call, "function.arguments", item.Get("arguments").String())
			toolCalls, _ = sjson.SetRaw(toolCalls, "-1", call)
			toolCallCount++

		case "reasoning":
			item.Get("summary").ForEach(func(_, part gjson.Result) bool {
				if part.Get("type").String() == "summary_text" && part.Get("text").Type == gjson.String {
					reasonings = append(reasonings, part.Get("text").String())
				}
				return true
			})
		}
		return true
	})

	out := `{"object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"stop"}]}`
	out, _ = sjson.Set(out, "id", completionID)
	out, _ = sjson.Set(out, "created", created)
	out, _ = sjson.Set(out, "model", model)
	out, _ = sjson.Set(out, "choices.0.message.content", strings.Join(texts, ""))
	if len(reasonings) > 0 {
		out, _ = sjson.Set(out, "choices.0.message.reasoning_content", strings.Join(reasonings, ""))
	}
	if toolCallCount > 0 {
		out, _ = sjson.SetRaw(out, "choices.0.message.tool_calls", toolCalls)
		out, _ = sjson.Set(out, "choices.0.finish_reason", "tool_calls")
	}
	return attachCodexUsage(out, root.Get("usage"))
}

// OpenAITokenCount returns the token count in OpenAI format.
func OpenAITokenCount(ctx context.Context, count int64) string {
	return fmt.Sprintf(`{"prompt_tokens":%d}`, count)
}

// codexEnsureIdentity fixes the chat completion id, creation time, and model
// reported on every chunk. The Responses stream does not repeat these.
func codexEnsureIdentity(state *codexToOpenAIState, originalRequestRawJSON []byte) {
	if state.completionID != "" {
		return
	}
	state.completionID = "chatcmpl_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	state.created = time.Now().Unix()
	state.model = strings.TrimSpace(gjson.GetBytes(originalRequestRawJSON, "model").String())
}

// newCodexChunk builds the chunk scaffold shared by every emission.
func newCodexChunk(state *codexToOpenAIState, originalRequestRawJSON []byte) string {
	codexEnsureIdentity(state, originalRequestRawJSON)
	chunk := `{"object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":null}]}`
	chunk, _ = sjson.Set(chunk, "id", state.completionID)
	chunk, _ = sjson.Set(chunk, "created", state.created)
	chunk, _ = sjson.Set(chunk, "model", state.model)
	return chunk
}

// codexEnsureRole stamps the assistant role onto the first delta chunk.
func codexEnsureRole(state *codexToOpenAIState, chunk string) string {
	if state.roleEmitted {
		return chunk
	}
	state.roleEmitted = true
	chunk, _ = sjson.Set(chunk, "choices.0.delta.role", "assistant")
	return chunk
}

// codexFinalChunk builds the closing chunk carrying the finish reason and,
// when the completed event reported it, the usage block.
func codexFinalChunk(state *codexToOpenAIState, originalRequestRawJSON []byte, usage gjson.Result) string {
	chunk := newCodexChunk(state, originalRequestRawJSON)
	finish := "stop"
	if state.sawToolCall {
		finish = "tool_calls"
	}
	chunk, _ = sjson.Set(chunk, "choices.0.finish_reason", finish)
	return attachCodexUsage(chunk, usage)
}

// attachCodexUsage maps Responses usage counters onto the OpenAI usage block.
func attachCodexUsage(payload string, usage gjson.Result) string {
	if !usage.IsObject() {
		return payload
	}
	payload, _ = sjson.Set(payload, "usage.prompt_tokens", usage.Get("input_tokens").Int())
	payload, _ = sjson.Set(payload, "usage.completion_tokens", usage.Get("output_tokens").Int())
	payload, _ = sjson.Set(payload, "usage.total_tokens", usage.Get("total_tokens").Int())
	if reasoning := usage.Get("output_tokens_details.reasoning_tokens").Int(); reasoning > 0 {
		payload, _ = sjson.Set(payload, "usage.completion_tokens_details.reasoning_tokens", reasoning)
	}
	return payload
}

// codexErrorChunk renders an upstream error event as an OpenAI error payload.
func codexErrorChunk(errObj gjson.Result) string {
	chunk := `{"error":{"message":""}}`
	if errObj.IsObject() {
		message := errObj.Get("message").String()
		if message == "" {
			message = errObj.Get("detail").String()
		}
		if message == "" {
			message = errObj.Raw
		}
		chunk, _ = sjson.Set(chunk, "error.message", message)
		code := int64(500)
		for _, key := range []string{"code", "status", "status_code"} {
			if v := errObj.Get(key); v.Exists() {
				if n := v.Int(); n > 0 {
					code = n
					break
				}
			}
		}
		chunk, _ = sjson.Set(chunk, "error.code", code)
		return chunk
	}
	message := strings.TrimSpace(errObj.String())
	if message == "" {
		message = "error"
	}
	chunk, _ = sjson.Set(chunk, "error.message", message)
	return chunk
}
