// Package chat_completions provides request translation functionality for OpenAI to Codex compatibility.
// Codex serves the OpenAI Responses API, so chat requests are rebuilt as Responses requests: system text
// becomes instructions, messages become input items, and tool definitions flatten to the Responses shape.
// The rebuilt request then runs through the same normalization the Responses front applies.
package chat_completions

import (
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	codexresponses "github.com/router-for-me/AntiHubAPI/internal/translator/codex/openai/responses"
	"github.com/router-for-me/AntiHubAPI/internal/util"
)

// ConvertOpenAIRequestToCodex converts an OpenAI Chat Completions request into
// a Codex Responses request.
//
// Parameters:
//   - modelName: The name of the model to use for the request
//   - inputRawJSON: The raw JSON request data from the OpenAI Chat Completions API
//   - stream: A boolean indicating if the request is for a streaming response
//
// Returns:
//   - []byte: The request data in Codex Responses format
func ConvertOpenAIRequestToCodex(modelName string, inputRawJSON []byte, stream bool) []byte {
	root := gjson.ParseBytes(inputRawJSON)

	out := `{"model":"","stream":false,"input":[]}`
	out, _ = sjson.Set(out, "model", modelName)
	out, _ = sjson.Set(out, "stream", root.Get("stream").Bool())

	instructions, inputItems := chatMessagesToResponsesInput(root.Get("messages"))
	if instructions != "" {
		out, _ = sjson.Set(out, "instructions", instructions)
	}
	out, _ = sjson.SetRaw(out, "input", inputItems)

	if v := root.Get("temperature"); v.Exists() {
		out, _ = sjson.SetRaw(out, "temperature", v.Raw)
	}
	if v := root.Get("top_p"); v.Exists() {
		out, _ = sjson.SetRaw(out, "top_p", v.Raw)
	}
	maxTokens := root.Get("max_tokens")
	if !maxTokens.Exists() {
		maxTokens = root.Get("max_completion_tokens")
	}
	if maxTokens.Exists() && maxTokens.Type != gjson.Null {
		out, _ = sjson.SetRaw(out, "max_output_tokens", maxTokens.Raw)
	}

	if tools := root.Get("tools"); tools.IsArray() {
		out, _ = sjson.SetRaw(out, "tools", chatToolsToResponsesTools(tools))
	}
	if choice := root.Get("tool_choice"); choice.Exists() {
		out, _ = sjson.SetRaw(out, "tool_choice", chatToolChoiceToResponses(choice))
	}

	for _, key := range []string{"user", "metadata", "response_format", "seed", "reasoning_effort", "stream_options"} {
		if v := root.Get(key); v.Exists() {
			out, _ = sjson.SetRaw(out, key, v.Raw)
		}
	}

	return codexresponses.ConvertOpenAIResponsesRequestToCodex(modelName, []byte(out), stream)
}

// chatMessagesToResponsesInput splits chat messages into instructions text and
// Responses input items. System and developer text joins the instructions;
// assistant tool_calls become function_call items and tool results become
// function_call_output items so multi-turn tool use survives the conversion.
func chatMessagesToResponsesInput(messages gjson.Result) (string, string) {
	var instructions []string
	items := "[]"

	messages.ForEach(func(_, msg gjson.Result) bool {
		role := normalizeChatRole(msg.Get("role").String())
		switch role {
		case "system":
			if text := chatContentText(msg.Get("content")); text != "" {
				instructions = append(instructions, text)
			}
		case "tool":
			item := `{"type":"function_call_output","call_id":"","output":""}`
			item, _ = sjson.Set(item, "call_id", strings.TrimSpace(msg.Get("tool_call_id").String()))
			item, _ = sjson.Set(item, "output", chatToolOutputString(msg.Get("content")))
			items, _ = sjson.SetRaw(items, "-1", item)
		default:
			if content := chatContentToResponsesContent(msg.Get("content"), role); content != "" {
				item := `{"type":"message","role":"","content":[]}`
				item, _ = sjson.Set(item, "role", role)
				item, _ = sjson.SetRaw(item, "content", content)
				items, _ = sjson.SetRaw(items, "-1", item)
			}
			msg.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
				name := strings.TrimSpace(call.Get("function.name").String())
				if name == "" {
					return true
				}
				callID := strings.TrimSpace(call.Get("id").String())
				if callID == "" {
					callID = generateCallID()
				}
				item := `{"type":"function_call","call_id":"","name":"","arguments":""}`
				item, _ = sjson.Set(item, "call_id", callID)
				item, _ = sjson.Set(item, "name", name)
				item, _ = sjson.Set(item, "arguments", util.RepairToolArgumentsString(call.Get("function.arguments").String()))
				items, _ = sjson.SetRaw(items, "-1", item)
				return true
			})
		}
		return true
	})

	return strings.Join(instructions, "\n\n"), items
}

// normalizeChatRole folds chat roles onto the set the conversion handles.
// developer is an alias for system; anything unknown is treated as user.
func normalizeChatRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "developer", "system":
		return "system"
	case "assistant":
		return "assistant"
	case "tool":
		return "tool"
	default:
		return "user"
	}
}

// chatContentText flattens chat message content to trimmed plain text,
// joining text blocks when the content is a block array.
func chatContentText(content gjson.Result) string {
	if content.Type == gjson.String {
		return strings.TrimSpace(content.String())
	}
	if content.IsArray() {
		var texts []string
		content.ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() == "text" && part.Get("text").Type == gjson.String {
				texts = append(texts, part.Get("text").String())
			}
			return true
		})
		return strings.TrimSpace(strings.Join(texts, ""))
	}
	return ""
}

// chatContentToResponsesContent converts chat message content into Responses
// content parts. User and system text maps to input_text, assistant text to
// output_text, and image blocks to input_image. Returns "" when nothing maps
// so the caller can skip the message.
func chatContentToResponsesContent(content gjson.Result, role string) string {
	textType := "input_text"
	if role == "assistant" {
		textType = "output_text"
	}

	appendText := func(parts, text string) string {
		if strings.TrimSpace(text) == "" {
			return parts
		}
		part := `{"type":"","text":""}`
		part, _ = sjson.Set(part, "type", textType)
		part, _ = sjson.Set(part, "text", strings.TrimSpace(text))
		parts, _ = sjson.SetRaw(parts, "-1", part)
		return parts
	}

	parts := "[]"
	switch {
	case content.Type == gjson.String:
		parts = appendText(parts, content.String())
	case content.IsArray():
		content.ForEach(func(_, block gjson.Result) bool {
			switch block.Get("type").String() {
			case "text":
				parts = appendText(parts, block.Get("text").String())
			case "image_url":
				url := block.Get("image_url.url").String()
				if url == "" {
					url = block.Get("image_url").String()
				}
				if url = strings.TrimSpace(url); url != "" {
					part := `{"type":"input_image","image_url":""}`
					part, _ = sjson.Set(part, "image_url", url)
					parts, _ = sjson.SetRaw(parts, "-1", part)
				}
			}
			return true
		})
	}
	if parts == "[]" {
		return ""
	}
	return parts
}

// chatToolOutputString renders a tool message's content as the Responses
// function_call_output string. Non-string content keeps its JSON text.
func chatToolOutputString(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if !content.Exists() || content.Type == gjson.Null {
		return ""
	}
	return content.Raw
}

// chatToolsToResponsesTools flattens chat tool definitions into the Responses
// shape, which hoists name and parameters onto the tool itself. Tools already
// flat, or of non-function types, pass through unchanged.
func chatToolsToResponsesTools(tools gjson.Result) string {
	out := "[]"
	tools.ForEach(func(_, tool gjson.Result) bool {
		fn := tool.Get("function")
		if !fn.IsObject() {
			if tool.IsObject() {
				out, _ = sjson.SetRaw(out, "-1", tool.Raw)
			}
			return true
		}
		name := strings.TrimSpace(fn.Get("name").String())
		if name == "" {
			return true
		}
		item := `{"type":"function","name":""}`
		item, _ = sjson.Set(item, "name", name)
		if desc := fn.Get("description"); desc.Exists() {
			item, _ = sjson.Set(item, "description", desc.String())
		}
		if params := fn.Get("parameters"); params.IsObject() {
			item, _ = sjson.SetRaw(item, "parameters", params.Raw)
		}
		if strict := fn.Get("strict"); strict.Exists() {
			item, _ = sjson.SetRaw(item, "strict", strict.Raw)
		}
		out, _ = sjson.SetRaw(out, "-1", item)
		return true
	})
	return out
}

// chatToolChoiceToResponses maps a chat tool_choice onto the Responses shape.
// String modes pass through; a named function loses its nesting.
func chatToolChoiceToResponses(choice gjson.Result) string {
	if choice.IsObject() {
		if name := strings.TrimSpace(choice.Get("function.name").String()); name != "" {
			out := `{"type":"function","name":""}`
			out, _ = sjson.Set(out, "name", name)
			return out
		}
	}
	return choice.Raw
}

// generateCallID mints a call id for assistant tool calls that arrived
// without one.
func generateCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
