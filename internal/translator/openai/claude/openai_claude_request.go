// Package claude translates between the Claude Messages API surface and
// OpenAI-compatible chat upstreams. Requests are rewritten into Chat
// Completions bodies; responses are reassembled into the Claude message shape,
// including the full SSE event sequence for streaming.
package claude

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/router-for-me/AntiHubAPI/internal/translator/gemini/common"
)

// ConvertClaudeRequestToOpenAI converts a Claude Messages API request into an
// OpenAI Chat Completions request.
//
// The conversion walks the Claude body and assembles the outgoing request
// with sjson:
//  1. Repairs missing or blank tool_use / tool_result IDs by order pairing
//     so strict upstreams do not reject the history.
//  2. Maps system prompts, content blocks, tools and tool_choice onto their
//     Chat Completions counterparts.
//  3. Encodes the thinking configuration as reasoning_effort.
//
// Parameters:
//   - modelName: The model name to use for the request
//   - rawJSON: The raw JSON request in Claude Messages API format
//   - stream: Whether streaming mode is enabled
//
// Returns:
//   - []byte: The transformed request in OpenAI Chat Completions format
func ConvertClaudeRequestToOpenAI(modelName string, rawJSON []byte, stream bool) []byte {
	body := patchClaudeToolCallIDs(string(rawJSON))
	root := gjson.Parse(body)

	out := `{"model":"","messages":[]}`
	out, _ = sjson.Set(out, "model", modelName)

	if system := root.Get("system"); system.Exists() {
		if text := claudeSystemText(system); text != "" {
			out, _ = sjson.SetRaw(out, "messages.-1", buildOpenAIMessage("system", text))
		}
	}

	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		role := msg.Get("role").String()
		content := msg.Get("content")

		if content.Type == gjson.String {
			out, _ = sjson.SetRaw(out, "messages.-1", buildOpenAIMessage(role, content.String()))
			return true
		}
		if !content.IsArray() {
			return true
		}

		hasToolUse := false
		hasToolResult := false
		content.ForEach(func(_, block gjson.Result) bool {
			switch block.Get("type").String() {
			case "tool_use":
				hasToolUse = true
			case "tool_result":
				hasToolResult = true
			}
			return true
		})

		switch {
		case role == "assistant" && hasToolUse:
			out, _ = sjson.SetRaw(out, "messages.-1", convertAssistantToolUseMessage(content))
		case role == "user" && hasToolResult:
			for _, toolMsg := range convertUserToolResultMessages(content) {
				out, _ = sjson.SetRaw(out, "messages.-1", toolMsg)
			}
		default:
			out, _ = sjson.SetRaw(out, "messages.-1", convertMultimodalMessage(role, content))
		}
		return true
	})

	if maxTokens := root.Get("max_tokens"); maxTokens.Exists() {
		out, _ = sjson.Set(out, "max_tokens", maxTokens.Int())
	}
	out, _ = sjson.Set(out, "stream", stream)
	if temp := root.Get("temperature"); temp.Exists() {
		out, _ = sjson.Set(out, "temperature", temp.Float())
	}
	if topP := root.Get("top_p"); topP.Exists() {
		out, _ = sjson.Set(out, "top_p", topP.Float())
	}
	if stops := root.Get("stop_sequences"); stops.IsArray() && len(stops.Array()) > 0 {
		out, _ = sjson.SetRaw(out, "stop", stops.Raw)
	}

	toolChoice := root.Get("tool_choice")
	if tools := root.Get("tools"); tools.IsArray() && len(tools.Array()) > 0 {
		kept, choice := stripBuiltinWebSearchWhenMixed(tools, toolChoice)
		toolChoice = choice
		if len(kept) > 0 {
			converted := make([]string, 0, len(kept))
			for _, tool := range kept {
				converted = append(converted, convertClaudeToolToOpenAI(tool))
			}
			out, _ = sjson.SetRaw(out, "tools", "["+strings.Join(converted, ",")+"]")
		}
	}
	if toolChoice.Exists() {
		out, _ = sjson.SetRaw(out, "tool_choice", convertClaudeToolChoiceToOpenAI(toolChoice))
	}

	out = applyClaudeThinking(out, root)

	return []byte(out)
}

type pendingToolUse struct {
	path string
	id   string
}

// patchClaudeToolCallIDs repairs missing or blank tool_use.id and
// tool_result.tool_use_id values by pairing blocks in message order. The
// conversion to Chat Completions requires both sides of the pair, and
// parallel tool calls are the usual source of the gap.
func patchClaudeToolCallIDs(body string) string {
	var pending []*pendingToolUse

	gjson.Get(body, "messages").ForEach(func(msgIdx, msg gjson.Result) bool {
		content := msg.Get("content")
		if !content.IsArray() {
			return true
		}
		content.ForEach(func(blockIdx, block gjson.Result) bool {
			base := fmt.Sprintf("messages.%d.content.%d", msgIdx.Int(), blockIdx.Int())
			switch block.Get("type").String() {
			case "tool_use":
				raw := block.Get("id").String()
				id := strings.TrimSpace(raw)
				if id != "" && id != raw {
					body, _ = sjson.Set(body, base+".id", id)
				}
				pending = append(pending, &pendingToolUse{path: base + ".id", id: id})
			case "tool_result":
				raw := block.Get("tool_use_id").String()
				resolved := strings.TrimSpace(raw)
				if len(pending) > 0 {
					if resolved != "" {
						if i := indexOfPendingID(pending, resolved); i >= 0 {
							pending = append(pending[:i], pending[i+1:]...)
						} else if i := indexOfPendingID(pending, ""); i >= 0 {
							// A tool_use lost its id; adopt this one.
							p := pending[i]
							pending = append(pending[:i], pending[i+1:]...)
							body, _ = sjson.Set(body, p.path, resolved)
						}
					} else {
						p := pending[0]
						pending = pending[1:]
						if p.id == "" {
							p.id = generateToolUseID()
							body, _ = sjson.Set(body, p.path, p.id)
						}
						resolved = p.id
					}
				}
				if resolved == "" {
					resolved = generateToolUseID()
				}
				if resolved != raw {
					body, _ = sjson.Set(body, base+".tool_use_id", resolved)
				}
			}
			return true
		})
		return true
	})
	return body
}

func indexOfPendingID(pending []*pendingToolUse, id string) int {
	for i, p := range pending {
		if p.id == id {
			return i
		}
	}
	return -1
}

func generateToolUseID() string {
	return "toolu_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func claudeSystemText(system gjson.Result) string {
	if system.Type == gjson.String {
		return system.String()
	}
	if !system.IsArray() {
		return ""
	}
	var parts []string
	system.ForEach(func(_, block gjson.Result) bool {
		if text := block.Get("text"); text.Exists() {
			parts = append(parts, text.String())
		}
		return true
	})
	return strings.Join(parts, "\n")
}

func buildOpenAIMessage(role, text string) string {
	msg := `{}`
	msg, _ = sjson.Set(msg, "role", role)
	msg, _ = sjson.Set(msg, "content", text)
	return msg
}

// convertAssistantToolUseMessage converts an assistant message carrying
// tool_use blocks. A thinking signature travels with the tool calls as
// extra_content when the message has no meaningful text, so Gemini-backed
// upstreams can validate the resumed thought. When the client dropped the
// signature from its history, the signature cache restores it by tool call
// id.
func convertAssistantToolUseMessage(content gjson.Result) string {
	var textParts []string
	thinkingContent := ""
	thinkingSignature := ""
	hasMeaningfulText := false

	content.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "thinking":
			thinkingContent = block.Get("thinking").String()
			thinkingSignature = block.Get("signature").String()
		case "text":
			text := block.Get("text").String()
			trimmed := strings.TrimSpace(text)
			if trimmed != "" && trimmed != "(no content)" {
				textParts = append(textParts, text)
				hasMeaningfulText = true
			}
		}
		return true
	})

	transferSignature := thinkingSignature != "" && !hasMeaningfulText

	msg := `{"role":"assistant","content":null}`
	if len(textParts) > 0 {
		msg, _ = sjson.Set(msg, "content", strings.Join(textParts, "\n"))
	}
	if thinkingContent != "" {
		msg, _ = sjson.Set(msg, "reasoning_content", thinkingContent)
	}

	var calls []string
	content.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() != "tool_use" {
			return true
		}
		callID := block.Get("id").String()
		call := `{"id":"","type":"function","function":{"name":"","arguments":""}}`
		call, _ = sjson.Set(call, "id", callID)
		call, _ = sjson.Set(call, "function.name", block.Get("name").String())
		args := "{}"
		if input := block.Get("input"); input.IsObject() {
			args = input.Raw
		} else if input.Exists() {
			args = input.String()
		}
		call, _ = sjson.Set(call, "function.arguments", args)
		signature := ""
		if transferSignature {
			signature = thinkingSignature
		} else if id := strings.TrimSpace(callID); id != "" {
			signature = common.Signatures.Lookup(id)
		}
		if signature != "" {
			call, _ = sjson.Set(call, "extra_content.google.thought_signature", signature)
		}
		calls = append(calls, call)
		return true
	})
	if len(calls) > 0 {
		msg, _ = sjson.SetRaw(msg, "tool_calls", "["+strings.Join(calls, ",")+"]")
	}
	return msg
}

// convertUserToolResultMessages expands a user message carrying tool_result
// blocks into one tool-role message per result.
func convertUserToolResultMessages(content gjson.Result) []string {
	var messages []string
	content.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() != "tool_result" {
			return true
		}
		msg := `{"role":"tool"}`
		msg, _ = sjson.Set(msg, "tool_call_id", block.Get("tool_use_id").String())
		msg, _ = sjson.Set(msg, "content", claudeToolResultText(block.Get("content")))
		messages = append(messages, msg)
		return true
	})
	return messages
}

func claudeToolResultText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if content.IsArray() {
		var parts []string
		content.ForEach(func(_, block gjson.Result) bool {
			if text := block.Get("text"); text.Exists() && text.String() != "" {
				parts = append(parts, text.String())
			}
			return true
		})
		return strings.Join(parts, "\n")
	}
	if content.Exists() {
		return content.Raw
	}
	return ""
}

func convertMultimodalMessage(role string, content gjson.Result) string {
	var parts []string
	content.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			part := `{"type":"text"}`
			part, _ = sjson.Set(part, "text", block.Get("text").String())
			parts = append(parts, part)
		case "image":
			source := block.Get("source")
			if !source.Exists() {
				return true
			}
			url := ""
			switch source.Get("type").String() {
			case "url":
				url = source.Get("url").String()
			default:
				mediaType := source.Get("media_type").String()
				if mediaType == "" {
					mediaType = "image/png"
				}
				url = "data:" + mediaType + ";base64," + source.Get("data").String()
			}
			part := `{"type":"image_url","image_url":{}}`
			part, _ = sjson.Set(part, "image_url.url", url)
			parts = append(parts, part)
		}
		return true
	})

	msg := `{}`
	msg, _ = sjson.Set(msg, "role", role)
	if len(parts) == 1 && gjson.Get(parts[0], "type").String() == "text" {
		// A lone text block collapses to a plain string.
		msg, _ = sjson.Set(msg, "content", gjson.Get(parts[0], "text").String())
		return msg
	}
	msg, _ = sjson.SetRaw(msg, "content", "["+strings.Join(parts, ",")+"]")
	return msg
}

// stripBuiltinWebSearchWhenMixed removes the builtin web_search tool when the
// request also declares ordinary tools. OpenAI-compatible upstreams have no
// builtin search and would surface it as a callable function. A tool_choice
// that names web_search downgrades to auto.
func stripBuiltinWebSearchWhenMixed(tools, toolChoice gjson.Result) ([]gjson.Result, gjson.Result) {
	list := tools.Array()
	if len(list) < 2 {
		return list, toolChoice
	}

	hasWebSearch := false
	hasOther := false
	for _, tool := range list {
		name := strings.ToLower(strings.TrimSpace(tool.Get("name").String()))
		if name == "web_search" {
			hasWebSearch = true
		} else if name != "" {
			hasOther = true
		}
	}
	if !hasWebSearch || !hasOther {
		return list, toolChoice
	}

	kept := make([]gjson.Result, 0, len(list)-1)
	for _, tool := range list {
		if strings.ToLower(strings.TrimSpace(tool.Get("name").String())) != "web_search" {
			kept = append(kept, tool)
		}
	}
	if toolChoice.Get("type").String() == "tool" &&
		strings.EqualFold(strings.TrimSpace(toolChoice.Get("name").String()), "web_search") {
		toolChoice = gjson.Parse(`{"type":"auto"}`)
	}
	return kept, toolChoice
}

func convertClaudeToolToOpenAI(tool gjson.Result) string {
	fn := `{"type":"function","function":{"name":"","parameters":{"type":"object","properties":{}}}}`
	fn, _ = sjson.Set(fn, "function.name", tool.Get("name").String())
	if desc := tool.Get("description"); desc.String() != "" {
		fn, _ = sjson.Set(fn, "function.description", desc.String())
	}
	schema := tool.Get("input_schema")
	if schemaType := schema.Get("type"); schemaType.Exists() {
		fn, _ = sjson.Set(fn, "function.parameters.type", schemaType.String())
	}
	if props := schema.Get("properties"); props.IsObject() {
		fn, _ = sjson.SetRaw(fn, "function.parameters.properties", props.Raw)
	}
	if required := schema.Get("required"); required.IsArray() {
		fn, _ = sjson.SetRaw(fn, "function.parameters.required", required.Raw)
	}
	return fn
}

// convertClaudeToolChoiceToOpenAI returns the raw JSON value for the OpenAI
// tool_choice field.
func convertClaudeToolChoiceToOpenAI(choice gjson.Result) string {
	switch choice.Get("type").String() {
	case "any":
		return `"required"`
	case "none":
		return `"none"`
	case "tool":
		if name := choice.Get("name").String(); name != "" {
			v := `{"type":"function","function":{"name":""}}`
			v, _ = sjson.Set(v, "function.name", name)
			return v
		}
	}
	return `"auto"`
}

// applyClaudeThinking encodes the Claude thinking configuration as the
// reasoning_effort field. Adaptive thinking carries its effort through
// output_config; enabled thinking maps the token budget onto an effort tier.
func applyClaudeThinking(out string, root gjson.Result) string {
	thinking := root.Get("thinking")
	if !thinking.Exists() {
		return out
	}
	if thinking.Type == gjson.True {
		out, _ = sjson.Set(out, "reasoning_effort", "high")
		return out
	}
	switch thinking.Get("type").String() {
	case "adaptive":
		effort := strings.TrimSpace(root.Get("output_config.effort").String())
		if effort == "" {
			effort = "high"
		}
		out, _ = sjson.Set(out, "reasoning_effort", effort)
	case "enabled":
		out, _ = sjson.Set(out, "reasoning_effort", effortForThinkingBudget(thinking.Get("budget_tokens").Int()))
	}
	return out
}

func effortForThinkingBudget(budget int64) string {
	switch {
	case budget > 0 && budget <= 4096:
		return "low"
	case budget > 0 && budget <= 16384:
		return "medium"
	default:
		return "high"
	}
}

// SanitizeOpenAIRequestForQwen degrades multimodal content arrays to plain
// text for the Qwen upstream, which rejects content part lists with a 400.
// Non-text parts are dropped and messages left without any text are removed.
func SanitizeOpenAIRequestForQwen(rawJSON []byte) []byte {
	messages := gjson.GetBytes(rawJSON, "messages")
	if !messages.IsArray() {
		return rawJSON
	}

	out := string(rawJSON)
	out, _ = sjson.SetRaw(out, "messages", "[]")
	messages.ForEach(func(_, msg gjson.Result) bool {
		content := msg.Get("content")
		if !content.IsArray() {
			out, _ = sjson.SetRaw(out, "messages.-1", msg.Raw)
			return true
		}
		var texts []string
		content.ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() != "text" {
				return true
			}
			if text := part.Get("text").String(); strings.TrimSpace(text) != "" {
				texts = append(texts, text)
			}
			return true
		})
		merged := strings.TrimSpace(strings.Join(texts, "\n"))
		if merged == "" {
			return true
		}
		rebuilt, _ := sjson.Set(msg.Raw, "content", merged)
		out, _ = sjson.SetRaw(out, "messages.-1", rebuilt)
		return true
	})
	return []byte(out)
}
