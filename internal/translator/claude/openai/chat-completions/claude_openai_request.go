// Package chat_completions provides bidirectional translation between the
// OpenAI Chat Completions API format and the Claude Messages API format.
// The request side converts OpenAI chat requests into Claude Messages bodies;
// the response side converts Claude SSE events and full responses back into
// OpenAI chat completions and chunks.
package chat_completions

import (
	"bytes"
	"strings"

	"github.com/router-for-me/AntiHubAPI/internal/util"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ConvertOpenAIRequestToClaude converts an OpenAI Chat Completions API request
// into a Claude Messages API request body.
//
// System and developer messages are collected into the Claude "system" field.
// Assistant tool_calls become tool_use content blocks, consecutive tool role
// messages are grouped into a single user message of tool_result blocks, and
// reasoning_content round-trips as a thinking block. Tool definitions map from
// the OpenAI function wrapper onto Claude's input_schema form.
//
// Parameters:
//   - modelName: The name of the model to use for the request
//   - rawJSON: The raw JSON request data from the OpenAI API
//   - stream: A boolean indicating if the request is for a streaming response
//
// Returns:
//   - []byte: The request data in Claude Messages API format
func ConvertOpenAIRequestToClaude(modelName string, rawJSON []byte, stream bool) []byte {
	root := gjson.ParseBytes(rawJSON)

	out := `{"model":"","messages":[]}`
	out, _ = sjson.Set(out, "model", modelName)
	out, _ = sjson.Set(out, "stream", stream)

	if v := root.Get("max_tokens"); v.Exists() {
		out, _ = sjson.Set(out, "max_tokens", v.Int())
	} else if v = root.Get("max_completion_tokens"); v.Exists() {
		out, _ = sjson.Set(out, "max_tokens", v.Int())
	}
	if v := root.Get("temperature"); v.Exists() {
		out, _ = sjson.Set(out, "temperature", v.Float())
	}
	if v := root.Get("top_p"); v.Exists() {
		out, _ = sjson.Set(out, "top_p", v.Float())
	}
	if v := root.Get("stop"); v.Exists() {
		if v.IsArray() {
			out, _ = sjson.SetRaw(out, "stop_sequences", v.Raw)
		} else if v.Type == gjson.String {
			out, _ = sjson.Set(out, "stop_sequences", []string{v.String()})
		}
	}
	// OpenAI "user" carries the caller identity; Claude keeps it in metadata.
	if v := root.Get("user"); v.Exists() && v.String() != "" {
		out, _ = sjson.Set(out, "metadata.user_id", v.String())
	}

	var systemParts []string
	messages := "[]"
	pendingToolResults := "[]"

	flushToolResults := func() {
		if len(gjson.Parse(pendingToolResults).Array()) > 0 {
			msg, _ := sjson.SetRaw(`{"role":"user"}`, "content", pendingToolResults)
			messages, _ = sjson.SetRaw(messages, "-1", msg)
		}
		pendingToolResults = "[]"
	}

	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		role := msg.Get("role").String()
		switch role {
		case "system", "developer":
			if text := openAIContentToText(msg.Get("content")); text != "" {
				systemParts = append(systemParts, text)
			}
		case "tool":
			block := `{"type":"tool_result"}`
			block, _ = sjson.Set(block, "tool_use_id", msg.Get("tool_call_id").String())
			block, _ = sjson.Set(block, "content.0.type", "text")
			block, _ = sjson.Set(block, "content.0.text", openAIContentToText(msg.Get("content")))
			pendingToolResults, _ = sjson.SetRaw(pendingToolResults, "-1", block)
		case "assistant":
			flushToolResults()
			messages, _ = sjson.SetRaw(messages, "-1", convertOpenAIAssistantMessage(msg))
		default:
			flushToolResults()
			messages, _ = sjson.SetRaw(messages, "-1", convertOpenAIUserMessage(role, msg.Get("content")))
		}
		return true
	})
	flushToolResults()

	if len(systemParts) > 0 {
		out, _ = sjson.Set(out, "system", strings.Join(systemParts, "\n"))
	}
	out, _ = sjson.SetRaw(out, "messages", messages)

	if tools := root.Get("tools"); tools.IsArray() && len(tools.Array()) > 0 {
		claudeTools := "[]"
		tools.ForEach(func(_, tool gjson.Result) bool {
			if tool.Get("type").String() != "function" {
				return true
			}
			fn := tool.Get("function")
			item := `{}`
			item, _ = sjson.Set(item, "name", fn.Get("name").String())
			if desc := fn.Get("description"); desc.Exists() {
				item, _ = sjson.Set(item, "description", desc.String())
			}
			if params := fn.Get("parameters"); params.IsObject() {
				item, _ = sjson.SetRaw(item, "input_schema", params.Raw)
			} else {
				item, _ = sjson.SetRaw(item, "input_schema", `{"type":"object","properties":{}}`)
			}
			claudeTools, _ = sjson.SetRaw(claudeTools, "-1", item)
			return true
		})
		if len(gjson.Parse(claudeTools).Array()) > 0 {
			out, _ = sjson.SetRaw(out, "tools", claudeTools)
		}
	}

	if choice := root.Get("tool_choice"); choice.Exists() {
		out = applyOpenAIToolChoice(out, choice)
	}

	// Native thinking config wins; otherwise reasoning_effort selects the
	// adaptive mode so downstream hint injection can pick up the effort.
	if v := root.Get("thinking"); v.Exists() {
		out, _ = sjson.SetRaw(out, "thinking", v.Raw)
	} else if effort := root.Get("reasoning_effort"); effort.Exists() && effort.String() != "" {
		out, _ = sjson.SetRaw(out, "thinking", `{"type":"adaptive"}`)
		out, _ = sjson.Set(out, "output_config.effort", effort.String())
	}

	repaired := util.RemoveOrphanClaudeToolUses(util.NormalizeClaudeToolResults([]byte(out)))
	return bytes.Clone(repaired)
}

// convertOpenAIUserMessage maps a user message onto Claude content. Plain
// strings stay strings; multimodal arrays become text and image blocks.
func convertOpenAIUserMessage(role string, content gjson.Result) string {
	msg := `{"role":"user"}`
	if role != "" && role != "user" {
		msg, _ = sjson.Set(msg, "role", role)
	}

	if content.Type == gjson.String {
		msg, _ = sjson.Set(msg, "content", content.String())
		return msg
	}

	blocks := "[]"
	content.ForEach(func(_, part gjson.Result) bool {
		switch part.Get("type").String() {
		case "text":
			block, _ := sjson.Set(`{"type":"text"}`, "text", part.Get("text").String())
			blocks, _ = sjson.SetRaw(blocks, "-1", block)
		case "image_url":
			url := part.Get("image_url.url").String()
			if url == "" {
				url = part.Get("image_url").String()
			}
			if block := imageURLToClaudeBlock(url); block != "" {
				blocks, _ = sjson.SetRaw(blocks, "-1", block)
			}
		}
		return true
	})
	if len(gjson.Parse(blocks).Array()) == 0 {
		msg, _ = sjson.Set(msg, "content", "")
		return msg
	}
	msg, _ = sjson.SetRaw(msg, "content", blocks)
	return msg
}

// convertOpenAIAssistantMessage rebuilds an assistant turn as Claude content
// blocks: thinking first, then text, then tool_use entries.
func convertOpenAIAssistantMessage(msg gjson.Result) string {
	out := `{"role":"assistant"}`
	blocks := "[]"

	reasoning := msg.Get("reasoning_content")
	if !reasoning.Exists() {
		reasoning = msg.Get("reasoning")
	}
	if !reasoning.Exists() {
		reasoning = msg.Get("thinking_content")
	}
	if reasoning.Exists() && reasoning.String() != "" {
		block, _ := sjson.Set(`{"type":"thinking"}`, "thinking", reasoning.String())
		if sig := extractThoughtSignature(msg); sig != "" {
			block, _ = sjson.Set(block, "signature", sig)
		}
		blocks, _ = sjson.SetRaw(blocks, "-1", block)
	}

	if text := openAIContentToText(msg.Get("content")); text != "" {
		block, _ := sjson.Set(`{"type":"text"}`, "text", text)
		blocks, _ = sjson.SetRaw(blocks, "-1", block)
	}

	msg.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		if t := call.Get("type").String(); t != "" && t != "function" {
			return true
		}
		block := `{"type":"tool_use"}`
		block, _ = sjson.Set(block, "id", call.Get("id").String())
		block, _ = sjson.Set(block, "name", call.Get("function.name").String())
		if input := util.RepairToolArguments(call.Get("function.arguments")); input != "" {
			block, _ = sjson.SetRaw(block, "input", input)
		} else {
			block, _ = sjson.SetRaw(block, "input", "{}")
		}
		blocks, _ = sjson.SetRaw(blocks, "-1", block)
		return true
	})

	if len(gjson.Parse(blocks).Array()) == 0 {
		out, _ = sjson.Set(out, "content", "")
		return out
	}
	out, _ = sjson.SetRaw(out, "content", blocks)
	return out
}

// extractThoughtSignature pulls a Gemini-style thought signature off an
// assistant message, checking tool_calls extra_content first and then the
// message level fields.
func extractThoughtSignature(msg gjson.Result) string {
	sig := ""
	msg.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		if v := call.Get("extra_content.google.thought_signature"); v.Exists() {
			sig = v.String()
			return false
		}
		if v := call.Get("extra_content.thought_signature"); v.Exists() {
			sig = v.String()
			return false
		}
		return true
	})
	if sig != "" {
		return sig
	}
	if v := msg.Get("extra_content.google.thought_signature"); v.Exists() {
		return v.String()
	}
	if v := msg.Get("extra_content.thought_signature"); v.Exists() {
		return v.String()
	}
	return msg.Get("signature").String()
}

// imageURLToClaudeBlock converts an OpenAI image_url value into a Claude image
// block. Data URIs become base64 sources, everything else a URL source.
func imageURLToClaudeBlock(url string) string {
	if url == "" {
		return ""
	}
	if strings.HasPrefix(url, "data:") {
		rest := strings.TrimPrefix(url, "data:")
		semi := strings.Index(rest, ";base64,")
		if semi < 0 {
			return ""
		}
		mediaType := rest[:semi]
		data := rest[semi+len(";base64,"):]
		block := `{"type":"image","source":{"type":"base64"}}`
		block, _ = sjson.Set(block, "source.media_type", mediaType)
		block, _ = sjson.Set(block, "source.data", data)
		return block
	}
	block := `{"type":"image","source":{"type":"url"}}`
	block, _ = sjson.Set(block, "source.url", url)
	return block
}

// openAIContentToText flattens an OpenAI message content value to plain text.
// Content arrays contribute only their text parts.
func openAIContentToText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if content.IsArray() {
		var parts []string
		content.ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() == "text" {
				parts = append(parts, part.Get("text").String())
			} else if part.Type == gjson.String {
				parts = append(parts, part.String())
			}
			return true
		})
		return strings.Join(parts, "\n")
	}
	return ""
}

// applyOpenAIToolChoice maps the OpenAI tool_choice value onto Claude's form.
func applyOpenAIToolChoice(out string, choice gjson.Result) string {
	switch {
	case choice.Type == gjson.String:
		switch choice.String() {
		case "auto":
			out, _ = sjson.SetRaw(out, "tool_choice", `{"type":"auto"}`)
		case "required":
			out, _ = sjson.SetRaw(out, "tool_choice", `{"type":"any"}`)
		case "none":
			out, _ = sjson.SetRaw(out, "tool_choice", `{"type":"none"}`)
		}
	case choice.IsObject():
		if name := choice.Get("function.name").String(); name != "" {
			tc, _ := sjson.Set(`{"type":"tool"}`, "name", name)
			out, _ = sjson.SetRaw(out, "tool_choice", tc)
		}
	}
	return out
}

