// Package gemini translates between the Gemini generateContent API surface and
// OpenAI-compatible chat upstreams. The request direction maps contents/parts
// onto chat messages and the response direction rebuilds Gemini candidate
// payloads from chat completions, for both streaming and non-streaming calls.
package gemini

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ConvertGeminiRequestToOpenAI converts a Gemini generateContent request into
// an OpenAI Chat Completions request.
//
// systemInstruction becomes the leading system message. Model turns carrying
// functionCall parts become assistant tool_calls with generated call ids, and
// the functionResponse parts of the following user turn are paired back onto
// those ids by function name, oldest call first.
//
// Parameters:
//   - modelName: The name of the model to use for the request
//   - rawJSON: The raw JSON request data from the Gemini API
//   - stream: A boolean indicating if the request is for a streaming response
//
// Returns:
//   - []byte: The transformed request data in OpenAI API format
func ConvertGeminiRequestToOpenAI(modelName string, rawJSON []byte, stream bool) []byte {
	root := gjson.ParseBytes(rawJSON)

	out := `{"model":"","messages":[]}`
	out, _ = sjson.Set(out, "model", strings.TrimSpace(modelName))
	out, _ = sjson.Set(out, "stream", stream)

	if sys := geminiSystemInstructionText(camelOrSnake(root, "systemInstruction", "system_instruction")); sys != "" {
		msg, _ := sjson.Set(`{"role":"system","content":""}`, "content", sys)
		out, _ = sjson.SetRaw(out, "messages.-1", msg)
	}

	pending := pendingCalls{}
	root.Get("contents").ForEach(func(_, content gjson.Result) bool {
		parts := content.Get("parts")
		switch strings.ToLower(strings.TrimSpace(content.Get("role").String())) {
		case "user", "":
			for _, msg := range convertGeminiUserParts(parts, pending) {
				out, _ = sjson.SetRaw(out, "messages.-1", msg)
			}
		case "model":
			if msg := convertGeminiModelParts(parts, pending); msg != "" {
				out, _ = sjson.SetRaw(out, "messages.-1", msg)
			}
		}
		return true
	})

	out = applyGeminiGenerationConfig(out, camelOrSnake(root, "generationConfig", "generation_config"))

	if tools := geminiToolsToOpenAITools(root.Get("tools")); tools != "" {
		out, _ = sjson.SetRaw(out, "tools", tools)
	}
	if choice := geminiToolConfigToToolChoice(camelOrSnake(root, "toolConfig", "tool_config")); choice != "" {
		out, _ = sjson.SetRaw(out, "tool_choice", choice)
	}

	return []byte(out)
}

// pendingCalls pairs functionResponse parts back onto the generated ids of
// earlier functionCall parts, FIFO per function name.
type pendingCalls map[string][]string

func (p pendingCalls) push(name, id string) {
	p[name] = append(p[name], id)
}

func (p pendingCalls) pop(name string) string {
	queue := p[name]
	if len(queue) == 0 {
		return generateCallID()
	}
	id := queue[0]
	p[name] = queue[1:]
	return id
}

func generateCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// convertGeminiUserParts converts a user turn into chat messages. Any
// functionResponse parts become role:tool messages first, so they directly
// follow the assistant tool_calls message; the remaining parts form one user
// message when anything survives.
func convertGeminiUserParts(parts gjson.Result, pending pendingCalls) []string {
	var msgs []string
	var rest []gjson.Result

	parts.ForEach(func(_, part gjson.Result) bool {
		fr := camelOrSnake(part, "functionResponse", "function_response")
		if !fr.IsObject() {
			rest = append(rest, part)
			return true
		}
		name := strings.TrimSpace(fr.Get("name").String())
		msg := `{"role":"tool","tool_call_id":"","content":""}`
		msg, _ = sjson.Set(msg, "tool_call_id", pending.pop(name))
		msg, _ = sjson.Set(msg, "content", functionResponseText(fr.Get("response")))
		msgs = append(msgs, msg)
		return true
	})

	if content, _ := geminiPartsToOpenAIContent(rest); content != "" {
		msg, _ := sjson.SetRaw(`{"role":"user","content":null}`, "content", content)
		msgs = append(msgs, msg)
	}
	return msgs
}

// convertGeminiModelParts converts a model turn into an assistant message
// with optional reasoning_content and tool_calls, or "" when the turn
// carries nothing usable.
func convertGeminiModelParts(parts gjson.Result, pending pendingCalls) string {
	var rest []gjson.Result
	toolCalls := "[]"
	toolCallCount := 0

	parts.ForEach(func(_, part gjson.Result) bool {
		fc := camelOrSnake(part, "functionCall", "function_call")
		if !fc.IsObject() {
			rest = append(rest, part)
			return true
		}
		name := strings.TrimSpace(fc.Get("name").String())
		id := generateCallID()
		if name != "" {
			pending.push(name, id)
		}
		call := `{"id":"","type":"function","function":{"name":"","arguments":""}}`
		call, _ = sjson.Set(call, "id", id)
		call, _ = sjson.Set(call, "function.name", name)
		args := "{}"
		if v := fc.Get("args"); v.IsObject() {
			args = v.Raw
		}
		call, _ = sjson.Set(call, "function.arguments", args)
		toolCalls, _ = sjson.SetRaw(toolCalls, "-1", call)
		toolCallCount++
		return true
	})

	content, reasoning := geminiPartsToOpenAIContent(rest)
	if content == "" && reasoning == "" && toolCallCount == 0 {
		return ""
	}
	msg := `{"role":"assistant","content":null}`
	if content != "" {
		msg, _ = sjson.SetRaw(msg, "content", content)
	}
	if reasoning != "" {
		msg, _ = sjson.Set(msg, "reasoning_content", reasoning)
	}
	if toolCallCount > 0 {
		msg, _ = sjson.SetRaw(msg, "tool_calls", toolCalls)
	}
	return msg
}

// geminiPartsToOpenAIContent converts text and inlineData parts into an
// OpenAI content value, returned as raw JSON ("" when nothing survives),
// plus any thought-part text as reasoning.
//
// Pure text collapses into a plain string. Once an image appears the content
// switches to the block-array form, with text seen so far folded into a
// single leading text block.
func geminiPartsToOpenAIContent(parts []gjson.Result) (string, string) {
	var texts []string
	var thoughts []string
	blocks := "[]"
	blockCount := 0
	hasInline := false

	for _, part := range parts {
		if !part.IsObject() {
			continue
		}
		if text := part.Get("text"); text.Type == gjson.String {
			if part.Get("thought").Bool() {
				thoughts = append(thoughts, text.String())
				continue
			}
			if hasInline {
				block, _ := sjson.Set(`{"type":"text","text":""}`, "text", text.String())
				blocks, _ = sjson.SetRaw(blocks, "-1", block)
				blockCount++
			} else {
				texts = append(texts, text.String())
			}
			continue
		}
		inline := camelOrSnake(part, "inlineData", "inline_data")
		if inline.IsObject() {
			mime := strings.TrimSpace(firstString(inline, "mimeType", "mime_type"))
			b64 := strings.TrimSpace(inline.Get("data").String())
			if mime == "" || b64 == "" {
				continue
			}
			hasInline = true
			block, _ := sjson.Set(`{"type":"image_url","image_url":{}}`, "image_url.url", fmt.Sprintf("data:%s;base64,%s", mime, b64))
			blocks, _ = sjson.SetRaw(blocks, "-1", block)
			blockCount++
		}
	}

	reasoning := strings.Join(thoughts, "")

	if hasInline {
		if len(texts) > 0 {
			lead, _ := sjson.Set(`{"type":"text","text":""}`, "text", strings.Join(texts, ""))
			merged := "[]"
			merged, _ = sjson.SetRaw(merged, "-1", lead)
			gjson.Parse(blocks).ForEach(func(_, b gjson.Result) bool {
				merged, _ = sjson.SetRaw(merged, "-1", b.Raw)
				return true
			})
			blocks = merged
		}
		if blockCount == 0 {
			return "", reasoning
		}
		return blocks, reasoning
	}

	joined := strings.Join(texts, "")
	if joined == "" {
		return "", reasoning
	}
	encoded, _ := sjson.Set(`{"v":""}`, "v", joined)
	return gjson.Get(encoded, "v").Raw, reasoning
}

// functionResponseText renders a functionResponse payload as the tool message
// content string. The conventional {"result": X} wrapper is unwrapped; string
// results pass through and anything else keeps its JSON text.
func functionResponseText(response gjson.Result) string {
	value := response
	if result := response.Get("result"); result.Exists() {
		value = result
	}
	if !value.Exists() {
		return ""
	}
	if value.Type == gjson.String {
		return value.String()
	}
	return value.Raw
}

// geminiSystemInstructionText flattens a systemInstruction content into a
// newline-joined text, skipping blank parts.
func geminiSystemInstructionText(value gjson.Result) string {
	if !value.IsObject() {
		return ""
	}
	var texts []string
	value.Get("parts").ForEach(func(_, part gjson.Result) bool {
		if t := strings.TrimSpace(part.Get("text").String()); t != "" {
			texts = append(texts, t)
		}
		return true
	})
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

// applyGeminiGenerationConfig maps generationConfig knobs onto OpenAI
// sampling parameters, including the thinking budget when one is set.
func applyGeminiGenerationConfig(out string, cfg gjson.Result) string {
	if !cfg.IsObject() {
		return out
	}
	if v := cfg.Get("temperature"); v.Exists() {
		out, _ = sjson.SetRaw(out, "temperature", v.Raw)
	}
	if v := cfg.Get("topP"); v.Exists() {
		out, _ = sjson.SetRaw(out, "top_p", v.Raw)
	}
	if v := cfg.Get("topK"); v.Exists() {
		out, _ = sjson.SetRaw(out, "top_k", v.Raw)
	}
	if v := cfg.Get("maxOutputTokens"); v.Exists() {
		out, _ = sjson.SetRaw(out, "max_tokens", v.Raw)
	}
	if v := cfg.Get("candidateCount"); v.Int() > 1 {
		out, _ = sjson.Set(out, "n", v.Int())
	}
	if v := cfg.Get("stopSequences"); v.IsArray() && len(v.Array()) > 0 {
		out, _ = sjson.SetRaw(out, "stop", v.Raw)
	}
	thinking := camelOrSnake(cfg, "thinkingConfig", "thinking_config")
	if budget := camelOrSnake(thinking, "thinkingBudget", "thinking_budget").Int(); budget > 0 {
		out, _ = sjson.Set(out, "reasoning_effort", effortForThinkingBudget(budget))
	}
	return out
}

// effortForThinkingBudget buckets a thinking token budget into a
// reasoning_effort level for effort-based upstreams.
func effortForThinkingBudget(budget int64) string {
	switch {
	case budget <= 4096:
		return "low"
	case budget <= 16384:
		return "medium"
	default:
		return "high"
	}
}

// geminiToolsToOpenAITools converts Gemini tool declarations into OpenAI
// tools. functionDeclarations fan out into function tools with their schema
// under parameters; googleSearch nodes map onto web_search tools.
func geminiToolsToOpenAITools(tools gjson.Result) string {
	if !tools.IsArray() {
		return ""
	}
	out := "[]"
	count := 0

	tools.ForEach(func(_, t gjson.Result) bool {
		if !t.IsObject() {
			return true
		}
		decls := camelOrSnake(t, "functionDeclarations", "function_declarations")
		if decls.IsArray() {
			decls.ForEach(func(_, decl gjson.Result) bool {
				name := strings.TrimSpace(decl.Get("name").String())
				if name == "" {
					return true
				}
				fn, _ := sjson.Set(`{"name":""}`, "name", name)
				if desc := decl.Get("description").String(); desc != "" {
					fn, _ = sjson.Set(fn, "description", desc)
				}
				params := `{"type":"object","properties":{}}`
				if p := decl.Get("parameters"); p.IsObject() {
					params = p.Raw
				} else if p := camelOrSnake(decl, "parametersJsonSchema", "parameters_json_schema"); p.IsObject() {
					params = p.Raw
				}
				fn, _ = sjson.SetRaw(fn, "parameters", params)
				tool, _ := sjson.SetRaw(`{"type":"function"}`, "function", fn)
				out, _ = sjson.SetRaw(out, "-1", tool)
				count++
				return true
			})
			return true
		}
		if gs := camelOrSnake(t, "googleSearch", "google_search"); gs.Exists() {
			tool := `{"type":"web_search"}`
			if gs.IsObject() && gs.Raw != "{}" {
				tool, _ = sjson.Set(gs.Raw, "type", "web_search")
			}
			out, _ = sjson.SetRaw(out, "-1", tool)
			count++
		}
		return true
	})

	if count == 0 {
		return ""
	}
	return out
}

// geminiToolConfigToToolChoice maps toolConfig.functionCallingConfig onto the
// OpenAI tool_choice value, returned as raw JSON ("" when absent).
func geminiToolConfigToToolChoice(toolConfig gjson.Result) string {
	fcc := camelOrSnake(toolConfig, "functionCallingConfig", "function_calling_config")
	if !fcc.IsObject() {
		return ""
	}
	switch strings.ToUpper(strings.TrimSpace(fcc.Get("mode").String())) {
	case "AUTO":
		return `"auto"`
	case "NONE":
		return `"none"`
	case "ANY":
		allowed := camelOrSnake(fcc, "allowedFunctionNames", "allowed_function_names").Array()
		if len(allowed) == 1 {
			choice, _ := sjson.Set(`{"type":"function","function":{"name":""}}`, "function.name", allowed[0].String())
			return choice
		}
		return `"required"`
	}
	return ""
}

// camelOrSnake reads a field that clients spell in camelCase or snake_case.
func camelOrSnake(v gjson.Result, camel, snake string) gjson.Result {
	if r := v.Get(camel); r.Exists() {
		return r
	}
	return v.Get(snake)
}

// firstString returns the first non-empty string among the named fields.
func firstString(v gjson.Result, keys ...string) string {
	for _, key := range keys {
		if s := v.Get(key).String(); s != "" {
			return s
		}
	}
	return ""
}
