// Package chat_completions provides request translation functionality for OpenAI to Gemini API compatibility.
// It converts OpenAI Chat Completions API requests into Gemini generateContent request bodies.
// Upstream-specific wrapping (for example the Gemini CLI envelope) is handled by the callers that delegate here.
package chat_completions

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ConvertOpenAIRequestToGemini converts an OpenAI Chat Completions API request to a Gemini generateContent request.
// The model is addressed through the URL path on Gemini, so modelName is not written into the body.
//
// Parameters:
//   - modelName: The name of the model to use for the request
//   - rawJSON: The raw JSON request data from the OpenAI API
//   - stream: A boolean indicating if the request is for a streaming response
//
// Returns:
//   - []byte: The transformed request data in Gemini API format
func ConvertOpenAIRequestToGemini(modelName string, rawJSON []byte, stream bool) []byte {
	root := gjson.ParseBytes(rawJSON)

	out := `{"contents":[]}`

	system, contents := openAIMessagesToGeminiContents(root.Get("messages"))
	if system != "" {
		out, _ = sjson.SetRaw(out, "systemInstruction", system)
	}
	out, _ = sjson.SetRaw(out, "contents", contents)

	if genCfg := openAIGenerationConfig(root); genCfg != "" {
		out, _ = sjson.SetRaw(out, "generationConfig", genCfg)
	}
	if tools := openAIToolsToGeminiTools(root.Get("tools")); tools != "" {
		out, _ = sjson.SetRaw(out, "tools", tools)
	}

	return []byte(out)
}

// openAIGenerationConfig maps OpenAI sampling parameters onto a Gemini
// generationConfig object. Returns "" when no parameter is present.
func openAIGenerationConfig(root gjson.Result) string {
	genCfg := "{}"
	if v := root.Get("temperature"); v.Type == gjson.Number {
		genCfg, _ = sjson.SetRaw(genCfg, "temperature", v.Raw)
	}
	if v := root.Get("top_p"); v.Type == gjson.Number {
		genCfg, _ = sjson.SetRaw(genCfg, "topP", v.Raw)
	}
	if v := root.Get("top_k"); v.Type == gjson.Number {
		genCfg, _ = sjson.SetRaw(genCfg, "topK", v.Raw)
	}
	if v := root.Get("n"); v.Type == gjson.Number && v.Int() > 1 {
		genCfg, _ = sjson.Set(genCfg, "candidateCount", v.Int())
	}
	if v := root.Get("max_tokens"); v.Type == gjson.Number && v.Int() > 0 {
		genCfg, _ = sjson.Set(genCfg, "maxOutputTokens", v.Int())
	}
	if stops := openAIStopSequences(root.Get("stop")); len(stops) > 0 {
		genCfg, _ = sjson.Set(genCfg, "stopSequences", stops)
	}
	if genCfg == "{}" {
		return ""
	}
	return genCfg
}

// openAIStopSequences normalizes the OpenAI stop parameter, which may be a
// single string or an array, into a list of non-blank sequences.
func openAIStopSequences(stop gjson.Result) []string {
	var seqs []string
	if stop.Type == gjson.String {
		if s := strings.TrimSpace(stop.String()); s != "" {
			seqs = append(seqs, s)
		}
		return seqs
	}
	if stop.IsArray() {
		stop.ForEach(func(_, item gjson.Result) bool {
			if s := strings.TrimSpace(item.String()); s != "" {
				seqs = append(seqs, s)
			}
			return true
		})
	}
	return seqs
}

// openAIMessagesToGeminiContents converts OpenAI messages into a Gemini
// systemInstruction content (or "") and a contents array.
//
// System and developer messages are merged into systemInstruction unless the
// request consists of a single such message, which Gemini requires to arrive
// as a user turn instead. Assistant tool_calls become functionCall parts and
// the matching tool messages are regrouped into a functionResponse user turn
// directly after the assistant turn that issued the calls.
func openAIMessagesToGeminiContents(messages gjson.Result) (string, string) {
	contents := "[]"
	if !messages.IsArray() {
		return "", contents
	}
	msgs := messages.Array()
	single := len(msgs) == 1

	// tool_call_id -> function name, from assistant tool_calls
	callNames := map[string]string{}
	for _, m := range msgs {
		if strings.TrimSpace(m.Get("role").String()) != "assistant" {
			continue
		}
		m.Get("tool_calls").ForEach(func(_, tc gjson.Result) bool {
			if strings.TrimSpace(tc.Get("type").String()) != "function" {
				return true
			}
			id := strings.TrimSpace(tc.Get("id").String())
			name := strings.TrimSpace(tc.Get("function.name").String())
			if id != "" && name != "" {
				callNames[id] = name
			}
			return true
		})
	}

	// tool_call_id -> tool message content
	callResults := map[string]gjson.Result{}
	for _, m := range msgs {
		if strings.TrimSpace(m.Get("role").String()) != "tool" {
			continue
		}
		if id := strings.TrimSpace(m.Get("tool_call_id").String()); id != "" {
			callResults[id] = m.Get("content")
		}
	}

	systemParts := "[]"
	systemCount := 0

	for _, m := range msgs {
		role := strings.TrimSpace(m.Get("role").String())
		content := m.Get("content")

		switch {
		case (role == "system" || role == "developer") && !single:
			for _, text := range openAISystemTexts(content) {
				if t := strings.TrimSpace(text); t != "" {
					part, _ := sjson.Set(`{}`, "text", t)
					systemParts, _ = sjson.SetRaw(systemParts, "-1", part)
					systemCount++
				}
			}

		case role == "user" || role == "system" || role == "developer":
			if node := buildGeminiContent("user", content); node != "" {
				contents, _ = sjson.SetRaw(contents, "-1", node)
			}

		case role == "assistant":
			parts, count := geminiPartsFromOpenAIContent(content)
			var callIDs []string
			m.Get("tool_calls").ForEach(func(_, tc gjson.Result) bool {
				if strings.TrimSpace(tc.Get("type").String()) != "function" {
					return true
				}
				part := `{"functionCall":{"name":"","args":{}}}`
				part, _ = sjson.Set(part, "functionCall.name", strings.TrimSpace(tc.Get("function.name").String()))
				part, _ = sjson.SetRaw(part, "functionCall.args", functionCallArgsObject(tc.Get("function.arguments")))
				parts, _ = sjson.SetRaw(parts, "-1", part)
				count++
				if id := strings.TrimSpace(tc.Get("id").String()); id != "" {
					callIDs = append(callIDs, id)
				}
				return true
			})
			if count > 0 {
				node, _ := sjson.Set(`{"role":"","parts":[]}`, "role", "model")
				node, _ = sjson.SetRaw(node, "parts", parts)
				contents, _ = sjson.SetRaw(contents, "-1", node)
			}
			if node := geminiFunctionResponses(callIDs, callNames, callResults); node != "" {
				contents, _ = sjson.SetRaw(contents, "-1", node)
			}
		}
	}

	system := ""
	if systemCount > 0 {
		system, _ = sjson.SetRaw(`{"role":"user","parts":[]}`, "parts", systemParts)
	}
	return system, contents
}

// openAISystemTexts extracts the text payloads of a system or developer
// message, accepting string, single text object, and text-part array forms.
func openAISystemTexts(content gjson.Result) []string {
	if content.Type == gjson.String {
		return []string{content.String()}
	}
	if content.IsObject() {
		if strings.TrimSpace(content.Get("type").String()) == "text" {
			return []string{content.Get("text").String()}
		}
		return nil
	}
	var texts []string
	if content.IsArray() {
		content.ForEach(func(_, item gjson.Result) bool {
			if strings.TrimSpace(item.Get("type").String()) == "text" {
				texts = append(texts, item.Get("text").String())
			}
			return true
		})
	}
	return texts
}

// buildGeminiContent converts string or multimodal OpenAI message content
// into a Gemini content node. Returns "" when nothing survives conversion.
func buildGeminiContent(role string, content gjson.Result) string {
	parts, count := geminiPartsFromOpenAIContent(content)
	if count == 0 {
		return ""
	}
	node, _ := sjson.Set(`{"role":"","parts":[]}`, "role", role)
	node, _ = sjson.SetRaw(node, "parts", parts)
	return node
}

// geminiPartsFromOpenAIContent converts OpenAI message content into Gemini
// parts, returning the JSON array and the number of parts appended.
func geminiPartsFromOpenAIContent(content gjson.Result) (string, int) {
	parts := "[]"
	count := 0

	if content.Type == gjson.String {
		if strings.TrimSpace(content.String()) != "" {
			part, _ := sjson.Set(`{}`, "text", content.String())
			parts, _ = sjson.SetRaw(parts, "-1", part)
			count++
		}
		return parts, count
	}

	if !content.IsArray() {
		return parts, count
	}
	content.ForEach(func(_, item gjson.Result) bool {
		switch strings.TrimSpace(item.Get("type").String()) {
		case "text":
			part, _ := sjson.Set(`{}`, "text", item.Get("text").String())
			parts, _ = sjson.SetRaw(parts, "-1", part)
			count++
		case "image_url":
			url := item.Get("image_url.url")
			if !url.Exists() {
				url = item.Get("image_url")
			}
			if inline := dataURLToInlineData(url.String()); inline != "" {
				parts, _ = sjson.SetRaw(parts, "-1", inline)
				count++
			}
		}
		return true
	})
	return parts, count
}

// dataURLToInlineData converts a base64 data URL into a Gemini inlineData
// part. Returns "" for anything that is not a base64 data URL, such as remote
// image references, which Gemini cannot fetch through this field.
func dataURLToInlineData(url string) string {
	raw := strings.TrimSpace(url)
	if !strings.HasPrefix(raw, "data:") {
		return ""
	}
	rest := raw[len("data:"):]
	mime, b64, found := strings.Cut(rest, ";base64,")
	if !found {
		return ""
	}
	mime = strings.TrimSpace(mime)
	if mime == "" {
		mime = "image/png"
	}
	b64 = strings.TrimSpace(b64)
	if b64 == "" {
		return ""
	}
	part, _ := sjson.Set(`{"inlineData":{}}`, "inlineData.mimeType", mime)
	part, _ = sjson.Set(part, "inlineData.data", b64)
	return part
}

// functionCallArgsObject parses OpenAI tool-call arguments into the Gemini
// functionCall args object. Anything that is not a JSON object collapses to
// an empty object.
func functionCallArgsObject(args gjson.Result) string {
	if args.IsObject() {
		return args.Raw
	}
	if args.Type == gjson.String {
		s := strings.TrimSpace(args.String())
		if s != "" && gjson.Valid(s) {
			if parsed := gjson.Parse(s); parsed.IsObject() {
				return parsed.Raw
			}
		}
	}
	return "{}"
}

// geminiFunctionResponses builds the user turn carrying functionResponse
// parts for the given tool call ids. Calls whose name is unknown are skipped;
// a missing tool message yields a null result.
func geminiFunctionResponses(callIDs []string, callNames map[string]string, callResults map[string]gjson.Result) string {
	if len(callIDs) == 0 {
		return ""
	}
	parts := "[]"
	count := 0
	for _, id := range callIDs {
		name := callNames[id]
		if name == "" {
			continue
		}
		part, _ := sjson.Set(`{"functionResponse":{"name":"","response":{}}}`, "functionResponse.name", name)
		part, _ = sjson.SetRaw(part, "functionResponse.response.result", functionResponseResult(callResults[id]))
		parts, _ = sjson.SetRaw(parts, "-1", part)
		count++
	}
	if count == 0 {
		return ""
	}
	node, _ := sjson.SetRaw(`{"role":"user","parts":[]}`, "parts", parts)
	return node
}

// functionResponseResult renders a tool message content as the raw JSON for
// functionResponse.response.result. JSON-encoded strings are unwrapped; other
// strings and non-string payloads pass through unchanged.
func functionResponseResult(content gjson.Result) string {
	if !content.Exists() {
		return "null"
	}
	if content.Type == gjson.String {
		s := strings.TrimSpace(content.String())
		if s != "" && gjson.Valid(s) {
			return gjson.Parse(s).Raw
		}
		return content.Raw
	}
	return content.Raw
}

// openAIToolsToGeminiTools converts OpenAI tool definitions into the Gemini
// tools array. Function tools merge into one functionDeclarations node with
// their schema carried through parametersJsonSchema; web_search and
// google_search entries map onto googleSearch nodes. Returns "" when the
// request declares no usable tool.
func openAIToolsToGeminiTools(tools gjson.Result) string {
	if !tools.IsArray() {
		return ""
	}

	decls := "[]"
	declCount := 0
	var searchNodes []string

	tools.ForEach(func(_, t gjson.Result) bool {
		if !t.IsObject() {
			return true
		}
		switch strings.TrimSpace(t.Get("type").String()) {
		case "function":
			fn := t.Get("function")
			if !fn.IsObject() {
				return true
			}
			decl := fn.Raw
			if !fn.Get("parametersJsonSchema").Exists() {
				if params := fn.Get("parameters"); params.IsObject() {
					decl, _ = sjson.SetRaw(decl, "parametersJsonSchema", params.Raw)
					decl, _ = sjson.Delete(decl, "parameters")
				} else {
					decl, _ = sjson.SetRaw(decl, "parametersJsonSchema", `{"type":"object","properties":{}}`)
				}
			}
			decl, _ = sjson.Delete(decl, "strict")
			decls, _ = sjson.SetRaw(decls, "-1", decl)
			declCount++
		case "web_search", "google_search":
			cfg, _ := sjson.Delete(t.Raw, "type")
			node, _ := sjson.SetRaw(`{}`, "googleSearch", cfg)
			searchNodes = append(searchNodes, node)
		default:
			search := t.Get("google_search")
			if !search.Exists() {
				search = t.Get("googleSearch")
			}
			if search.Exists() {
				node, _ := sjson.SetRaw(`{}`, "googleSearch", search.Raw)
				searchNodes = append(searchNodes, node)
			}
		}
		return true
	})

	out := "[]"
	if declCount > 0 {
		node, _ := sjson.SetRaw(`{}`, "functionDeclarations", decls)
		out, _ = sjson.SetRaw(out, "-1", node)
	}
	for _, node := range searchNodes {
		out, _ = sjson.SetRaw(out, "-1", node)
	}
	if out == "[]" {
		return ""
	}
	return out
}
