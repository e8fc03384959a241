// Package gemini provides request translation functionality for Gemini to Gemini CLI compatibility.
// It handles parsing and transforming Gemini API requests into the envelope the
// cloudcode-pa endpoint expects, normalizing tool declarations, multimodal part
// fields, and thought signatures along the way. The project field of the
// envelope is left empty here and filled in by the executor, which knows the
// account's project id.
package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/router-for-me/AntiHubAPI/internal/translator/gemini/common"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// skipThoughtSignature is accepted by cloudcode-pa in place of a real thought
// signature on non-text parts.
const skipThoughtSignature = "skip_thought_signature_validator"

// ConvertGeminiRequestToGeminiCLI wraps a Gemini generateContent request in the
// Gemini CLI envelope and normalizes it for cloudcode-pa. The function performs
// the following transformations:
// 1. Builds the {"project","request","model"} envelope, moving the model out of the body
// 2. Regroups functionResponse parts so each model functionCall turn is followed by its results
// 3. Converts snake_case request fields to the camelCase forms the upstream expects
// 4. Normalizes tool declaration schemas and multimodal part fields
// 5. Injects thought signatures and default safety settings
//
// Parameters:
//   - modelName: The name of the model to use for the request
//   - rawJSON: The raw JSON request data from the Gemini API
//   - stream: A boolean indicating if the request is for a streaming response (unused in current implementation)
//
// Returns:
//   - []byte: The transformed request data in Gemini CLI format
func ConvertGeminiRequestToGeminiCLI(modelName string, inputRawJSON []byte, _ bool) []byte {
	rawJSON := bytes.Clone(inputRawJSON)
	template := `{"project":"","request":{},"model":""}`
	template, _ = sjson.SetRaw(template, "request", string(rawJSON))
	model := strings.TrimSpace(modelName)
	if model == "" {
		model = gjson.Get(template, "request.model").String()
	}
	template, _ = sjson.Set(template, "model", model)
	template, _ = sjson.Delete(template, "request.model")

	// Regrouping is best-effort; the original body is kept on failure.
	template, _ = regroupFunctionResponses(template)

	if si := gjson.Get(template, "request.system_instruction"); si.Exists() {
		template, _ = sjson.SetRaw(template, "request.systemInstruction", si.Raw)
		template, _ = sjson.Delete(template, "request.system_instruction")
	}
	rawJSON = []byte(template)

	// Normalize roles in request.contents: default to valid values if missing/invalid
	contents := gjson.GetBytes(rawJSON, "request.contents")
	if contents.Exists() {
		prevRole := ""
		idx := 0
		contents.ForEach(func(_ gjson.Result, value gjson.Result) bool {
			role := value.Get("role").String()
			valid := role == "user" || role == "model"
			if role == "" || !valid {
				newRole := "user"
				if prevRole == "user" {
					newRole = "model"
				}
				path := fmt.Sprintf("request.contents.%d.role", idx)
				rawJSON, _ = sjson.SetBytes(rawJSON, path, newRole)
				role = newRole
			}
			prevRole = role
			idx++
			return true
		})
	}

	if tools := gjson.GetBytes(rawJSON, "request.tools"); tools.IsArray() {
		rawJSON, _ = sjson.SetRawBytes(rawJSON, "request.tools", []byte(normalizeGeminiCLITools(tools)))
	}

	if si := gjson.GetBytes(rawJSON, "request.systemInstruction"); si.IsObject() {
		rawJSON, _ = sjson.SetRawBytes(rawJSON, "request.systemInstruction", []byte(normalizeGeminiCLIContent(si)))
	}
	gjson.GetBytes(rawJSON, "request.contents").ForEach(func(key, content gjson.Result) bool {
		path := fmt.Sprintf("request.contents.%d", key.Int())
		rawJSON, _ = sjson.SetRawBytes(rawJSON, path, []byte(normalizeGeminiCLIContent(content)))
		return true
	})

	return common.AttachDefaultSafetySettings(rawJSON, "request.safetySettings")
}

// normalizeGeminiCLITools rebuilds the tools array with camelCase
// functionDeclarations and googleSearch keys; unrecognized tool nodes pass
// through untouched.
func normalizeGeminiCLITools(tools gjson.Result) string {
	out := "[]"
	tools.ForEach(func(_, tool gjson.Result) bool {
		if !tool.IsObject() {
			return true
		}
		if decls := camelOrSnake(tool, "functionDeclarations", "function_declarations"); decls.IsArray() {
			node := `{"functionDeclarations":[]}`
			decls.ForEach(func(_, decl gjson.Result) bool {
				node, _ = sjson.SetRaw(node, "functionDeclarations.-1", normalizeFunctionDeclaration(decl))
				return true
			})
			out, _ = sjson.SetRaw(out, "-1", node)
			return true
		}
		if gs := camelOrSnake(tool, "googleSearch", "google_search"); gs.Exists() {
			node, _ := sjson.SetRaw(`{"googleSearch":null}`, "googleSearch", gs.Raw)
			out, _ = sjson.SetRaw(out, "-1", node)
			return true
		}
		out, _ = sjson.SetRaw(out, "-1", tool.Raw)
		return true
	})
	return out
}

// normalizeFunctionDeclaration ensures a declaration carries its schema under
// parametersJsonSchema, which is the only schema field cloudcode-pa accepts.
func normalizeFunctionDeclaration(decl gjson.Result) string {
	if !decl.IsObject() {
		return "{}"
	}
	out := decl.Raw
	if !gjson.Get(out, "parametersJsonSchema").Exists() {
		if params := gjson.Get(out, "parameters"); params.IsObject() {
			out, _ = sjson.SetRaw(out, "parametersJsonSchema", params.Raw)
			out, _ = sjson.Delete(out, "parameters")
		} else {
			out, _ = sjson.SetRaw(out, "parametersJsonSchema", `{"type":"object","properties":{}}`)
		}
	}
	out, _ = sjson.Delete(out, "strict")
	return out
}

// normalizeGeminiCLIContent normalizes one content node for cloudcode-pa:
// inlineData/fileData fields move to their historical snake_case spellings and
// non-text parts receive a thought signature.
func normalizeGeminiCLIContent(content gjson.Result) string {
	if !content.IsObject() {
		return content.Raw
	}
	parts := content.Get("parts")
	if !parts.IsArray() {
		return content.Raw
	}
	rebuilt := "[]"
	parts.ForEach(func(_, part gjson.Result) bool {
		rebuilt, _ = sjson.SetRaw(rebuilt, "-1", normalizeGeminiCLIPart(part))
		return true
	})
	out, _ := sjson.SetRaw(content.Raw, "parts", rebuilt)
	return out
}

func normalizeGeminiCLIPart(part gjson.Result) string {
	if !part.IsObject() {
		return part.Raw
	}
	out := part.Raw
	needsSignature := false

	if inline := camelOrSnake(part, "inlineData", "inline_data"); inline.IsObject() {
		out, _ = sjson.Delete(out, "inline_data")
		out, _ = sjson.SetRaw(out, "inlineData", snakeCaseMediaFields(inline, false))
		needsSignature = true
	}
	if file := camelOrSnake(part, "fileData", "file_data"); file.IsObject() {
		out, _ = sjson.Delete(out, "file_data")
		out, _ = sjson.SetRaw(out, "fileData", snakeCaseMediaFields(file, true))
		needsSignature = true
	}
	if fc := camelOrSnake(part, "functionCall", "function_call"); fc.IsObject() {
		needsSignature = true
	}

	if needsSignature {
		out = ensureThoughtSignature(out)
	}
	return out
}

// snakeCaseMediaFields rewrites mimeType (and fileUri when withURI is set) to
// the snake_case spellings cloudcode-pa historically used, dropping the
// camelCase keys.
func snakeCaseMediaFields(obj gjson.Result, withURI bool) string {
	out := obj.Raw
	if mime := strings.TrimSpace(firstText(obj, "mime_type", "mimeType")); mime != "" {
		out, _ = sjson.Set(out, "mime_type", mime)
	}
	out, _ = sjson.Delete(out, "mimeType")
	if withURI {
		if uri := strings.TrimSpace(firstText(obj, "file_uri", "fileUri")); uri != "" {
			out, _ = sjson.Set(out, "file_uri", uri)
		}
		out, _ = sjson.Delete(out, "fileUri")
	}
	return out
}

// ensureThoughtSignature adds a thought signature to a part when it has none.
// An existing camelCase signature is preserved; a snake_case one is promoted
// to the camelCase key the upstream accepts.
func ensureThoughtSignature(partRaw string) string {
	if sig := strings.TrimSpace(gjson.Get(partRaw, "thoughtSignature").String()); sig != "" {
		return partRaw
	}
	if sig := strings.TrimSpace(gjson.Get(partRaw, "thought_signature").String()); sig != "" {
		out, _ := sjson.Set(partRaw, "thoughtSignature", sig)
		out, _ = sjson.Delete(out, "thought_signature")
		return out
	}
	out, _ := sjson.Set(partRaw, "thoughtSignature", skipThoughtSignature)
	return out
}

// regroupFunctionResponses normalizes Gemini CLI-style tool calling so that any model content
// containing one or more `functionCall` parts is immediately followed by a user content containing
// the matching `functionResponse` parts (matched by `id` when present).
//
// Upstream validation enforces tool result adjacency; orphan tool calls would otherwise yield 400s.
func regroupFunctionResponses(input string) (string, error) {
	// Normalize to valid UTF-8 so encoding/json can parse even if a client
	// emits invalid bytes inside JSON strings.
	inBytes := []byte(input)
	if !utf8.Valid(inBytes) {
		inBytes = bytes.ToValidUTF8(inBytes, []byte("�"))
	}

	var root map[string]any
	if err := json.Unmarshal(inBytes, &root); err != nil {
		return input, nil
	}
	req, _ := root["request"].(map[string]any)
	if req == nil {
		return input, nil
	}
	rawContents, _ := req["contents"].([]any)
	if rawContents == nil {
		return input, nil
	}

	// Collect all functionCall ids so only matching responses are relocated.
	callIDs := make(map[string]struct{})
	for _, cAny := range rawContents {
		c, _ := cAny.(map[string]any)
		if c == nil {
			continue
		}
		parts, _ := c["parts"].([]any)
		for _, pAny := range parts {
			p, _ := pAny.(map[string]any)
			if p == nil {
				continue
			}
			fc, _ := p["functionCall"].(map[string]any)
			if fc == nil {
				continue
			}
			if id, _ := fc["id"].(string); id != "" {
				callIDs[id] = struct{}{}
			}
		}
	}

	// Index functionResponse parts by id, in encountered order.
	responsesByID := make(map[string][]map[string]any)
	for _, cAny := range rawContents {
		c, _ := cAny.(map[string]any)
		if c == nil {
			continue
		}
		parts, _ := c["parts"].([]any)
		for _, pAny := range parts {
			p, _ := pAny.(map[string]any)
			if p == nil {
				continue
			}
			fr, _ := p["functionResponse"].(map[string]any)
			if fr == nil {
				continue
			}
			id, _ := fr["id"].(string)
			if id == "" {
				continue
			}
			if _, ok := callIDs[id]; !ok {
				continue
			}
			responsesByID[id] = append(responsesByID[id], p)
		}
	}

	// Remove the indexed response parts from their original locations.
	for idx := 0; idx < len(rawContents); idx++ {
		c, _ := rawContents[idx].(map[string]any)
		if c == nil {
			continue
		}
		parts, _ := c["parts"].([]any)
		if len(parts) == 0 {
			continue
		}
		kept := make([]any, 0, len(parts))
		for _, pAny := range parts {
			p, _ := pAny.(map[string]any)
			fr, _ := p["functionResponse"].(map[string]any)
			if fr != nil {
				id, _ := fr["id"].(string)
				if id != "" {
					if _, ok := callIDs[id]; ok {
						continue // relocated
					}
				}
			}
			kept = append(kept, pAny)
		}
		if len(kept) == 0 {
			// Content entries that were only tool responses get their parts dropped.
			delete(c, "parts")
			rawContents[idx] = c
		} else {
			c["parts"] = kept
			rawContents[idx] = c
		}
	}

	type callInfo struct {
		id   string
		name string
	}

	// Rebuild contents, inserting a tool-response user turn after each model
	// functionCall turn.
	outContents := make([]any, 0, len(rawContents))
	for _, cAny := range rawContents {
		c, _ := cAny.(map[string]any)
		if c == nil {
			continue
		}
		partsAny, _ := c["parts"].([]any)
		if partsAny == nil {
			// Empty content (e.g. removed response-only). Skip.
			continue
		}

		outContents = append(outContents, c)

		if c["role"] != "model" {
			continue
		}

		calls := make([]callInfo, 0, 4)
		for _, pAny := range partsAny {
			p, _ := pAny.(map[string]any)
			if p == nil {
				continue
			}
			fc, _ := p["functionCall"].(map[string]any)
			if fc == nil {
				continue
			}
			id, _ := fc["id"].(string)
			name, _ := fc["name"].(string)
			if id == "" {
				continue
			}
			calls = append(calls, callInfo{id: id, name: name})
		}
		if len(calls) == 0 {
			continue
		}

		respParts := make([]any, 0, len(calls))
		for _, call := range calls {
			if bucket := responsesByID[call.id]; len(bucket) > 0 {
				respParts = append(respParts, bucket[0])
				responsesByID[call.id] = bucket[1:]
				continue
			}
			// Synthesize a placeholder result so upstream validators are satisfied.
			respParts = append(respParts, map[string]any{
				"functionResponse": map[string]any{
					"id":   call.id,
					"name": call.name,
					"response": map[string]any{
						"result": fmt.Sprintf("tool_result missing for %s", call.id),
					},
				},
			})
		}

		outContents = append(outContents, map[string]any{
			"role":  "user",
			"parts": respParts,
		})
	}

	req["contents"] = outContents
	root["request"] = req
	updated, err := json.Marshal(root)
	if err != nil {
		return input, err
	}
	return string(updated), nil
}

// camelOrSnake reads a field that clients spell in camelCase or snake_case.
func camelOrSnake(v gjson.Result, camel, snake string) gjson.Result {
	if r := v.Get(camel); r.Exists() {
		return r
	}
	return v.Get(snake)
}

// firstText returns the first non-empty string among the named fields.
func firstText(v gjson.Result, keys ...string) string {
	for _, key := range keys {
		if s := v.Get(key).String(); s != "" {
			return s
		}
	}
	return ""
}
