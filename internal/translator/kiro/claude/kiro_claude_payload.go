package claude

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	kirocommon "github.com/router-for-me/AntiHubAPI/internal/translator/kiro/common"
	"github.com/router-for-me/AntiHubAPI/internal/util"
)

const kiroDefaultOrigin = "AI_EDITOR"

const maxToolDescriptionRunes = 10000

// Kiro times out when a single tool call writes a whole large file. These
// hints steer the client's file tools toward chunked operations; each is
// appended once and skipped when the caller already carries it.
const (
	kiroSystemChunkedPolicy        = "File write policy: write at most 300 lines per operation. Create long files with an initial chunk followed by append operations, and prefer small targeted edits over full rewrites."
	kiroWriteToolDescriptionSuffix = "IMPORTANT: Write at most 300 lines per call. For longer files, write the first chunk and append the rest in later calls."
	kiroEditToolDescriptionSuffix  = "IMPORTANT: Keep each edit small and focused. Never rewrite a whole file in one call; split large changes into several edits."
)

// kiroModelIDs maps Anthropic model names onto the ids Kiro accepts. Names
// missing here fall back to a family default.
var kiroModelIDs = map[string]string{
	"claude-sonnet-4-5-20250929": "claude-sonnet-4.5",
	"claude-sonnet-4-20250514":   "claude-sonnet-4",
	"claude-opus-4-5-20251101":   "claude-opus-4.5",
	"claude-opus-4-6":            "claude-opus-4.6",
	"claude-haiku-4-5-20251001":  "claude-haiku-4.5",
}

// kiroImageFormats maps Claude image media types onto the format names the
// CodeWhisperer image payload uses. Unlisted types are dropped.
var kiroImageFormats = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// BuildKiroPayload wraps a Claude Messages request into the CodeWhisperer
// generateAssistantResponse body. The last message becomes currentMessage and
// everything before it becomes history, with the system prompt injected as a
// leading user/assistant exchange. profileArn is attached when non-empty and
// origin stamps every user turn (AI_EDITOR when empty).
//
// The boolean reports whether the request enabled thinking, which decides
// whether <thinking> tags are parsed out of the response.
func BuildKiroPayload(rawJSON []byte, profileArn, origin string) ([]byte, bool, error) {
	rawJSON = patchBlankToolUseIDs(rawJSON)
	rawJSON = util.RemoveOrphanClaudeToolUses(rawJSON)

	var req map[string]any
	if err := json.Unmarshal(rawJSON, &req); err != nil {
		return nil, false, fmt.Errorf("kiro: decode claude request: %w", err)
	}
	msgs, _ := req["messages"].([]any)
	if len(msgs) == 0 {
		return nil, false, errors.New("kiro: messages are empty")
	}

	modelID, err := mapKiroModel(kirocommon.GetString(req, "model"))
	if err != nil {
		return nil, false, err
	}
	if origin == "" {
		origin = kiroDefaultOrigin
	}
	hint := kirocommon.ThinkingHint(req)

	history := make([]map[string]any, 0, len(msgs)+1)
	history = appendSystemHistory(history, req, modelID, origin, hint)
	for _, m := range msgs[:len(msgs)-1] {
		msg, _ := m.(map[string]any)
		if kirocommon.GetString(msg, "role") == "user" {
			history = append(history, userHistoryMessage(msg["content"], modelID, origin))
		} else {
			history = append(history, assistantHistoryMessage(msg["content"]))
		}
	}
	history = normalizeHistoryAlternation(history)
	// CodeWhisperer rejects a history with unpaired or duplicate tool
	// results outright, so filter them and keep their text.
	sanitizeHistoryToolPairing(history)

	tools := convertKiroTools(req["tools"])
	// Every tool name mentioned in history needs a definition, or the
	// request fails validation.
	tools = ensureToolDefinitions(tools, historyToolNames(history))

	last, _ := msgs[len(msgs)-1].(map[string]any)
	text, images, toolResults := splitUserContent(last["content"])
	validated := validateToolPairing(history, toolResults)
	text = appendOrphanToolResultText(text, toolResults, validated)

	userContext := map[string]any{}
	if len(tools) > 0 {
		userContext["tools"] = tools
	}
	if len(validated) > 0 {
		userContext["toolResults"] = validated
	}

	if text == "" && len(images) == 0 && len(validated) == 0 {
		if len(tools) > 0 {
			text = "Execute the tool task"
		} else {
			text = "OK"
		}
	}

	conversationState := map[string]any{
		"agentContinuationId": uuid.NewString(),
		"agentTaskType":       "vibe",
		// AUTO trips CodeWhisperer request validation.
		"chatTriggerType": "MANUAL",
		"currentMessage": map[string]any{
			"userInputMessage": map[string]any{
				"userInputMessageContext": userContext,
				"content":                 text,
				"modelId":                 modelID,
				"images":                  images,
				"origin":                  origin,
			},
		},
		"conversationId": kiroConversationID(req),
		"history":        history,
	}

	payload := map[string]any{"conversationState": conversationState}
	if profileArn != "" {
		payload["profileArn"] = profileArn
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("kiro: encode payload: %w", err)
	}
	return out, hint != "", nil
}

func mapKiroModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("kiro: model is empty")
	}
	if id, ok := kiroModelIDs[model]; ok {
		return id, nil
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "sonnet"):
		return "claude-sonnet-4.5", nil
	case strings.Contains(lower, "opus"):
		if strings.Contains(lower, "4-5") || strings.Contains(lower, "4.5") {
			return "claude-opus-4.5", nil
		}
		return "claude-opus-4.6", nil
	case strings.Contains(lower, "haiku"):
		return "claude-haiku-4.5", nil
	}
	return "", fmt.Errorf("kiro: unknown model %q", model)
}

// patchBlankToolUseIDs assigns generated ids to assistant tool_use blocks
// that arrived without one and hands those ids to blank tool_result blocks in
// order, so the pair survives instead of both sides being dropped as orphans.
func patchBlankToolUseIDs(rawJSON []byte) []byte {
	if !gjson.GetBytes(rawJSON, "messages").IsArray() {
		return rawJSON
	}
	out := rawJSON
	var pending []string
	gjson.GetBytes(rawJSON, "messages").ForEach(func(mi, msg gjson.Result) bool {
		role := msg.Get("role").String()
		msg.Get("content").ForEach(func(bi, block gjson.Result) bool {
			path := fmt.Sprintf("messages.%d.content.%d", mi.Int(), bi.Int())
			switch block.Get("type").String() {
			case "tool_use":
				if role == "assistant" && strings.TrimSpace(block.Get("id").String()) == "" {
					id := generateToolUseID()
					out, _ = sjson.SetBytes(out, path+".id", id)
					pending = append(pending, id)
				}
			case "tool_result":
				if strings.TrimSpace(block.Get("tool_use_id").String()) == "" && len(pending) > 0 {
					out, _ = sjson.SetBytes(out, path+".tool_use_id", pending[0])
					pending = pending[1:]
				}
			}
			return true
		})
		return true
	})
	return out
}

// kiroConversationID reuses the session id clients encode in
// metadata.user_id (…session_<uuid>) so follow-up turns stay in one Kiro
// conversation, falling back to a fresh id.
func kiroConversationID(req map[string]any) string {
	metadata, _ := req["metadata"].(map[string]any)
	userID := kirocommon.GetString(metadata, "user_id")
	if idx := strings.Index(userID, "session_"); idx >= 0 {
		candidate := userID[idx+len("session_"):]
		if len(candidate) >= 36 {
			if _, err := uuid.Parse(candidate[:36]); err == nil {
				return candidate[:36]
			}
		}
	}
	return uuid.NewString()
}

func claudeSystemText(system any) string {
	switch v := system.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, b := range v {
			block, _ := b.(map[string]any)
			if text := kirocommon.GetString(block, "text"); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// appendSystemHistory turns the system prompt into a leading user turn plus
// an acknowledging assistant turn, the shape Kiro expects instructions in.
func appendSystemHistory(history []map[string]any, req map[string]any, modelID, origin, hint string) []map[string]any {
	systemText := kirocommon.InjectThinkingHint(claudeSystemText(req["system"]), hint)
	if systemText == "" {
		return history
	}
	if !strings.Contains(systemText, kiroSystemChunkedPolicy) {
		systemText += "\n" + kiroSystemChunkedPolicy
	}
	history = append(history, map[string]any{
		"userInputMessage": map[string]any{
			"userInputMessageContext": map[string]any{},
			"content":                 systemText,
			"modelId":                 modelID,
			"images":                  []map[string]any{},
			"origin":                  origin,
		},
	})
	return append(history, map[string]any{
		"assistantResponseMessage": map[string]any{"content": "I will follow these instructions."},
	})
}

func userHistoryMessage(content any, modelID, origin string) map[string]any {
	text, images, toolResults := splitUserContent(content)
	ctx := map[string]any{}
	if len(toolResults) > 0 {
		ctx["toolResults"] = toolResults
	}
	return map[string]any{
		"userInputMessage": map[string]any{
			"userInputMessageContext": ctx,
			"content":                 text,
			"modelId":                 modelID,
			"images":                  images,
			"origin":                  origin,
		},
	}
}

func assistantHistoryMessage(content any) map[string]any {
	var thinking, text strings.Builder
	var toolUses []map[string]any

	switch v := content.(type) {
	case string:
		text.WriteString(v)
	case []any:
		for _, b := range v {
			block, _ := b.(map[string]any)
			switch kirocommon.GetString(block, "type") {
			case "thinking":
				thinking.WriteString(kirocommon.GetString(block, "thinking"))
			case "text":
				text.WriteString(kirocommon.GetString(block, "text"))
			case "tool_use":
				id := kirocommon.GetStringValue(block, "id")
				name := kirocommon.GetStringValue(block, "name")
				if id == "" || name == "" {
					continue
				}
				input, _ := block["input"].(map[string]any)
				if input == nil {
					input = map[string]any{}
				}
				toolUses = append(toolUses, map[string]any{
					"toolUseId": id,
					"name":      name,
					"input":     input,
				})
			}
		}
	}

	final := text.String()
	switch {
	case thinking.Len() > 0:
		final = kirocommon.ThinkingStartTag + thinking.String() + kirocommon.ThinkingEndTag
		if text.Len() > 0 {
			final += "\n\n" + text.String()
		}
	case final == "" && len(toolUses) > 0:
		// Kiro rejects empty assistant content even when toolUses are set.
		final = " "
	}

	assistant := map[string]any{"content": final}
	if len(toolUses) > 0 {
		assistant["toolUses"] = toolUses
	}
	return map[string]any{"assistantResponseMessage": assistant}
}

// splitUserContent separates a user message into plain text, Kiro image
// payloads and Kiro tool results.
func splitUserContent(content any) (string, []map[string]any, []map[string]any) {
	images := []map[string]any{}
	if text, ok := content.(string); ok {
		return text, images, nil
	}
	blocks, ok := content.([]any)
	if !ok {
		return "", images, nil
	}

	var texts []string
	var toolResults []map[string]any
	for _, b := range blocks {
		block, _ := b.(map[string]any)
		switch kirocommon.GetString(block, "type") {
		case "text":
			if text := kirocommon.GetString(block, "text"); text != "" {
				texts = append(texts, text)
			}
		case "image":
			source, _ := block["source"].(map[string]any)
			if kirocommon.GetString(source, "type") != "base64" {
				continue
			}
			data := kirocommon.GetString(source, "data")
			if data == "" {
				continue
			}
			mediaType := kirocommon.GetString(source, "media_type")
			format := kiroImageFormats[mediaType]
			if format == "" {
				log.Debugf("kiro: dropping image with unsupported media type %q", mediaType)
				continue
			}
			images = append(images, map[string]any{
				"format": format,
				"source": map[string]any{"bytes": data},
			})
		case "tool_result":
			id := kirocommon.GetStringValue(block, "tool_use_id")
			if id == "" {
				continue
			}
			isError, _ := block["is_error"].(bool)
			status := "success"
			if isError {
				status = "error"
			}
			toolResults = append(toolResults, map[string]any{
				"toolUseId": id,
				"content":   []map[string]any{{"text": toolResultText(block["content"])}},
				"status":    status,
				"isError":   isError,
			})
		}
	}
	return strings.Join(texts, "\n"), images, toolResults
}

func toolResultText(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []any:
		var texts []string
		for _, item := range v {
			block, _ := item.(map[string]any)
			if kirocommon.GetString(block, "type") != "text" {
				continue
			}
			if text := kirocommon.GetString(block, "text"); text != "" {
				texts = append(texts, text)
			}
		}
		return strings.Join(texts, "\n")
	case nil:
		return ""
	}
	return fmt.Sprint(raw)
}

// toolResultFallbackText renders an already-converted tool result as plain
// text for degradation when the result has to be dropped.
func toolResultFallbackText(result map[string]any) string {
	content, ok := result["content"].([]map[string]any)
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, item := range content {
		b.WriteString(kirocommon.GetString(item, "text"))
	}
	return strings.TrimSpace(b.String())
}

// normalizeHistoryAlternation merges runs of consecutive user turns into one
// and closes a trailing user turn with a short assistant acknowledgement,
// restoring the strict user/assistant alternation Kiro validates.
func normalizeHistoryAlternation(history []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(history))
	for _, entry := range history {
		user, ok := entry["userInputMessage"].(map[string]any)
		if !ok {
			out = append(out, entry)
			continue
		}
		if n := len(out); n > 0 {
			if prev, ok := out[n-1]["userInputMessage"].(map[string]any); ok {
				mergeUserHistoryEntries(prev, user)
				continue
			}
		}
		out = append(out, entry)
	}
	if n := len(out); n > 0 {
		if _, ok := out[n-1]["userInputMessage"]; ok {
			out = append(out, map[string]any{
				"assistantResponseMessage": map[string]any{"content": "OK"},
			})
		}
	}
	return out
}

// mergeUserHistoryEntries folds src into dst: text joins with a newline,
// images and tool results concatenate.
func mergeUserHistoryEntries(dst, src map[string]any) {
	if text := kirocommon.GetString(src, "content"); text != "" {
		if existing := kirocommon.GetString(dst, "content"); existing != "" {
			dst["content"] = existing + "\n" + text
		} else {
			dst["content"] = text
		}
	}
	if images, ok := src["images"].([]map[string]any); ok && len(images) > 0 {
		if existing, ok := dst["images"].([]map[string]any); ok {
			dst["images"] = append(existing, images...)
		} else {
			dst["images"] = images
		}
	}
	srcCtx, _ := src["userInputMessageContext"].(map[string]any)
	results, ok := srcCtx["toolResults"].([]map[string]any)
	if !ok || len(results) == 0 {
		return
	}
	dstCtx, ok := dst["userInputMessageContext"].(map[string]any)
	if !ok {
		dstCtx = map[string]any{}
		dst["userInputMessageContext"] = dstCtx
	}
	if existing, ok := dstCtx["toolResults"].([]map[string]any); ok {
		dstCtx["toolResults"] = append(existing, results...)
	} else {
		dstCtx["toolResults"] = results
	}
}

// sanitizeHistoryToolPairing keeps a history tool result only when it answers
// a tool use seen earlier and not yet answered. Dropped results degrade to
// text on their user turn so no information is lost.
func sanitizeHistoryToolPairing(history []map[string]any) {
	unpaired := map[string]bool{}
	all := map[string]bool{}

	for _, entry := range history {
		if assistant, ok := entry["assistantResponseMessage"].(map[string]any); ok {
			if uses, ok := assistant["toolUses"].([]map[string]any); ok {
				for _, tu := range uses {
					if id := kirocommon.GetStringValue(tu, "toolUseId"); id != "" {
						all[id] = true
						unpaired[id] = true
					}
				}
			}
		}

		user, ok := entry["userInputMessage"].(map[string]any)
		if !ok {
			continue
		}
		ctx, ok := user["userInputMessageContext"].(map[string]any)
		if !ok {
			continue
		}
		results, ok := ctx["toolResults"].([]map[string]any)
		if !ok || len(results) == 0 {
			continue
		}

		var kept []map[string]any
		var degraded []string
		for _, result := range results {
			id := kirocommon.GetStringValue(result, "toolUseId")
			if id == "" {
				continue
			}
			if unpaired[id] {
				delete(unpaired, id)
				kept = append(kept, result)
				continue
			}
			if all[id] {
				log.Warnf("kiro: dropping duplicate tool result %s", id)
			} else {
				log.Warnf("kiro: dropping tool result %s with no matching tool use", id)
			}
			if text := toolResultFallbackText(result); text != "" {
				degraded = append(degraded, text)
			}
		}

		if len(kept) > 0 {
			ctx["toolResults"] = kept
		} else {
			delete(ctx, "toolResults")
		}
		if extra := strings.TrimSpace(strings.Join(degraded, "\n")); extra != "" {
			if content := kirocommon.GetString(user, "content"); strings.TrimSpace(content) != "" {
				user["content"] = content + "\n" + extra
			} else {
				user["content"] = extra
			}
		}
	}
}

// validateToolPairing filters the current message's tool results down to the
// ones answering a tool use that history left unanswered.
func validateToolPairing(history []map[string]any, toolResults []map[string]any) []map[string]any {
	all := map[string]bool{}
	answered := map[string]bool{}
	for _, entry := range history {
		if assistant, ok := entry["assistantResponseMessage"].(map[string]any); ok {
			if uses, ok := assistant["toolUses"].([]map[string]any); ok {
				for _, tu := range uses {
					if id := kirocommon.GetStringValue(tu, "toolUseId"); id != "" {
						all[id] = true
					}
				}
			}
		}
		if user, ok := entry["userInputMessage"].(map[string]any); ok {
			if ctx, ok := user["userInputMessageContext"].(map[string]any); ok {
				if results, ok := ctx["toolResults"].([]map[string]any); ok {
					for _, result := range results {
						if id := kirocommon.GetStringValue(result, "toolUseId"); id != "" {
							answered[id] = true
						}
					}
				}
			}
		}
	}

	unpaired := map[string]bool{}
	for id := range all {
		if !answered[id] {
			unpaired[id] = true
		}
	}

	var filtered []map[string]any
	for _, result := range toolResults {
		id := kirocommon.GetStringValue(result, "toolUseId")
		if id == "" {
			continue
		}
		switch {
		case unpaired[id]:
			delete(unpaired, id)
			filtered = append(filtered, result)
		case all[id]:
			log.Warnf("kiro: dropping duplicate tool result %s", id)
		default:
			log.Warnf("kiro: dropping tool result %s with no matching tool use", id)
		}
	}
	for id := range unpaired {
		log.Warnf("kiro: tool use %s has no tool result", id)
	}
	return filtered
}

// appendOrphanToolResultText folds the text of dropped current-message tool
// results back into the user text so the turn never goes out empty.
func appendOrphanToolResultText(text string, toolResults, validated []map[string]any) string {
	if len(toolResults) == 0 {
		return text
	}
	validIDs := map[string]bool{}
	for _, result := range validated {
		if id := kirocommon.GetStringValue(result, "toolUseId"); id != "" {
			validIDs[id] = true
		}
	}
	var degraded []string
	for _, result := range toolResults {
		id := kirocommon.GetStringValue(result, "toolUseId")
		if id == "" || validIDs[id] {
			continue
		}
		if fallback := toolResultFallbackText(result); fallback != "" {
			degraded = append(degraded, fallback)
		}
	}
	extra := strings.TrimSpace(strings.Join(degraded, "\n"))
	if extra == "" {
		return text
	}
	if strings.TrimSpace(text) != "" {
		return text + "\n" + extra
	}
	return extra
}

// convertKiroTools converts Claude tool definitions into CodeWhisperer
// toolSpecification entries. The builtin web_search tool cannot be combined
// with custom tools and is dropped when both appear.
func convertKiroTools(tools any) []map[string]any {
	list, ok := tools.([]any)
	if !ok || len(list) == 0 {
		return nil
	}

	if len(list) > 1 {
		names := make([]string, len(list))
		hasWebSearch, hasOther := false, false
		for i, t := range list {
			tool, _ := t.(map[string]any)
			names[i] = strings.ToLower(kirocommon.GetStringValue(tool, "name"))
			if names[i] == "web_search" {
				hasWebSearch = true
			} else if names[i] != "" {
				hasOther = true
			}
		}
		if hasWebSearch && hasOther {
			kept := make([]any, 0, len(list))
			for i, t := range list {
				if names[i] != "web_search" {
					kept = append(kept, t)
				}
			}
			log.Infof("kiro: dropped builtin web_search from mixed tool set, %d tools kept", len(kept))
			list = kept
		}
	}

	out := make([]map[string]any, 0, len(list))
	for _, t := range list {
		tool, _ := t.(map[string]any)
		name := kirocommon.GetStringValue(tool, "name")
		if name == "" {
			continue
		}
		desc := kirocommon.GetStringValue(tool, "description")
		if desc == "" {
			// CodeWhisperer rejects tools without a description.
			desc = "No description provided"
		}
		switch name {
		case "Write":
			if !strings.Contains(desc, kiroWriteToolDescriptionSuffix) {
				desc += "\n" + kiroWriteToolDescriptionSuffix
			}
		case "Edit":
			if !strings.Contains(desc, kiroEditToolDescriptionSuffix) {
				desc += "\n" + kiroEditToolDescriptionSuffix
			}
		}
		if r := []rune(desc); len(r) > maxToolDescriptionRunes {
			desc = string(r[:maxToolDescriptionRunes])
		}
		schema, _ := tool["input_schema"].(map[string]any)
		if schema == nil {
			schema = map[string]any{}
		}
		if schema["type"] == nil {
			schema["type"] = "object"
		}
		if _, isMap := schema["properties"].(map[string]any); !isMap {
			schema["properties"] = map[string]any{}
		}
		out = append(out, map[string]any{
			"toolSpecification": map[string]any{
				"name":        name,
				"description": desc,
				"inputSchema": map[string]any{"json": schema},
			},
		})
	}
	return out
}

func historyToolNames(history []map[string]any) []string {
	var names []string
	seen := map[string]bool{}
	for _, entry := range history {
		assistant, ok := entry["assistantResponseMessage"].(map[string]any)
		if !ok {
			continue
		}
		uses, ok := assistant["toolUses"].([]map[string]any)
		if !ok {
			continue
		}
		for _, tu := range uses {
			name := kirocommon.GetStringValue(tu, "name")
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// ensureToolDefinitions appends a permissive placeholder spec for every tool
// name history mentions that the request does not define.
func ensureToolDefinitions(tools []map[string]any, names []string) []map[string]any {
	existing := map[string]bool{}
	for _, tool := range tools {
		if spec, ok := tool["toolSpecification"].(map[string]any); ok {
			existing[strings.ToLower(kirocommon.GetStringValue(spec, "name"))] = true
		}
	}
	for _, name := range names {
		if existing[strings.ToLower(name)] {
			continue
		}
		existing[strings.ToLower(name)] = true
		tools = append(tools, placeholderToolSpec(name))
	}
	return tools
}

func placeholderToolSpec(name string) map[string]any {
	return map[string]any{
		"toolSpecification": map[string]any{
			"name":        name,
			"description": "Tool used in conversation history",
			"inputSchema": map[string]any{
				"json": map[string]any{
					"$schema":              "http://json-schema.org/draft-07/schema#",
					"type":                 "object",
					"properties":           map[string]any{},
					"required":             []string{},
					"additionalProperties": true,
				},
			},
		},
	}
}
