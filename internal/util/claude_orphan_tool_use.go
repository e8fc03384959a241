package util

import (
	"encoding/json"
	"strings"
)

// RemoveOrphanClaudeToolUses drops assistant tool_use blocks whose id never
// receives a matching tool_result anywhere later in the conversation.
//
// Some upstreams reject a request whose history contains a tool call with no
// corresponding result; dropping the call keeps the request alive. Other
// content blocks in the same message are preserved in order.
func RemoveOrphanClaudeToolUses(body []byte) []byte {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return body
	}
	rawMsgs, ok := root["messages"].([]any)
	if !ok || len(rawMsgs) == 0 {
		return body
	}

	changed := false
	// Result ids seen in messages after the one being inspected.
	resultIDs := make(map[string]struct{})

	for i := len(rawMsgs) - 1; i >= 0; i-- {
		msg, ok := rawMsgs[i].(map[string]any)
		if !ok {
			continue
		}
		if claudeMessageRole(msg) == "assistant" {
			if filterClaudeToolUses(msg, resultIDs) {
				changed = true
			}
		}
		for id := range collectClaudeToolResultIDs(msg) {
			resultIDs[id] = struct{}{}
		}
	}

	if !changed {
		return body
	}

	root["messages"] = rawMsgs
	updated, err := json.Marshal(root)
	if err != nil {
		return body
	}
	return updated
}

// filterClaudeToolUses removes tool_use blocks whose id is not in matched.
// It reports whether the message content was modified.
func filterClaudeToolUses(msg map[string]any, matched map[string]struct{}) bool {
	content, ok := msg["content"].([]any)
	if !ok || len(content) == 0 {
		return false
	}
	kept := make([]any, 0, len(content))
	dropped := false
	for _, partAny := range content {
		part, okPart := partAny.(map[string]any)
		if !okPart {
			kept = append(kept, partAny)
			continue
		}
		if typ, _ := part["type"].(string); typ != "tool_use" {
			kept = append(kept, partAny)
			continue
		}
		id, _ := part["id"].(string)
		if _, found := matched[strings.TrimSpace(id)]; found {
			kept = append(kept, partAny)
			continue
		}
		dropped = true
	}
	if !dropped {
		return false
	}
	msg["content"] = kept
	return true
}

func collectClaudeToolResultIDs(msg map[string]any) map[string]struct{} {
	out := make(map[string]struct{})
	if msg == nil {
		return out
	}
	content, ok := msg["content"].([]any)
	if !ok {
		return out
	}
	for _, partAny := range content {
		part, ok := partAny.(map[string]any)
		if !ok {
			continue
		}
		if typ, _ := part["type"].(string); typ != "tool_result" {
			continue
		}
		if id, _ := part["tool_use_id"].(string); strings.TrimSpace(id) != "" {
			out[strings.TrimSpace(id)] = struct{}{}
		}
	}
	return out
}
