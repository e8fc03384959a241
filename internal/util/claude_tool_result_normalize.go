package util

import (
	"encoding/json"
	"strings"
)

// NormalizeClaudeToolResults regroups Claude Messages histories so that the
// tool_result blocks answering an assistant tool_use turn sit in the user
// message directly after that turn. Some clients interleave plain user text
// between a tool call and its result, or deliver results several messages
// late; upstreams enforcing the Messages layout reject such payloads.
// Results found further down the conversation are pulled back into a
// results-only user message while every other block keeps its position.
// Payloads that already satisfy the layout are returned unchanged.
func NormalizeClaudeToolResults(body []byte) []byte {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return body
	}
	msgs, ok := root["messages"].([]any)
	if !ok || len(msgs) == 0 {
		return body
	}

	mover := &claudeResultMover{msgs: msgs}
	for i := 0; i < len(mover.msgs); i++ {
		msg, ok := mover.msgs[i].(map[string]any)
		if !ok || claudeMessageRole(msg) != "assistant" {
			continue
		}
		ids := claudeToolCallIDs(msg)
		if len(ids) == 0 {
			continue
		}
		i = mover.regroupAfter(i, ids)
	}
	if !mover.changed {
		return body
	}

	root["messages"] = mover.msgs
	updated, err := json.Marshal(root)
	if err != nil {
		return body
	}
	return updated
}

type claudeResultMover struct {
	msgs    []any
	changed bool
}

// regroupAfter collects every tool_result matching ids into the user message
// directly after the assistant turn at index turn, creating that message when
// the history lacks one. It returns the index the caller's scan should
// continue from, accounting for any insertion it performed.
func (m *claudeResultMover) regroupAfter(turn int, ids map[string]struct{}) int {
	wasChanged := m.changed
	slot := turn + 1
	next := turn

	holder := m.resultHolderAt(slot)
	inserted := holder == nil
	if inserted {
		holder = map[string]any{"role": "user", "content": []any{}}
		m.insert(slot, holder)
		m.changed = true
		next = slot
	}

	for j := slot + 1; j < len(m.msgs); {
		later, ok := m.msgs[j].(map[string]any)
		if !ok || claudeMessageRole(later) != "user" {
			j++
			continue
		}
		moved, kept, splittable := extractMatchingResults(later, ids)
		if !splittable || len(moved) == 0 {
			j++
			continue
		}
		content, _ := holder["content"].([]any)
		holder["content"] = append(content, moved...)
		m.changed = true
		if len(kept) == 0 {
			m.remove(j)
			continue
		}
		later["content"] = kept
		m.msgs[j] = later
		j++
	}

	// An inserted holder that attracted nothing is withdrawn so a clean
	// history round-trips without modification.
	if inserted {
		if content, ok := holder["content"].([]any); ok && len(content) == 0 {
			m.remove(slot)
			m.changed = wasChanged
			next = turn
		}
	}
	return next
}

// resultHolderAt returns the message at index at when it is a user message
// consisting solely of tool_result blocks, nil otherwise.
func (m *claudeResultMover) resultHolderAt(at int) map[string]any {
	if at >= len(m.msgs) {
		return nil
	}
	msg, ok := m.msgs[at].(map[string]any)
	if !ok || claudeMessageRole(msg) != "user" {
		return nil
	}
	content, ok := msg["content"].([]any)
	if !ok || len(content) == 0 {
		return nil
	}
	for _, partAny := range content {
		part, ok := partAny.(map[string]any)
		if !ok {
			return nil
		}
		if typ, _ := part["type"].(string); typ != "tool_result" {
			return nil
		}
	}
	return msg
}

func (m *claudeResultMover) insert(at int, msg map[string]any) {
	m.msgs = append(m.msgs, nil)
	copy(m.msgs[at+1:], m.msgs[at:])
	m.msgs[at] = msg
}

func (m *claudeResultMover) remove(at int) {
	if at < 0 || at >= len(m.msgs) {
		return
	}
	m.msgs = append(m.msgs[:at], m.msgs[at+1:]...)
}

func claudeMessageRole(msg map[string]any) string {
	if msg == nil {
		return ""
	}
	role, _ := msg["role"].(string)
	return strings.TrimSpace(role)
}

func claudeToolCallIDs(msg map[string]any) map[string]struct{} {
	ids := make(map[string]struct{})
	if msg == nil {
		return ids
	}
	content, ok := msg["content"].([]any)
	if !ok {
		return ids
	}
	for _, partAny := range content {
		part, ok := partAny.(map[string]any)
		if !ok {
			continue
		}
		if typ, _ := part["type"].(string); typ != "tool_use" {
			continue
		}
		id, _ := part["id"].(string)
		if id = strings.TrimSpace(id); id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// extractMatchingResults partitions a user message's content into tool_result
// blocks answering ids and everything else. splittable is false when the
// content is not a block list, in which case the message cannot carry
// structured results and must stay intact.
func extractMatchingResults(msg map[string]any, ids map[string]struct{}) (moved, kept []any, splittable bool) {
	content, ok := msg["content"].([]any)
	if !ok {
		return nil, nil, false
	}
	for _, partAny := range content {
		part, okPart := partAny.(map[string]any)
		if !okPart {
			kept = append(kept, partAny)
			continue
		}
		if typ, _ := part["type"].(string); typ != "tool_result" {
			kept = append(kept, partAny)
			continue
		}
		id, _ := part["tool_use_id"].(string)
		if _, match := ids[strings.TrimSpace(id)]; match {
			moved = append(moved, partAny)
			continue
		}
		kept = append(kept, partAny)
	}
	return moved, kept, true
}
