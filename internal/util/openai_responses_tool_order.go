package util

import (
	"encoding/json"
	"strings"
)

// NormalizeOpenAIResponsesToolOrder rewrites a Responses API input list so
// that every function_call_output sits directly after the run of
// function_call items it answers. Clients sometimes wedge user messages
// between a call and its output, which providers validating strict
// call/output adjacency refuse. Calls with no output anywhere later in the
// list are dropped.
func NormalizeOpenAIResponsesToolOrder(body []byte) []byte {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return body
	}
	items, ok := root["input"].([]any)
	if !ok || len(items) == 0 {
		return body
	}

	consumed := make([]bool, len(items))
	reordered := make([]any, 0, len(items))
	changed := false

	for i := 0; i < len(items); i++ {
		if consumed[i] {
			continue
		}
		if responsesItemType(items[i]) != "function_call" {
			reordered = append(reordered, items[i])
			consumed[i] = true
			continue
		}

		// Consecutive calls form one run whose outputs may answer any member.
		run := make([]any, 0, 4)
		runIDs := make([]string, 0, 4)
		wanted := make(map[string]struct{})
		next := i
		for next < len(items) {
			if consumed[next] {
				next++
				continue
			}
			if responsesItemType(items[next]) != "function_call" {
				break
			}
			id := responsesCallID(items[next])
			run = append(run, items[next])
			runIDs = append(runIDs, id)
			if id != "" {
				wanted[id] = struct{}{}
			}
			consumed[next] = true
			next++
		}

		answered := make(map[string]struct{})
		outputs := make([]any, 0, len(run))
		for k := next; k < len(items); k++ {
			if consumed[k] || responsesItemType(items[k]) != "function_call_output" {
				continue
			}
			id := responsesCallID(items[k])
			if id == "" {
				continue
			}
			if _, match := wanted[id]; !match {
				continue
			}
			outputs = append(outputs, items[k])
			consumed[k] = true
			answered[id] = struct{}{}
			changed = true
		}

		// A call whose output never arrives cannot be forwarded; Claude-backed
		// upstreams reject tool calls that lack a result.
		for idx, call := range run {
			if id := runIDs[idx]; id != "" {
				if _, found := answered[id]; !found {
					changed = true
					continue
				}
			}
			reordered = append(reordered, call)
		}
		reordered = append(reordered, outputs...)

		i = next - 1
	}

	if !changed {
		return body
	}

	root["input"] = reordered
	updated, err := json.Marshal(root)
	if err != nil {
		return body
	}
	return updated
}

// responsesItemType reads an input item's type, treating any object that
// carries a role but no explicit type as a message item.
func responsesItemType(item any) string {
	obj, ok := item.(map[string]any)
	if !ok {
		return ""
	}
	if typ, _ := obj["type"].(string); strings.TrimSpace(typ) != "" {
		return strings.TrimSpace(typ)
	}
	if role, _ := obj["role"].(string); strings.TrimSpace(role) != "" {
		return "message"
	}
	return ""
}

func responsesCallID(item any) string {
	obj, ok := item.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := obj["call_id"].(string)
	return strings.TrimSpace(id)
}
