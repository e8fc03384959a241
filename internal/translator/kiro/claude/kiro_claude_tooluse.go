package claude

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	kirocommon "github.com/router-for-me/AntiHubAPI/internal/translator/kiro/common"
	"github.com/router-for-me/AntiHubAPI/internal/util"
)

// KiroToolUse is one completed tool invocation recovered from the Kiro event
// stream.
type KiroToolUse struct {
	ToolUseID string
	Name      string
	Input     map[string]any
}

// ToolUseState accumulates streamed input fragments for the tool call
// currently in flight.
type ToolUseState struct {
	ToolUseID   string
	Name        string
	InputBuffer strings.Builder
}

// ProcessToolUseEvent folds one toolUseEvent payload into the accumulation
// state. It returns any tool uses the event completed and the state for the
// next event. processedIDs guards against the upstream replaying a finished
// call.
func ProcessToolUseEvent(event map[string]any, state *ToolUseState, processedIDs map[string]bool) ([]KiroToolUse, *ToolUseState) {
	name := kirocommon.GetStringValue(event, "name")
	id := kirocommon.GetStringValue(event, "toolUseId")

	var completed []KiroToolUse

	// A named fragment for a different id begins the next call; whatever was
	// in flight is finished as-is.
	if state != nil && name != "" && id != "" && id != state.ToolUseID {
		if tu, ok := FinishToolUse(state, processedIDs); ok {
			completed = append(completed, tu)
		}
		state = nil
	}
	if state == nil {
		if name == "" {
			// Input fragment with no open call; nothing to attach it to.
			return completed, nil
		}
		if id == "" {
			id = generateToolUseID()
		}
		state = &ToolUseState{ToolUseID: id, Name: name}
	}

	if input, ok := event["input"]; ok {
		state.InputBuffer.WriteString(toolInputFragment(input))
	}

	if stopped, _ := event["stop"].(bool); stopped {
		if tu, ok := FinishToolUse(state, processedIDs); ok {
			completed = append(completed, tu)
		}
		return completed, nil
	}
	return completed, state
}

// FinishToolUse closes an accumulation state into a tool use, repairing the
// buffered arguments. Streams that end mid-call flush through here. The
// second return is false when the state is empty or the id already surfaced.
func FinishToolUse(state *ToolUseState, processedIDs map[string]bool) (KiroToolUse, bool) {
	if state == nil || state.Name == "" {
		return KiroToolUse{}, false
	}
	if processedIDs != nil {
		if processedIDs[state.ToolUseID] {
			return KiroToolUse{}, false
		}
		processedIDs[state.ToolUseID] = true
	}
	var input map[string]any
	_ = json.Unmarshal([]byte(RepairToolInput(state.InputBuffer.String())), &input)
	if input == nil {
		input = map[string]any{}
	}
	return KiroToolUse{ToolUseID: state.ToolUseID, Name: state.Name, Input: input}, true
}

// RepairToolInput normalizes accumulated tool argument fragments into a JSON
// object, falling back to "{}" when nothing object-like can be recovered.
func RepairToolInput(raw string) string {
	if repaired := util.RepairToolArgumentsString(raw); repaired != "" {
		return repaired
	}
	return "{}"
}

const (
	embeddedCallPrefix  = "[Called "
	embeddedCallArgsSep = " with args: "
)

// ParseEmbeddedToolCalls extracts tool calls some Kiro responses inline into
// assistant text as "[Called name with args: {...}]", returning the text with
// the markers removed plus the recovered calls. processedIDs dedupes repeated
// markers for the same call.
func ParseEmbeddedToolCalls(content string, processedIDs map[string]bool) (string, []KiroToolUse) {
	if !strings.Contains(content, embeddedCallPrefix) {
		return content, nil
	}

	var tools []KiroToolUse
	var out strings.Builder
	rest := content
	for {
		start := strings.Index(rest, embeddedCallPrefix)
		if start < 0 {
			out.WriteString(rest)
			break
		}
		name, args, length := parseEmbeddedCall(rest[start:])
		if length == 0 {
			// Not a complete marker; keep the bracket as literal text.
			out.WriteString(rest[:start+1])
			rest = rest[start+1:]
			continue
		}
		out.WriteString(rest[:start])
		rest = rest[start+length:]

		key := "embedded|" + name + "|" + args
		if processedIDs != nil {
			if processedIDs[key] {
				continue
			}
			processedIDs[key] = true
		}
		var input map[string]any
		_ = json.Unmarshal([]byte(RepairToolInput(args)), &input)
		if input == nil {
			input = map[string]any{}
		}
		tools = append(tools, KiroToolUse{ToolUseID: generateToolUseID(), Name: name, Input: input})
	}
	return strings.TrimSpace(out.String()), tools
}

// parseEmbeddedCall parses one "[Called name with args: {...}]" marker at the
// start of s, returning the consumed length (0 when s holds no full marker).
func parseEmbeddedCall(s string) (string, string, int) {
	rest := s[len(embeddedCallPrefix):]
	sep := strings.Index(rest, embeddedCallArgsSep)
	if sep < 0 {
		return "", "", 0
	}
	name := strings.TrimSpace(rest[:sep])
	if name == "" {
		return "", "", 0
	}
	argsStart := len(embeddedCallPrefix) + sep + len(embeddedCallArgsSep)
	args, consumed := balancedJSONObject(s[argsStart:])
	if consumed == 0 {
		return "", "", 0
	}
	end := argsStart + consumed
	if end >= len(s) || s[end] != ']' {
		return "", "", 0
	}
	return name, args, end + 1
}

// balancedJSONObject returns the brace-balanced object at the start of s,
// honoring strings and escapes.
func balancedJSONObject(s string) (string, int) {
	if len(s) == 0 || s[0] != '{' {
		return "", 0
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			if inString {
				escaped = true
			}
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1], i + 1
			}
		}
	}
	return "", 0
}

// DeduplicateToolUses drops repeated tool calls: fragments of one call that
// surfaced twice keep the longer argument set, and identical calls replayed
// under fresh ids collapse to the first.
func DeduplicateToolUses(toolUses []KiroToolUse) []KiroToolUse {
	if len(toolUses) <= 1 {
		return toolUses
	}

	byID := make([]KiroToolUse, 0, len(toolUses))
	idIndex := map[string]int{}
	for _, tu := range toolUses {
		idx, seen := idIndex[tu.ToolUseID]
		if !seen {
			idIndex[tu.ToolUseID] = len(byID)
			byID = append(byID, tu)
			continue
		}
		if len(toolArgsJSON(tu)) > len(toolArgsJSON(byID[idx])) {
			byID[idx] = tu
		}
	}

	out := make([]KiroToolUse, 0, len(byID))
	seen := map[string]bool{}
	for _, tu := range byID {
		key := tu.Name + "|" + toolArgsJSON(tu)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tu)
	}
	return out
}

// toolArgsJSON renders tool input canonically; map marshaling sorts keys.
func toolArgsJSON(tu KiroToolUse) string {
	b, err := json.Marshal(tu.Input)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func toolInputFragment(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case nil:
		return ""
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return fmt.Sprint(input)
}

func generateToolUseID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
