package claude

import (
	"strings"
	"testing"
)

func TestProcessToolUseEvent_FragmentsThenStop(t *testing.T) {
	processed := map[string]bool{}

	completed, state := ProcessToolUseEvent(map[string]any{
		"name": "read_file", "toolUseId": "t1", "input": `{"pa`,
	}, nil, processed)
	if len(completed) != 0 {
		t.Fatalf("completed after first fragment = %v, want none", completed)
	}
	if state == nil || state.ToolUseID != "t1" || state.Name != "read_file" {
		t.Fatalf("state = %+v, want open call t1/read_file", state)
	}

	completed, state = ProcessToolUseEvent(map[string]any{
		"toolUseId": "t1", "input": `th":"a.txt"}`,
	}, state, processed)
	if len(completed) != 0 || state == nil {
		t.Fatalf("after second fragment: completed = %v, state = %+v", completed, state)
	}

	completed, state = ProcessToolUseEvent(map[string]any{
		"toolUseId": "t1", "stop": true,
	}, state, processed)
	if state != nil {
		t.Errorf("state after stop = %+v, want nil", state)
	}
	if len(completed) != 1 {
		t.Fatalf("completed = %v, want one call", completed)
	}
	tu := completed[0]
	if got, want := tu.ToolUseID, "t1"; got != want {
		t.Errorf("ToolUseID = %q, want %q", got, want)
	}
	if got, want := tu.Name, "read_file"; got != want {
		t.Errorf("Name = %q, want %q", got, want)
	}
	if got, want := tu.Input["path"], "a.txt"; got != want {
		t.Errorf("Input[path] = %v, want %v", got, want)
	}

	// A replay of the finished call is swallowed by processedIDs.
	completed, state = ProcessToolUseEvent(map[string]any{
		"name": "read_file", "toolUseId": "t1", "stop": true,
	}, nil, processed)
	if len(completed) != 0 || state != nil {
		t.Errorf("replay: completed = %v, state = %+v, want nothing", completed, state)
	}
}

func TestProcessToolUseEvent_ObjectInput(t *testing.T) {
	completed, state := ProcessToolUseEvent(map[string]any{
		"name": "write", "toolUseId": "t2",
		"input": map[string]any{"a": float64(1)},
		"stop":  true,
	}, nil, map[string]bool{})
	if state != nil {
		t.Errorf("state = %+v, want nil", state)
	}
	if len(completed) != 1 {
		t.Fatalf("completed = %v, want one call", completed)
	}
	if got, want := completed[0].Input["a"], float64(1); got != want {
		t.Errorf("Input[a] = %v, want %v", got, want)
	}
}

func TestProcessToolUseEvent_NewNamedToolFinishesPrevious(t *testing.T) {
	processed := map[string]bool{}
	_, state := ProcessToolUseEvent(map[string]any{
		"name": "alpha", "toolUseId": "a1", "input": `{"x":1}`,
	}, nil, processed)

	completed, state := ProcessToolUseEvent(map[string]any{
		"name": "beta", "toolUseId": "b1", "input": `{"y":2}`, "stop": true,
	}, state, processed)
	if state != nil {
		t.Errorf("state = %+v, want nil", state)
	}
	if len(completed) != 2 {
		t.Fatalf("completed = %v, want two calls", completed)
	}
	if got, want := completed[0].Name, "alpha"; got != want {
		t.Errorf("completed[0].Name = %q, want %q", got, want)
	}
	if got, want := completed[0].Input["x"], float64(1); got != want {
		t.Errorf("completed[0].Input[x] = %v, want %v", got, want)
	}
	if got, want := completed[1].Name, "beta"; got != want {
		t.Errorf("completed[1].Name = %q, want %q", got, want)
	}
}

func TestProcessToolUseEvent_MissingIDGenerated(t *testing.T) {
	completed, _ := ProcessToolUseEvent(map[string]any{
		"name": "solo", "input": `{}`, "stop": true,
	}, nil, map[string]bool{})
	if len(completed) != 1 {
		t.Fatalf("completed = %v, want one call", completed)
	}
	id := completed[0].ToolUseID
	if !strings.HasPrefix(id, "call_") || len(id) != len("call_")+24 {
		t.Errorf("generated id = %q, want call_ prefix with 24 hex chars", id)
	}
}

func TestProcessToolUseEvent_FragmentWithoutOpenCall(t *testing.T) {
	completed, state := ProcessToolUseEvent(map[string]any{"input": `{"x":1}`}, nil, map[string]bool{})
	if len(completed) != 0 || state != nil {
		t.Errorf("completed = %v, state = %+v, want nothing", completed, state)
	}
}

func TestFinishToolUse(t *testing.T) {
	t.Run("truncated arguments repaired to empty object", func(t *testing.T) {
		state := &ToolUseState{ToolUseID: "t3", Name: "search"}
		state.InputBuffer.WriteString(`{"query":"go`)
		tu, ok := FinishToolUse(state, nil)
		if !ok {
			t.Fatalf("FinishToolUse ok = false, want true")
		}
		if len(tu.Input) != 0 {
			t.Errorf("Input = %v, want empty map", tu.Input)
		}
	})

	t.Run("valid arguments parsed", func(t *testing.T) {
		state := &ToolUseState{ToolUseID: "t4", Name: "search"}
		state.InputBuffer.WriteString(`{"q":"x"}`)
		tu, ok := FinishToolUse(state, nil)
		if !ok {
			t.Fatalf("FinishToolUse ok = false, want true")
		}
		if got, want := tu.Input["q"], "x"; got != want {
			t.Errorf("Input[q] = %v, want %v", got, want)
		}
	})

	t.Run("nil and unnamed states rejected", func(t *testing.T) {
		if _, ok := FinishToolUse(nil, nil); ok {
			t.Errorf("FinishToolUse(nil) ok = true, want false")
		}
		if _, ok := FinishToolUse(&ToolUseState{ToolUseID: "t5"}, nil); ok {
			t.Errorf("FinishToolUse(unnamed) ok = true, want false")
		}
	})
}

func TestRepairToolInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"valid object", `{"a":1}`, `{"a":1}`},
		{"double encoded", `"{\"a\":1}"`, `{"a":1}`},
		{"object in prose", `Sure, calling with {"a":1} now`, `{"a":1}`},
		{"empty", ``, `{}`},
		{"garbage", `not json at all`, `{}`},
		{"array", `[1,2]`, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RepairToolInput(tt.raw); got != tt.want {
				t.Errorf("RepairToolInput(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseEmbeddedToolCalls(t *testing.T) {
	text, tools := ParseEmbeddedToolCalls(
		"Let me check.\n[Called get_weather with args: {\"city\":\"SF\"}]\nDone.", map[string]bool{})
	if got, want := text, "Let me check.\n\nDone."; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	if len(tools) != 1 {
		t.Fatalf("tools = %v, want one call", tools)
	}
	if got, want := tools[0].Name, "get_weather"; got != want {
		t.Errorf("Name = %q, want %q", got, want)
	}
	if got, want := tools[0].Input["city"], "SF"; got != want {
		t.Errorf("Input[city] = %v, want %v", got, want)
	}
	if !strings.HasPrefix(tools[0].ToolUseID, "call_") {
		t.Errorf("ToolUseID = %q, want call_ prefix", tools[0].ToolUseID)
	}
}

func TestParseEmbeddedToolCalls_DuplicateMarkers(t *testing.T) {
	text, tools := ParseEmbeddedToolCalls(
		`[Called f with args: {"a":1}] and again [Called f with args: {"a":1}]`, map[string]bool{})
	if got, want := text, "and again"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	if len(tools) != 1 {
		t.Errorf("tools = %v, want duplicates collapsed to one", tools)
	}
}

func TestParseEmbeddedToolCalls_LiteralBrackets(t *testing.T) {
	for _, content := range []string{
		"plain text without markers",
		"[Called something]",
		"[Called x with args: notjson]",
	} {
		text, tools := ParseEmbeddedToolCalls(content, map[string]bool{})
		if text != content {
			t.Errorf("text = %q, want %q unchanged", text, content)
		}
		if len(tools) != 0 {
			t.Errorf("tools = %v, want none for %q", tools, content)
		}
	}
}

func TestParseEmbeddedToolCalls_BracesInsideStrings(t *testing.T) {
	_, tools := ParseEmbeddedToolCalls(
		`[Called t with args: {"s":"a]b{c}"}]`, map[string]bool{})
	if len(tools) != 1 {
		t.Fatalf("tools = %v, want one call", tools)
	}
	if got, want := tools[0].Input["s"], "a]b{c}"; got != want {
		t.Errorf("Input[s] = %v, want %v", got, want)
	}
}

func TestDeduplicateToolUses(t *testing.T) {
	in := []KiroToolUse{
		{ToolUseID: "a", Name: "f", Input: map[string]any{"x": float64(1)}},
		{ToolUseID: "a", Name: "f", Input: map[string]any{"x": float64(1), "y": float64(2)}},
		{ToolUseID: "b", Name: "f", Input: map[string]any{"x": float64(1), "y": float64(2)}},
		{ToolUseID: "c", Name: "g", Input: map[string]any{}},
	}
	out := DeduplicateToolUses(in)
	if len(out) != 2 {
		t.Fatalf("DeduplicateToolUses = %v, want two calls", out)
	}
	if got, want := out[0].ToolUseID, "a"; got != want {
		t.Errorf("out[0].ToolUseID = %q, want %q", got, want)
	}
	if _, ok := out[0].Input["y"]; !ok {
		t.Errorf("out[0].Input = %v, want the longer argument set kept", out[0].Input)
	}
	if got, want := out[1].ToolUseID, "c"; got != want {
		t.Errorf("out[1].ToolUseID = %q, want %q", got, want)
	}
}

func TestDeduplicateToolUses_ShortSlices(t *testing.T) {
	if out := DeduplicateToolUses(nil); len(out) != 0 {
		t.Errorf("DeduplicateToolUses(nil) = %v, want empty", out)
	}
	one := []KiroToolUse{{ToolUseID: "a", Name: "f", Input: map[string]any{}}}
	if out := DeduplicateToolUses(one); len(out) != 1 {
		t.Errorf("DeduplicateToolUses(one) = %v, want unchanged", out)
	}
}
