package claude

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

func buildPayload(t *testing.T, rawJSON, profileArn, origin string) (gjson.Result, bool) {
	t.Helper()
	out, thinkingEnabled, err := BuildKiroPayload([]byte(rawJSON), profileArn, origin)
	if err != nil {
		t.Fatalf("BuildKiroPayload: %v", err)
	}
	return gjson.ParseBytes(out), thinkingEnabled
}

func TestBuildKiroPayload_Basic(t *testing.T) {
	payload, thinkingEnabled := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"system": "Be helpful.",
		"messages": [
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "hello"},
			{"role": "user", "content": "how are you?"}
		]
	}`, "", "")

	if thinkingEnabled {
		t.Errorf("thinkingEnabled = true, want false")
	}
	if payload.Get("profileArn").Exists() {
		t.Errorf("profileArn present, want absent")
	}

	state := payload.Get("conversationState")
	if got, want := state.Get("chatTriggerType").String(), "MANUAL"; got != want {
		t.Errorf("chatTriggerType = %q, want %q", got, want)
	}
	if got, want := state.Get("agentTaskType").String(), "vibe"; got != want {
		t.Errorf("agentTaskType = %q, want %q", got, want)
	}
	if _, err := uuid.Parse(state.Get("conversationId").String()); err != nil {
		t.Errorf("conversationId = %q, want a uuid", state.Get("conversationId").String())
	}
	if _, err := uuid.Parse(state.Get("agentContinuationId").String()); err != nil {
		t.Errorf("agentContinuationId = %q, want a uuid", state.Get("agentContinuationId").String())
	}

	current := state.Get("currentMessage.userInputMessage")
	if got, want := current.Get("content").String(), "how are you?"; got != want {
		t.Errorf("current content = %q, want %q", got, want)
	}
	if got, want := current.Get("modelId").String(), "claude-sonnet-4.5"; got != want {
		t.Errorf("modelId = %q, want %q", got, want)
	}
	if got, want := current.Get("origin").String(), "AI_EDITOR"; got != want {
		t.Errorf("origin = %q, want %q", got, want)
	}
	if !current.Get("images").IsArray() || current.Get("images.#").Int() != 0 {
		t.Errorf("images = %s, want empty array", current.Get("images").Raw)
	}

	history := state.Get("history")
	if got, want := history.Get("#").Int(), int64(4); got != want {
		t.Fatalf("history length = %d, want %d: %s", got, want, history.Raw)
	}
	if got, want := history.Get("0.userInputMessage.content").String(), "Be helpful.\n"+kiroSystemChunkedPolicy; got != want {
		t.Errorf("history[0] content = %q, want %q", got, want)
	}
	if got, want := history.Get("1.assistantResponseMessage.content").String(), "I will follow these instructions."; got != want {
		t.Errorf("history[1] content = %q, want %q", got, want)
	}
	if got, want := history.Get("2.userInputMessage.content").String(), "hi"; got != want {
		t.Errorf("history[2] content = %q, want %q", got, want)
	}
	if got, want := history.Get("3.assistantResponseMessage.content").String(), "hello"; got != want {
		t.Errorf("history[3] content = %q, want %q", got, want)
	}
}

func TestBuildKiroPayload_ProfileArnAndOrigin(t *testing.T) {
	arn := "arn:aws:codewhisperer:us-east-1:123456789012:profile/test"
	payload, _ := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"system": "s",
		"messages": [{"role": "user", "content": "ping"}]
	}`, arn, "CLI")

	if got := payload.Get("profileArn").String(); got != arn {
		t.Errorf("profileArn = %q, want %q", got, arn)
	}
	if got, want := payload.Get("conversationState.currentMessage.userInputMessage.origin").String(), "CLI"; got != want {
		t.Errorf("current origin = %q, want %q", got, want)
	}
	if got, want := payload.Get("conversationState.history.0.userInputMessage.origin").String(), "CLI"; got != want {
		t.Errorf("history origin = %q, want %q", got, want)
	}
}

func TestBuildKiroPayload_ThinkingHint(t *testing.T) {
	t.Run("injected before system", func(t *testing.T) {
		payload, thinkingEnabled := buildPayload(t, `{
			"model": "claude-sonnet-4-5-20250929",
			"system": "Be brief.",
			"thinking": {"type": "enabled", "budget_tokens": 2048},
			"messages": [{"role": "user", "content": "hi"}]
		}`, "", "")

		if !thinkingEnabled {
			t.Errorf("thinkingEnabled = false, want true")
		}
		want := "<thinking_mode>enabled</thinking_mode><max_thinking_length>2048</max_thinking_length>\n\nBe brief.\n" + kiroSystemChunkedPolicy
		if got := payload.Get("conversationState.history.0.userInputMessage.content").String(); got != want {
			t.Errorf("system content = %q, want %q", got, want)
		}
	})

	t.Run("hint alone creates the system pair", func(t *testing.T) {
		payload, thinkingEnabled := buildPayload(t, `{
			"model": "claude-sonnet-4-5-20250929",
			"thinking": {"type": "enabled"},
			"messages": [{"role": "user", "content": "hi"}]
		}`, "", "")

		if !thinkingEnabled {
			t.Errorf("thinkingEnabled = false, want true")
		}
		history := payload.Get("conversationState.history")
		if got, want := history.Get("#").Int(), int64(2); got != want {
			t.Fatalf("history length = %d, want %d", got, want)
		}
		want := "<thinking_mode>enabled</thinking_mode><max_thinking_length>20000</max_thinking_length>\n" + kiroSystemChunkedPolicy
		if got := history.Get("0.userInputMessage.content").String(); got != want {
			t.Errorf("system content = %q, want %q", got, want)
		}
		if got, want := history.Get("1.assistantResponseMessage.content").String(), "I will follow these instructions."; got != want {
			t.Errorf("ack content = %q, want %q", got, want)
		}
	})

	t.Run("system with its own marker skips reinjection", func(t *testing.T) {
		system := "<thinking_mode>enabled</thinking_mode><max_thinking_length>512</max_thinking_length>\nStay terse."
		raw, err := json.Marshal(map[string]any{
			"model":    "claude-sonnet-4-5-20250929",
			"system":   system,
			"thinking": map[string]any{"type": "enabled", "budget_tokens": 2048},
			"messages": []any{map[string]any{"role": "user", "content": "hi"}},
		})
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		payload, thinkingEnabled := buildPayload(t, string(raw), "", "")

		if !thinkingEnabled {
			t.Errorf("thinkingEnabled = false, want true")
		}
		want := system + "\n" + kiroSystemChunkedPolicy
		if got := payload.Get("conversationState.history.0.userInputMessage.content").String(); got != want {
			t.Errorf("system content = %q, want %q", got, want)
		}
	})
}

func TestBuildKiroPayload_SystemBlocks(t *testing.T) {
	payload, _ := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"system": [{"type": "text", "text": "A"}, {"type": "text", "text": "B"}],
		"messages": [{"role": "user", "content": "hi"}]
	}`, "", "")

	if got, want := payload.Get("conversationState.history.0.userInputMessage.content").String(), "A\nB\n"+kiroSystemChunkedPolicy; got != want {
		t.Errorf("system content = %q, want %q", got, want)
	}
}

func TestBuildKiroPayload_ConversationIDFromSession(t *testing.T) {
	sessionID := "0b4445e1-f5be-49e1-87ce-62bbc28ad705"
	payload, _ := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"metadata": {"user_id": "user_abc_account__session_`+sessionID+`"},
		"messages": [{"role": "user", "content": "hi"}]
	}`, "", "")

	if got := payload.Get("conversationState.conversationId").String(); got != sessionID {
		t.Errorf("conversationId = %q, want %q", got, sessionID)
	}

	payload, _ = buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"metadata": {"user_id": "session_not-a-uuid"},
		"messages": [{"role": "user", "content": "hi"}]
	}`, "", "")

	got := payload.Get("conversationState.conversationId").String()
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("conversationId = %q, want a fresh uuid", got)
	}
	if strings.Contains(got, "not-a-uuid") {
		t.Errorf("conversationId = %q, want the malformed session id discarded", got)
	}
}

func TestBuildKiroPayload_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty messages", `{"model": "claude-sonnet-4-5-20250929", "messages": []}`},
		{"missing model", `{"messages": [{"role": "user", "content": "hi"}]}`},
		{"unknown model", `{"model": "gpt-4o", "messages": [{"role": "user", "content": "hi"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := BuildKiroPayload([]byte(tt.body), "", ""); err == nil {
				t.Errorf("BuildKiroPayload(%s) error = nil, want error", tt.body)
			}
		})
	}
}

func TestMapKiroModel(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"claude-sonnet-4-5-20250929", "claude-sonnet-4.5"},
		{"claude-sonnet-4-20250514", "claude-sonnet-4"},
		{"claude-opus-4-5-20251101", "claude-opus-4.5"},
		{"claude-opus-4-6", "claude-opus-4.6"},
		{"claude-opus-4.6", "claude-opus-4.6"},
		{"claude-opus-4-6-20260205", "claude-opus-4.6"},
		{"claude-haiku-4-5-20251001", "claude-haiku-4.5"},
		{"claude-sonnet-9-20270101", "claude-sonnet-4.5"},
		{"custom-opus-4.5-beta", "claude-opus-4.5"},
		{"claude-opus-5", "claude-opus-4.6"},
		{"anthropic.claude-haiku-latest", "claude-haiku-4.5"},
	}
	for _, tt := range tests {
		got, err := mapKiroModel(tt.model)
		if err != nil {
			t.Errorf("mapKiroModel(%q) error = %v", tt.model, err)
			continue
		}
		if got != tt.want {
			t.Errorf("mapKiroModel(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}

	for _, model := range []string{"", "   ", "gpt-4o", "gemini-2.5-pro"} {
		if _, err := mapKiroModel(model); err == nil {
			t.Errorf("mapKiroModel(%q) error = nil, want error", model)
		}
	}
}

func TestBuildKiroPayload_ToolFlow(t *testing.T) {
	payload, _ := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"tools": [{"name": "get_weather", "description": "", "input_schema": {"type": "object", "properties": {"city": {"type": "string"}}}}],
		"messages": [
			{"role": "user", "content": "check the weather"},
			{"role": "assistant", "content": [
				{"type": "text", "text": "Checking."},
				{"type": "tool_use", "id": "tu_1", "name": "get_weather", "input": {"city": "SF"}},
				{"type": "tool_use", "id": "tu_2", "name": "get_time", "input": {}}
			]},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "tu_1", "content": "sunny"},
				{"type": "tool_result", "tool_use_id": "tu_2", "is_error": true, "content": [{"type": "text", "text": "boom"}]}
			]}
		]
	}`, "", "")

	history := payload.Get("conversationState.history")
	if got, want := history.Get("#").Int(), int64(2); got != want {
		t.Fatalf("history length = %d, want %d", got, want)
	}
	assistant := history.Get("1.assistantResponseMessage")
	if got, want := assistant.Get("content").String(), "Checking."; got != want {
		t.Errorf("assistant content = %q, want %q", got, want)
	}
	if got, want := assistant.Get("toolUses.#").Int(), int64(2); got != want {
		t.Fatalf("toolUses length = %d, want %d", got, want)
	}
	if got, want := assistant.Get("toolUses.0.toolUseId").String(), "tu_1"; got != want {
		t.Errorf("toolUses[0] id = %q, want %q", got, want)
	}
	if got, want := assistant.Get("toolUses.0.input.city").String(), "SF"; got != want {
		t.Errorf("toolUses[0] input.city = %q, want %q", got, want)
	}

	ctx := payload.Get("conversationState.currentMessage.userInputMessage.userInputMessageContext")
	results := ctx.Get("toolResults")
	if got, want := results.Get("#").Int(), int64(2); got != want {
		t.Fatalf("toolResults length = %d, want %d: %s", got, want, results.Raw)
	}
	if got, want := results.Get("0.toolUseId").String(), "tu_1"; got != want {
		t.Errorf("toolResults[0] id = %q, want %q", got, want)
	}
	if got, want := results.Get("0.status").String(), "success"; got != want {
		t.Errorf("toolResults[0] status = %q, want %q", got, want)
	}
	if results.Get("0.isError").Bool() {
		t.Errorf("toolResults[0] isError = true, want false")
	}
	if got, want := results.Get("0.content.0.text").String(), "sunny"; got != want {
		t.Errorf("toolResults[0] text = %q, want %q", got, want)
	}
	if got, want := results.Get("1.status").String(), "error"; got != want {
		t.Errorf("toolResults[1] status = %q, want %q", got, want)
	}
	if !results.Get("1.isError").Bool() {
		t.Errorf("toolResults[1] isError = false, want true")
	}
	if got, want := results.Get("1.content.0.text").String(), "boom"; got != want {
		t.Errorf("toolResults[1] text = %q, want %q", got, want)
	}

	tools := ctx.Get("tools")
	if got, want := tools.Get("#").Int(), int64(2); got != want {
		t.Fatalf("tools length = %d, want %d: %s", got, want, tools.Raw)
	}
	weather := tools.Get("0.toolSpecification")
	if got, want := weather.Get("name").String(), "get_weather"; got != want {
		t.Errorf("tools[0] name = %q, want %q", got, want)
	}
	if got, want := weather.Get("description").String(), "No description provided"; got != want {
		t.Errorf("tools[0] description = %q, want %q", got, want)
	}
	if got, want := weather.Get("inputSchema.json.type").String(), "object"; got != want {
		t.Errorf("tools[0] schema type = %q, want %q", got, want)
	}
	placeholder := tools.Get("1.toolSpecification")
	if got, want := placeholder.Get("name").String(), "get_time"; got != want {
		t.Errorf("tools[1] name = %q, want %q", got, want)
	}
	if got, want := placeholder.Get("description").String(), "Tool used in conversation history"; got != want {
		t.Errorf("tools[1] description = %q, want %q", got, want)
	}
	if !placeholder.Get("inputSchema.json.additionalProperties").Bool() {
		t.Errorf("tools[1] additionalProperties = false, want true")
	}

	if got, want := payload.Get("conversationState.currentMessage.userInputMessage.content").String(), ""; got != want {
		t.Errorf("current content = %q, want %q", got, want)
	}
}

func TestBuildKiroPayload_DuplicateToolResultDegrades(t *testing.T) {
	payload, _ := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"messages": [
			{"role": "user", "content": "run it"},
			{"role": "assistant", "content": [{"type": "tool_use", "id": "tu_1", "name": "run", "input": {}}]},
			{"role": "user", "content": [{"type": "tool_result", "tool_use_id": "tu_1", "content": "done"}]},
			{"role": "assistant", "content": "It finished."},
			{"role": "user", "content": [
				{"type": "text", "text": "thanks"},
				{"type": "tool_result", "tool_use_id": "tu_1", "content": "done again"}
			]}
		]
	}`, "", "")

	history := payload.Get("conversationState.history")
	if got, want := history.Get("2.userInputMessage.userInputMessageContext.toolResults.0.toolUseId").String(), "tu_1"; got != want {
		t.Errorf("history tool result id = %q, want %q", got, want)
	}

	current := payload.Get("conversationState.currentMessage.userInputMessage")
	if current.Get("userInputMessageContext.toolResults").Exists() {
		t.Errorf("current toolResults = %s, want dropped", current.Get("userInputMessageContext.toolResults").Raw)
	}
	if got, want := current.Get("content").String(), "thanks\ndone again"; got != want {
		t.Errorf("current content = %q, want %q", got, want)
	}

	tools := current.Get("userInputMessageContext.tools")
	if got, want := tools.Get("#").Int(), int64(1); got != want {
		t.Fatalf("tools length = %d, want %d: %s", got, want, tools.Raw)
	}
	if got, want := tools.Get("0.toolSpecification.name").String(), "run"; got != want {
		t.Errorf("placeholder tool name = %q, want %q", got, want)
	}
}

func TestBuildKiroPayload_HistoryToolResultSanitized(t *testing.T) {
	payload, _ := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"messages": [
			{"role": "user", "content": "go"},
			{"role": "assistant", "content": [{"type": "tool_use", "id": "tu_1", "name": "search", "input": {"q": "x"}}]},
			{"role": "user", "content": [{"type": "tool_result", "tool_use_id": "tu_1", "content": "r1"}]},
			{"role": "assistant", "content": "ok"},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "tu_1", "content": "r2"},
				{"type": "tool_result", "tool_use_id": "tu_9", "content": "zz"}
			]},
			{"role": "user", "content": "final"}
		]
	}`, "", "")

	history := payload.Get("conversationState.history")
	if got, want := history.Get("#").Int(), int64(6); got != want {
		t.Fatalf("history length = %d, want %d: %s", got, want, history.Raw)
	}
	kept := history.Get("2.userInputMessage.userInputMessageContext.toolResults")
	if got, want := kept.Get("#").Int(), int64(1); got != want {
		t.Fatalf("kept toolResults length = %d, want %d", got, want)
	}

	degraded := history.Get("4.userInputMessage")
	if degraded.Get("userInputMessageContext.toolResults").Exists() {
		t.Errorf("degraded turn toolResults = %s, want dropped", degraded.Get("userInputMessageContext.toolResults").Raw)
	}
	if got, want := degraded.Get("content").String(), "r2\nzz"; got != want {
		t.Errorf("degraded turn content = %q, want %q", got, want)
	}
	if got, want := history.Get("5.assistantResponseMessage.content").String(), "OK"; got != want {
		t.Errorf("closing turn content = %q, want %q", got, want)
	}
}

func TestBuildKiroPayload_ConsecutiveUserTurnsMerged(t *testing.T) {
	payload, _ := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"messages": [
			{"role": "user", "content": "a"},
			{"role": "user", "content": "b"},
			{"role": "assistant", "content": "ok"},
			{"role": "user", "content": "final"}
		]
	}`, "", "")

	history := payload.Get("conversationState.history")
	if got, want := history.Get("#").Int(), int64(2); got != want {
		t.Fatalf("history length = %d, want %d: %s", got, want, history.Raw)
	}
	if got, want := history.Get("0.userInputMessage.content").String(), "a\nb"; got != want {
		t.Errorf("merged content = %q, want %q", got, want)
	}
	if got, want := history.Get("1.assistantResponseMessage.content").String(), "ok"; got != want {
		t.Errorf("history[1] content = %q, want %q", got, want)
	}
	if got, want := payload.Get("conversationState.currentMessage.userInputMessage.content").String(), "final"; got != want {
		t.Errorf("current content = %q, want %q", got, want)
	}
}

func TestBuildKiroPayload_TrailingUserTurnsAcknowledged(t *testing.T) {
	payload, _ := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"messages": [
			{"role": "user", "content": "a"},
			{"role": "assistant", "content": "ok"},
			{"role": "user", "content": "tail1"},
			{"role": "user", "content": "tail2"},
			{"role": "user", "content": "final"}
		]
	}`, "", "")

	history := payload.Get("conversationState.history")
	if got, want := history.Get("#").Int(), int64(4); got != want {
		t.Fatalf("history length = %d, want %d: %s", got, want, history.Raw)
	}
	if got, want := history.Get("2.userInputMessage.content").String(), "tail1\ntail2"; got != want {
		t.Errorf("merged tail content = %q, want %q", got, want)
	}
	if got, want := history.Get("3.assistantResponseMessage.content").String(), "OK"; got != want {
		t.Errorf("closing turn content = %q, want %q", got, want)
	}
}

func TestBuildKiroPayload_OrphanToolUseRemoved(t *testing.T) {
	payload, _ := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"messages": [
			{"role": "user", "content": "go"},
			{"role": "assistant", "content": [
				{"type": "text", "text": "let me check"},
				{"type": "tool_use", "id": "tu_9", "name": "probe", "input": {}}
			]},
			{"role": "user", "content": "continue"}
		]
	}`, "", "")

	assistant := payload.Get("conversationState.history.1.assistantResponseMessage")
	if got, want := assistant.Get("content").String(), "let me check"; got != want {
		t.Errorf("assistant content = %q, want %q", got, want)
	}
	if assistant.Get("toolUses").Exists() {
		t.Errorf("toolUses = %s, want orphan call removed", assistant.Get("toolUses").Raw)
	}
	if payload.Get("conversationState.currentMessage.userInputMessage.userInputMessageContext.tools").Exists() {
		t.Errorf("tools present, want none after orphan removal")
	}
}

func TestBuildKiroPayload_BlankToolUseIDPatched(t *testing.T) {
	payload, _ := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"messages": [
			{"role": "user", "content": "go"},
			{"role": "assistant", "content": [
				{"type": "tool_use", "id": "tool-1", "name": "Read", "input": {}},
				{"type": "tool_use", "id": "", "name": "Write", "input": {}}
			]},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "tool-1", "content": "data"},
				{"type": "tool_result", "tool_use_id": "", "content": "written"}
			]}
		]
	}`, "", "")

	uses := payload.Get("conversationState.history.1.assistantResponseMessage.toolUses")
	if got, want := uses.Get("#").Int(), int64(2); got != want {
		t.Fatalf("toolUses length = %d, want %d: %s", got, want, uses.Raw)
	}
	if got, want := uses.Get("0.toolUseId").String(), "tool-1"; got != want {
		t.Errorf("toolUses[0] id = %q, want %q", got, want)
	}
	generated := uses.Get("1.toolUseId").String()
	if !strings.HasPrefix(generated, "call_") {
		t.Errorf("toolUses[1] id = %q, want a generated call_ id", generated)
	}

	results := payload.Get("conversationState.currentMessage.userInputMessage.userInputMessageContext.toolResults")
	if got, want := results.Get("#").Int(), int64(2); got != want {
		t.Fatalf("toolResults length = %d, want %d: %s", got, want, results.Raw)
	}
	if got, want := results.Get("0.toolUseId").String(), "tool-1"; got != want {
		t.Errorf("toolResults[0] id = %q, want %q", got, want)
	}
	if got := results.Get("1.toolUseId").String(); got != generated {
		t.Errorf("toolResults[1] id = %q, want the patched id %q", got, generated)
	}
}

func TestBuildKiroPayload_AssistantHistoryShapes(t *testing.T) {
	t.Run("thinking block rewrapped", func(t *testing.T) {
		payload, _ := buildPayload(t, `{
			"model": "claude-sonnet-4-5-20250929",
			"messages": [
				{"role": "user", "content": "q"},
				{"role": "assistant", "content": [
					{"type": "thinking", "thinking": "deep plan"},
					{"type": "text", "text": "Answer."}
				]},
				{"role": "user", "content": "next"}
			]
		}`, "", "")

		want := "<thinking>deep plan</thinking>\n\nAnswer."
		if got := payload.Get("conversationState.history.1.assistantResponseMessage.content").String(); got != want {
			t.Errorf("assistant content = %q, want %q", got, want)
		}
	})

	t.Run("tool use only gets blank content", func(t *testing.T) {
		payload, _ := buildPayload(t, `{
			"model": "claude-sonnet-4-5-20250929",
			"messages": [
				{"role": "user", "content": "q"},
				{"role": "assistant", "content": [{"type": "tool_use", "id": "tu_1", "name": "probe", "input": {"a": 1}}]},
				{"role": "user", "content": [{"type": "tool_result", "tool_use_id": "tu_1", "content": "out"}]}
			]
		}`, "", "")

		assistant := payload.Get("conversationState.history.1.assistantResponseMessage")
		if got, want := assistant.Get("content").String(), " "; got != want {
			t.Errorf("assistant content = %q, want %q", got, want)
		}
		if got, want := assistant.Get("toolUses.0.input.a").Int(), int64(1); got != want {
			t.Errorf("toolUses[0] input.a = %d, want %d", got, want)
		}
		results := payload.Get("conversationState.currentMessage.userInputMessage.userInputMessageContext.toolResults")
		if got, want := results.Get("#").Int(), int64(1); got != want {
			t.Fatalf("toolResults length = %d, want %d", got, want)
		}
	})
}

func TestBuildKiroPayload_EmptyCurrentFallbacks(t *testing.T) {
	payload, _ := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"messages": [{"role": "user", "content": ""}]
	}`, "", "")
	if got, want := payload.Get("conversationState.currentMessage.userInputMessage.content").String(), "OK"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}

	payload, _ = buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"tools": [{"name": "t1", "description": "d", "input_schema": {"type": "object", "properties": {}}}],
		"messages": [{"role": "user", "content": ""}]
	}`, "", "")
	if got, want := payload.Get("conversationState.currentMessage.userInputMessage.content").String(), "Execute the tool task"; got != want {
		t.Errorf("content with tools = %q, want %q", got, want)
	}
}

func TestBuildKiroPayload_Images(t *testing.T) {
	payload, _ := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"messages": [{"role": "user", "content": [
			{"type": "text", "text": "see"},
			{"type": "image", "source": {"type": "base64", "media_type": "image/png", "data": "aGVsbG8="}},
			{"type": "image", "source": {"type": "url", "url": "https://example.com/x.png"}},
			{"type": "image", "source": {"type": "base64", "media_type": "image/tiff", "data": "Zm9v"}}
		]}]
	}`, "", "")

	current := payload.Get("conversationState.currentMessage.userInputMessage")
	if got, want := current.Get("content").String(), "see"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	images := current.Get("images")
	if got, want := images.Get("#").Int(), int64(1); got != want {
		t.Fatalf("images length = %d, want %d: %s", got, want, images.Raw)
	}
	if got, want := images.Get("0.format").String(), "png"; got != want {
		t.Errorf("image format = %q, want %q", got, want)
	}
	if got, want := images.Get("0.source.bytes").String(), "aGVsbG8="; got != want {
		t.Errorf("image bytes = %q, want %q", got, want)
	}
}

func TestBuildKiroPayload_WebSearchMixedDropped(t *testing.T) {
	payload, _ := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"tools": [
			{"name": "web_search", "description": "builtin"},
			{"name": "lookup", "description": "d", "input_schema": {"type": "object", "properties": {}}}
		],
		"messages": [{"role": "user", "content": "hi"}]
	}`, "", "")

	tools := payload.Get("conversationState.currentMessage.userInputMessage.userInputMessageContext.tools")
	if got, want := tools.Get("#").Int(), int64(1); got != want {
		t.Fatalf("tools length = %d, want %d: %s", got, want, tools.Raw)
	}
	if got, want := tools.Get("0.toolSpecification.name").String(), "lookup"; got != want {
		t.Errorf("kept tool = %q, want %q", got, want)
	}

	payload, _ = buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"tools": [{"name": "web_search", "description": "builtin"}],
		"messages": [{"role": "user", "content": "hi"}]
	}`, "", "")
	tools = payload.Get("conversationState.currentMessage.userInputMessage.userInputMessageContext.tools")
	if got, want := tools.Get("0.toolSpecification.name").String(), "web_search"; got != want {
		t.Errorf("lone web_search = %q, want kept as %q", got, want)
	}
}

func TestBuildKiroPayload_ToolDescriptionTruncated(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"model": "claude-sonnet-4-5-20250929",
		"tools": []any{map[string]any{
			"name":         "verbose",
			"description":  strings.Repeat("漢", maxToolDescriptionRunes+5),
			"input_schema": map[string]any{"type": "object", "properties": map[string]any{}},
		}},
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	payload, _ := buildPayload(t, string(raw), "", "")

	desc := payload.Get("conversationState.currentMessage.userInputMessage.userInputMessageContext.tools.0.toolSpecification.description").String()
	if got, want := len([]rune(desc)), maxToolDescriptionRunes; got != want {
		t.Errorf("description length = %d runes, want %d", got, want)
	}
}

func TestBuildKiroPayload_WriteEditToolHints(t *testing.T) {
	payload, _ := buildPayload(t, `{
		"model": "claude-sonnet-4-5-20250929",
		"tools": [
			{"name": "Write", "description": "Writes a file to disk.", "input_schema": {"type": "object", "properties": {}}},
			{"name": "Edit", "description": "Edits a file in place.", "input_schema": {"type": "object", "properties": {}}},
			{"name": "Read", "description": "Reads a file.", "input_schema": {"type": "object", "properties": {}}}
		],
		"messages": [{"role": "user", "content": "hi"}]
	}`, "", "")

	tools := payload.Get("conversationState.currentMessage.userInputMessage.userInputMessageContext.tools")
	if got, want := tools.Get("0.toolSpecification.description").String(), "Writes a file to disk.\n"+kiroWriteToolDescriptionSuffix; got != want {
		t.Errorf("Write description = %q, want %q", got, want)
	}
	if got, want := tools.Get("1.toolSpecification.description").String(), "Edits a file in place.\n"+kiroEditToolDescriptionSuffix; got != want {
		t.Errorf("Edit description = %q, want %q", got, want)
	}
	if got, want := tools.Get("2.toolSpecification.description").String(), "Reads a file."; got != want {
		t.Errorf("Read description = %q, want %q", got, want)
	}

	// A description that already carries the hint is left alone.
	raw, err := json.Marshal(map[string]any{
		"model": "claude-sonnet-4-5-20250929",
		"tools": []any{map[string]any{
			"name":         "Write",
			"description":  "Writes a file to disk.\n" + kiroWriteToolDescriptionSuffix,
			"input_schema": map[string]any{"type": "object", "properties": map[string]any{}},
		}},
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	payload, _ = buildPayload(t, string(raw), "", "")
	desc := payload.Get("conversationState.currentMessage.userInputMessage.userInputMessageContext.tools.0.toolSpecification.description").String()
	if got, want := strings.Count(desc, kiroWriteToolDescriptionSuffix), 1; got != want {
		t.Errorf("hint count = %d, want %d in %q", got, want, desc)
	}
}
