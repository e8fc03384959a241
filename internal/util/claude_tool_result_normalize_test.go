package util

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestNormalizeClaudeToolResultsPullsResultBehindUserText(t *testing.T) {
	in := []byte(`{
  "model":"claude-sonnet-4-5",
  "max_tokens":128,
  "messages":[
    {"role":"user","content":"compile it"},
    {"role":"assistant","content":[{"type":"tool_use","id":"toolu_compile","name":"bash","input":{}}]},
    {"role":"user","content":"still waiting"},
    {"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_compile","content":"exit 0"}]},
    {"role":"user","content":"now run the tests"}
  ]
}`)

	out := NormalizeClaudeToolResults(in)

	if got := gjson.GetBytes(out, "messages.#").Int(); got != 5 {
		t.Fatalf("expected 5 messages, got %d body=%s", got, string(out))
	}
	if gjson.GetBytes(out, "messages.2.role").String() != "user" {
		t.Fatalf("expected result message at index 2, body=%s", string(out))
	}
	if gjson.GetBytes(out, "messages.2.content.0.type").String() != "tool_result" {
		t.Fatalf("expected tool_result directly after assistant turn, body=%s", string(out))
	}
	if gjson.GetBytes(out, "messages.2.content.0.tool_use_id").String() != "toolu_compile" {
		t.Fatalf("moved result lost its tool_use_id, body=%s", string(out))
	}
	if gjson.GetBytes(out, "messages.3.content").String() != "still waiting" {
		t.Fatalf("plain user text should survive the regroup, body=%s", string(out))
	}
	if gjson.GetBytes(out, "messages.4.content").String() != "now run the tests" {
		t.Fatalf("trailing user text should stay last, body=%s", string(out))
	}
}

func TestNormalizeClaudeToolResultsMergesIntoExistingResultMessage(t *testing.T) {
	in := []byte(`{
  "model":"claude-sonnet-4-5",
  "messages":[
    {"role":"user","content":"run both"},
    {"role":"assistant","content":[
      {"type":"tool_use","id":"toolu_a","name":"read","input":{}},
      {"type":"tool_use","id":"toolu_b","name":"write","input":{}}
    ]},
    {"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_a","content":"A"}]},
    {"role":"user","content":"please continue"},
    {"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_b","content":"B"}]}
  ]
}`)

	out := NormalizeClaudeToolResults(in)

	if got := gjson.GetBytes(out, "messages.#").Int(); got != 4 {
		t.Fatalf("emptied result message should be dropped, got %d messages body=%s", got, string(out))
	}
	if got := gjson.GetBytes(out, "messages.2.content.#").Int(); got != 2 {
		t.Fatalf("expected both results in one message, got %d body=%s", got, string(out))
	}
	if gjson.GetBytes(out, "messages.2.content.1.tool_use_id").String() != "toolu_b" {
		t.Fatalf("late result should be appended to the existing result message, body=%s", string(out))
	}
	if gjson.GetBytes(out, "messages.3.content").String() != "please continue" {
		t.Fatalf("plain user text should stay in place, body=%s", string(out))
	}
}

func TestNormalizeClaudeToolResultsKeepsCompliantPayload(t *testing.T) {
	in := []byte(`{"model":"claude-opus-4-5","messages":[` +
		`{"role":"user","content":"ls"},` +
		`{"role":"assistant","content":[{"type":"tool_use","id":"toolu_ls","name":"bash","input":{}}]},` +
		`{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_ls","content":"a b c"}]}]}`)

	out := NormalizeClaudeToolResults(in)
	if string(out) != string(in) {
		t.Fatalf("compliant payload should pass through unchanged:\nin=%s\nout=%s", in, out)
	}
}

func TestNormalizeClaudeToolResultsIgnoresUnmatchedResults(t *testing.T) {
	in := []byte(`{"model":"claude-opus-4-5","messages":[` +
		`{"role":"user","content":"go"},` +
		`{"role":"assistant","content":[{"type":"tool_use","id":"toolu_x","name":"bash","input":{}}]},` +
		`{"role":"user","content":"interjection"},` +
		`{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_other","content":"?"}]}]}`)

	out := NormalizeClaudeToolResults(in)
	if string(out) != string(in) {
		t.Fatalf("results for unrelated calls must not be moved:\nin=%s\nout=%s", in, out)
	}
}
