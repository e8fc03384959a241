package util

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestNormalizeOpenAIResponsesToolOrderPullsOutputsAfterCallRun(t *testing.T) {
	in := []byte(`{
  "model":"gpt-5.2",
  "input":[
    {"type":"message","role":"user","content":[{"type":"input_text","text":"do two things"}]},
    {"type":"function_call","call_id":"call_read","name":"read_file","arguments":"{}"},
    {"type":"function_call","call_id":"call_list","name":"list_dir","arguments":"{}"},
    {"type":"message","role":"user","content":[{"type":"input_text","text":"hurry up"}]},
    {"type":"function_call_output","call_id":"call_list","output":"three entries"},
    {"type":"function_call_output","call_id":"call_read","output":"contents"},
    {"type":"message","role":"user","content":[{"type":"input_text","text":"thanks"}]}
  ]
}`)

	out := NormalizeOpenAIResponsesToolOrder(in)

	if got := gjson.GetBytes(out, "input.#").Int(); got != 7 {
		t.Fatalf("no item should be lost, got %d body=%s", got, string(out))
	}
	if gjson.GetBytes(out, "input.1.type").String() != "function_call" ||
		gjson.GetBytes(out, "input.2.type").String() != "function_call" {
		t.Fatalf("call run should keep its position, body=%s", string(out))
	}
	if gjson.GetBytes(out, "input.3.call_id").String() != "call_list" ||
		gjson.GetBytes(out, "input.4.call_id").String() != "call_read" {
		t.Fatalf("outputs should follow the run in their original relative order, body=%s", string(out))
	}
	if gjson.GetBytes(out, "input.5.content.0.text").String() != "hurry up" {
		t.Fatalf("interleaved message should slide after the outputs, body=%s", string(out))
	}
	if gjson.GetBytes(out, "input.6.content.0.text").String() != "thanks" {
		t.Fatalf("trailing message should stay last, body=%s", string(out))
	}
}

func TestNormalizeOpenAIResponsesToolOrderDropsUnansweredCalls(t *testing.T) {
	in := []byte(`{
  "model":"gpt-5.2",
  "input":[
    {"type":"message","role":"user","content":[{"type":"input_text","text":"hi"}]},
    {"type":"function_call","call_id":"call_lost","name":"search","arguments":"{}"},
    {"type":"message","role":"user","content":[{"type":"input_text","text":"never mind"}]}
  ]
}`)

	out := NormalizeOpenAIResponsesToolOrder(in)

	if got := gjson.GetBytes(out, "input.#").Int(); got != 2 {
		t.Fatalf("call without an output should be dropped, got %d items body=%s", got, string(out))
	}
	if gjson.GetBytes(out, "input.0.type").String() != "message" ||
		gjson.GetBytes(out, "input.1.type").String() != "message" {
		t.Fatalf("only message items should remain, body=%s", string(out))
	}
}

func TestNormalizeOpenAIResponsesToolOrderLeavesCallFreeInputAlone(t *testing.T) {
	in := []byte(`{"model":"gpt-5.2","input":[` +
		`{"type":"message","role":"user","content":[{"type":"input_text","text":"just chat"}]},` +
		`{"type":"message","role":"assistant","content":[{"type":"output_text","text":"sure"}]}]}`)

	out := NormalizeOpenAIResponsesToolOrder(in)
	if string(out) != string(in) {
		t.Fatalf("input without tool calls must pass through unchanged:\nin=%s\nout=%s", in, out)
	}
}
