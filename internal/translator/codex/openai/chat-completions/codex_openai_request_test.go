package chat_completions

import (
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestConvertOpenAIRequestToCodex_MessagesBecomeInstructionsAndInput(t *testing.T) {
	in := []byte(`{
  "model":"gpt-5-codex",
  "stream":true,
  "max_tokens":1024,
  "messages":[
    {"role":"system","content":"You are helpful."},
    {"role":"developer","content":"Answer in English."},
    {"role":"user","content":"Hello"},
    {"role":"assistant","content":"Hi, how can I help?"},
    {"role":"tool","tool_call_id":"call_1","content":"{\"ok\":true}"}
  ]
}`)

	out := ConvertOpenAIRequestToCodex("gpt-5-codex", in, true)
	root := gjson.ParseBytes(out)

	if got := root.Get("model").String(); got != "gpt-5-codex" {
		t.Fatalf("model = %q", got)
	}
	if got := root.Get("instructions").String(); got != "You are helpful.\n\nAnswer in English." {
		t.Fatalf("instructions = %q", got)
	}
	if got := root.Get("input.0.type").String(); got != "message" {
		t.Fatalf("input.0 type = %q", got)
	}
	if got := root.Get("input.0.content.0.type").String(); got != "input_text" {
		t.Fatalf("user content type = %q", got)
	}
	if got := root.Get("input.0.content.0.text").String(); got != "Hello" {
		t.Fatalf("user text = %q", got)
	}
	if got := root.Get("input.1.role").String(); got != "assistant" {
		t.Fatalf("input.1 role = %q", got)
	}
	if got := root.Get("input.1.content.0.type").String(); got != "output_text" {
		t.Fatalf("assistant content type = %q", got)
	}
	if got := root.Get("input.2.type").String(); got != "function_call_output" {
		t.Fatalf("input.2 type = %q", got)
	}
	if got := root.Get("input.2.call_id").String(); got != "call_1" {
		t.Fatalf("call_id = %q", got)
	}
	if got := root.Get("input.2.output").String(); got != `{"ok":true}` {
		t.Fatalf("output = %q", got)
	}
	// Codex rejects token limits, so the converted max_output_tokens is stripped again.
	if root.Get("max_output_tokens").Exists() || root.Get("max_tokens").Exists() {
		t.Fatalf("token limits should be stripped: %s", out)
	}
	if !root.Get("stream").Bool() || root.Get("store").Bool() {
		t.Fatalf("upstream flags not normalized: %s", out)
	}
}

func TestConvertOpenAIRequestToCodex_ToolCallsBecomeFunctionCallItems(t *testing.T) {
	in := []byte(`{
  "model":"gpt-5-codex",
  "messages":[
    {"role":"user","content":"What is the weather in SF?"},
    {"role":"assistant","content":null,"tool_calls":[
      {"id":"call_abc","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"SF\"}"}}
    ]},
    {"role":"tool","tool_call_id":"call_abc","content":"{\"temp\":18}"}
  ]
}`)

	out := ConvertOpenAIRequestToCodex("gpt-5-codex", in, false)
	root := gjson.ParseBytes(out)

	if got := root.Get("input.1.type").String(); got != "function_call" {
		t.Fatalf("input.1 type = %q: %s", got, out)
	}
	if got := root.Get("input.1.call_id").String(); got != "call_abc" {
		t.Fatalf("call_id = %q", got)
	}
	if got := root.Get("input.1.name").String(); got != "get_weather" {
		t.Fatalf("name = %q", got)
	}
	if got := gjson.Parse(root.Get("input.1.arguments").String()).Get("city").String(); got != "SF" {
		t.Fatalf("arguments city = %q", got)
	}
	if got := root.Get("input.2.type").String(); got != "function_call_output" {
		t.Fatalf("input.2 type = %q", got)
	}
	if got := root.Get("input.2.call_id").String(); got != "call_abc" {
		t.Fatalf("output call_id = %q", got)
	}
}

func TestConvertOpenAIRequestToCodex_ToolCallWithoutIDGetsOne(t *testing.T) {
	in := []byte(`{
  "model":"gpt-5-codex",
  "messages":[
    {"role":"assistant","tool_calls":[{"type":"function","function":{"name":"lookup","arguments":"{}"}}]}
  ]
}`)
	out := ConvertOpenAIRequestToCodex("gpt-5-codex", in, false)
	callID := gjson.GetBytes(out, "input.0.call_id").String()
	if !strings.HasPrefix(callID, "call_") || len(callID) != len("call_")+24 {
		t.Fatalf("call_id = %q", callID)
	}
}

func TestConvertOpenAIRequestToCodex_ImageBlocks(t *testing.T) {
	in := []byte(`{
  "model":"gpt-5-codex",
  "messages":[
    {"role":"user","content":[
      {"type":"text","text":"look at this"},
      {"type":"image_url","image_url":{"url":"data:image/png;base64,AAA"}}
    ]}
  ]
}`)
	out := ConvertOpenAIRequestToCodex("gpt-5-codex", in, false)
	root := gjson.ParseBytes(out)
	if got := root.Get("input.0.content.0.text").String(); got != "look at this" {
		t.Fatalf("text = %q", got)
	}
	if got := root.Get("input.0.content.1.type").String(); got != "input_image" {
		t.Fatalf("image type = %q", got)
	}
	if got := root.Get("input.0.content.1.image_url").String(); got != "data:image/png;base64,AAA" {
		t.Fatalf("image url = %q", got)
	}
}

func TestConvertOpenAIRequestToCodex_ToolsFlattened(t *testing.T) {
	in := []byte(`{
  "model":"gpt-5-codex",
  "messages":[{"role":"user","content":"hi"}],
  "tools":[
    {"type":"function","function":{"name":"get_weather","description":"Weather lookup","parameters":{"type":"object","properties":{"city":{"type":"string"}}},"strict":true}},
    {"type":"function","name":"already_flat","parameters":{"type":"object","properties":{}}},
    {"type":"function","function":{"name":""}}
  ],
  "tool_choice":{"type":"function","function":{"name":"get_weather"}}
}`)

	out := ConvertOpenAIRequestToCodex("gpt-5-codex", in, false)
	root := gjson.ParseBytes(out)

	if got := root.Get("tools.#").Int(); got != 2 {
		t.Fatalf("tools = %d, want 2: %s", got, out)
	}
	first := root.Get("tools.0")
	if got := first.Get("name").String(); got != "get_weather" {
		t.Fatalf("tool name = %q", got)
	}
	if first.Get("function").Exists() {
		t.Fatalf("tool should be flat: %s", first.Raw)
	}
	if got := first.Get("description").String(); got != "Weather lookup" {
		t.Fatalf("description = %q", got)
	}
	if got := first.Get("parameters.properties.city.type").String(); got != "string" {
		t.Fatalf("parameters = %s", first.Get("parameters").Raw)
	}
	if !first.Get("strict").Bool() {
		t.Fatalf("strict should carry over: %s", first.Raw)
	}
	if got := root.Get("tools.1.name").String(); got != "already_flat" {
		t.Fatalf("flat tool should pass through, got %q", got)
	}
	choice := root.Get("tool_choice")
	if got := choice.Get("name").String(); got != "get_weather" {
		t.Fatalf("tool_choice = %s", choice.Raw)
	}
	if choice.Get("function").Exists() {
		t.Fatalf("tool_choice should be flat: %s", choice.Raw)
	}
}

func TestConvertOpenAIRequestToCodex_ReasoningEffortFolded(t *testing.T) {
	in := []byte(`{"model":"gpt-5-codex","reasoning_effort":"high","messages":[{"role":"user","content":"hi"}]}`)
	out := ConvertOpenAIRequestToCodex("gpt-5-codex", in, false)
	root := gjson.ParseBytes(out)
	if got := root.Get("reasoning.effort").String(); got != "high" {
		t.Fatalf("effort = %q", got)
	}
	if root.Get("reasoning_effort").Exists() {
		t.Fatalf("reasoning_effort should be folded: %s", out)
	}
}

func TestConvertOpenAIRequestToCodex_EmptyMessagesSkipped(t *testing.T) {
	in := []byte(`{
  "model":"gpt-5-codex",
  "messages":[
    {"role":"user","content":"   "},
    {"role":"user","content":"real"}
  ]
}`)
	out := ConvertOpenAIRequestToCodex("gpt-5-codex", in, false)
	root := gjson.ParseBytes(out)
	if got := root.Get("input.#").Int(); got != 1 {
		t.Fatalf("input items = %d, want 1: %s", got, out)
	}
	if got := root.Get("input.0.content.0.text").String(); got != "real" {
		t.Fatalf("text = %q", got)
	}
}
