package responses

import (
	"context"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func collectCodexFrames(t *testing.T, chunks []string) []string {
	t.Helper()
	var param any
	var outs []string
	for _, chunk := range chunks {
		outs = append(outs, ConvertCodexResponseToOpenAIResponses(context.Background(), "gpt-5-codex", nil, nil, []byte(chunk), &param)...)
	}
	return outs
}

func TestConvertCodexResponseToOpenAIResponses_RestoresEventLines(t *testing.T) {
	outs := collectCodexFrames(t, []string{
		`data: {"type":"response.created","response":{"id":"resp_1","status":"in_progress"}}`,
		`{"type":"response.output_text.delta","item_id":"msg_1","delta":"Hel"}`,
	})
	if len(outs) != 2 {
		t.Fatalf("frames = %d, want 2", len(outs))
	}
	if !strings.HasPrefix(outs[0], "event: response.created\ndata: ") {
		t.Fatalf("first frame = %q", outs[0])
	}
	data := strings.TrimPrefix(outs[1], "event: response.output_text.delta\ndata: ")
	if got := gjson.Parse(data).Get("delta").String(); got != "Hel" {
		t.Fatalf("delta = %q", got)
	}
}

func TestConvertCodexResponseToOpenAIResponses_CompletedLatchesStream(t *testing.T) {
	outs := collectCodexFrames(t, []string{
		`{"type":"response.completed","response":{"id":"resp_1","status":"completed"}}`,
		`{"type":"response.output_text.delta","delta":"late"}`,
	})
	if len(outs) != 1 {
		t.Fatalf("frames = %d, want 1", len(outs))
	}
	if !strings.HasPrefix(outs[0], "event: response.completed\n") {
		t.Fatalf("frame = %q", outs[0])
	}
}

func TestConvertCodexResponseToOpenAIResponses_ErrorLatchesStream(t *testing.T) {
	outs := collectCodexFrames(t, []string{
		`{"type":"error","error":{"message":"quota exhausted","code":429}}`,
		`{"type":"response.output_text.delta","delta":"late"}`,
	})
	if len(outs) != 1 {
		t.Fatalf("frames = %d, want 1", len(outs))
	}
	if !strings.HasPrefix(outs[0], "event: error\n") {
		t.Fatalf("frame = %q", outs[0])
	}
}

func TestConvertCodexResponseToOpenAIResponses_SkipsNonEvents(t *testing.T) {
	outs := collectCodexFrames(t, []string{
		``,
		`[DONE]`,
		`{"loadingMessage":"warming up"}`,
	})
	if len(outs) != 0 {
		t.Fatalf("frames = %d, want 0: %v", len(outs), outs)
	}
}

func TestConvertCodexResponseToOpenAIResponsesNonStream_UnwrapsEnvelope(t *testing.T) {
	var param any
	raw := []byte(`{"type":"response.completed","response":{"id":"resp_1","object":"response","status":"completed"}}`)
	out := ConvertCodexResponseToOpenAIResponsesNonStream(context.Background(), "gpt-5-codex", nil, nil, raw, &param)
	root := gjson.Parse(out)
	if got := root.Get("id").String(); got != "resp_1" {
		t.Fatalf("id = %q", got)
	}
	if root.Get("response").Exists() {
		t.Fatalf("envelope should be unwrapped: %s", out)
	}
}

func TestConvertCodexResponseToOpenAIResponsesNonStream_PassesBareObjectThrough(t *testing.T) {
	var param any
	raw := `{"id":"resp_2","object":"response","status":"completed","output":[]}`
	out := ConvertCodexResponseToOpenAIResponsesNonStream(context.Background(), "gpt-5-codex", nil, nil, []byte(raw), &param)
	if out != raw {
		t.Fatalf("out = %q, want passthrough", out)
	}
}
