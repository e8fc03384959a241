package gemini

import (
	"context"
	"testing"

	"github.com/tidwall/gjson"
)

func TestConvertGeminiCLIResponseToGemini_UnwrapsEnvelope(t *testing.T) {
	var param any
	outs := ConvertGeminiCLIResponseToGemini(context.Background(), "m", nil, nil,
		[]byte(`data: {"response":{"responseId":"r1","candidates":[{"content":{"role":"model","parts":[{"text":"Hel"}]}}]}}`), &param)

	if len(outs) != 1 {
		t.Fatalf("payloads = %d, want 1", len(outs))
	}
	root := gjson.Parse(outs[0])
	if got := root.Get("candidates.0.content.parts.0.text").String(); got != "Hel" {
		t.Fatalf("text = %q", got)
	}
	if got := root.Get("responseId").String(); got != "r1" {
		t.Fatalf("responseId = %q", got)
	}
	if root.Get("response").Exists() {
		t.Fatalf("envelope should be unwrapped: %s", outs[0])
	}
}

func TestConvertGeminiCLIResponseToGemini_SkipsNonEvents(t *testing.T) {
	var param any
	ctx := context.Background()

	for _, chunk := range []string{"", "[DONE]", `{"loadingMessage":"..."}`} {
		if outs := ConvertGeminiCLIResponseToGemini(ctx, "m", nil, nil, []byte(chunk), &param); len(outs) != 0 {
			t.Fatalf("chunk %q should be dropped, got %v", chunk, outs)
		}
	}
}

func TestConvertGeminiCLIResponseToGemini_ErrorEndsStream(t *testing.T) {
	var param any
	ctx := context.Background()

	outs := ConvertGeminiCLIResponseToGemini(ctx, "m", nil, nil, []byte(`{"error":{"message":"quota exhausted","code":429}}`), &param)
	if len(outs) != 1 {
		t.Fatalf("payloads = %d, want 1", len(outs))
	}
	root := gjson.Parse(outs[0])
	if got := root.Get("error.message").String(); got != "quota exhausted" {
		t.Fatalf("error message = %q", got)
	}
	if got := root.Get("error.code").Int(); got != 429 {
		t.Fatalf("error code = %d", got)
	}

	after := ConvertGeminiCLIResponseToGemini(ctx, "m", nil, nil, []byte(`{"response":{"candidates":[]}}`), &param)
	if len(after) != 0 {
		t.Fatalf("events after an error should be dropped, got %v", after)
	}
}

func TestConvertGeminiCLIResponseToGemini_ErrorCodeFallback(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
	}{
		{"numeric string code", `{"error":{"message":"x","code":"429"}}`, 429},
		{"status field", `{"error":{"message":"x","status":503}}`, 503},
		{"unrecognizable", `{"error":{"detail":"boom","status":"RESOURCE_EXHAUSTED"}}`, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var param any
			outs := ConvertGeminiCLIResponseToGemini(context.Background(), "m", nil, nil, []byte(tt.in), &param)
			if len(outs) != 1 {
				t.Fatalf("payloads = %d, want 1", len(outs))
			}
			if got := gjson.Get(outs[0], "error.code").Int(); got != tt.want {
				t.Fatalf("error code = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestConvertGeminiCLIResponseToGeminiNonStream(t *testing.T) {
	var param any
	out := ConvertGeminiCLIResponseToGeminiNonStream(context.Background(), "m", nil, nil,
		[]byte(`{"response":{"candidates":[{"content":{"role":"model","parts":[{"text":"done"}]},"finishReason":"STOP"}]}}`), &param)

	if got := gjson.Get(out, "candidates.0.finishReason").String(); got != "STOP" {
		t.Fatalf("finishReason = %q: %s", got, out)
	}
	if gjson.Get(out, "response").Exists() {
		t.Fatalf("envelope should be unwrapped: %s", out)
	}
}

func TestConvertGeminiCLIResponseToGeminiNonStream_PassthroughWithoutEnvelope(t *testing.T) {
	var param any
	in := `{"candidates":[{"content":{"role":"model","parts":[{"text":"bare"}]}}]}`
	out := ConvertGeminiCLIResponseToGeminiNonStream(context.Background(), "m", nil, nil, []byte(in), &param)
	if out != in {
		t.Fatalf("bare body should pass through unchanged, got %s", out)
	}
}

func TestGeminiTokenCount(t *testing.T) {
	if got := GeminiTokenCount(context.Background(), 7); got != `{"totalTokens":7}` {
		t.Fatalf("payload = %q", got)
	}
}
