package translator

import (
	"context"
	"strings"
	"testing"
)

func TestRegistry_TranslateRequest(t *testing.T) {
	reg := NewRegistry()
	reg.Register(FormatClaude, FormatKiro, func(model string, raw []byte, stream bool) []byte {
		return []byte(`{"converted":true,"model":"` + model + `"}`)
	}, ResponseTransform{})

	got := reg.TranslateRequest(FormatClaude, FormatKiro, "claude-sonnet-4.5", []byte(`{"messages":[]}`), false)
	if !strings.Contains(string(got), `"converted":true`) {
		t.Errorf("request translator not applied: %s", got)
	}
	if !strings.Contains(string(got), "claude-sonnet-4.5") {
		t.Errorf("model not threaded through: %s", got)
	}
}

func TestRegistry_TranslateRequest_Passthrough(t *testing.T) {
	reg := NewRegistry()
	in := []byte(`{"untouched":1}`)
	got := reg.TranslateRequest(FormatGemini, FormatKiro, "m", in, true)
	if string(got) != string(in) {
		t.Errorf("unregistered pair should pass payload through, got %s", got)
	}
}

// Response lookups run in the to->from direction: a pair registered as
// (front, upstream) serves TranslateStream(front, upstream, ...) by finding
// the transform stored under responses[front][upstream].
func TestRegistry_TranslateStream_Direction(t *testing.T) {
	reg := NewRegistry()
	reg.Register(FormatClaude, FormatKiro, nil, ResponseTransform{
		Stream: func(ctx context.Context, model string, origReq, convReq, chunk []byte, param *any) []string {
			return []string{"event: chunk\ndata: " + string(chunk) + "\n"}
		},
	})

	out := reg.TranslateStream(context.Background(), FormatKiro, FormatClaude, "m", nil, nil, []byte(`{"d":1}`), new(any))
	if len(out) != 1 || !strings.HasPrefix(out[0], "event: chunk") {
		t.Errorf("stream translator not applied: %v", out)
	}

	// The opposite direction has nothing registered and passes through.
	out = reg.TranslateStream(context.Background(), FormatClaude, FormatKiro, "m", nil, nil, []byte(`raw`), new(any))
	if len(out) != 1 || out[0] != "raw" {
		t.Errorf("unregistered direction should pass through, got %v", out)
	}
}

func TestRegistry_TranslateNonStream(t *testing.T) {
	reg := NewRegistry()
	reg.Register(FormatOpenAI, FormatCodex, nil, ResponseTransform{
		NonStream: func(ctx context.Context, model string, origReq, convReq, resp []byte, param *any) string {
			return `{"translated":true}`
		},
	})

	got := reg.TranslateNonStream(context.Background(), FormatCodex, FormatOpenAI, "m", nil, nil, []byte(`{}`), new(any))
	if got != `{"translated":true}` {
		t.Errorf("non-stream translator not applied: %s", got)
	}
}

func TestRegistry_TranslateTokenCount(t *testing.T) {
	reg := NewRegistry()
	reg.Register(FormatClaude, FormatKiro, nil, ResponseTransform{
		TokenCount: func(ctx context.Context, count int64) string {
			return `{"input_tokens":42}`
		},
	})

	got := reg.TranslateTokenCount(context.Background(), FormatKiro, FormatClaude, 42, []byte(`fallback`))
	if got != `{"input_tokens":42}` {
		t.Errorf("token count translator not applied: %s", got)
	}

	got = reg.TranslateTokenCount(context.Background(), FormatClaude, FormatKiro, 42, []byte(`fallback`))
	if got != "fallback" {
		t.Errorf("unregistered direction should fall back to raw payload, got %s", got)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	reg := NewRegistry()
	reg.Register(FormatClaude, FormatKiro, passthroughRequest, ResponseTransform{})

	if !reg.HasRequestTranslator(FormatClaude, FormatKiro) {
		t.Fatal("request translator should exist before Unregister")
	}
	reg.Unregister(FormatClaude, FormatKiro)
	if reg.HasRequestTranslator(FormatClaude, FormatKiro) {
		t.Error("request translator should be gone after Unregister")
	}
	if reg.HasResponseTransformer(FormatClaude, FormatKiro) {
		t.Error("response translator should be gone after Unregister")
	}
}
