package chat_completions

import (
	"bytes"
	"testing"

	"github.com/tidwall/gjson"
)

func TestConvertOpenAIRequestToKiro(t *testing.T) {
	raw := []byte(`{
		"model": "gpt-x",
		"messages": [
			{"role": "system", "content": "stay terse"},
			{"role": "user", "content": "ping"}
		],
		"max_tokens": 256
	}`)
	before := bytes.Clone(raw)

	out := gjson.ParseBytes(ConvertOpenAIRequestToKiro("claude-sonnet-4-5", raw, false))

	if got, want := out.Get("model").String(), "claude-sonnet-4-5"; got != want {
		t.Errorf("model = %q, want %q", got, want)
	}
	if got, want := out.Get("system").String(), "stay terse"; got != want {
		t.Errorf("system = %q, want %q", got, want)
	}
	if got, want := out.Get("messages.0.content").String(), "ping"; got != want {
		t.Errorf("user content = %q, want %q", got, want)
	}
	if got, want := out.Get("max_tokens").Int(), int64(256); got != want {
		t.Errorf("max_tokens = %d, want %d", got, want)
	}

	// The executor wraps the original bytes again, so the conversion must
	// work on a copy.
	if !bytes.Equal(raw, before) {
		t.Error("caller's buffer should stay untouched")
	}
}
