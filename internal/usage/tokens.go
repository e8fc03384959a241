package usage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tiktoken-go/tokenizer"
)

// tokenizerCache stores codec instances per model to avoid repeated
// initialization.
var tokenizerCache sync.Map

func codecForModel(model string) (tokenizer.Codec, error) {
	if cached, ok := tokenizerCache.Load(model); ok {
		return cached.(tokenizer.Codec), nil
	}

	var enc tokenizer.Codec
	var err error
	sanitized := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(sanitized, "gpt-5"), strings.HasPrefix(sanitized, "gpt-4o"), strings.HasPrefix(sanitized, "o3"):
		enc, err = tokenizer.Get(tokenizer.O200kBase)
	default:
		// Claude, Gemini and Qwen tokenizers are not public; cl100k is the
		// closest stable approximation and is what the count endpoint
		// promises.
		enc, err = tokenizer.Get(tokenizer.Cl100kBase)
	}
	if err != nil {
		return nil, err
	}

	actual, _ := tokenizerCache.LoadOrStore(model, enc)
	return actual.(tokenizer.Codec), nil
}

// CountTokens counts tokens in text with the model's closest tokenizer.
func CountTokens(model, text string) (int64, error) {
	if text == "" {
		return 0, nil
	}
	enc, err := codecForModel(model)
	if err != nil {
		return 0, fmt.Errorf("usage: tokenizer for %s: %w", model, err)
	}
	ids, _, err := enc.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("usage: encode: %w", err)
	}
	return int64(len(ids)), nil
}

// CountRequestTokens walks a Claude-shape messages request and counts the
// tokens of every text the model would see: system prompt, message text and
// tool results, plus a small per-message framing overhead.
func CountRequestTokens(model string, rawJSON []byte) (int64, error) {
	var sb strings.Builder

	system := gjson.GetBytes(rawJSON, "system")
	switch {
	case system.Type == gjson.String:
		sb.WriteString(system.String())
		sb.WriteString("\n")
	case system.IsArray():
		system.ForEach(func(_, block gjson.Result) bool {
			if text := block.Get("text"); text.Exists() {
				sb.WriteString(text.String())
				sb.WriteString("\n")
			}
			return true
		})
	}

	messageCount := int64(0)
	gjson.GetBytes(rawJSON, "messages").ForEach(func(_, message gjson.Result) bool {
		messageCount++
		content := message.Get("content")
		if content.Type == gjson.String {
			sb.WriteString(content.String())
			sb.WriteString("\n")
			return true
		}
		content.ForEach(func(_, block gjson.Result) bool {
			switch block.Get("type").String() {
			case "text", "thinking":
				sb.WriteString(block.Get("text").String())
				sb.WriteString(block.Get("thinking").String())
			case "tool_use":
				sb.WriteString(block.Get("name").String())
				sb.WriteString(block.Get("input").Raw)
			case "tool_result":
				inner := block.Get("content")
				if inner.Type == gjson.String {
					sb.WriteString(inner.String())
				} else {
					sb.WriteString(inner.Raw)
				}
			}
			sb.WriteString("\n")
			return true
		})
		return true
	})

	gjson.GetBytes(rawJSON, "tools").ForEach(func(_, tool gjson.Result) bool {
		sb.WriteString(tool.Get("name").String())
		sb.WriteString(tool.Get("description").String())
		sb.WriteString(tool.Get("input_schema").Raw)
		sb.WriteString("\n")
		return true
	})

	count, err := CountTokens(model, sb.String())
	if err != nil {
		return 0, err
	}
	// Chat framing costs a few tokens per message.
	return count + messageCount*4, nil
}
