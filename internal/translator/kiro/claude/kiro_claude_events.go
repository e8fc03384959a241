package claude

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/router-for-me/AntiHubAPI/internal/thinking"
)

// Claude SSE builders used to re-frame the CodeWhisperer event stream. Each
// returns one complete "event: ...\ndata: ..." block; the Claude front passes
// the blocks through untouched and the other fronts convert them.

// BuildClaudeMessageStartEvent opens the SSE sequence. inputTokens may be an
// estimate; message_delta carries the final usage.
func BuildClaudeMessageStartEvent(model string, inputTokens int64) []byte {
	msg := `{"type":"message_start","message":{"id":"","type":"message","role":"assistant","content":[],"model":"","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":0,"output_tokens":0}}}`
	msg, _ = sjson.Set(msg, "message.id", "msg_"+strings.ReplaceAll(uuid.NewString(), "-", ""))
	msg, _ = sjson.Set(msg, "message.model", model)
	msg, _ = sjson.Set(msg, "message.usage.input_tokens", inputTokens)
	return claudeSSEBlock("message_start", msg)
}

func BuildClaudePingEvent() []byte {
	return claudeSSEBlock("ping", `{"type":"ping"}`)
}

// BuildClaudeContentBlockStartEvent opens a content block. toolUseID and
// toolName matter only for tool_use blocks.
func BuildClaudeContentBlockStartEvent(index int, blockType, toolUseID, toolName string) []byte {
	switch blockType {
	case "tool_use":
		ev := fmt.Sprintf(`{"type":"content_block_start","index":%d,"content_block":{"type":"tool_use","id":"","name":"","input":{}}}`, index)
		ev, _ = sjson.Set(ev, "content_block.id", toolUseID)
		ev, _ = sjson.Set(ev, "content_block.name", toolName)
		return claudeSSEBlock("content_block_start", ev)
	case "thinking":
		return claudeSSEBlock("content_block_start", fmt.Sprintf(
			`{"type":"content_block_start","index":%d,"content_block":{"type":"thinking","thinking":""}}`, index))
	default:
		return claudeSSEBlock("content_block_start", fmt.Sprintf(
			`{"type":"content_block_start","index":%d,"content_block":{"type":"text","text":""}}`, index))
	}
}

func BuildClaudeTextDeltaEvent(index int, text string) []byte {
	ev := fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"text_delta","text":""}}`, index)
	ev, _ = sjson.Set(ev, "delta.text", text)
	return claudeSSEBlock("content_block_delta", ev)
}

func BuildClaudeThinkingDeltaEvent(index int, text string) []byte {
	ev := fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"thinking_delta","thinking":""}}`, index)
	ev, _ = sjson.Set(ev, "delta.thinking", text)
	return claudeSSEBlock("content_block_delta", ev)
}

// BuildClaudeInputJSONDeltaEvent carries tool arguments. Kiro delivers whole
// argument payloads, so one delta per tool_use block is the norm.
func BuildClaudeInputJSONDeltaEvent(index int, partialJSON string) []byte {
	ev := fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"input_json_delta","partial_json":""}}`, index)
	ev, _ = sjson.Set(ev, "delta.partial_json", partialJSON)
	return claudeSSEBlock("content_block_delta", ev)
}

func BuildClaudeContentBlockStopEvent(index int) []byte {
	return claudeSSEBlock("content_block_stop", fmt.Sprintf(`{"type":"content_block_stop","index":%d}`, index))
}

// BuildClaudeMessageDeltaEvent carries the stop reason and the final usage.
func BuildClaudeMessageDeltaEvent(stopReason string, inputTokens, outputTokens int64) []byte {
	ev := `{"type":"message_delta","delta":{"stop_reason":"","stop_sequence":null},"usage":{"input_tokens":0,"output_tokens":0}}`
	ev, _ = sjson.Set(ev, "delta.stop_reason", stopReason)
	ev, _ = sjson.Set(ev, "usage.input_tokens", inputTokens)
	ev, _ = sjson.Set(ev, "usage.output_tokens", outputTokens)
	return claudeSSEBlock("message_delta", ev)
}

func BuildClaudeMessageStopEvent() []byte {
	return claudeSSEBlock("message_stop", `{"type":"message_stop"}`)
}

// BuildClaudeErrorEvent surfaces an upstream failure as a Claude error event.
func BuildClaudeErrorEvent(errType, message string) []byte {
	ev := `{"type":"error","error":{"type":"","message":""}}`
	ev, _ = sjson.Set(ev, "error.type", errType)
	ev, _ = sjson.Set(ev, "error.message", message)
	return claudeSSEBlock("error", ev)
}

// BuildClaudeResponse assembles a complete Claude message body from the
// accumulated event-stream output. When parseThinking is set, <thinking> tags
// in the content are split into a thinking block; otherwise the content stays
// one text block. An empty stopReason falls back to tool_use or end_turn.
func BuildClaudeResponse(model, content string, toolUses []KiroToolUse, stopReason string, inputTokens, outputTokens int64, parseThinking bool) []byte {
	out := `{"id":"","type":"message","role":"assistant","model":"","content":[],"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":0,"output_tokens":0}}`
	out, _ = sjson.Set(out, "id", "msg_"+strings.ReplaceAll(uuid.NewString(), "-", ""))
	out, _ = sjson.Set(out, "model", model)

	var blocks []string
	for _, seg := range splitThinkingContent(content, parseThinking) {
		if seg.Type == thinking.SegmentThinking {
			block := `{"type":"thinking","thinking":""}`
			block, _ = sjson.Set(block, "thinking", seg.Content)
			blocks = append(blocks, block)
			continue
		}
		block := `{"type":"text","text":""}`
		block, _ = sjson.Set(block, "text", seg.Content)
		blocks = append(blocks, block)
	}

	for _, tu := range toolUses {
		block := `{"type":"tool_use","id":"","name":"","input":{}}`
		block, _ = sjson.Set(block, "id", tu.ToolUseID)
		block, _ = sjson.Set(block, "name", tu.Name)
		block, _ = sjson.SetRaw(block, "input", toolArgsJSON(tu))
		blocks = append(blocks, block)
	}
	if len(blocks) == 0 {
		blocks = append(blocks, `{"type":"text","text":""}`)
	}

	if stopReason == "" {
		stopReason = "end_turn"
		if len(toolUses) > 0 {
			stopReason = "tool_use"
		}
	}

	out, _ = sjson.SetRaw(out, "content", "["+strings.Join(blocks, ",")+"]")
	out, _ = sjson.Set(out, "stop_reason", stopReason)
	out, _ = sjson.Set(out, "usage.input_tokens", inputTokens)
	out, _ = sjson.Set(out, "usage.output_tokens", outputTokens)
	return []byte(out)
}

// splitThinkingContent runs the complete content through the thinking parser
// and merges adjacent segments of one type.
func splitThinkingContent(content string, parseThinking bool) []thinking.Segment {
	if content == "" {
		return nil
	}
	if !parseThinking {
		return []thinking.Segment{{Type: thinking.SegmentText, Content: content}}
	}
	parser := thinking.NewStreamParser()
	segments := append(parser.Parse(content), parser.Flush()...)

	var merged []thinking.Segment
	for _, seg := range segments {
		if seg.Content == "" {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].Type == seg.Type {
			merged[n-1].Content += seg.Content
			continue
		}
		merged = append(merged, seg)
	}
	return merged
}

func claudeSSEBlock(event, data string) []byte {
	return []byte("event: " + event + "\ndata: " + data)
}
