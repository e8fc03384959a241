package claude

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/router-for-me/AntiHubAPI/internal/thinking"
	"github.com/router-for-me/AntiHubAPI/internal/translator/gemini/common"
	"github.com/router-for-me/AntiHubAPI/internal/util"
)

// openAIStopReasonToClaude maps OpenAI finish_reason values onto Claude
// stop_reason values.
var openAIStopReasonToClaude = map[string]string{
	"stop":           "end_turn",
	"length":         "max_tokens",
	"tool_calls":     "tool_use",
	"content_filter": "end_turn",
	"function_call":  "tool_use",
}

// builtinToolArgAliases maps camelCase argument names some upstreams emit for
// the Claude Code builtin tools onto the snake_case names the tools expect.
var builtinToolArgAliases = map[string]map[string]string{
	"edit":  {"filePath": "file_path", "oldString": "old_string", "newString": "new_string"},
	"read":  {"filePath": "file_path"},
	"write": {"filePath": "file_path", "text": "content"},
}

// builtinToolRequiredArgs lists the arguments the Claude Code builtin tools
// reject a call without.
var builtinToolRequiredArgs = map[string][]string{
	"edit":  {"file_path", "old_string", "new_string"},
	"read":  {"file_path"},
	"write": {"file_path", "content"},
}

type streamToolCall struct {
	id        string
	name      string
	arguments string
}

// claudeStreamAssembler rebuilds the Claude SSE event sequence from OpenAI
// chat chunks. Tool calls are buffered until the end of the stream because
// their block indexes depend on how the text block closes.
type claudeStreamAssembler struct {
	requestID        string
	messageStartSent bool
	done             bool

	blockIndex      int
	thinkingStarted bool
	thinkingStopped bool
	textStarted     bool

	thinkingSignature     string
	emittedMeaningfulText bool
	contextWindowExceeded bool
	finishReason          string

	inputTokens  int64
	outputTokens int64

	toolCalls map[int]*streamToolCall

	// parser splits raw <thinking> tags out of the text stream when the
	// request asked for thinking and the upstream has no reasoning field.
	parser *thinking.StreamParser
}

// ConvertOpenAIResponseToClaude converts OpenAI Chat Completions streaming
// chunks into Claude API SSE events.
//
// Each call receives one SSE data payload (or the [DONE] marker) and returns
// zero or more complete Claude SSE events. The assembler tracks block state
// across calls through param: reasoning deltas open a thinking block, text
// closes it, and buffered tool calls flush after the text block when the
// stream ends.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used
//   - originalRequestRawJSON: The original Claude request JSON
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: One OpenAI SSE data payload, or [DONE]
//   - param: A pointer to a parameter object carrying assembler state
//
// Returns:
//   - []string: Claude SSE events ("event: ...\ndata: ..." blocks)
func ConvertOpenAIResponseToClaude(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	if *param == nil {
		asm := &claudeStreamAssembler{
			requestID: strings.ReplaceAll(uuid.NewString(), "-", ""),
			toolCalls: map[int]*streamToolCall{},
		}
		if claudeThinkingRequested(originalRequestRawJSON) {
			asm.parser = thinking.NewStreamParser()
		}
		*param = asm
	}
	asm := (*param).(*claudeStreamAssembler)
	if asm.done {
		return []string{}
	}

	var events []string
	if !asm.messageStartSent {
		asm.messageStartSent = true
		events = append(events, asm.messageStartEvent(modelName))
	}

	data := strings.TrimSpace(string(rawJSON))
	if strings.HasPrefix(data, "data:") {
		data = strings.TrimSpace(strings.TrimPrefix(data, "data:"))
	}
	if data == "[DONE]" {
		events = append(events, asm.finalize()...)
		asm.done = true
		return events
	}

	root := gjson.Parse(data)
	if !root.IsObject() {
		return events
	}
	if errObj := root.Get("error"); errObj.Exists() {
		ev := `{"type":"error","error":null}`
		ev, _ = sjson.SetRaw(ev, "error", errObj.Raw)
		events = append(events, claudeSSE("error", ev))
		asm.done = true
		return events
	}

	// Kiro-compatible gateways report context usage in chunks without a
	// choices array. At 100% the stream stopped because the context window
	// ran out, not because the turn finished.
	pct := root.Get("context_usage_percentage")
	if !pct.Exists() {
		pct = root.Get("contextUsage.context_usage_percentage")
	}
	if !pct.Exists() {
		pct = root.Get("context_usage.context_usage_percentage")
	}
	if pct.Exists() && pct.Float() >= 100 {
		asm.contextWindowExceeded = true
	}

	if usage := root.Get("usage"); usage.Exists() {
		if v := usage.Get("prompt_tokens"); v.Exists() {
			asm.inputTokens = v.Int()
		}
		if v := usage.Get("completion_tokens"); v.Exists() {
			asm.outputTokens = v.Int()
		}
	}

	choice := root.Get("choices.0")
	if !choice.Exists() {
		return events
	}
	delta := choice.Get("delta")

	if fr := choice.Get("finish_reason"); fr.String() != "" {
		asm.finishReason = fr.String()
	}

	reasoningDelta := delta.Get("reasoning_content").String()
	if reasoningDelta == "" {
		reasoningDelta = delta.Get("reasoning").String()
	}
	if reasoningDelta == "" {
		reasoningDelta = delta.Get("thinking_content").String()
	}
	if reasoningDelta != "" {
		events = append(events, asm.emitThinkingDelta(reasoningDelta)...)
	}

	asm.captureThoughtSignature(delta)

	if textDelta := delta.Get("content"); textDelta.String() != "" {
		if asm.parser != nil {
			for _, seg := range asm.parser.Parse(textDelta.String()) {
				events = append(events, asm.emitSegment(seg)...)
			}
		} else {
			events = append(events, asm.emitTextDelta(textDelta.String())...)
		}
	}

	if toolCalls := delta.Get("tool_calls"); toolCalls.IsArray() && len(toolCalls.Array()) > 0 {
		events = append(events, asm.closeThinkingBlock()...)
		toolCalls.ForEach(func(_, tc gjson.Result) bool {
			asm.bufferToolCallDelta(tc)
			return true
		})
	}

	return events
}

// ConvertOpenAIResponseToClaudeNonStream converts a complete OpenAI Chat
// Completions response into a Claude Messages API response.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used
//   - originalRequestRawJSON: The original Claude request JSON
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: The complete OpenAI response JSON
//   - param: A pointer to a parameter object (unused)
//
// Returns:
//   - string: The Claude Messages API response JSON
func ConvertOpenAIResponseToClaudeNonStream(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	root := gjson.ParseBytes(rawJSON)
	choice := root.Get("choices.0")
	message := choice.Get("message")

	out := `{"id":"","type":"message","role":"assistant","model":"","content":[],"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":0,"output_tokens":0}}`
	id := root.Get("id").String()
	if id == "" {
		id = strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
	}
	out, _ = sjson.Set(out, "id", "msg_"+id)
	out, _ = sjson.Set(out, "model", modelName)

	var blocks []string

	reasoning := message.Get("reasoning_content").String()
	if reasoning == "" {
		reasoning = message.Get("reasoning").String()
	}
	if reasoning == "" {
		reasoning = message.Get("thinking_content").String()
	}
	signature := extractThoughtSignature(message)
	if reasoning != "" {
		block := `{"type":"thinking","thinking":""}`
		block, _ = sjson.Set(block, "thinking", reasoning)
		if signature != "" {
			block, _ = sjson.Set(block, "signature", signature)
		}
		blocks = append(blocks, block)
	}

	if text := message.Get("content"); text.String() != "" {
		block := `{"type":"text","text":""}`
		block, _ = sjson.Set(block, "text", text.String())
		blocks = append(blocks, block)
	}

	validToolUses := 0
	message.Get("tool_calls").ForEach(func(_, tc gjson.Result) bool {
		if tc.Get("type").String() != "function" {
			return true
		}
		fn := tc.Get("function")
		name := fn.Get("name").String()
		input := normalizeBuiltinToolInput(name, util.RepairToolArguments(fn.Get("arguments")))
		if missing := missingBuiltinToolArgs(name, input); len(missing) > 0 {
			log.Warnf("tool call missing required args, degraded to text: tool=%s missing=%s id=%s",
				name, strings.Join(missing, ","), tc.Get("id").String())
			block := `{"type":"text","text":""}`
			block, _ = sjson.Set(block, "text", builtinToolErrorText(name, missing))
			blocks = append(blocks, block)
			return true
		}
		if input == "" {
			input = "{}"
		}
		block := `{"type":"tool_use","id":"","name":"","input":{}}`
		callID := tc.Get("id").String()
		if callID == "" {
			callID = generateShortToolUseID()
		}
		// Remember the signature per call id so a later request can restore
		// it when the client replays the call without one.
		if sig := toolCallThoughtSignature(tc); sig != "" {
			common.Signatures.Put(callID, sig)
		} else if signature != "" {
			common.Signatures.Put(callID, signature)
		}
		block, _ = sjson.Set(block, "id", callID)
		block, _ = sjson.Set(block, "name", name)
		block, _ = sjson.SetRaw(block, "input", input)
		blocks = append(blocks, block)
		validToolUses++
		return true
	})

	if len(blocks) == 0 {
		blocks = append(blocks, `{"type":"text","text":""}`)
	}

	finish := choice.Get("finish_reason").String()
	stopReason := "end_turn"
	if mapped, ok := openAIStopReasonToClaude[finish]; ok {
		stopReason = mapped
	}
	// Only an actually emitted tool_use block may claim the tool_use stop
	// reason; degraded calls report a finished turn instead.
	if validToolUses > 0 {
		stopReason = "tool_use"
	} else if finish == "tool_calls" || finish == "function_call" {
		stopReason = "end_turn"
	}

	if reasoning != "" {
		hasNonThinking := false
		for _, block := range blocks {
			if gjson.Get(block, "type").String() != "thinking" {
				hasNonThinking = true
				break
			}
		}
		// The output budget went entirely to thinking. Report max_tokens
		// and pad a text block so the content array stays well formed.
		if !hasNonThinking {
			stopReason = "max_tokens"
			blocks = append(blocks, `{"type":"text","text":" "}`)
		}
	}

	out, _ = sjson.SetRaw(out, "content", "["+strings.Join(blocks, ",")+"]")
	out, _ = sjson.Set(out, "stop_reason", stopReason)
	out, _ = sjson.Set(out, "usage.input_tokens", root.Get("usage.prompt_tokens").Int())
	out, _ = sjson.Set(out, "usage.output_tokens", root.Get("usage.completion_tokens").Int())
	return out
}

// ClaudeTokenCount renders a token count as a Claude count_tokens response.
func ClaudeTokenCount(ctx context.Context, count int64) string {
	return fmt.Sprintf(`{"input_tokens":%d}`, count)
}

func (a *claudeStreamAssembler) messageStartEvent(model string) string {
	msg := `{"type":"message_start","message":{"id":"","type":"message","role":"assistant","content":[],"model":"","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":0,"output_tokens":0}}}`
	msg, _ = sjson.Set(msg, "message.id", "msg_"+a.requestID)
	msg, _ = sjson.Set(msg, "message.model", model)
	return claudeSSE("message_start", msg)
}

func (a *claudeStreamAssembler) emitSegment(seg thinking.Segment) []string {
	if seg.Type == thinking.SegmentThinking {
		return a.emitThinkingDelta(seg.Content)
	}
	return a.emitTextDelta(seg.Content)
}

func (a *claudeStreamAssembler) emitThinkingDelta(text string) []string {
	var events []string
	if !a.thinkingStarted {
		a.thinkingStarted = true
		events = append(events, claudeSSE("content_block_start", fmt.Sprintf(
			`{"type":"content_block_start","index":%d,"content_block":{"type":"thinking","thinking":""}}`, a.blockIndex)))
	}
	ev := fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"thinking_delta","thinking":""}}`, a.blockIndex)
	ev, _ = sjson.Set(ev, "delta.thinking", text)
	events = append(events, claudeSSE("content_block_delta", ev))
	return events
}

func (a *claudeStreamAssembler) emitTextDelta(text string) []string {
	events := a.closeThinkingBlock()
	if !a.textStarted {
		a.textStarted = true
		events = append(events, claudeSSE("content_block_start", fmt.Sprintf(
			`{"type":"content_block_start","index":%d,"content_block":{"type":"text","text":""}}`, a.blockIndex)))
	}
	if strings.TrimSpace(text) != "" {
		a.emittedMeaningfulText = true
	}
	ev := fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"text_delta","text":""}}`, a.blockIndex)
	ev, _ = sjson.Set(ev, "delta.text", text)
	events = append(events, claudeSSE("content_block_delta", ev))
	return events
}

// closeThinkingBlock ends an open thinking block, emitting the signature
// delta first when one was captured. Later blocks start at the next index.
func (a *claudeStreamAssembler) closeThinkingBlock() []string {
	if !a.thinkingStarted || a.thinkingStopped {
		return nil
	}
	a.thinkingStopped = true
	var events []string
	if a.thinkingSignature != "" {
		ev := fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"signature_delta","signature":""}}`, a.blockIndex)
		ev, _ = sjson.Set(ev, "delta.signature", a.thinkingSignature)
		events = append(events, claudeSSE("content_block_delta", ev))
	}
	events = append(events, claudeSSE("content_block_stop", fmt.Sprintf(
		`{"type":"content_block_stop","index":%d}`, a.blockIndex)))
	a.blockIndex++
	return events
}

// captureThoughtSignature pulls a thought signature out of a delta. Signatures
// arrive on tool call entries for Gemini-backed upstreams, or at the delta
// level for gateways that hoist them. Per-call signatures go straight into
// the cache under the call id.
func (a *claudeStreamAssembler) captureThoughtSignature(delta gjson.Result) {
	if toolCalls := delta.Get("tool_calls"); toolCalls.IsArray() {
		toolCalls.ForEach(func(_, tc gjson.Result) bool {
			sig := toolCallThoughtSignature(tc)
			if sig == "" {
				return true
			}
			a.thinkingSignature = sig
			common.Signatures.Put(tc.Get("id").String(), sig)
			return true
		})
	}
	if a.thinkingSignature != "" {
		return
	}
	if sig := delta.Get("extra_content.google.thought_signature"); sig.Exists() {
		a.thinkingSignature = sig.String()
	} else if sig := delta.Get("extra_content.thought_signature"); sig.Exists() {
		a.thinkingSignature = sig.String()
	} else if sig := delta.Get("signature"); sig.Exists() {
		a.thinkingSignature = sig.String()
	}
}

// bufferToolCallDelta merges one tool call delta into the buffered calls.
// Entries are matched by id when present; fresh ids allocate the next slot and
// id-less fragments fall back to the upstream index.
func (a *claudeStreamAssembler) bufferToolCallDelta(tc gjson.Result) {
	id := tc.Get("id").String()

	index := -1
	if id != "" {
		for idx, existing := range a.toolCalls {
			if existing.id == id {
				index = idx
				break
			}
		}
	}
	if index < 0 {
		if id != "" {
			index = len(a.toolCalls)
		} else {
			index = int(tc.Get("index").Int())
		}
	}

	call := a.toolCalls[index]
	if call == nil {
		call = &streamToolCall{id: id}
		a.toolCalls[index] = call
	}
	if id != "" {
		call.id = id
	}
	if fn := tc.Get("function"); fn.Exists() {
		if name := fn.Get("name"); name.String() != "" {
			call.name = name.String()
		}
		if args := fn.Get("arguments"); args.Exists() {
			call.arguments += args.String()
		}
	}
}

// finalize closes open blocks, flushes buffered tool calls and emits the
// message_delta / message_stop tail.
func (a *claudeStreamAssembler) finalize() []string {
	var events []string

	if a.parser != nil {
		for _, seg := range a.parser.Flush() {
			events = append(events, a.emitSegment(seg)...)
		}
	}

	events = append(events, a.closeThinkingBlock()...)

	thinkingOnly := a.thinkingStarted && !a.emittedMeaningfulText && len(a.toolCalls) == 0

	if !a.textStarted {
		a.textStarted = true
		events = append(events, claudeSSE("content_block_start", fmt.Sprintf(
			`{"type":"content_block_start","index":%d,"content_block":{"type":"text","text":""}}`, a.blockIndex)))
		// Pad a single space so clients do not treat the empty text block
		// as a missing one.
		if thinkingOnly {
			events = append(events, claudeSSE("content_block_delta", fmt.Sprintf(
				`{"type":"content_block_delta","index":%d,"delta":{"type":"text_delta","text":" "}}`, a.blockIndex)))
		}
	}
	events = append(events, claudeSSE("content_block_stop", fmt.Sprintf(
		`{"type":"content_block_stop","index":%d}`, a.blockIndex)))
	a.blockIndex++

	emittedToolUse := false
	for _, index := range sortedToolCallIndexes(a.toolCalls) {
		call := a.toolCalls[index]
		input := normalizeBuiltinToolInput(call.name, util.RepairToolArgumentsString(call.arguments))
		if missing := missingBuiltinToolArgs(call.name, input); len(missing) > 0 {
			log.Warnf("stream tool call missing required args, degraded to text: tool=%s missing=%s id=%s",
				call.name, strings.Join(missing, ","), call.id)
			events = append(events, claudeSSE("content_block_start", fmt.Sprintf(
				`{"type":"content_block_start","index":%d,"content_block":{"type":"text","text":""}}`, a.blockIndex)))
			ev := fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"text_delta","text":""}}`, a.blockIndex)
			ev, _ = sjson.Set(ev, "delta.text", builtinToolErrorText(call.name, missing))
			events = append(events, claudeSSE("content_block_delta", ev))
			events = append(events, claudeSSE("content_block_stop", fmt.Sprintf(
				`{"type":"content_block_stop","index":%d}`, a.blockIndex)))
			a.blockIndex++
			continue
		}

		callID := call.id
		if callID == "" {
			callID = generateShortToolUseID()
		}
		if a.thinkingSignature != "" {
			common.Signatures.Put(callID, a.thinkingSignature)
		}
		start := fmt.Sprintf(`{"type":"content_block_start","index":%d,"content_block":{"type":"tool_use","id":"","name":"","input":{}}}`, a.blockIndex)
		start, _ = sjson.Set(start, "content_block.id", callID)
		start, _ = sjson.Set(start, "content_block.name", call.name)
		events = append(events, claudeSSE("content_block_start", start))
		if hasToolInput(input) {
			ev := fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"input_json_delta","partial_json":""}}`, a.blockIndex)
			ev, _ = sjson.Set(ev, "delta.partial_json", input)
			events = append(events, claudeSSE("content_block_delta", ev))
		}
		events = append(events, claudeSSE("content_block_stop", fmt.Sprintf(
			`{"type":"content_block_stop","index":%d}`, a.blockIndex)))
		a.blockIndex++
		emittedToolUse = true
	}

	stopReason := "end_turn"
	switch {
	case a.contextWindowExceeded:
		stopReason = "model_context_window_exceeded"
	case emittedToolUse:
		stopReason = "tool_use"
	case thinkingOnly:
		stopReason = "max_tokens"
	case a.finishReason == "tool_calls" || a.finishReason == "function_call":
		stopReason = "end_turn"
	default:
		if mapped, ok := openAIStopReasonToClaude[a.finishReason]; ok {
			stopReason = mapped
		}
	}

	// message_delta usage carries input_tokens too: upstream usage arrives
	// at the end of the stream, after message_start already reported zeros.
	delta := `{"type":"message_delta","delta":{"stop_reason":"","stop_sequence":null},"usage":{"input_tokens":0,"output_tokens":0}}`
	delta, _ = sjson.Set(delta, "delta.stop_reason", stopReason)
	delta, _ = sjson.Set(delta, "usage.input_tokens", a.inputTokens)
	delta, _ = sjson.Set(delta, "usage.output_tokens", a.outputTokens)
	events = append(events, claudeSSE("message_delta", delta))
	events = append(events, claudeSSE("message_stop", `{"type":"message_stop"}`))
	return events
}

func claudeSSE(event, data string) string {
	return "event: " + event + "\ndata: " + data
}

// claudeThinkingRequested reports whether the inbound Claude request asked
// for thinking, in any of the accepted encodings.
func claudeThinkingRequested(rawJSON []byte) bool {
	thinkingCfg := gjson.GetBytes(rawJSON, "thinking")
	if !thinkingCfg.Exists() {
		return false
	}
	if thinkingCfg.Type == gjson.True {
		return true
	}
	switch thinkingCfg.Get("type").String() {
	case "enabled", "adaptive":
		return true
	}
	return thinkingCfg.Get("budget_tokens").Int() > 0
}

func sortedToolCallIndexes(calls map[int]*streamToolCall) []int {
	indexes := make([]int, 0, len(calls))
	for idx := range calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	return indexes
}

// normalizeBuiltinToolInput adds the snake_case names for any aliased
// arguments that arrived camelCase. The original keys stay in place.
func normalizeBuiltinToolInput(name, input string) string {
	aliases := builtinToolArgAliases[strings.ToLower(strings.TrimSpace(name))]
	if len(aliases) == 0 || input == "" {
		return input
	}
	for src, dst := range aliases {
		srcVal := gjson.Get(input, src)
		if srcVal.Exists() && !gjson.Get(input, dst).Exists() {
			input, _ = sjson.SetRaw(input, dst, srcVal.Raw)
		}
	}
	return input
}

func missingBuiltinToolArgs(name, input string) []string {
	required := builtinToolRequiredArgs[strings.ToLower(strings.TrimSpace(name))]
	if len(required) == 0 {
		return nil
	}
	parsed := gjson.Parse(input)
	var missing []string
	for _, key := range required {
		if !parsed.Get(key).Exists() {
			missing = append(missing, key)
		}
	}
	return missing
}

func builtinToolErrorText(name string, missing []string) string {
	return fmt.Sprintf("[tool_call_error] %s missing required args: %s", name, strings.Join(missing, ", "))
}

func hasToolInput(input string) bool {
	return input != "" && len(gjson.Parse(input).Map()) > 0
}

func extractThoughtSignature(message gjson.Result) string {
	signature := ""
	message.Get("tool_calls").ForEach(func(_, tc gjson.Result) bool {
		if sig := toolCallThoughtSignature(tc); sig != "" {
			signature = sig
			return false
		}
		return true
	})
	if signature != "" {
		return signature
	}
	if v := message.Get("extra_content.google.thought_signature"); v.Exists() {
		return v.String()
	}
	if v := message.Get("extra_content.thought_signature"); v.Exists() {
		return v.String()
	}
	return message.Get("signature").String()
}

// toolCallThoughtSignature reads the thought signature attached to a single
// tool call entry, in either the google-nested or flat extra_content shape.
func toolCallThoughtSignature(tc gjson.Result) string {
	if v := tc.Get("extra_content.google.thought_signature"); v.Exists() {
		return v.String()
	}
	if v := tc.Get("extra_content.thought_signature"); v.Exists() {
		return v.String()
	}
	return ""
}

func generateShortToolUseID() string {
	return "toolu_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
