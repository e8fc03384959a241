package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/router-for-me/AntiHubAPI/internal/api/middleware"
	"github.com/router-for-me/AntiHubAPI/internal/auth"
	apperrors "github.com/router-for-me/AntiHubAPI/internal/errors"
	"github.com/router-for-me/AntiHubAPI/internal/eventstream"
	"github.com/router-for-me/AntiHubAPI/internal/thinking"
	kiroclaude "github.com/router-for-me/AntiHubAPI/internal/translator/kiro/claude"
	"github.com/router-for-me/AntiHubAPI/internal/usage"
	sdktranslator "github.com/router-for-me/AntiHubAPI/sdk/translator"
)

const (
	kiroEndpoint    = "https://q.us-east-1.amazonaws.com"
	kiroContentType = "application/x-amz-json-1.0"
	kiroTarget      = "AmazonCodeWhispererStreamingService.GenerateAssistantResponse"
	kiroOrigin      = "AI_EDITOR"
)

// Kiro event stream event names.
const (
	kiroEventAssistantResponse = "assistantResponseEvent"
	kiroEventToolUse           = "toolUseEvent"
	kiroEventWebLinks          = "supplementaryWebLinksEvent"
)

// KiroExecutor calls the CodeWhisperer streaming service. Kiro speaks Claude
// on the way in but answers in binary event-stream framing, so both paths
// decode frames and re-frame them into Anthropic SSE blocks before response
// translation. Kiro reports no token usage; input is counted from the
// request and output from the emitted content.
type KiroExecutor struct {
	reporter usage.Reporter
}

// NewKiroExecutor creates a Kiro executor reporting to the given sink.
func NewKiroExecutor(reporter usage.Reporter) *KiroExecutor {
	return &KiroExecutor{reporter: reporter}
}

// Identifier returns the executor identifier.
func (e *KiroExecutor) Identifier() string { return "kiro" }

// Execute performs a non-streaming request, draining the event stream and
// assembling a single Claude message before translating to the front format.
func (e *KiroExecutor) Execute(ctx context.Context, creds *auth.Credentials, req Request, opts Options) (resp Response, err error) {
	token, err := credentialToken(creds)
	if err != nil {
		return resp, err
	}

	reporter := newUsageReporter(e.reporter, e.Identifier(), req.Model, creds)
	defer reporter.trackFailure(ctx, &err)

	kiroBody, thinkingEnabled, err := kiroclaude.BuildKiroPayload(req.Payload, kiroProfileArn(creds), kiroOrigin)
	if err != nil {
		return resp, err
	}

	httpResp, err := e.do(ctx, creds, token, kiroBody, req.Model)
	if err != nil {
		return resp, err
	}
	defer closeBody(httpResp.Body, e.Identifier())

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		b, _ := io.ReadAll(httpResp.Body)
		log.Debugf("kiro executor: upstream error status %d: %s", httpResp.StatusCode, summarizeErrorBody(httpResp.Header.Get("Content-Type"), b))
		return resp, upstreamStatusError(e.Identifier(), httpResp.StatusCode, httpResp.Header.Get("Content-Type"), b)
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return resp, err
	}

	decoder := eventstream.NewDecoder()
	decoder.Feed(data)
	frames, err := decoder.Messages()
	middleware.RecordFramesDecoded(len(frames))
	if err != nil {
		return resp, e.integrityError(err)
	}

	var content strings.Builder
	var toolUses []kiroclaude.KiroToolUse
	var toolState *kiroclaude.ToolUseState
	processedIDs := make(map[string]bool)

	for _, frame := range frames {
		if frame.MessageType() == "exception" || frame.MessageType() == "error" {
			return resp, kiroExceptionError(frame)
		}
		switch frame.EventType() {
		case kiroEventAssistantResponse:
			content.WriteString(gjson.GetBytes(frame.Payload, "content").String())
		case kiroEventToolUse:
			completed, next := kiroclaude.ProcessToolUseEvent(kiroEventPayload(frame), toolState, processedIDs)
			toolUses = append(toolUses, completed...)
			toolState = next
		case kiroEventWebLinks:
			// Reference links have no Claude representation.
		default:
			log.Debugf("kiro executor: ignoring event type %q", frame.EventType())
		}
	}
	if tu, ok := kiroclaude.FinishToolUse(toolState, processedIDs); ok {
		toolUses = append(toolUses, tu)
	}

	text, embedded := kiroclaude.ParseEmbeddedToolCalls(content.String(), processedIDs)
	toolUses = kiroclaude.DeduplicateToolUses(append(toolUses, embedded...))

	stopReason := "end_turn"
	if len(toolUses) > 0 {
		stopReason = "tool_use"
	}
	inputTokens, outputTokens := e.countTokens(req.Model, req.Payload, text, toolUses)

	claudeResp := kiroclaude.BuildClaudeResponse(req.Model, text, toolUses, stopReason, inputTokens, outputTokens, thinkingEnabled)

	var param any
	out := sdktranslator.TranslateNonStream(ctx, sdktranslator.FormatKiro, opts.SourceFormat, req.Model, req.Original, req.Payload, claudeResp, &param)

	reporter.noteCounts(usage.Counts{InputTokens: inputTokens, OutputTokens: outputTokens})
	reporter.publish(ctx)
	return Response{Payload: []byte(out)}, nil
}

// ExecuteStream performs a streaming request, re-framing decoded events into
// Anthropic SSE blocks as they arrive.
func (e *KiroExecutor) ExecuteStream(ctx context.Context, creds *auth.Credentials, req Request, opts Options) (stream <-chan StreamChunk, err error) {
	token, err := credentialToken(creds)
	if err != nil {
		return nil, err
	}

	reporter := newUsageReporter(e.reporter, e.Identifier(), req.Model, creds)
	defer reporter.trackFailure(ctx, &err)

	kiroBody, thinkingEnabled, err := kiroclaude.BuildKiroPayload(req.Payload, kiroProfileArn(creds), kiroOrigin)
	if err != nil {
		return nil, err
	}

	httpResp, err := e.do(ctx, creds, token, kiroBody, req.Model)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		b, _ := io.ReadAll(httpResp.Body)
		closeBody(httpResp.Body, e.Identifier())
		log.Debugf("kiro executor: upstream error status %d: %s", httpResp.StatusCode, summarizeErrorBody(httpResp.Header.Get("Content-Type"), b))
		return nil, upstreamStatusError(e.Identifier(), httpResp.StatusCode, httpResp.Header.Get("Content-Type"), b)
	}

	out := make(chan StreamChunk)
	go e.relayEventStream(ctx, httpResp.Body, out, reporter, req, opts, thinkingEnabled)
	return out, nil
}

// relayEventStream decodes frames off the wire and drives the SSE re-framing
// until the body ends or the stream fails.
func (e *KiroExecutor) relayEventStream(ctx context.Context, body io.ReadCloser, out chan<- StreamChunk, reporter *usageReporter, req Request, opts Options, thinkingEnabled bool) {
	defer close(out)
	defer closeBody(body, e.Identifier())

	inputTokens := estimateClaudeRequestTokens(req.Model, req.Payload)

	framer := newKiroStreamFramer(ctx, out, req, opts, thinkingEnabled, inputTokens)
	framer.start()

	decoder := eventstream.NewDecoder()
	buf := make([]byte, 32*1024)
	frames := 0

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			decoder.Feed(buf[:n])
			for {
				frame, decodeErr := decoder.Next()
				if decodeErr != nil {
					middleware.RecordFramesDecoded(frames)
					appErr := e.integrityError(decodeErr)
					framer.abort(appErr.Code, appErr.Message)
					reporter.publishFailure(ctx)
					out <- StreamChunk{Err: appErr}
					return
				}
				if frame == nil {
					break
				}
				frames++
				if frame.MessageType() == "exception" || frame.MessageType() == "error" {
					middleware.RecordFramesDecoded(frames)
					appErr := kiroExceptionError(frame)
					framer.abort("upstream_error", appErr.Message)
					reporter.publishFailure(ctx)
					out <- StreamChunk{Err: appErr}
					return
				}
				framer.handle(frame)
			}
		}
		if readErr != nil {
			middleware.RecordFramesDecoded(frames)
			if readErr != io.EOF {
				reporter.publishFailure(ctx)
				out <- StreamChunk{Err: readErr}
				return
			}
			break
		}
	}

	if decoder.Buffered() > 0 {
		// Body ended inside a frame; the tail cannot be trusted.
		appErr := apperrors.NewFrameIntegrity(fmt.Errorf("stream ended with %d bytes of partial frame", decoder.Buffered()))
		middleware.RecordFrameFailure("truncated_frame")
		framer.abort(appErr.Code, appErr.Message)
		reporter.publishFailure(ctx)
		out <- StreamChunk{Err: appErr}
		return
	}

	outputTokens := framer.finish()
	reporter.noteCounts(usage.Counts{InputTokens: inputTokens, OutputTokens: outputTokens})
	reporter.ensurePublished(ctx)
}

// do sends one request to the Kiro endpoint.
func (e *KiroExecutor) do(ctx context.Context, creds *auth.Credentials, token string, body []byte, model string) (*http.Response, error) {
	endpoint := kiroEndpoint
	if creds != nil && creds.BaseURL != "" {
		endpoint = strings.TrimSuffix(creds.BaseURL, "/")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", kiroContentType)
	httpReq.Header.Set("x-amz-target", kiroTarget)
	applyCredentialHeaders(httpReq, creds, token)

	middleware.RecordProviderRequest(e.Identifier(), model)
	log.Debugf("kiro executor: POST %s (%d bytes)", endpoint, len(body))
	return upstreamHTTPClient().Do(httpReq)
}

// integrityError maps decoder failures onto the stream-fatal error the client
// sees, recording the failure code.
func (e *KiroExecutor) integrityError(err error) *apperrors.AppError {
	var integrity *eventstream.FrameIntegrityError
	if errors.As(err, &integrity) {
		middleware.RecordFrameFailure(integrity.Code)
		return apperrors.NewFrameIntegrity(integrity)
	}
	return apperrors.NewMalformedUpstream("kiro event stream decode failed", err)
}

// countTokens estimates request and response tokens; Kiro reports none.
func (e *KiroExecutor) countTokens(model string, requestBody []byte, text string, toolUses []kiroclaude.KiroToolUse) (int64, int64) {
	inputTokens := estimateClaudeRequestTokens(model, requestBody)

	var rendered strings.Builder
	rendered.WriteString(text)
	for _, tu := range toolUses {
		rendered.WriteString(tu.Name)
		if b, err := json.Marshal(tu.Input); err == nil {
			rendered.Write(b)
		}
	}
	outputTokens, err := usage.CountTokens(model, rendered.String())
	if err != nil {
		log.Debugf("kiro executor: output token estimate failed: %v", err)
	}
	return inputTokens, outputTokens
}

func estimateClaudeRequestTokens(model string, body []byte) int64 {
	count, err := usage.CountRequestTokens(model, body)
	if err != nil {
		log.Debugf("kiro executor: input token estimate failed: %v", err)
		return 0
	}
	return count
}

func kiroProfileArn(creds *auth.Credentials) string {
	if creds == nil {
		return ""
	}
	return creds.ProfileArn
}

// kiroEventPayload parses a frame payload into the generic map the tool-use
// accumulator works on.
func kiroEventPayload(frame *eventstream.Message) map[string]any {
	event := make(map[string]any)
	if err := json.Unmarshal(frame.Payload, &event); err != nil {
		log.Debugf("kiro executor: undecodable %s payload: %v", frame.EventType(), err)
	}
	return event
}

// kiroExceptionError surfaces an exception frame as an upstream error. The
// payload usually carries a short JSON message.
func kiroExceptionError(frame *eventstream.Message) *apperrors.AppError {
	detail := frame.ExceptionType()
	if detail == "" {
		detail = frame.ErrorCode()
	}
	if detail == "" {
		detail = "exception"
	}
	msg := gjson.GetBytes(frame.Payload, "message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(frame.Payload))
	}
	middleware.RecordAPIError("upstream_exception", "kiro")
	return apperrors.New(http.StatusBadGateway, "upstream_error", fmt.Sprintf("kiro upstream %s: %s", detail, msg), nil)
}

// kiroStreamFramer turns decoded Kiro events into a well-formed Anthropic SSE
// sequence and pushes each block through the response translator for the
// front format. Blocks are opened lazily and indexed in arrival order;
// thinking-tagged text is split into a leading thinking block when the
// request asked for it.
type kiroStreamFramer struct {
	ctx   context.Context
	out   chan<- StreamChunk
	req   Request
	front sdktranslator.Format
	param any

	parser       *thinking.StreamParser
	processedIDs map[string]bool
	toolState    *kiroclaude.ToolUseState

	nextIndex int
	openIndex int
	openKind  string

	sawToolUse  bool
	inputTokens int64
	output      strings.Builder
	aborted     bool
}

func newKiroStreamFramer(ctx context.Context, out chan<- StreamChunk, req Request, opts Options, thinkingEnabled bool, inputTokens int64) *kiroStreamFramer {
	f := &kiroStreamFramer{
		ctx:          ctx,
		out:          out,
		req:          req,
		front:        opts.SourceFormat,
		processedIDs: make(map[string]bool),
		openIndex:    -1,
		inputTokens:  inputTokens,
	}
	if thinkingEnabled {
		f.parser = thinking.NewStreamParser()
	}
	return f
}

// start opens the message.
func (f *kiroStreamFramer) start() {
	f.emit(kiroclaude.BuildClaudeMessageStartEvent(f.req.Model, f.inputTokens))
	f.emit(kiroclaude.BuildClaudePingEvent())
}

// handle folds one decoded frame into the SSE sequence.
func (f *kiroStreamFramer) handle(frame *eventstream.Message) {
	switch frame.EventType() {
	case kiroEventAssistantResponse:
		content := gjson.GetBytes(frame.Payload, "content").String()
		if content == "" {
			return
		}
		if f.parser != nil {
			for _, seg := range f.parser.Parse(content) {
				f.emitSegment(seg)
			}
			return
		}
		f.emitText(content)
	case kiroEventToolUse:
		completed, next := kiroclaude.ProcessToolUseEvent(kiroEventPayload(frame), f.toolState, f.processedIDs)
		f.toolState = next
		for _, tu := range completed {
			f.emitToolUse(tu)
		}
	case kiroEventWebLinks:
		// Reference links have no Claude representation.
	default:
		log.Debugf("kiro executor: ignoring stream event type %q", frame.EventType())
	}
}

// finish flushes pending state and closes the message, returning the output
// token estimate.
func (f *kiroStreamFramer) finish() int64 {
	if f.parser != nil {
		for _, seg := range f.parser.Flush() {
			f.emitSegment(seg)
		}
	}
	if tu, ok := kiroclaude.FinishToolUse(f.toolState, f.processedIDs); ok {
		f.emitToolUse(tu)
	}
	if f.nextIndex == 0 {
		// Clients expect at least one content block even for an empty answer.
		f.ensureBlock("text")
	}
	f.closeOpenBlock()

	stopReason := "end_turn"
	if f.sawToolUse {
		stopReason = "tool_use"
	}
	outputTokens, err := usage.CountTokens(f.req.Model, f.output.String())
	if err != nil {
		log.Debugf("kiro executor: output token estimate failed: %v", err)
	}
	f.emit(kiroclaude.BuildClaudeMessageDeltaEvent(stopReason, f.inputTokens, outputTokens))
	f.emit(kiroclaude.BuildClaudeMessageStopEvent())
	return outputTokens
}

// abort emits a terminal error event so clients that already received the
// message head see a well-formed ending.
func (f *kiroStreamFramer) abort(errType, message string) {
	if f.aborted {
		return
	}
	f.aborted = true
	f.emit(kiroclaude.BuildClaudeErrorEvent(errType, message))
}

func (f *kiroStreamFramer) emitSegment(seg thinking.Segment) {
	if seg.Content == "" {
		return
	}
	if seg.Type == thinking.SegmentThinking {
		f.ensureBlock("thinking")
		f.output.WriteString(seg.Content)
		f.emit(kiroclaude.BuildClaudeThinkingDeltaEvent(f.openIndex, seg.Content))
		return
	}
	f.emitText(seg.Content)
}

func (f *kiroStreamFramer) emitText(text string) {
	f.ensureBlock("text")
	f.output.WriteString(text)
	f.emit(kiroclaude.BuildClaudeTextDeltaEvent(f.openIndex, text))
}

func (f *kiroStreamFramer) emitToolUse(tu kiroclaude.KiroToolUse) {
	f.closeOpenBlock()
	index := f.nextIndex
	f.nextIndex++

	input := "{}"
	if b, err := json.Marshal(tu.Input); err == nil {
		input = string(b)
	}
	f.output.WriteString(tu.Name)
	f.output.WriteString(input)

	f.emit(kiroclaude.BuildClaudeContentBlockStartEvent(index, "tool_use", tu.ToolUseID, tu.Name))
	f.emit(kiroclaude.BuildClaudeInputJSONDeltaEvent(index, input))
	f.emit(kiroclaude.BuildClaudeContentBlockStopEvent(index))
	f.sawToolUse = true
}

// ensureBlock opens a block of the wanted kind, closing a block of another
// kind first. Consecutive deltas of one kind share a block.
func (f *kiroStreamFramer) ensureBlock(kind string) {
	if f.openIndex >= 0 && f.openKind == kind {
		return
	}
	f.closeOpenBlock()
	f.openIndex = f.nextIndex
	f.nextIndex++
	f.openKind = kind
	f.emit(kiroclaude.BuildClaudeContentBlockStartEvent(f.openIndex, kind, "", ""))
}

func (f *kiroStreamFramer) closeOpenBlock() {
	if f.openIndex < 0 {
		return
	}
	f.emit(kiroclaude.BuildClaudeContentBlockStopEvent(f.openIndex))
	f.openIndex = -1
	f.openKind = ""
}

// emit pushes one Anthropic SSE block through the response translator and
// forwards the converted chunks.
func (f *kiroStreamFramer) emit(block []byte) {
	chunks := sdktranslator.TranslateStream(f.ctx, sdktranslator.FormatKiro, f.front, f.req.Model, f.req.Original, f.req.Payload, block, &f.param)
	for i := range chunks {
		f.out <- StreamChunk{Payload: []byte(chunks[i])}
	}
}
