// Package executor performs upstream provider calls and translates their
// responses back to the front protocol the client spoke. Handlers translate
// the request body to the upstream schema before dispatch; executors own the
// transport, the upstream's framing quirks, response translation, and one
// usage record per request.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/router-for-me/AntiHubAPI/internal/api/middleware"
	"github.com/router-for-me/AntiHubAPI/internal/auth"
	"github.com/router-for-me/AntiHubAPI/internal/constant"
	apperrors "github.com/router-for-me/AntiHubAPI/internal/errors"
	"github.com/router-for-me/AntiHubAPI/internal/usage"
	sdktranslator "github.com/router-for-me/AntiHubAPI/sdk/translator"
)

// Request is one upstream call. Payload is the body already translated to
// the upstream schema; Original preserves the client's request for response
// translators that consult it.
type Request struct {
	Model    string
	Payload  []byte
	Original []byte
}

// Response is a complete non-streaming result in the front schema.
type Response struct {
	Payload []byte
}

// StreamChunk is one translated stream unit or a terminal error.
type StreamChunk struct {
	Payload []byte
	Err     error
}

// Options carries per-request execution directives.
type Options struct {
	// SourceFormat is the front protocol the client spoke; upstream output
	// is translated back to it.
	SourceFormat sdktranslator.Format
	// Stream reports whether the client asked for a streaming response.
	Stream bool
}

// Executor executes requests against one upstream provider type.
type Executor interface {
	// Identifier returns the provider name used in logs and usage records.
	Identifier() string
	// Execute performs a non-streaming request.
	Execute(ctx context.Context, creds *auth.Credentials, req Request, opts Options) (Response, error)
	// ExecuteStream performs a streaming request. The returned channel is
	// closed after the final chunk; a chunk with Err set ends the stream.
	ExecuteStream(ctx context.Context, creds *auth.Credentials, req Request, opts Options) (<-chan StreamChunk, error)
}

// Manager holds one executor per provider type and dispatches by the
// account's config type.
type Manager struct {
	kiro      *KiroExecutor
	codex     *CodexExecutor
	openAI    *OpenAICompatExecutor
	geminiCLI *GeminiCLIExecutor
}

// NewManager builds the provider executors around a shared usage sink.
func NewManager(reporter usage.Reporter) *Manager {
	return &Manager{
		kiro:      NewKiroExecutor(reporter),
		codex:     NewCodexExecutor(reporter),
		openAI:    NewOpenAICompatExecutor(reporter),
		geminiCLI: NewGeminiCLIExecutor(reporter),
	}
}

// ForConfigType returns the executor serving the given account type.
func (m *Manager) ForConfigType(configType string) (Executor, bool) {
	switch configType {
	case constant.ConfigTypeKiro:
		return m.kiro, true
	case constant.ConfigTypeCodex:
		return m.codex, true
	case constant.ConfigTypeQwen, constant.ConfigTypeAntigravity, constant.ConfigTypeZaiImage:
		return m.openAI, true
	case constant.ConfigTypeGeminiCLI:
		return m.geminiCLI, true
	default:
		return nil, false
	}
}

// usageReporter publishes exactly one usage record per upstream call. The
// synchronous part of a request defers trackFailure; stream goroutines call
// ensurePublished after the channel drains.
type usageReporter struct {
	sink      usage.Reporter
	record    usage.Record
	start     time.Time
	published bool
}

func newUsageReporter(sink usage.Reporter, provider, model string, creds *auth.Credentials) *usageReporter {
	r := &usageReporter{
		sink:  sink,
		start: time.Now(),
		record: usage.Record{
			Provider: provider,
			Model:    model,
			Success:  true,
		},
	}
	if creds != nil {
		r.record.ConfigType = creds.ConfigType
		r.record.AccountID = creds.AccountID
	}
	return r
}

// noteCounts stashes token counts discovered mid-request so whichever publish
// fires reports them.
func (r *usageReporter) noteCounts(counts usage.Counts) {
	if r.published {
		return
	}
	r.record.Counts = counts
}

// publish reports the record. Only the first publish wins.
func (r *usageReporter) publish(ctx context.Context) {
	if r == nil || r.published {
		return
	}
	r.published = true
	r.record.DurationMs = time.Since(r.start).Milliseconds()
	if r.sink != nil {
		r.sink.Report(ctx, r.record)
	}
}

// publishFailure reports the record as failed, keeping any counts noted
// before the failure.
func (r *usageReporter) publishFailure(ctx context.Context) {
	if r.published {
		return
	}
	r.record.Success = false
	r.publish(ctx)
}

// ensurePublished reports the record if nothing else has.
func (r *usageReporter) ensurePublished(ctx context.Context) {
	r.publish(ctx)
}

// trackFailure publishes a failure record when the guarded call returned an
// error. Deferred with a pointer to the named return error.
func (r *usageReporter) trackFailure(ctx context.Context, errPtr *error) {
	if errPtr == nil || *errPtr == nil {
		return
	}
	r.publishFailure(ctx)
}

// credentialToken extracts the bearer credential or fails with the
// authorization error surfaced to the client.
func credentialToken(creds *auth.Credentials) (string, error) {
	if creds == nil || creds.Token == nil || creds.Token.AccessToken == "" {
		return "", apperrors.New(http.StatusUnauthorized, "missing_credentials", "account has no usable credential", nil)
	}
	return creds.Token.AccessToken, nil
}

// upstreamStatusError converts a non-2xx upstream response into the AppError
// returned to the client, preserving the upstream status code.
func upstreamStatusError(provider string, status int, contentType string, body []byte) *apperrors.AppError {
	middleware.RecordAPIError(errorTypeForStatus(status), provider)
	return apperrors.New(status, "upstream_error",
		fmt.Sprintf("%s upstream returned status %d: %s", provider, status, summarizeErrorBody(contentType, body)), nil)
}

func errorTypeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "auth"
	case status == http.StatusTooManyRequests:
		return "rate_limit"
	case status >= 500:
		return "upstream_5xx"
	default:
		return "upstream_4xx"
	}
}

// relaySSE pumps upstream SSE data lines through the response translators
// toward the front format and forwards the results to out. Upstreams that
// close without a [DONE] marker get a synthetic one so the stream assemblers
// finalize. Returns the last usage counts the upstream reported.
func relaySSE(ctx context.Context, body io.Reader, out chan<- StreamChunk, upstream, front sdktranslator.Format, model string, original, translated []byte, parseUsage func([]byte) (usage.Counts, bool)) (usage.Counts, error) {
	var (
		param   any
		counts  usage.Counts
		sawDone bool
	)
	forward := func(payload []byte) {
		for _, chunk := range sdktranslator.TranslateStream(ctx, upstream, front, model, original, translated, payload, &param) {
			out <- StreamChunk{Payload: []byte(chunk)}
		}
	}

	scanner := newSSEScanner(body)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if !bytes.HasPrefix(line, []byte(ssePrefixData)) {
			continue
		}
		payload := bytes.TrimSpace(line[len(ssePrefixData):])
		if len(payload) == 0 {
			continue
		}
		if string(payload) == sseDone {
			sawDone = true
		} else if parseUsage != nil {
			if c, ok := parseUsage(payload); ok {
				counts = c
			}
		}
		forward(payload)
	}
	if err := scanner.Err(); err != nil {
		return counts, err
	}
	if !sawDone {
		forward([]byte(sseDone))
	}
	return counts, nil
}

// parseOpenAIUsage reads a Chat Completions usage object from a chunk or a
// complete response.
func parseOpenAIUsage(payload []byte) (usage.Counts, bool) {
	u := gjson.GetBytes(payload, "usage")
	if !u.IsObject() {
		return usage.Counts{}, false
	}
	return usage.Counts{
		InputTokens:  u.Get("prompt_tokens").Int(),
		OutputTokens: u.Get("completion_tokens").Int(),
		CachedTokens: u.Get("prompt_tokens_details.cached_tokens").Int(),
		TotalTokens:  u.Get("total_tokens").Int(),
	}, true
}

// parseCodexUsage reads usage from a response.completed event payload.
func parseCodexUsage(payload []byte) (usage.Counts, bool) {
	u := gjson.GetBytes(payload, "response.usage")
	if !u.IsObject() {
		return usage.Counts{}, false
	}
	return usage.Counts{
		InputTokens:  u.Get("input_tokens").Int(),
		OutputTokens: u.Get("output_tokens").Int(),
		CachedTokens: u.Get("input_tokens_details.cached_tokens").Int(),
		TotalTokens:  u.Get("total_tokens").Int(),
	}, true
}

// parseGeminiUsage reads usageMetadata, tolerating the CLI response envelope.
// Thought tokens count as output.
func parseGeminiUsage(payload []byte) (usage.Counts, bool) {
	meta := gjson.GetBytes(payload, "usageMetadata")
	if !meta.IsObject() {
		meta = gjson.GetBytes(payload, "response.usageMetadata")
	}
	if !meta.IsObject() {
		return usage.Counts{}, false
	}
	return usage.Counts{
		InputTokens:  meta.Get("promptTokenCount").Int(),
		OutputTokens: meta.Get("candidatesTokenCount").Int() + meta.Get("thoughtsTokenCount").Int(),
		CachedTokens: meta.Get("cachedContentTokenCount").Int(),
		TotalTokens:  meta.Get("totalTokenCount").Int(),
	}, true
}
