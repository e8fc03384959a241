package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/router-for-me/AntiHubAPI/internal/api/middleware"
	"github.com/router-for-me/AntiHubAPI/internal/auth"
	apperrors "github.com/router-for-me/AntiHubAPI/internal/errors"
	"github.com/router-for-me/AntiHubAPI/internal/usage"
	sdktranslator "github.com/router-for-me/AntiHubAPI/sdk/translator"
)

const codexEndpoint = "https://chatgpt.com/backend-api"

// CodexExecutor calls the ChatGPT backend Responses API. The upstream answers
// over SSE regardless of how the front asked, so non-streaming fronts drain
// the event family down to the terminal response.completed payload before
// translating.
type CodexExecutor struct {
	reporter usage.Reporter
}

// NewCodexExecutor creates a Codex executor reporting to the given sink.
func NewCodexExecutor(reporter usage.Reporter) *CodexExecutor {
	return &CodexExecutor{reporter: reporter}
}

// Identifier returns the executor identifier.
func (e *CodexExecutor) Identifier() string { return "codex" }

// Execute performs a request for a non-streaming front, aggregating the SSE
// events into the completed response.
func (e *CodexExecutor) Execute(ctx context.Context, creds *auth.Credentials, req Request, opts Options) (resp Response, err error) {
	token, err := credentialToken(creds)
	if err != nil {
		return resp, err
	}

	reporter := newUsageReporter(e.reporter, e.Identifier(), req.Model, creds)
	defer reporter.trackFailure(ctx, &err)

	body := codexUpstreamBody(creds, req.Payload)
	httpResp, err := e.do(ctx, creds, token, body, req.Model)
	if err != nil {
		return resp, err
	}
	defer closeBody(httpResp.Body, e.Identifier())

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		b, _ := io.ReadAll(httpResp.Body)
		log.Debugf("codex executor: upstream error status %d: %s", httpResp.StatusCode, summarizeErrorBody(httpResp.Header.Get("Content-Type"), b))
		return resp, upstreamStatusError(e.Identifier(), httpResp.StatusCode, httpResp.Header.Get("Content-Type"), b)
	}

	completed, err := e.collectCompleted(httpResp.Body)
	if err != nil {
		return resp, err
	}
	if counts, ok := parseCodexUsage(completed); ok {
		reporter.noteCounts(counts)
	}

	var param any
	out := sdktranslator.TranslateNonStream(ctx, sdktranslator.FormatCodex, opts.SourceFormat, req.Model, req.Original, body, completed, &param)
	reporter.publish(ctx)
	return Response{Payload: []byte(out)}, nil
}

// ExecuteStream performs a streaming request, relaying response.* events
// through the front translator as they arrive.
func (e *CodexExecutor) ExecuteStream(ctx context.Context, creds *auth.Credentials, req Request, opts Options) (stream <-chan StreamChunk, err error) {
	token, err := credentialToken(creds)
	if err != nil {
		return nil, err
	}

	reporter := newUsageReporter(e.reporter, e.Identifier(), req.Model, creds)
	defer reporter.trackFailure(ctx, &err)

	body := codexUpstreamBody(creds, req.Payload)
	httpResp, err := e.do(ctx, creds, token, body, req.Model)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		b, _ := io.ReadAll(httpResp.Body)
		closeBody(httpResp.Body, e.Identifier())
		log.Debugf("codex executor: upstream error status %d: %s", httpResp.StatusCode, summarizeErrorBody(httpResp.Header.Get("Content-Type"), b))
		return nil, upstreamStatusError(e.Identifier(), httpResp.StatusCode, httpResp.Header.Get("Content-Type"), b)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer closeBody(httpResp.Body, e.Identifier())

		counts, errRelay := relaySSE(ctx, httpResp.Body, out, sdktranslator.FormatCodex, opts.SourceFormat, req.Model, req.Original, body, parseCodexUsage)
		if errRelay != nil {
			reporter.publishFailure(ctx)
			out <- StreamChunk{Err: errRelay}
			return
		}
		reporter.noteCounts(counts)
		reporter.ensurePublished(ctx)
	}()
	return out, nil
}

// collectCompleted drains the SSE body until the terminal event. An error
// event or a stream that ends without response.completed is an upstream
// failure; intermediate deltas carry nothing the aggregate needs.
func (e *CodexExecutor) collectCompleted(body io.Reader) ([]byte, error) {
	scanner := newSSEScanner(body)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if !bytes.HasPrefix(line, []byte(ssePrefixData)) {
			continue
		}
		payload := bytes.TrimSpace(line[len(ssePrefixData):])
		if len(payload) == 0 || string(payload) == sseDone {
			continue
		}
		eventType := gjson.GetBytes(payload, "type").String()
		switch {
		case eventType == "response.completed":
			return bytes.Clone(payload), nil
		case eventType == "response.failed" || eventType == "error" || strings.HasSuffix(eventType, ".error"):
			return nil, codexFailureError(payload)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, apperrors.NewMalformedUpstream("codex stream ended without response.completed", nil)
}

// do sends one request to the Codex responses endpoint.
func (e *CodexExecutor) do(ctx context.Context, creds *auth.Credentials, token string, body []byte, model string) (*http.Response, error) {
	base := codexEndpoint
	if creds != nil && creds.BaseURL != "" {
		base = strings.TrimSuffix(creds.BaseURL, "/")
	}
	url := base + "/codex/responses"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("OpenAI-Beta", "responses=experimental")
	httpReq.Header.Set("originator", "codex_cli_rs")
	if creds != nil && creds.ChatGPTAccountID != "" {
		httpReq.Header.Set("chatgpt-account-id", creds.ChatGPTAccountID)
	}
	applyCredentialHeaders(httpReq, creds, token)

	middleware.RecordProviderRequest(e.Identifier(), model)
	log.Debugf("codex executor: POST %s (%d bytes)", url, len(body))
	return upstreamHTTPClient().Do(httpReq)
}

// codexUpstreamBody applies the account's model hint from the Codex CLI
// config onto the translated body.
func codexUpstreamBody(creds *auth.Credentials, payload []byte) []byte {
	if creds == nil || creds.Model == "" {
		return payload
	}
	body, _ := sjson.SetBytes(payload, "model", creds.Model)
	return body
}

// codexFailureError surfaces a terminal error event as an upstream failure.
func codexFailureError(payload []byte) *apperrors.AppError {
	msg := gjson.GetBytes(payload, "response.error.message").String()
	if msg == "" {
		msg = gjson.GetBytes(payload, "error.message").String()
	}
	if msg == "" {
		msg = gjson.GetBytes(payload, "message").String()
	}
	if msg == "" {
		msg = strings.TrimSpace(string(payload))
	}
	middleware.RecordAPIError("upstream_error", "codex")
	return apperrors.New(http.StatusBadGateway, "upstream_error", fmt.Sprintf("codex upstream error: %s", msg), nil)
}
