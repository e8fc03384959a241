package executor

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"

	"github.com/router-for-me/AntiHubAPI/internal/api/middleware"
	"github.com/router-for-me/AntiHubAPI/internal/auth"
	"github.com/router-for-me/AntiHubAPI/internal/usage"
	sdktranslator "github.com/router-for-me/AntiHubAPI/sdk/translator"
)

const (
	geminiCLIEndpoint     = "https://cloudcode-pa.googleapis.com"
	geminiCLIGeneratePath = "/v1internal:generateContent"
	geminiCLIStreamPath   = "/v1internal:streamGenerateContent"
)

// GeminiCLIExecutor calls the cloudcode-pa endpoint the Gemini CLI uses.
// Request bodies arrive already wrapped in the CLI envelope; the executor
// fills in the account's project id and picks the generate or stream action.
type GeminiCLIExecutor struct {
	reporter usage.Reporter
}

// NewGeminiCLIExecutor creates a Gemini CLI executor reporting to the given
// sink.
func NewGeminiCLIExecutor(reporter usage.Reporter) *GeminiCLIExecutor {
	return &GeminiCLIExecutor{reporter: reporter}
}

// Identifier returns the executor identifier.
func (e *GeminiCLIExecutor) Identifier() string { return "gemini-cli" }

// Execute performs a non-streaming generateContent request.
func (e *GeminiCLIExecutor) Execute(ctx context.Context, creds *auth.Credentials, req Request, opts Options) (resp Response, err error) {
	token, err := credentialToken(creds)
	if err != nil {
		return resp, err
	}

	reporter := newUsageReporter(e.reporter, e.Identifier(), req.Model, creds)
	defer reporter.trackFailure(ctx, &err)

	body := e.fillProject(creds, req.Payload)
	httpResp, err := e.do(ctx, creds, token, body, req.Model, false)
	if err != nil {
		return resp, err
	}
	defer closeBody(httpResp.Body, e.Identifier())

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		b, _ := io.ReadAll(httpResp.Body)
		log.Debugf("gemini-cli executor: upstream error status %d: %s", httpResp.StatusCode, summarizeErrorBody(httpResp.Header.Get("Content-Type"), b))
		return resp, upstreamStatusError(e.Identifier(), httpResp.StatusCode, httpResp.Header.Get("Content-Type"), b)
	}

	reader, err := decodeResponseBody(httpResp.Body, httpResp.Header.Get("Content-Encoding"))
	if err != nil {
		return resp, err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return resp, err
	}
	if counts, ok := parseGeminiUsage(data); ok {
		reporter.noteCounts(counts)
	}

	var param any
	out := sdktranslator.TranslateNonStream(ctx, sdktranslator.FormatGeminiCLI, opts.SourceFormat, req.Model, req.Original, body, data, &param)
	reporter.publish(ctx)
	return Response{Payload: []byte(out)}, nil
}

// ExecuteStream performs a streaming streamGenerateContent request over SSE.
func (e *GeminiCLIExecutor) ExecuteStream(ctx context.Context, creds *auth.Credentials, req Request, opts Options) (stream <-chan StreamChunk, err error) {
	token, err := credentialToken(creds)
	if err != nil {
		return nil, err
	}

	reporter := newUsageReporter(e.reporter, e.Identifier(), req.Model, creds)
	defer reporter.trackFailure(ctx, &err)

	body := e.fillProject(creds, req.Payload)
	httpResp, err := e.do(ctx, creds, token, body, req.Model, true)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		b, _ := io.ReadAll(httpResp.Body)
		closeBody(httpResp.Body, e.Identifier())
		log.Debugf("gemini-cli executor: upstream error status %d: %s", httpResp.StatusCode, summarizeErrorBody(httpResp.Header.Get("Content-Type"), b))
		return nil, upstreamStatusError(e.Identifier(), httpResp.StatusCode, httpResp.Header.Get("Content-Type"), b)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer closeBody(httpResp.Body, e.Identifier())

		counts, errRelay := relaySSE(ctx, httpResp.Body, out, sdktranslator.FormatGeminiCLI, opts.SourceFormat, req.Model, req.Original, body, parseGeminiUsage)
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

// do sends one request to the cloudcode-pa endpoint.
func (e *GeminiCLIExecutor) do(ctx context.Context, creds *auth.Credentials, token string, body []byte, model string, stream bool) (*http.Response, error) {
	base := geminiCLIEndpoint
	if creds != nil && creds.BaseURL != "" {
		base = strings.TrimSuffix(creds.BaseURL, "/")
	}
	url := base + geminiCLIGeneratePath
	if stream {
		url = base + geminiCLIStreamPath + "?alt=sse"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	applyCredentialHeaders(httpReq, creds, token)

	middleware.RecordProviderRequest(e.Identifier(), model)
	log.Debugf("gemini-cli executor: POST %s (%d bytes)", url, len(body))
	return upstreamHTTPClient().Do(httpReq)
}

// fillProject stamps the account's project id into the CLI envelope. The
// request translator leaves the field empty because only the account knows
// which project the call bills against.
func (e *GeminiCLIExecutor) fillProject(creds *auth.Credentials, payload []byte) []byte {
	if creds == nil || creds.ProjectID == "" {
		return payload
	}
	body, _ := sjson.SetBytes(payload, "project", creds.ProjectID)
	return body
}
