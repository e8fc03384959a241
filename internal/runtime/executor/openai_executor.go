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
	"github.com/router-for-me/AntiHubAPI/internal/constant"
	apperrors "github.com/router-for-me/AntiHubAPI/internal/errors"
	"github.com/router-for-me/AntiHubAPI/internal/usage"
	sdktranslator "github.com/router-for-me/AntiHubAPI/sdk/translator"
)

// Default endpoints for the OpenAI-compatible account types that have one.
// Antigravity deployments vary, so those accounts must configure base-url.
const (
	qwenEndpoint     = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	zaiImageEndpoint = "https://api.z.ai/api/paas/v4"
)

// OpenAICompatExecutor serves the OpenAI-compatible upstream family. The
// qwen, antigravity, and zai-image account types all speak Chat Completions
// and differ only in endpoint and credentials, so one executor covers them;
// the account's config type keeps them apart in logs and usage records.
type OpenAICompatExecutor struct {
	reporter usage.Reporter
}

// NewOpenAICompatExecutor creates an executor for OpenAI-compatible
// upstreams reporting to the given sink.
func NewOpenAICompatExecutor(reporter usage.Reporter) *OpenAICompatExecutor {
	return &OpenAICompatExecutor{reporter: reporter}
}

// Identifier returns the executor identifier.
func (e *OpenAICompatExecutor) Identifier() string { return "openai-compat" }

// Execute performs a non-streaming chat completions request.
func (e *OpenAICompatExecutor) Execute(ctx context.Context, creds *auth.Credentials, req Request, opts Options) (resp Response, err error) {
	token, err := credentialToken(creds)
	if err != nil {
		return resp, err
	}
	base, err := e.resolveBase(creds)
	if err != nil {
		return resp, err
	}

	provider := e.provider(creds)
	reporter := newUsageReporter(e.reporter, provider, req.Model, creds)
	defer reporter.trackFailure(ctx, &err)

	body, _ := sjson.DeleteBytes(req.Payload, "stream")
	body, _ = sjson.DeleteBytes(body, "stream_options")

	httpResp, err := e.do(ctx, creds, token, base, body, provider, req.Model)
	if err != nil {
		return resp, err
	}
	defer closeBody(httpResp.Body, provider)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		b, _ := io.ReadAll(httpResp.Body)
		log.Debugf("%s executor: upstream error status %d: %s", provider, httpResp.StatusCode, summarizeErrorBody(httpResp.Header.Get("Content-Type"), b))
		return resp, upstreamStatusError(provider, httpResp.StatusCode, httpResp.Header.Get("Content-Type"), b)
	}

	reader, err := decodeResponseBody(httpResp.Body, httpResp.Header.Get("Content-Encoding"))
	if err != nil {
		return resp, err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return resp, err
	}
	if counts, ok := parseOpenAIUsage(data); ok {
		reporter.noteCounts(counts)
	}

	var param any
	out := sdktranslator.TranslateNonStream(ctx, sdktranslator.FormatOpenAI, opts.SourceFormat, req.Model, req.Original, body, data, &param)
	reporter.publish(ctx)
	return Response{Payload: []byte(out)}, nil
}

// ExecuteStream performs a streaming chat completions request. Usage is
// requested via stream_options so the final chunk carries token counts.
func (e *OpenAICompatExecutor) ExecuteStream(ctx context.Context, creds *auth.Credentials, req Request, opts Options) (stream <-chan StreamChunk, err error) {
	token, err := credentialToken(creds)
	if err != nil {
		return nil, err
	}
	base, err := e.resolveBase(creds)
	if err != nil {
		return nil, err
	}

	provider := e.provider(creds)
	reporter := newUsageReporter(e.reporter, provider, req.Model, creds)
	defer reporter.trackFailure(ctx, &err)

	body, _ := sjson.SetBytes(req.Payload, "stream", true)
	body, _ = sjson.SetBytes(body, "stream_options.include_usage", true)

	httpResp, err := e.do(ctx, creds, token, base, body, provider, req.Model)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		b, _ := io.ReadAll(httpResp.Body)
		closeBody(httpResp.Body, provider)
		log.Debugf("%s executor: upstream error status %d: %s", provider, httpResp.StatusCode, summarizeErrorBody(httpResp.Header.Get("Content-Type"), b))
		return nil, upstreamStatusError(provider, httpResp.StatusCode, httpResp.Header.Get("Content-Type"), b)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer closeBody(httpResp.Body, provider)

		counts, errRelay := relaySSE(ctx, httpResp.Body, out, sdktranslator.FormatOpenAI, opts.SourceFormat, req.Model, req.Original, body, parseOpenAIUsage)
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

// do sends one request to the upstream chat completions endpoint.
func (e *OpenAICompatExecutor) do(ctx context.Context, creds *auth.Credentials, token, base string, body []byte, provider, model string) (*http.Response, error) {
	url := base + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	applyCredentialHeaders(httpReq, creds, token)

	middleware.RecordProviderRequest(provider, model)
	log.Debugf("%s executor: POST %s (%d bytes)", provider, url, len(body))
	return upstreamHTTPClient().Do(httpReq)
}

// resolveBase picks the endpoint for the account: explicit base-url first,
// then the config type's default.
func (e *OpenAICompatExecutor) resolveBase(creds *auth.Credentials) (string, error) {
	if creds != nil && creds.BaseURL != "" {
		return strings.TrimSuffix(creds.BaseURL, "/"), nil
	}
	configType := ""
	if creds != nil {
		configType = creds.ConfigType
	}
	switch configType {
	case constant.ConfigTypeQwen:
		return qwenEndpoint, nil
	case constant.ConfigTypeZaiImage:
		return zaiImageEndpoint, nil
	default:
		return "", apperrors.New(http.StatusInternalServerError, "missing_base_url",
			"account type "+configType+" has no default endpoint; set base-url", nil)
	}
}

// provider returns the label used in logs, metrics, and usage records. The
// account's config type wins so the three served types stay distinguishable.
func (e *OpenAICompatExecutor) provider(creds *auth.Credentials) string {
	if creds != nil && creds.ConfigType != "" {
		return creds.ConfigType
	}
	return e.Identifier()
}
