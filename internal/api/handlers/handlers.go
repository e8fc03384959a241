// Package handlers provides the HTTP handlers for the gateway's front API
// surfaces (Claude Messages, OpenAI Chat Completions, OpenAI Responses,
// Gemini generateContent). It includes the shared request routing from a
// model id to a configured upstream account, the allowlist enforcement, and
// the execution plumbing toward the provider executors.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/router-for-me/AntiHubAPI/internal/auth"
	"github.com/router-for-me/AntiHubAPI/internal/config"
	"github.com/router-for-me/AntiHubAPI/internal/constant"
	apperrors "github.com/router-for-me/AntiHubAPI/internal/errors"
	"github.com/router-for-me/AntiHubAPI/internal/policy"
	"github.com/router-for-me/AntiHubAPI/internal/runtime/executor"
	"github.com/router-for-me/AntiHubAPI/internal/util"
	sdktranslator "github.com/router-for-me/AntiHubAPI/sdk/translator"
)

// ErrorResponse represents a standard error response format for the API.
// It contains a single ErrorDetail field.
type ErrorResponse struct {
	// Error contains detailed information about the error that occurred.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail provides specific information about an error that occurred.
// It includes a human-readable message, an error type, and an optional error code.
type ErrorDetail struct {
	// Message is a human-readable message providing more details about the error.
	Message string `json:"message"`

	// Type is the category of error that occurred (e.g., "invalid_request_error").
	Type string `json:"type"`

	// Code is a short code identifying the error, if applicable.
	Code string `json:"code,omitempty"`
}

// gatewaySnapshot pairs a configuration with the credential store reading it
// so a reload swaps both together. In-flight requests keep the snapshot they
// resolved against.
type gatewaySnapshot struct {
	cfg   *config.Config
	store *auth.Store
}

// BaseAPIHandler carries the state shared by every front handler: the
// provider executors and the current configuration snapshot.
type BaseAPIHandler struct {
	executors *executor.Manager
	snapshot  atomic.Pointer[gatewaySnapshot]
}

// NewBaseAPIHandlers creates the shared handler state around the executor
// manager and an initial configuration.
func NewBaseAPIHandlers(cfg *config.Config, executors *executor.Manager) *BaseAPIHandler {
	h := &BaseAPIHandler{executors: executors}
	h.UpdateConfig(cfg)
	return h
}

// UpdateConfig swaps the configuration snapshot. Called by the config watcher
// on reload.
func (h *BaseAPIHandler) UpdateConfig(cfg *config.Config) {
	h.snapshot.Store(&gatewaySnapshot{cfg: cfg, store: auth.NewStore(cfg)})
}

// Config returns the current configuration snapshot.
func (h *BaseAPIHandler) Config() *config.Config {
	return h.snapshot.Load().cfg
}

func (h *BaseAPIHandler) store() *auth.Store {
	return h.snapshot.Load().store
}

// routeTarget is one resolved upstream account, ready for dispatch.
type routeTarget struct {
	Account  *config.Account
	Creds    *auth.Credentials
	Exec     executor.Executor
	Upstream sdktranslator.Format
}

// upstreamFormatFor maps an account's config type to the wire format its
// executor speaks. Qwen, antigravity and zai-image are OpenAI-compatible.
func upstreamFormatFor(configType string) sdktranslator.Format {
	switch configType {
	case constant.ConfigTypeKiro:
		return sdktranslator.FormatKiro
	case constant.ConfigTypeCodex:
		return sdktranslator.FormatCodex
	case constant.ConfigTypeGeminiCLI:
		return sdktranslator.FormatGeminiCLI
	default:
		return sdktranslator.FormatOpenAI
	}
}

// NormalizeModel canonicalizes a requested model id before routing. Droid's
// "custom:" wrapper and accidental copy suffixes are stripped here so the
// provider lookup sees the id the upstream actually knows.
func NormalizeModel(model string) string {
	return util.NormalizeDroidCustomModel(strings.TrimSpace(model))
}

// resolveRoute maps a model id to the first configured account allowed to
// serve the requesting API surface. Provider candidates are consulted
// best-first; candidates the allowlist rejects are never dispatched to.
func (h *BaseAPIHandler) resolveRoute(specName, model string) (*routeTarget, *apperrors.AppError) {
	providers := util.GetProviderName(model)
	if len(providers) == 0 {
		return nil, apperrors.New(http.StatusNotFound, "model_not_found", "unknown model "+model, nil)
	}

	cfg := h.Config()
	store := h.store()
	rejected := false
	var credErr *apperrors.AppError
	for _, configType := range providers {
		if err := policy.EnsureSpecAllowed(specName, configType); err != nil {
			rejected = true
			continue
		}
		exec, ok := h.executors.ForConfigType(configType)
		if !ok {
			continue
		}
		for _, account := range cfg.AccountsByType(configType) {
			if !account.AllowsModel(model) {
				continue
			}
			creds, err := store.CredentialsFor(account.Name)
			if err != nil {
				log.Warnf("handlers: account %s unusable: %v", account.Name, err)
				if credErr == nil {
					credErr = apperrors.New(http.StatusInternalServerError, "credential_error", "account "+account.Name+" has no usable credential", err)
				}
				continue
			}
			return &routeTarget{
				Account:  account,
				Creds:    creds,
				Exec:     exec,
				Upstream: upstreamFormatFor(configType),
			}, nil
		}
	}

	if credErr != nil {
		return nil, credErr
	}
	if rejected {
		return nil, apperrors.NewAllowlistRejected(policy.SpecNotSupportedMessage)
	}
	return nil, apperrors.New(http.StatusServiceUnavailable, "no_account_available", "no configured account serves model "+model, nil)
}

// Execute routes a non-streaming request: resolve the account, translate the
// front payload to the upstream schema, dispatch, and return the response
// already translated back to the front schema.
func (h *BaseAPIHandler) Execute(ctx context.Context, front sdktranslator.Format, specName, model string, rawJSON []byte) ([]byte, *apperrors.AppError) {
	route, appErr := h.resolveRoute(specName, model)
	if appErr != nil {
		return nil, appErr
	}
	translated := sdktranslator.TranslateRequest(front, route.Upstream, model, rawJSON, false)
	resp, err := route.Exec.Execute(ctx, route.Creds,
		executor.Request{Model: model, Payload: translated, Original: rawJSON},
		executor.Options{SourceFormat: front, Stream: false})
	if err != nil {
		return nil, asAppError(err)
	}
	return resp.Payload, nil
}

// ExecuteStream routes a streaming request. The returned channel carries
// chunks already translated to the front schema; a chunk with Err set ends
// the stream.
func (h *BaseAPIHandler) ExecuteStream(ctx context.Context, front sdktranslator.Format, specName, model string, rawJSON []byte) (<-chan executor.StreamChunk, *apperrors.AppError) {
	route, appErr := h.resolveRoute(specName, model)
	if appErr != nil {
		return nil, appErr
	}
	translated := sdktranslator.TranslateRequest(front, route.Upstream, model, rawJSON, true)
	chunks, err := route.Exec.ExecuteStream(ctx, route.Creds,
		executor.Request{Model: model, Payload: translated, Original: rawJSON},
		executor.Options{SourceFormat: front, Stream: true})
	if err != nil {
		return nil, asAppError(err)
	}
	return chunks, nil
}

// forwardStream pumps translated chunks to the client, flushing per event.
// c.Request.Context() is canceled by gin when the client disconnects, which
// also tears down the upstream call sharing that context. A chunk carrying
// an error ends the stream with the front-specific error frame.
func forwardStream(c *gin.Context, flusher http.Flusher, chunks <-chan executor.StreamChunk, writeStreamErr func(w io.Writer, appErr *apperrors.AppError)) {
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				flusher.Flush()
				return
			}
			if chunk.Err != nil {
				writeStreamErr(c.Writer, asAppError(chunk.Err))
				flusher.Flush()
				return
			}
			if len(chunk.Payload) > 0 {
				WriteSSEChunk(c.Writer, chunk.Payload)
				flusher.Flush()
			}
		}
	}
}

// asAppError normalizes executor failures to the structured error surfaced
// to clients.
func asAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.New(http.StatusBadGateway, "upstream_error", err.Error(), err)
	}
	return apperrors.New(http.StatusInternalServerError, "internal_error", err.Error(), err)
}
