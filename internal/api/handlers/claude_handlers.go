package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	apperrors "github.com/router-for-me/AntiHubAPI/internal/errors"
	"github.com/router-for-me/AntiHubAPI/internal/policy"
	"github.com/router-for-me/AntiHubAPI/internal/registry"
	"github.com/router-for-me/AntiHubAPI/internal/usage"
	sdktranslator "github.com/router-for-me/AntiHubAPI/sdk/translator"
)

// ClaudeAPIHandler serves the Anthropic Messages endpoints. Stream chunks
// arrive from the executors already framed as Anthropic SSE event blocks, so
// the handler only writes them out.
type ClaudeAPIHandler struct {
	*BaseAPIHandler
}

// NewClaudeAPIHandler creates a Claude Messages handler around the shared
// handler state.
func NewClaudeAPIHandler(apiHandlers *BaseAPIHandler) *ClaudeAPIHandler {
	return &ClaudeAPIHandler{BaseAPIHandler: apiHandlers}
}

// Models returns the Anthropic-shaped model metadata for every model a
// configured account can serve.
func (h *ClaudeAPIHandler) Models() []map[string]any {
	return registry.GetGlobalRegistry().GetAvailableModels("claude")
}

// ClaudeModels handles GET /v1/models for Anthropic clients.
func (h *ClaudeAPIHandler) ClaudeModels(c *gin.Context) {
	models := h.Models()
	firstID := ""
	lastID := ""
	if len(models) > 0 {
		firstID, _ = models[0]["id"].(string)
		lastID, _ = models[len(models)-1]["id"].(string)
	}
	c.JSON(http.StatusOK, gin.H{
		"data":     models,
		"has_more": false,
		"first_id": firstID,
		"last_id":  lastID,
	})
}

// ClaudeMessages handles POST /v1/messages. It routes the request to an
// allowed upstream account and streams or aggregates the response back in
// Anthropic form.
func (h *ClaudeAPIHandler) ClaudeMessages(c *gin.Context) {
	rawJSON, err := c.GetRawData()
	if err != nil {
		writeClaudeError(c, apperrors.New(http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request: %v", err), err))
		return
	}
	model := NormalizeModel(gjson.GetBytes(rawJSON, "model").String())
	if model == "" {
		writeClaudeError(c, apperrors.New(http.StatusBadRequest, "invalid_request", "model is required", nil))
		return
	}

	if gjson.GetBytes(rawJSON, "stream").Bool() {
		h.handleStreamingResponse(c, model, rawJSON)
		return
	}
	h.handleNonStreamingResponse(c, model, rawJSON)
}

// ClaudeCountTokens handles POST /v1/messages/count_tokens. Counting is
// local: the request text is tokenized with the model's closest tokenizer
// and rendered in the count_tokens response shape.
func (h *ClaudeAPIHandler) ClaudeCountTokens(c *gin.Context) {
	rawJSON, err := c.GetRawData()
	if err != nil {
		writeClaudeError(c, apperrors.New(http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request: %v", err), err))
		return
	}
	model := NormalizeModel(gjson.GetBytes(rawJSON, "model").String())
	if model == "" {
		writeClaudeError(c, apperrors.New(http.StatusBadRequest, "invalid_request", "model is required", nil))
		return
	}

	count, err := usage.CountRequestTokens(model, rawJSON)
	if err != nil {
		writeClaudeError(c, apperrors.New(http.StatusInternalServerError, "internal_error", err.Error(), err))
		return
	}

	payload := fmt.Sprintf(`{"input_tokens":%d}`, count)
	if route, appErr := h.resolveRoute(policy.SpecClaude, model); appErr == nil {
		payload = sdktranslator.TranslateTokenCount(c.Request.Context(), sdktranslator.FormatClaude, route.Upstream, count, rawJSON)
	}
	c.Data(http.StatusOK, "application/json", []byte(payload))
}

func (h *ClaudeAPIHandler) handleNonStreamingResponse(c *gin.Context, model string, rawJSON []byte) {
	resp, appErr := h.Execute(c.Request.Context(), sdktranslator.FormatClaude, policy.SpecClaude, model, rawJSON)
	if appErr != nil {
		writeClaudeError(c, appErr)
		return
	}
	c.Data(http.StatusOK, "application/json", resp)
}

func (h *ClaudeAPIHandler) handleStreamingResponse(c *gin.Context, model string, rawJSON []byte) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		writeClaudeError(c, apperrors.New(http.StatusInternalServerError, "internal_error", "streaming not supported", nil))
		return
	}

	chunks, appErr := h.ExecuteStream(c.Request.Context(), sdktranslator.FormatClaude, policy.SpecClaude, model, rawJSON)
	if appErr != nil {
		// Nothing has been written yet; a JSON error is friendlier than SSE.
		writeClaudeError(c, appErr)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	forwardStream(c, flusher, chunks, writeClaudeStreamError)
}

// claudeErrorType maps an HTTP status to the Anthropic error type string.
func claudeErrorType(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "authentication_error"
	case status == http.StatusForbidden:
		return "permission_error"
	case status == http.StatusNotFound:
		return "not_found_error"
	case status == http.StatusTooManyRequests:
		return "rate_limit_error"
	case status == 529:
		return "overloaded_error"
	case status >= 500:
		return "api_error"
	default:
		return "invalid_request_error"
	}
}

func claudeErrorBody(appErr *apperrors.AppError) []byte {
	body, _ := json.Marshal(map[string]any{
		"type": "error",
		"error": map[string]any{
			"type":    claudeErrorType(appErr.HTTPStatusCode),
			"message": appErr.Message,
		},
	})
	return body
}

func writeClaudeError(c *gin.Context, appErr *apperrors.AppError) {
	c.Data(appErr.HTTPStatusCode, "application/json", claudeErrorBody(appErr))
}

// writeClaudeStreamError emits a mid-stream failure as an Anthropic error
// event so SSE clients surface it instead of seeing a silent close.
func writeClaudeStreamError(w io.Writer, appErr *apperrors.AppError) {
	_, _ = w.Write([]byte("event: error\ndata: "))
	_, _ = w.Write(claudeErrorBody(appErr))
	_, _ = w.Write([]byte("\n\n"))
}
