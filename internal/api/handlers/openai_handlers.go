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
	sdktranslator "github.com/router-for-me/AntiHubAPI/sdk/translator"
)

// OpenAIAPIHandler serves the OpenAI Chat Completions endpoints. Stream
// chunks arrive as bare chat chunk JSON plus a terminal [DONE] sentinel; the
// SSE writer adds the data framing.
type OpenAIAPIHandler struct {
	*BaseAPIHandler
}

// NewOpenAIAPIHandler creates a Chat Completions handler around the shared
// handler state.
func NewOpenAIAPIHandler(apiHandlers *BaseAPIHandler) *OpenAIAPIHandler {
	return &OpenAIAPIHandler{BaseAPIHandler: apiHandlers}
}

// Models returns the OpenAI-shaped model metadata for every model a
// configured account can serve.
func (h *OpenAIAPIHandler) Models() []map[string]any {
	return registry.GetGlobalRegistry().GetAvailableModels("openai")
}

// OpenAIModels handles GET /v1/models.
func (h *OpenAIAPIHandler) OpenAIModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   h.Models(),
	})
}

// ChatCompletions handles POST /v1/chat/completions. It routes the request
// to an allowed upstream account and returns the response in Chat
// Completions form, streaming when the client asked for it.
func (h *OpenAIAPIHandler) ChatCompletions(c *gin.Context) {
	rawJSON, err := c.GetRawData()
	if err != nil {
		writeOpenAIError(c, apperrors.New(http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request: %v", err), err))
		return
	}
	model := NormalizeModel(gjson.GetBytes(rawJSON, "model").String())
	if model == "" {
		writeOpenAIError(c, apperrors.New(http.StatusBadRequest, "invalid_request", "model is required", nil))
		return
	}

	if gjson.GetBytes(rawJSON, "stream").Bool() {
		h.handleStreamingResponse(c, model, rawJSON)
		return
	}
	h.handleNonStreamingResponse(c, model, rawJSON)
}

func (h *OpenAIAPIHandler) handleNonStreamingResponse(c *gin.Context, model string, rawJSON []byte) {
	resp, appErr := h.Execute(c.Request.Context(), sdktranslator.FormatOpenAI, policy.SpecOAIChat, model, rawJSON)
	if appErr != nil {
		writeOpenAIError(c, appErr)
		return
	}
	c.Data(http.StatusOK, "application/json", resp)
}

func (h *OpenAIAPIHandler) handleStreamingResponse(c *gin.Context, model string, rawJSON []byte) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		writeOpenAIError(c, apperrors.New(http.StatusInternalServerError, "internal_error", "streaming not supported", nil))
		return
	}

	chunks, appErr := h.ExecuteStream(c.Request.Context(), sdktranslator.FormatOpenAI, policy.SpecOAIChat, model, rawJSON)
	if appErr != nil {
		writeOpenAIError(c, appErr)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	forwardStream(c, flusher, chunks, writeOpenAIStreamError)
}

func openAIErrorBody(appErr *apperrors.AppError) []byte {
	errType := "invalid_request_error"
	if appErr.HTTPStatusCode >= 500 {
		errType = "server_error"
	}
	body, _ := json.Marshal(ErrorResponse{
		Error: ErrorDetail{
			Message: appErr.Message,
			Type:    errType,
			Code:    appErr.Code,
		},
	})
	return body
}

func writeOpenAIError(c *gin.Context, appErr *apperrors.AppError) {
	c.Data(appErr.HTTPStatusCode, "application/json", openAIErrorBody(appErr))
}

// writeOpenAIStreamError emits a mid-stream failure as an error data frame
// followed by [DONE] so stream consumers terminate cleanly.
func writeOpenAIStreamError(w io.Writer, appErr *apperrors.AppError) {
	WriteSSEChunk(w, openAIErrorBody(appErr))
	WriteSSEDone(w)
}
