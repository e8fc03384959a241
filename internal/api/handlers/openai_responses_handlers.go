package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	apperrors "github.com/router-for-me/AntiHubAPI/internal/errors"
	"github.com/router-for-me/AntiHubAPI/internal/policy"
	"github.com/router-for-me/AntiHubAPI/internal/util"
	sdktranslator "github.com/router-for-me/AntiHubAPI/sdk/translator"
)

// OpenAIResponsesAPIHandler serves the OpenAI Responses endpoint. Stream
// chunks arrive as complete "event:" blocks in the response.* family, so the
// SSE writer passes them through verbatim.
type OpenAIResponsesAPIHandler struct {
	*BaseAPIHandler
}

// NewOpenAIResponsesAPIHandler creates a Responses handler around the shared
// handler state.
func NewOpenAIResponsesAPIHandler(apiHandlers *BaseAPIHandler) *OpenAIResponsesAPIHandler {
	return &OpenAIResponsesAPIHandler{BaseAPIHandler: apiHandlers}
}

// Responses handles POST /v1/responses.
func (h *OpenAIResponsesAPIHandler) Responses(c *gin.Context) {
	rawJSON, err := c.GetRawData()
	if err != nil {
		writeOpenAIError(c, apperrors.New(http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request: %v", err), err))
		return
	}

	rawJSON = util.NormalizeOpenAIResponsesToolOrder(rawJSON)

	model := NormalizeModel(gjson.GetBytes(rawJSON, "model").String())
	if model == "" {
		writeOpenAIError(c, apperrors.New(http.StatusBadRequest, "invalid_request", "model is required", nil))
		return
	}

	wantsStream := gjson.GetBytes(rawJSON, "stream").Bool()
	if wantsStream {
		// Strict JSON clients send stream:true but only accept
		// application/json; honor the Accept header over the body flag.
		accept := strings.ToLower(c.GetHeader("Accept"))
		if strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/event-stream") {
			wantsStream = false
		}
	}

	if wantsStream {
		h.handleStreamingResponse(c, model, rawJSON)
		return
	}
	h.handleNonStreamingResponse(c, model, rawJSON)
}

func (h *OpenAIResponsesAPIHandler) handleNonStreamingResponse(c *gin.Context, model string, rawJSON []byte) {
	resp, appErr := h.Execute(c.Request.Context(), sdktranslator.FormatOpenAIResponse, policy.SpecOAIResponses, model, rawJSON)
	if appErr != nil {
		writeOpenAIError(c, appErr)
		return
	}
	c.Data(http.StatusOK, "application/json", resp)
}

func (h *OpenAIResponsesAPIHandler) handleStreamingResponse(c *gin.Context, model string, rawJSON []byte) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		writeOpenAIError(c, apperrors.New(http.StatusInternalServerError, "internal_error", "streaming not supported", nil))
		return
	}

	chunks, appErr := h.ExecuteStream(c.Request.Context(), sdktranslator.FormatOpenAIResponse, policy.SpecOAIResponses, model, rawJSON)
	if appErr != nil {
		writeOpenAIError(c, appErr)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	forwardStream(c, flusher, chunks, writeResponsesStreamError)
}

// writeResponsesStreamError emits a mid-stream failure in the Responses
// error event shape.
func writeResponsesStreamError(w io.Writer, appErr *apperrors.AppError) {
	_, _ = w.Write([]byte("event: error\ndata: "))
	_, _ = w.Write(openAIErrorBody(appErr))
	_, _ = w.Write([]byte("\n\n"))
}
