package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	apperrors "github.com/router-for-me/AntiHubAPI/internal/errors"
	"github.com/router-for-me/AntiHubAPI/internal/policy"
	"github.com/router-for-me/AntiHubAPI/internal/registry"
	"github.com/router-for-me/AntiHubAPI/internal/usage"
	sdktranslator "github.com/router-for-me/AntiHubAPI/sdk/translator"
)

// GeminiAPIHandler serves the Gemini generateContent family under /v1beta.
// The model id and the action ride in the URL path
// ("/models/gemini-2.5-pro:streamGenerateContent"), so routing uses a
// wildcard segment and splits on the last colon.
type GeminiAPIHandler struct {
	*BaseAPIHandler
}

// NewGeminiAPIHandler creates a Gemini front handler around the shared
// handler state.
func NewGeminiAPIHandler(apiHandlers *BaseAPIHandler) *GeminiAPIHandler {
	return &GeminiAPIHandler{BaseAPIHandler: apiHandlers}
}

// Models returns the Gemini-shaped model metadata for every model a
// configured account can serve.
func (h *GeminiAPIHandler) Models() []map[string]any {
	return registry.GetGlobalRegistry().GetAvailableModels("gemini")
}

// GeminiModels handles GET /v1beta/models.
func (h *GeminiAPIHandler) GeminiModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.Models()})
}

// GeminiGetHandler handles GET /v1beta/models/*action, which is a model
// metadata lookup ("/models/gemini-2.5-pro").
func (h *GeminiAPIHandler) GeminiGetHandler(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("action"), "/")
	if name == "" {
		h.GeminiModels(c)
		return
	}
	for _, entry := range h.Models() {
		if entryName, _ := entry["name"].(string); entryName == "models/"+name || entryName == name {
			c.JSON(http.StatusOK, entry)
			return
		}
	}
	writeGeminiError(c, apperrors.New(http.StatusNotFound, "model_not_found", "unknown model "+name, nil))
}

// GeminiHandler handles POST /v1beta/models/*action and dispatches on the
// action suffix: generateContent, streamGenerateContent or countTokens.
func (h *GeminiAPIHandler) GeminiHandler(c *gin.Context) {
	model, action, ok := splitModelAction(c.Param("action"))
	if !ok {
		writeGeminiError(c, apperrors.New(http.StatusNotFound, "invalid_request", "expected models/{model}:{action}", nil))
		return
	}
	model = NormalizeModel(model)

	rawJSON, err := c.GetRawData()
	if err != nil {
		writeGeminiError(c, apperrors.New(http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request: %v", err), err))
		return
	}

	switch action {
	case "generateContent":
		h.handleNonStreamingResponse(c, model, rawJSON)
	case "streamGenerateContent":
		h.handleStreamingResponse(c, model, rawJSON)
	case "countTokens":
		h.handleCountTokens(c, model, rawJSON)
	default:
		writeGeminiError(c, apperrors.New(http.StatusNotFound, "invalid_request", "unknown action "+action, nil))
	}
}

// splitModelAction splits a wildcard path like "/gemini-2.5-pro:generateContent"
// into its model and action parts.
func splitModelAction(path string) (model, action string, ok bool) {
	path = strings.TrimPrefix(path, "/")
	idx := strings.LastIndex(path, ":")
	if idx <= 0 || idx == len(path)-1 {
		return "", "", false
	}
	return path[:idx], path[idx+1:], true
}

func (h *GeminiAPIHandler) handleNonStreamingResponse(c *gin.Context, model string, rawJSON []byte) {
	resp, appErr := h.Execute(c.Request.Context(), sdktranslator.FormatGemini, policy.SpecGemini, model, rawJSON)
	if appErr != nil {
		writeGeminiError(c, appErr)
		return
	}
	c.Data(http.StatusOK, "application/json", resp)
}

func (h *GeminiAPIHandler) handleStreamingResponse(c *gin.Context, model string, rawJSON []byte) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		writeGeminiError(c, apperrors.New(http.StatusInternalServerError, "internal_error", "streaming not supported", nil))
		return
	}

	chunks, appErr := h.ExecuteStream(c.Request.Context(), sdktranslator.FormatGemini, policy.SpecGemini, model, rawJSON)
	if appErr != nil {
		writeGeminiError(c, appErr)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	forwardStream(c, flusher, chunks, writeGeminiStreamError)
}

// handleCountTokens counts locally with the model's closest tokenizer and
// renders the countTokens response shape.
func (h *GeminiAPIHandler) handleCountTokens(c *gin.Context, model string, rawJSON []byte) {
	count, err := usage.CountTokens(model, collectGeminiText(rawJSON))
	if err != nil {
		writeGeminiError(c, apperrors.New(http.StatusInternalServerError, "internal_error", err.Error(), err))
		return
	}

	payload := fmt.Sprintf(`{"totalTokens":%d}`, count)
	if route, appErr := h.resolveRoute(policy.SpecGemini, model); appErr == nil {
		payload = sdktranslator.TranslateTokenCount(c.Request.Context(), sdktranslator.FormatGemini, route.Upstream, count, rawJSON)
	}
	c.Data(http.StatusOK, "application/json", []byte(payload))
}

// collectGeminiText concatenates every text part the model would see,
// tolerating the generateContentRequest wrapper countTokens allows.
func collectGeminiText(rawJSON []byte) string {
	root := gjson.ParseBytes(rawJSON)
	if wrapped := root.Get("generateContentRequest"); wrapped.IsObject() {
		root = wrapped
	}

	var sb strings.Builder
	if system := root.Get("systemInstruction.parts"); system.IsArray() {
		system.ForEach(func(_, part gjson.Result) bool {
			sb.WriteString(part.Get("text").String())
			sb.WriteString("\n")
			return true
		})
	}
	root.Get("contents").ForEach(func(_, content gjson.Result) bool {
		content.Get("parts").ForEach(func(_, part gjson.Result) bool {
			sb.WriteString(part.Get("text").String())
			sb.WriteString("\n")
			return true
		})
		return true
	})
	return sb.String()
}

// geminiErrorStatus maps an HTTP status to the google.rpc status string.
func geminiErrorStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

func geminiErrorBody(appErr *apperrors.AppError) []byte {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]any{
			"code":    appErr.HTTPStatusCode,
			"message": appErr.Message,
			"status":  geminiErrorStatus(appErr.HTTPStatusCode),
		},
	})
	return body
}

func writeGeminiError(c *gin.Context, appErr *apperrors.AppError) {
	c.Data(appErr.HTTPStatusCode, "application/json", geminiErrorBody(appErr))
}

// writeGeminiStreamError emits a mid-stream failure as a data frame carrying
// the google error envelope.
func writeGeminiStreamError(w io.Writer, appErr *apperrors.AppError) {
	WriteSSEChunk(w, geminiErrorBody(appErr))
}
