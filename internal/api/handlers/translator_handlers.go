package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/router-for-me/AntiHubAPI/sdk/translator"
)

// TranslatorHandler exposes read-only introspection over the translation
// registry: which front/upstream pairs are wired and in which directions.
type TranslatorHandler struct{}

// NewTranslatorHandler creates a new translator handler.
func NewTranslatorHandler() *TranslatorHandler {
	return &TranslatorHandler{}
}

// TranslationsMatrixResponse represents the response for the translations matrix endpoint.
type TranslationsMatrixResponse struct {
	Matrix  map[string][]string          `json:"matrix"`
	Formats []string                     `json:"formats"`
	Total   int                          `json:"total_translations"`
	Details []translator.TranslationInfo `json:"details,omitempty"`
}

// GetTranslationsMatrix returns the full compatibility matrix of supported translations.
// GET /v1/translations
func (h *TranslatorHandler) GetTranslationsMatrix(c *gin.Context) {
	matrix := translator.GetCompatibilityMatrix()
	formats := translator.GetSupportedFormats()

	formatStrings := make([]string, len(formats))
	for i, f := range formats {
		formatStrings[i] = f.String()
	}

	total := 0
	for _, targets := range matrix {
		total += len(targets)
	}

	response := TranslationsMatrixResponse{
		Matrix:  matrix,
		Formats: formatStrings,
		Total:   total,
	}
	if c.Query("details") == "true" {
		response.Details = translator.GetAllTranslations()
	}

	c.JSON(http.StatusOK, response)
}

// CheckTranslationResponse represents the response for checking a specific translation.
type CheckTranslationResponse struct {
	Supported    bool                        `json:"supported"`
	Fallback     bool                        `json:"fallback"`
	From         string                      `json:"from"`
	To           string                      `json:"to"`
	Info         *translator.TranslationInfo `json:"info,omitempty"`
	Alternatives []string                    `json:"alternatives,omitempty"`
}

// CheckTranslation checks if a specific translation path is supported.
// GET /v1/translations/check?from=X&to=Y
func (h *TranslatorHandler) CheckTranslation(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")

	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing required query parameters",
			"details": "both 'from' and 'to' query parameters are required",
		})
		return
	}

	fromFormat := translator.FromString(from)
	toFormat := translator.FromString(to)

	response := CheckTranslationResponse{
		Supported: translator.IsTranslationSupported(fromFormat, toFormat),
		From:      from,
		To:        to,
	}

	if response.Supported {
		response.Info = translator.GetTranslationInfo(fromFormat, toFormat)
	} else {
		// Surface what the requested source format can reach instead.
		if targets, exists := translator.GetCompatibilityMatrix()[from]; exists {
			response.Alternatives = targets
		}
		// Same-format translation is always supported as a no-op.
		if from == to {
			response.Fallback = true
			response.Supported = true
		}
	}

	c.JSON(http.StatusOK, response)
}
