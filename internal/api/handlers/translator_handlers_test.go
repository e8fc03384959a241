package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/router-for-me/AntiHubAPI/sdk/translator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTranslationsRouter() *gin.Engine {
	router := gin.New()
	handler := NewTranslatorHandler()

	v1 := router.Group("/v1")
	{
		v1.GET("/translations", handler.GetTranslationsMatrix)
		v1.GET("/translations/check", handler.CheckTranslation)
	}

	return router
}

func TestGetTranslationsMatrix(t *testing.T) {
	router := setupTranslationsRouter()

	req, _ := http.NewRequest("GET", "/v1/translations", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response TranslationsMatrixResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if response.Matrix == nil {
		t.Error("Matrix should not be nil")
	}
	if response.Formats == nil {
		t.Error("Formats should not be nil")
	}
}

func TestGetTranslationsMatrix_WithDetails(t *testing.T) {
	router := setupTranslationsRouter()

	translator.Register(translator.FormatOpenAI, translator.FormatClaude, func(model string, data []byte, stream bool) []byte {
		return data
	}, translator.ResponseTransform{})
	defer translator.Unregister(translator.FormatOpenAI, translator.FormatClaude)

	req, _ := http.NewRequest("GET", "/v1/translations?details=true", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response TranslationsMatrixResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if len(response.Details) == 0 {
		t.Error("Details should be populated when details=true")
	}
}

func TestCheckTranslation_Supported(t *testing.T) {
	router := setupTranslationsRouter()

	translator.Register(translator.FormatOpenAI, translator.FormatClaude, func(model string, data []byte, stream bool) []byte {
		return data
	}, translator.ResponseTransform{})
	defer translator.Unregister(translator.FormatOpenAI, translator.FormatClaude)

	req, _ := http.NewRequest("GET", "/v1/translations/check?from=openai&to=claude", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response CheckTranslationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if !response.Supported {
		t.Error("Translation should be supported")
	}
	if response.From != "openai" {
		t.Errorf("From = %s, want openai", response.From)
	}
	if response.To != "claude" {
		t.Errorf("To = %s, want claude", response.To)
	}
}

func TestCheckTranslation_NotSupported(t *testing.T) {
	router := setupTranslationsRouter()

	req, _ := http.NewRequest("GET", "/v1/translations/check?from=unknown&to=unknown2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response CheckTranslationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if response.Supported {
		t.Error("Translation should not be supported for unknown formats")
	}
}

func TestCheckTranslation_MissingParams(t *testing.T) {
	router := setupTranslationsRouter()

	tests := []struct {
		name string
		url  string
	}{
		{"missing both", "/v1/translations/check"},
		{"missing to", "/v1/translations/check?from=openai"},
		{"missing from", "/v1/translations/check?to=claude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", tt.url, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestCheckTranslation_SameFormat(t *testing.T) {
	router := setupTranslationsRouter()

	req, _ := http.NewRequest("GET", "/v1/translations/check?from=openai&to=openai", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response CheckTranslationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if !response.Fallback {
		t.Error("Same format should be marked as fallback")
	}
	if !response.Supported {
		t.Error("Same format should be supported")
	}
}
