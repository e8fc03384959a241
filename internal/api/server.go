// Package api provides the HTTP API server implementation for the gateway.
// It includes the main server struct, routing setup, middleware for
// authentication and metrics, and integration with the protocol handlers
// (OpenAI, Claude, Gemini). The server supports hot-reloading of the
// configuration.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/router-for-me/AntiHubAPI/internal/api/handlers"
	"github.com/router-for-me/AntiHubAPI/internal/api/middleware"
	"github.com/router-for-me/AntiHubAPI/internal/config"
	"github.com/router-for-me/AntiHubAPI/internal/constant"
	"github.com/router-for-me/AntiHubAPI/internal/logging"
	"github.com/router-for-me/AntiHubAPI/internal/policy"
	"github.com/router-for-me/AntiHubAPI/internal/registry"
	"github.com/router-for-me/AntiHubAPI/internal/runtime/executor"
)

// Server represents the main API server.
// It encapsulates the Gin engine, the underlying HTTP server and the shared
// handler state the protocol handlers read their configuration from.
type Server struct {
	// engine is the Gin web framework engine instance.
	engine *gin.Engine

	// server is the underlying HTTP server.
	server *http.Server

	// handlers carries the routing state shared by every protocol handler.
	handlers *handlers.BaseAPIHandler
}

// NewServer creates and initializes a new API server instance.
// It sets up the Gin engine, middleware, routes, and handlers.
//
// Parameters:
//   - cfg: The server configuration
//   - executors: The provider executor manager
//
// Returns:
//   - *Server: A new server instance
func NewServer(cfg *config.Config, executors *executor.Manager) *Server {
	// Set gin mode
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger())
	engine.Use(logging.GinLogrusRecovery())
	engine.Use(middleware.PrometheusMiddleware())
	engine.Use(middleware.RequestDecompressionMiddleware())

	s := &Server{
		engine:   engine,
		handlers: handlers.NewBaseAPIHandlers(cfg, executors),
	}
	applyRuntimeConfig(cfg)
	syncModelRegistry(nil, cfg)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    cfg.Address(),
		Handler: engine,
	}
	return s
}

// setupRoutes configures all the API routes for the server.
// It groups the OpenAI surfaces under /v1, the Gemini surface under /v1beta,
// and attaches the operational endpoints.
func (s *Server) setupRoutes() {
	openaiHandlers := handlers.NewOpenAIAPIHandler(s.handlers)
	claudeHandlers := handlers.NewClaudeAPIHandler(s.handlers)
	geminiHandlers := handlers.NewGeminiAPIHandler(s.handlers)
	openaiResponsesHandlers := handlers.NewOpenAIResponsesAPIHandler(s.handlers)
	authMiddleware := middleware.APIKeyMiddleware(s.apiKeys)

	// OpenAI and Claude compatible API routes
	v1 := s.engine.Group("/v1")
	v1.Use(authMiddleware)
	{
		v1.GET("/models", s.unifiedModelsHandler(openaiHandlers, claudeHandlers))
		v1.POST("/chat/completions", openaiHandlers.ChatCompletions)
		v1.POST("/messages", claudeHandlers.ClaudeMessages)
		v1.POST("/messages/count_tokens", claudeHandlers.ClaudeCountTokens)
		v1.POST("/responses", openaiResponsesHandlers.Responses)

		// Translation API routes
		translatorHandler := handlers.NewTranslatorHandler()
		v1.GET("/translations", translatorHandler.GetTranslationsMatrix)
		v1.GET("/translations/check", translatorHandler.CheckTranslation)
	}

	// Gemini compatible API routes
	v1beta := s.engine.Group("/v1beta")
	v1beta.Use(authMiddleware)
	{
		v1beta.GET("/models", geminiHandlers.GeminiModels)
		v1beta.POST("/models/*action", geminiHandlers.GeminiHandler)
		v1beta.GET("/models/*action", geminiHandlers.GeminiGetHandler)
	}

	// Health check endpoint for CLI clients and load balancers
	s.engine.GET("/healthz", func(c *gin.Context) {
		port := 0
		if cfg := s.handlers.Config(); cfg != nil {
			port = cfg.Port
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "port": port})
	})

	// Prometheus metrics endpoint for observability
	s.engine.GET("/metrics", middleware.MetricsHandler())
}

// unifiedModelsHandler serves GET /v1/models for both OpenAI and Claude
// clients. Claude Code sends a User-Agent starting with "claude-cli" and
// expects the Anthropic listing shape; everything else gets OpenAI's.
func (s *Server) unifiedModelsHandler(openaiHandler *handlers.OpenAIAPIHandler, claudeHandler *handlers.ClaudeAPIHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.GetHeader("User-Agent"), "claude-cli") {
			claudeHandler.ClaudeModels(c)
			return
		}
		openaiHandler.OpenAIModels(c)
	}
}

// apiKeys returns the client API keys from the current configuration
// snapshot, so a reload takes effect without re-registering middleware.
func (s *Server) apiKeys() []string {
	if cfg := s.handlers.Config(); cfg != nil {
		return cfg.APIKeys
	}
	return nil
}

// Start begins listening for and serving HTTP requests.
// It's a blocking call and will only return on an unrecoverable error.
//
// Returns:
//   - error: An error if the server fails to start
func (s *Server) Start() error {
	if s == nil || s.server == nil {
		return fmt.Errorf("failed to start HTTP server: server not initialized")
	}
	log.Debugf("starting API server on %s", s.server.Addr)
	if errServe := s.server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", errServe)
	}
	return nil
}

// Stop gracefully shuts down the API server without interrupting any
// active connections.
//
// Parameters:
//   - ctx: The context for graceful shutdown
//
// Returns:
//   - error: An error if the server fails to stop
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("stopping API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	log.Debug("API server stopped")
	return nil
}

// UpdateConfig applies a reloaded configuration. Handlers swap to the new
// snapshot atomically, runtime toggles are reapplied and the model registry
// is resynchronized; in-flight requests finish against the old snapshot.
func (s *Server) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	oldCfg := s.handlers.Config()
	s.handlers.UpdateConfig(cfg)
	applyRuntimeConfig(cfg)
	syncModelRegistry(oldCfg, cfg)
}

// applyRuntimeConfig pushes config-derived process-wide toggles.
func applyRuntimeConfig(cfg *config.Config) {
	middleware.SetMetricsEnabled(cfg.EnableMetrics)
	if err := policy.SetVariant(policy.Variant(cfg.AllowlistVariant)); err != nil {
		log.WithError(err).Warn("keeping previous allowlist variant")
	}
}

// syncModelRegistry registers the static model set of every configured
// account and unregisters accounts that were removed by a reload. Accounts
// restricted by a models allowlist are filtered before registration so the
// listings only show what the gateway will actually serve.
func syncModelRegistry(oldCfg, newCfg *config.Config) {
	reg := registry.GetGlobalRegistry()
	seen := make(map[string]bool, len(newCfg.Accounts))
	for i := range newCfg.Accounts {
		account := &newCfg.Accounts[i]
		if account.Name == "" {
			continue
		}
		seen[account.Name] = true
		reg.RegisterClient(account.Name, account.Type, accountModels(account))
	}
	if oldCfg == nil {
		return
	}
	for i := range oldCfg.Accounts {
		if name := oldCfg.Accounts[i].Name; name != "" && !seen[name] {
			reg.UnregisterClient(name)
		}
	}
}

// accountModels resolves the models an account serves, honoring the optional
// per-account model restriction.
func accountModels(account *config.Account) []*registry.ModelInfo {
	models := modelsForConfigType(account.Type)
	if len(account.Models) == 0 {
		return models
	}
	filtered := make([]*registry.ModelInfo, 0, len(models))
	for _, m := range models {
		if m != nil && account.AllowsModel(m.ID) {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

func modelsForConfigType(configType string) []*registry.ModelInfo {
	switch configType {
	case constant.ConfigTypeKiro:
		return registry.GetKiroModels()
	case constant.ConfigTypeCodex:
		return registry.GetCodexModels()
	case constant.ConfigTypeGeminiCLI:
		return registry.GetGeminiCLIModels()
	case constant.ConfigTypeQwen:
		return registry.GetQwenModels()
	case constant.ConfigTypeAntigravity:
		return registry.GetAntigravityModels()
	case constant.ConfigTypeZaiImage:
		return registry.GetZaiImageModels()
	default:
		return nil
	}
}
