// Package middleware provides HTTP middleware components for the AntiHub API
// server. This file contains the client API-key authentication middleware.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyMiddleware returns a Gin middleware that authenticates clients
// against the configured API keys. Keys are read through the callback so a
// config reload takes effect without restarting the server. When no keys are
// configured all requests pass.
//
// Credentials are accepted the way the front SDKs send them: Authorization
// bearer, x-api-key (Anthropic), x-goog-api-key or ?key= (Gemini).
func APIKeyMiddleware(keys func() []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		configured := keys()
		if len(configured) == 0 {
			c.Next()
			return
		}

		provided := clientKey(c)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing API key"})
			return
		}
		for _, key := range configured {
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1 {
				c.Set("apiKey", provided)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
	}
}

func clientKey(c *gin.Context) string {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return header
	}
	if key := strings.TrimSpace(c.GetHeader("x-api-key")); key != "" {
		return key
	}
	if key := strings.TrimSpace(c.GetHeader("x-goog-api-key")); key != "" {
		return key
	}
	return strings.TrimSpace(c.Query("key"))
}
