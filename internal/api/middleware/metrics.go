// Package middleware provides HTTP middleware components for the AntiHub API
// server. This file contains Prometheus metrics middleware for observability.
package middleware

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// httpRequestsTotal counts the total number of HTTP requests processed.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antihub_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDurationSeconds tracks the duration of HTTP requests.
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "antihub_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// activeConnections tracks the number of currently active connections.
	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "antihub_active_connections",
			Help: "Number of currently active HTTP connections",
		},
	)

	// activeConnectionsCount provides atomic access to the connection count.
	activeConnectionsCount int64

	// apiRequestsByProvider counts requests by upstream provider.
	apiRequestsByProvider = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antihub_api_requests_by_provider_total",
			Help: "Total API requests grouped by upstream provider",
		},
		[]string{"provider", "model"},
	)

	// apiRequestErrors counts API request errors by type.
	apiRequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antihub_api_request_errors_total",
			Help: "Total number of API request errors",
		},
		[]string{"error_type", "provider"},
	)

	// tokenUsage tracks token usage for upstream calls.
	tokenUsage = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antihub_token_usage_total",
			Help: "Total tokens used in API requests",
		},
		[]string{"provider", "model", "type"}, // type: input or output
	)

	// eventstreamFramesTotal counts decoded binary event-stream frames.
	eventstreamFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "antihub_eventstream_frames_total",
			Help: "Total binary event-stream frames decoded",
		},
	)

	// eventstreamFailuresTotal counts frame integrity failures by code.
	eventstreamFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antihub_eventstream_frame_failures_total",
			Help: "Total binary event-stream frame integrity failures",
		},
		[]string{"code"},
	)

	// streamChunksDroppedTotal counts undecodable stream chunks skipped.
	streamChunksDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antihub_stream_chunks_dropped_total",
			Help: "Total undecodable stream chunks skipped",
		},
		[]string{"provider"},
	)

	// metricsRegistered ensures metrics are only registered once.
	metricsRegistered atomic.Bool
	metricsEnabled    atomic.Bool
)

// SetMetricsEnabled toggles Prometheus metrics collection.
func SetMetricsEnabled(enabled bool) {
	metricsEnabled.Store(enabled)
}

// IsMetricsEnabled reports whether metrics are enabled.
func IsMetricsEnabled() bool {
	return metricsEnabled.Load()
}

// RegisterMetrics registers all Prometheus metrics.
// It is safe to call multiple times; metrics will only be registered once.
func RegisterMetrics() {
	if !metricsRegistered.CompareAndSwap(false, true) {
		return
	}

	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		activeConnections,
		apiRequestsByProvider,
		apiRequestErrors,
		tokenUsage,
		eventstreamFramesTotal,
		eventstreamFailuresTotal,
		streamChunksDroppedTotal,
	)
}

// PrometheusMiddleware returns a Gin middleware that collects Prometheus
// metrics for HTTP requests including request count, duration, and active
// connections.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsMetricsEnabled() {
			c.Next()
			return
		}
		RegisterMetrics()

		// Skip metrics endpoint to avoid self-referential metrics
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		atomic.AddInt64(&activeConnectionsCount, 1)
		activeConnections.Inc()
		defer func() {
			atomic.AddInt64(&activeConnectionsCount, -1)
			activeConnections.Dec()
		}()

		// Normalize path for metrics to avoid high cardinality
		path := normalizePath(c.Request.URL.Path)
		method := c.Request.Method

		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(method, path).Observe(duration)

		// Provider/model are set by the proxy handlers once routing is known.
		if provider, exists := c.Get("provider"); exists {
			if providerStr, ok := provider.(string); ok {
				model := ""
				if m, exists := c.Get("model"); exists {
					if modelStr, ok := m.(string); ok {
						model = modelStr
					}
				}
				apiRequestsByProvider.WithLabelValues(providerStr, model).Inc()
			}
		}

		if c.Writer.Status() >= 400 {
			errorType := "client_error"
			if c.Writer.Status() >= 500 {
				errorType = "server_error"
			}
			provider := "unknown"
			if p, exists := c.Get("provider"); exists {
				if providerStr, ok := p.(string); ok {
					provider = providerStr
				}
			}
			apiRequestErrors.WithLabelValues(errorType, provider).Inc()
		}
	}
}

// normalizePath normalizes URL paths to prevent high cardinality in metrics.
// It replaces dynamic path segments with placeholders.
func normalizePath(path string) string {
	switch {
	case path == "/":
		return "/"
	case path == "/healthz":
		return "/healthz"
	case path == "/metrics":
		return "/metrics"
	case path == "/v1/models" || path == "/models":
		return "/v1/models"
	case path == "/v1/chat/completions" || path == "/chat/completions":
		return "/v1/chat/completions"
	case path == "/v1/messages" || path == "/messages":
		return "/v1/messages"
	case path == "/v1/messages/count_tokens":
		return "/v1/messages/count_tokens"
	case path == "/v1/responses" || path == "/responses":
		return "/v1/responses"
	case len(path) > 8 && path[:8] == "/v1beta/":
		return "/v1beta/*"
	default:
		if len(path) > 50 {
			return path[:50] + "..."
		}
		return path
	}
}

// MetricsHandler returns the Prometheus HTTP handler for the /metrics endpoint.
func MetricsHandler() gin.HandlerFunc {
	handler := promhttp.Handler()
	return func(c *gin.Context) {
		if !IsMetricsEnabled() {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		RegisterMetrics()
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// GetActiveConnections returns the current number of active connections.
func GetActiveConnections() int64 {
	return atomic.LoadInt64(&activeConnectionsCount)
}

// RecordProviderRequest records a request to a specific upstream provider.
// This can be called from handlers to track provider-specific metrics.
func RecordProviderRequest(provider, model string) {
	if !IsMetricsEnabled() {
		return
	}
	apiRequestsByProvider.WithLabelValues(provider, model).Inc()
}

// RecordTokenUsage records token usage for an upstream call.
func RecordTokenUsage(provider, model string, inputTokens, outputTokens int64) {
	if !IsMetricsEnabled() {
		return
	}
	if inputTokens > 0 {
		tokenUsage.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		tokenUsage.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordAPIError records an API error. errorType should describe the type of
// error (e.g., "rate_limit", "auth_error", "server_error").
func RecordAPIError(errorType, provider string) {
	if !IsMetricsEnabled() {
		return
	}
	apiRequestErrors.WithLabelValues(errorType, provider).Inc()
}

// RecordFramesDecoded adds to the decoded event-stream frame counter.
func RecordFramesDecoded(n int) {
	if !IsMetricsEnabled() || n <= 0 {
		return
	}
	eventstreamFramesTotal.Add(float64(n))
}

// RecordFrameFailure records a binary event-stream integrity failure.
func RecordFrameFailure(code string) {
	if !IsMetricsEnabled() {
		return
	}
	eventstreamFailuresTotal.WithLabelValues(code).Inc()
}

// RecordChunkDropped records a skipped undecodable stream chunk.
func RecordChunkDropped(provider string) {
	if !IsMetricsEnabled() {
		return
	}
	streamChunksDroppedTotal.WithLabelValues(provider).Inc()
}
