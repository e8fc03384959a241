// Package usage provides usage tracking and logging functionality for the
// AntiHub API server. It aggregates per-provider token consumption in memory,
// logs periodic summaries, and feeds the prometheus token counters.
package usage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/router-for-me/AntiHubAPI/internal/api/middleware"
)

// Counts captures the token usage breakdown for a request.
type Counts struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	CachedTokens int64 `json:"cached_tokens,omitempty"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Normalize fills TotalTokens from the parts when the upstream omitted it.
func (c *Counts) Normalize() {
	if c.TotalTokens == 0 {
		c.TotalTokens = c.InputTokens + c.OutputTokens
	}
}

// Record is one completed upstream request as seen by the usage sink.
type Record struct {
	// Provider is the executor identifier (kiro, codex, ...).
	Provider string
	// Model is the normalized model id the client asked for.
	Model string
	// ConfigType is the account type that served the request.
	ConfigType string
	// AccountID names the account within logs.
	AccountID string
	// Counts is the token breakdown, normalized before reporting.
	Counts Counts
	// Success is false when the request ended in an error.
	Success bool
	// DurationMs is the wall time of the upstream call.
	DurationMs int64
}

// Reporter receives usage records. Executors call Report once per request,
// after the stream has drained.
type Reporter interface {
	Report(ctx context.Context, record Record)
}

var statisticsEnabled atomic.Bool

func init() {
	statisticsEnabled.Store(true)
}

// SetStatisticsEnabled toggles whether in-memory statistics are recorded.
func SetStatisticsEnabled(enabled bool) { statisticsEnabled.Store(enabled) }

// StatisticsEnabled reports the current recording state.
func StatisticsEnabled() bool { return statisticsEnabled.Load() }

// Statistics maintains aggregated request metrics in memory.
type Statistics struct {
	mu sync.RWMutex

	totalRequests     int64
	successCount      int64
	failureCount      int64
	totalTokens       int64
	totalInputTokens  int64
	totalOutputTokens int64

	providers map[string]*providerStats
}

// providerStats holds aggregated metrics for a single provider.
type providerStats struct {
	Requests     int64
	Failures     int64
	InputTokens  int64
	OutputTokens int64
	Models       map[string]*modelStats
}

// modelStats holds aggregated metrics for a model within a provider.
type modelStats struct {
	Requests     int64
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

var defaultStatistics = NewStatistics()

// GetStatistics returns the shared statistics store.
func GetStatistics() *Statistics { return defaultStatistics }

// NewStatistics constructs an empty statistics store.
func NewStatistics() *Statistics {
	return &Statistics{providers: make(map[string]*providerStats)}
}

// Record ingests a usage record and updates the aggregates.
func (s *Statistics) Record(record Record) {
	if s == nil || !statisticsEnabled.Load() {
		return
	}
	record.Counts.Normalize()
	model := record.Model
	if model == "" {
		model = "unknown"
	}
	provider := record.Provider
	if provider == "" {
		provider = record.ConfigType
	}
	if provider == "" {
		provider = "unknown"
	}
	cost, _ := EstimateCost(model, record.Counts)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests++
	if record.Success {
		s.successCount++
	} else {
		s.failureCount++
	}
	s.totalTokens += record.Counts.TotalTokens
	s.totalInputTokens += record.Counts.InputTokens
	s.totalOutputTokens += record.Counts.OutputTokens

	stats, ok := s.providers[provider]
	if !ok {
		stats = &providerStats{Models: make(map[string]*modelStats)}
		s.providers[provider] = stats
	}
	stats.Requests++
	if !record.Success {
		stats.Failures++
	}
	stats.InputTokens += record.Counts.InputTokens
	stats.OutputTokens += record.Counts.OutputTokens

	m, ok := stats.Models[model]
	if !ok {
		m = &modelStats{}
		stats.Models[model] = m
	}
	m.Requests++
	m.InputTokens += record.Counts.InputTokens
	m.OutputTokens += record.Counts.OutputTokens
	m.Cost += cost
}

// Snapshot is an immutable view of the aggregated metrics.
type Snapshot struct {
	TotalRequests     int64                       `json:"total_requests"`
	SuccessCount      int64                       `json:"success_count"`
	FailureCount      int64                       `json:"failure_count"`
	TotalTokens       int64                       `json:"total_tokens"`
	TotalInputTokens  int64                       `json:"total_input_tokens"`
	TotalOutputTokens int64                       `json:"total_output_tokens"`
	Providers         map[string]ProviderSnapshot `json:"providers"`
}

// ProviderSnapshot summarises metrics for a single provider.
type ProviderSnapshot struct {
	Requests     int64                    `json:"requests"`
	Failures     int64                    `json:"failures"`
	InputTokens  int64                    `json:"input_tokens"`
	OutputTokens int64                    `json:"output_tokens"`
	Models       map[string]ModelSnapshot `json:"models"`
}

// ModelSnapshot summarises metrics for one model.
type ModelSnapshot struct {
	Requests      int64   `json:"requests"`
	InputTokens   int64   `json:"input_tokens"`
	OutputTokens  int64   `json:"output_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// Snapshot returns a copy of the aggregated metrics.
func (s *Statistics) Snapshot() Snapshot {
	result := Snapshot{Providers: make(map[string]ProviderSnapshot)}
	if s == nil {
		return result
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result.TotalRequests = s.totalRequests
	result.SuccessCount = s.successCount
	result.FailureCount = s.failureCount
	result.TotalTokens = s.totalTokens
	result.TotalInputTokens = s.totalInputTokens
	result.TotalOutputTokens = s.totalOutputTokens

	for name, stats := range s.providers {
		snap := ProviderSnapshot{
			Requests:     stats.Requests,
			Failures:     stats.Failures,
			InputTokens:  stats.InputTokens,
			OutputTokens: stats.OutputTokens,
			Models:       make(map[string]ModelSnapshot, len(stats.Models)),
		}
		for model, m := range stats.Models {
			snap.Models[model] = ModelSnapshot{
				Requests:      m.Requests,
				InputTokens:   m.InputTokens,
				OutputTokens:  m.OutputTokens,
				EstimatedCost: m.Cost,
			}
		}
		result.Providers[name] = snap
	}
	return result
}

// LogReporter is the default usage sink. It aggregates into a Statistics
// store, mirrors token counts into prometheus, and logs a summary line per
// interval while Run is active.
type LogReporter struct {
	stats *Statistics
}

// NewLogReporter constructs the default sink over the shared statistics
// store.
func NewLogReporter() *LogReporter {
	return &LogReporter{stats: defaultStatistics}
}

// Report implements Reporter.
func (r *LogReporter) Report(_ context.Context, record Record) {
	if r == nil || r.stats == nil {
		return
	}
	record.Counts.Normalize()
	r.stats.Record(record)
	middleware.RecordTokenUsage(record.Provider, record.Model, record.Counts.InputTokens, record.Counts.OutputTokens)
	log.Debugf("usage: %s/%s account=%s in=%d out=%d total=%d success=%t %dms",
		record.Provider, record.Model, record.AccountID,
		record.Counts.InputTokens, record.Counts.OutputTokens, record.Counts.TotalTokens,
		record.Success, record.DurationMs)
}

// Run logs an aggregate summary every interval until ctx is done. Intended
// to run under the server's errgroup.
func (r *LogReporter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var lastRequests int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap := r.stats.Snapshot()
			if snap.TotalRequests == lastRequests {
				continue
			}
			lastRequests = snap.TotalRequests
			log.WithFields(log.Fields{
				"requests": snap.TotalRequests,
				"success":  snap.SuccessCount,
				"failures": snap.FailureCount,
				"tokens":   snap.TotalTokens,
			}).Info("usage summary")
			for provider, ps := range snap.Providers {
				log.Debugf("usage summary: %s requests=%d failures=%d in=%d out=%d",
					provider, ps.Requests, ps.Failures, ps.InputTokens, ps.OutputTokens)
			}
		}
	}
}
