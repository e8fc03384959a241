package usage

import (
	"testing"
)

func TestCountsNormalize(t *testing.T) {
	tests := []struct {
		name      string
		counts    Counts
		wantTotal int64
	}{
		{
			name:      "total synthesized from parts",
			counts:    Counts{InputTokens: 100, OutputTokens: 25},
			wantTotal: 125,
		},
		{
			name:      "existing total preserved",
			counts:    Counts{InputTokens: 100, OutputTokens: 25, TotalTokens: 130},
			wantTotal: 130,
		},
		{
			name:      "zero counts stay zero",
			counts:    Counts{},
			wantTotal: 0,
		},
		{
			name:      "cached tokens not double counted",
			counts:    Counts{InputTokens: 100, OutputTokens: 10, CachedTokens: 80},
			wantTotal: 110,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.counts.Normalize()
			if tt.counts.TotalTokens != tt.wantTotal {
				t.Errorf("TotalTokens = %d, want %d", tt.counts.TotalTokens, tt.wantTotal)
			}
		})
	}
}

func TestStatisticsRecord(t *testing.T) {
	stats := NewStatistics()

	stats.Record(Record{
		Provider: "kiro",
		Model:    "claude-sonnet-4.5",
		Counts:   Counts{InputTokens: 100, OutputTokens: 50},
		Success:  true,
	})
	stats.Record(Record{
		Provider: "kiro",
		Model:    "claude-sonnet-4.5",
		Counts:   Counts{InputTokens: 30, OutputTokens: 5},
		Success:  false,
	})
	stats.Record(Record{
		ConfigType: "qwen",
		Model:      "qwen3-coder-plus",
		Counts:     Counts{TotalTokens: 77},
		Success:    true,
	})

	snap := stats.Snapshot()
	if snap.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", snap.TotalRequests)
	}
	if snap.SuccessCount != 2 || snap.FailureCount != 1 {
		t.Errorf("success/failure = %d/%d, want 2/1", snap.SuccessCount, snap.FailureCount)
	}
	if snap.TotalTokens != 150+35+77 {
		t.Errorf("TotalTokens = %d, want %d", snap.TotalTokens, 150+35+77)
	}

	kiro, ok := snap.Providers["kiro"]
	if !ok {
		t.Fatal("missing kiro provider aggregate")
	}
	if kiro.Requests != 2 || kiro.Failures != 1 {
		t.Errorf("kiro requests/failures = %d/%d, want 2/1", kiro.Requests, kiro.Failures)
	}
	model, ok := kiro.Models["claude-sonnet-4.5"]
	if !ok {
		t.Fatal("missing model aggregate")
	}
	if model.InputTokens != 130 || model.OutputTokens != 55 {
		t.Errorf("model tokens = %d/%d, want 130/55", model.InputTokens, model.OutputTokens)
	}

	// Provider falls back to config type when the executor id is absent.
	if _, ok = snap.Providers["qwen"]; !ok {
		t.Error("config-type fallback provider missing")
	}
}

func TestStatisticsDisabled(t *testing.T) {
	stats := NewStatistics()
	SetStatisticsEnabled(false)
	defer SetStatisticsEnabled(true)

	stats.Record(Record{Provider: "kiro", Model: "m", Counts: Counts{TotalTokens: 10}})
	if snap := stats.Snapshot(); snap.TotalRequests != 0 {
		t.Errorf("TotalRequests = %d, want 0 while disabled", snap.TotalRequests)
	}
}

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		counts    Counts
		wantFound bool
		wantCost  float64
	}{
		{
			name:      "exact family row",
			model:     "claude-sonnet-4",
			counts:    Counts{InputTokens: 1_000_000, OutputTokens: 1_000_000},
			wantFound: true,
			wantCost:  3.00 + 15.00,
		},
		{
			name:      "dated id uses longest prefix",
			model:     "claude-sonnet-4.5",
			counts:    Counts{InputTokens: 2_000_000},
			wantFound: true,
			wantCost:  6.00,
		},
		{
			name:      "codex prefix beats gpt-5",
			model:     "gpt-5-codex",
			counts:    Counts{OutputTokens: 1_000_000},
			wantFound: true,
			wantCost:  24.00,
		},
		{
			name:      "cached tokens billed at cache rate",
			model:     "claude-sonnet-4",
			counts:    Counts{InputTokens: 1_000_000, CachedTokens: 1_000_000},
			wantFound: true,
			wantCost:  0.30,
		},
		{
			name:      "unknown model costs nothing",
			model:     "totally-unknown",
			counts:    Counts{InputTokens: 500},
			wantFound: false,
			wantCost:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost, found := EstimateCost(tt.model, tt.counts)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if diff := cost - tt.wantCost; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cost = %f, want %f", cost, tt.wantCost)
			}
		})
	}
}

func TestCountTokens(t *testing.T) {
	count, err := CountTokens("claude-sonnet-4.5", "Hello, world")
	if err != nil {
		t.Fatalf("CountTokens() error = %v", err)
	}
	if count <= 0 {
		t.Errorf("CountTokens() = %d, want > 0", count)
	}

	empty, err := CountTokens("claude-sonnet-4.5", "")
	if err != nil {
		t.Fatalf("CountTokens(empty) error = %v", err)
	}
	if empty != 0 {
		t.Errorf("CountTokens(empty) = %d, want 0", empty)
	}

	// Same text, same model: deterministic.
	again, err := CountTokens("claude-sonnet-4.5", "Hello, world")
	if err != nil {
		t.Fatalf("CountTokens() error = %v", err)
	}
	if again != count {
		t.Errorf("CountTokens() not deterministic: %d then %d", count, again)
	}
}

func TestCountRequestTokens(t *testing.T) {
	small := []byte(`{"model":"claude-sonnet-4.5","messages":[{"role":"user","content":"hi"}]}`)
	large := []byte(`{
		"model": "claude-sonnet-4.5",
		"system": "You are a helpful assistant with a long preamble.",
		"messages": [
			{"role": "user", "content": "Summarize this document for me please."},
			{"role": "assistant", "content": [{"type": "text", "text": "Which document?"}]},
			{"role": "user", "content": [{"type": "tool_result", "tool_use_id": "t1", "content": "the document body text"}]}
		],
		"tools": [{"name": "read_file", "description": "Reads a file", "input_schema": {"type": "object"}}]
	}`)

	smallCount, err := CountRequestTokens("claude-sonnet-4.5", small)
	if err != nil {
		t.Fatalf("CountRequestTokens(small) error = %v", err)
	}
	largeCount, err := CountRequestTokens("claude-sonnet-4.5", large)
	if err != nil {
		t.Fatalf("CountRequestTokens(large) error = %v", err)
	}
	if smallCount <= 0 {
		t.Errorf("small request count = %d, want > 0", smallCount)
	}
	if largeCount <= smallCount {
		t.Errorf("large request (%d) should outweigh small request (%d)", largeCount, smallCount)
	}
}
