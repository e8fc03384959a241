package util

import (
	"strings"
	"testing"
)

func TestMaskSensitiveQuery(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "empty query",
			raw:  "",
			want: "",
		},
		{
			name: "gemini key parameter masked",
			raw:  "key=AIzaSyExample&alt=sse",
			want: "key=[REDACTED]&alt=sse",
		},
		{
			name: "token parameter masked",
			raw:  "access_token=secret123",
			want: "access_token=[REDACTED]",
		},
		{
			name: "plain parameters untouched",
			raw:  "alt=sse&pageSize=50",
			want: "alt=sse&pageSize=50",
		},
		{
			name: "valueless segment untouched",
			raw:  "flag&key=abc",
			want: "flag&key=[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskSensitiveQuery(tt.raw); got != tt.want {
				t.Errorf("MaskSensitiveQuery(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRedactSensitiveJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantGone  []string
		wantKept  []string
		unchanged bool
	}{
		{
			name:     "api key redacted",
			body:     `{"api_key":"sk-secret","model":"gpt-5"}`,
			wantGone: []string{"sk-secret"},
			wantKept: []string{"gpt-5", "[REDACTED]"},
		},
		{
			name:     "nested token redacted",
			body:     `{"auth":{"refresh_token":"rt-123"},"name":"x"}`,
			wantGone: []string{"rt-123"},
			wantKept: []string{"[REDACTED]"},
		},
		{
			name:      "invalid json unchanged",
			body:      `not json at all`,
			unchanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(RedactSensitiveJSON([]byte(tt.body)))
			if tt.unchanged {
				if got != tt.body {
					t.Errorf("RedactSensitiveJSON() = %q, want unchanged input", got)
				}
				return
			}
			for _, gone := range tt.wantGone {
				if strings.Contains(got, gone) {
					t.Errorf("RedactSensitiveJSON() still contains %q: %s", gone, got)
				}
			}
			for _, kept := range tt.wantKept {
				if !strings.Contains(got, kept) {
					t.Errorf("RedactSensitiveJSON() missing %q: %s", kept, got)
				}
			}
		})
	}
}
