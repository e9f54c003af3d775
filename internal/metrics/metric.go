// Package metrics records per-call usage and timing for OCR runs.
package metrics

import (
	"time"

	"github.com/jackzampolin/pageocr/internal/providers"
)

// Metric represents a single recorded backend call.
// Metrics are append-only records kept in memory for the life of a run.
type Metric struct {
	// Attribution (for filtering/aggregation)
	RunID    string         `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Page     int            `json:"page" yaml:"page"`
	Mode     providers.Mode `json:"mode" yaml:"mode"`
	Fallback bool           `json:"fallback,omitempty" yaml:"fallback,omitempty"`

	// Provider info
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`

	// Cost and tokens
	CostUSD          float64 `json:"cost_usd,omitempty" yaml:"cost_usd,omitempty"`
	PromptTokens     int     `json:"prompt_tokens,omitempty" yaml:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty" yaml:"completion_tokens,omitempty"`
	TotalTokens      int     `json:"total_tokens,omitempty" yaml:"total_tokens,omitempty"`

	// Timing
	ExecutionSeconds float64 `json:"execution_seconds" yaml:"execution_seconds"`
	Retries          int     `json:"retries,omitempty" yaml:"retries,omitempty"`

	// Status
	Success   bool   `json:"success" yaml:"success"`
	ErrorType string `json:"error_type,omitempty" yaml:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Filter selects metrics for aggregation. Zero fields match everything.
type Filter struct {
	Page     int
	Mode     providers.Mode
	Provider string
	// Fallback, if set, matches only fallback (true) or primary (false) calls.
	Fallback *bool
}

func (f Filter) match(m Metric) bool {
	if f.Page != 0 && m.Page != f.Page {
		return false
	}
	if f.Mode != "" && m.Mode != f.Mode {
		return false
	}
	if f.Provider != "" && m.Provider != f.Provider {
		return false
	}
	if f.Fallback != nil && m.Fallback != *f.Fallback {
		return false
	}
	return true
}
