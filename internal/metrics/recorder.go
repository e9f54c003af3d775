package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackzampolin/pageocr/internal/providers"
)

// Recorder collects metrics from concurrent page pipelines.
type Recorder struct {
	mu      sync.Mutex
	metrics []Metric
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordOpts provides context for a metric recording.
type RecordOpts struct {
	RunID    string
	Page     int
	Mode     providers.Mode
	Fallback bool
}

// Record stores a single metric.
func (r *Recorder) Record(m Metric) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.mu.Lock()
	r.metrics = append(r.metrics, m)
	r.mu.Unlock()
}

// RecordOCRCall records one ProcessImage call. result may be nil when err is set.
func (r *Recorder) RecordOCRCall(opts RecordOpts, provider string, result *providers.OCRResult, err error, elapsed time.Duration) {
	m := Metric{
		// Attribution
		RunID:    opts.RunID,
		Page:     opts.Page,
		Mode:     opts.Mode,
		Fallback: opts.Fallback,

		// Provider info
		Provider: provider,

		// Timing
		ExecutionSeconds: elapsed.Seconds(),

		Success: err == nil && result != nil && result.Success,
	}

	if result != nil {
		m.CostUSD = result.CostUSD
		m.Retries = result.RetryCount
		if result.ExecutionTime > 0 {
			m.ExecutionSeconds = result.ExecutionTime.Seconds()
		}
		if model, ok := result.Metadata["model"].(string); ok {
			m.Model = model
		}
		m.PromptTokens = tokenCount(result.Metadata["prompt_tokens"])
		m.CompletionTokens = tokenCount(result.Metadata["completion_tokens"])
		m.TotalTokens = tokenCount(result.Metadata["total_tokens"])
	}

	if !m.Success {
		m.ErrorType = errorType(err)
	}

	r.Record(m)
}

// Metrics returns a copy of everything recorded so far.
func (r *Recorder) Metrics() []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Metric, len(r.metrics))
	copy(out, r.metrics)
	return out
}

// List returns metrics matching f, in recording order.
func (r *Recorder) List(f Filter) []Metric {
	var out []Metric
	for _, m := range r.Metrics() {
		if f.match(m) {
			out = append(out, m)
		}
	}
	return out
}

// Reset discards all recorded metrics.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.metrics = nil
	r.mu.Unlock()
}

// errorType classifies a call failure for aggregation.
func errorType(err error) string {
	var rateErr *providers.RateLimitError
	var apiErr *providers.APIError
	switch {
	case err == nil:
		return "ocr_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &rateErr):
		return "rate_limited"
	case errors.As(err, &apiErr):
		return "api_error"
	default:
		return "ocr_error"
	}
}

// tokenCount normalises the integer types SDKs report usage in.
func tokenCount(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
