package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackzampolin/pageocr/internal/metrics"
	"github.com/jackzampolin/pageocr/internal/ocr"
)

// Report summarises one conversion for display or saving.
type Report struct {
	RunID       string           `json:"run_id" yaml:"run_id"`
	Sources     []string         `json:"sources" yaml:"sources"`
	Provider    string           `json:"provider" yaml:"provider"`
	PrimaryMode string           `json:"primary_mode" yaml:"primary_mode"`
	Duration    string           `json:"duration" yaml:"duration"`
	Counts      Counts           `json:"counts" yaml:"counts"`
	Pages       []ocr.PageStatus `json:"pages" yaml:"pages"`
	Text        string           `json:"text,omitempty" yaml:"text,omitempty"`

	// Backend call statistics, present when a recorder was attached.
	Usage   *metrics.Summary       `json:"usage,omitempty" yaml:"usage,omitempty"`
	Latency *metrics.DetailedStats `json:"latency,omitempty" yaml:"latency,omitempty"`
}

// Counts tallies page outcomes.
type Counts struct {
	Pages             int `json:"pages" yaml:"pages"`
	Succeeded         int `json:"succeeded" yaml:"succeeded"`
	FallbackSucceeded int `json:"fallback_succeeded" yaml:"fallback_succeeded"`
	Failed            int `json:"failed" yaml:"failed"`
	Degraded          int `json:"degraded" yaml:"degraded"`
	Chars             int `json:"chars" yaml:"chars"`
}

// NewReport builds a report from a result. The assembled text and per-page
// layout are included only when detailed is set.
func NewReport(result *ocr.DocumentResult, sources []string, elapsed time.Duration, detailed bool) *Report {
	r := &Report{
		RunID:       result.RunID,
		Sources:     sources,
		Provider:    result.Provider,
		PrimaryMode: string(result.PrimaryMode),
		Duration:    elapsed.Round(time.Millisecond).String(),
		Pages:       result.Pages,
	}
	if detailed {
		r.Text = result.Text
	} else {
		r.Pages = make([]ocr.PageStatus, len(result.Pages))
		for i, p := range result.Pages {
			p.Layout = nil
			r.Pages[i] = p
		}
	}

	r.Counts.Pages = len(result.Pages)
	for _, p := range result.Pages {
		switch p.Status {
		case ocr.StatusSucceeded:
			r.Counts.Succeeded++
		case ocr.StatusFallbackSucceeded:
			r.Counts.FallbackSucceeded++
		case ocr.StatusFailed:
			r.Counts.Failed++
		}
		if p.Degraded {
			r.Counts.Degraded++
		}
		r.Counts.Chars += p.Chars
	}
	return r
}

// WithUsage attaches call statistics from rec.
func (r *Report) WithUsage(rec *metrics.Recorder) *Report {
	if rec == nil {
		return r
	}
	r.Usage = rec.GetSummary(metrics.Filter{})
	r.Latency = rec.GetDetailedStats(metrics.Filter{})
	return r
}

// String renders a short human-readable summary.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d pages via %s (%s) in %s\n",
		r.RunID, r.Counts.Pages, r.Provider, r.PrimaryMode, r.Duration)
	fmt.Fprintf(&b, "  succeeded: %d  fallback: %d  failed: %d  degraded: %d\n",
		r.Counts.Succeeded, r.Counts.FallbackSucceeded, r.Counts.Failed, r.Counts.Degraded)
	if r.Usage != nil {
		fmt.Fprintf(&b, "  backend calls: %d  retries: %d  tokens: %d\n",
			r.Usage.Count, r.Usage.RetryCount, r.Usage.TotalTokens)
	}
	for _, p := range r.Pages {
		if p.Status != ocr.StatusFailed {
			continue
		}
		fmt.Fprintf(&b, "  page %d: %s\n", p.Page, p.Error)
	}
	return b.String()
}
