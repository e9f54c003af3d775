package ocr

import "github.com/jackzampolin/pageocr/internal/providers"

// Status is the lifecycle state of a PageTask.
type Status string

const (
	StatusPending           Status = "pending"
	StatusRunning           Status = "running"
	StatusSucceeded         Status = "succeeded"
	StatusFallbackSucceeded Status = "fallback-succeeded"
	StatusFailed            Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFallbackSucceeded || s == StatusFailed
}

// PageTask is the processing record for one page.
// Only the pipeline that owns the task writes to it.
type PageTask struct {
	Page   int
	Mode   providers.Mode // Mode that produced Text
	Status Status
	Text   string
	Err    error

	// Degraded is set when the grounding fallback failed and Text holds the
	// retained primary result.
	Degraded bool

	// Attempts counts backend calls made for this page.
	Attempts int

	// Layout is the backend's layout data for the page, when it reports any.
	Layout []map[string]any
}

// HasText reports whether the task carries text worth assembling.
func (t PageTask) HasText(includeDegraded bool) bool {
	switch t.Status {
	case StatusSucceeded, StatusFallbackSucceeded:
		return true
	case StatusFailed:
		return includeDegraded && t.Degraded
	}
	return false
}

// PageStatus is one row of the per-page report returned to callers.
type PageStatus struct {
	Page     int            `json:"page" yaml:"page"`
	Status   Status         `json:"status" yaml:"status"`
	Mode     providers.Mode `json:"mode,omitempty" yaml:"mode,omitempty"`
	Error    string         `json:"error,omitempty" yaml:"error,omitempty"`
	Degraded bool           `json:"degraded,omitempty" yaml:"degraded,omitempty"`
	Attempts int            `json:"attempts" yaml:"attempts"`
	Chars    int            `json:"chars" yaml:"chars"`

	Layout []map[string]any `json:"layout,omitempty" yaml:"layout,omitempty"`
}

// DocumentResult is the assembled output of one conversion.
type DocumentResult struct {
	RunID       string         `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Provider    string         `json:"provider,omitempty" yaml:"provider,omitempty"`
	PrimaryMode providers.Mode `json:"primary_mode,omitempty" yaml:"primary_mode,omitempty"`
	Separator   string         `json:"separator" yaml:"separator"`
	Pages       []PageStatus   `json:"pages" yaml:"pages"`
	Text        string         `json:"text" yaml:"text"`
}

// Failed returns the report rows for pages that ended in failure.
func (r *DocumentResult) Failed() []PageStatus {
	var out []PageStatus
	for _, p := range r.Pages {
		if p.Status == StatusFailed {
			out = append(out, p)
		}
	}
	return out
}
