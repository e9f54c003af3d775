package ocr

import (
	"fmt"
	"strings"

	"github.com/jackzampolin/pageocr/internal/providers"
)

// InvalidPageError reports a page spec that cannot be resolved against a document.
// Invalid lists every offending index, not just the first. Out-of-range
// spans from page ranges are reported whole in Ranges.
type InvalidPageError struct {
	Invalid []int
	Ranges  []PageRange
	Total   int
	Reason  string
}

func (e *InvalidPageError) Error() string {
	if len(e.Invalid) == 0 && len(e.Ranges) == 0 {
		if e.Reason == "" {
			return "invalid page spec"
		}
		return "invalid page spec: " + e.Reason
	}
	nums := make([]string, 0, len(e.Invalid)+len(e.Ranges))
	for _, p := range e.Invalid {
		nums = append(nums, fmt.Sprint(p))
	}
	for _, r := range e.Ranges {
		nums = append(nums, r.String())
	}
	noun := "page"
	if len(nums) > 1 || len(e.Ranges) > 0 {
		noun = "pages"
	}
	return fmt.Sprintf("invalid %s %s: document has %d pages (valid range 1-%d)",
		noun, strings.Join(nums, ", "), e.Total, e.Total)
}

// RenderError is a per-page rendering failure.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// BackendError is a per-page OCR call failure. Fallback is set when the
// failing call was the grounding retry rather than the primary pass.
type BackendError struct {
	Page     int
	Mode     providers.Mode
	Provider string
	Fallback bool
	Err      error
}

func (e *BackendError) Error() string {
	if e.Fallback {
		return fmt.Sprintf("page %d: %s fallback via %s failed: %v", e.Page, e.Mode, e.Provider, e.Err)
	}
	return fmt.Sprintf("page %d: %s via %s failed: %v", e.Page, e.Mode, e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// AssemblyInconsistencyError means the orchestrator returned tasks that do not
// line up with the requested pages. It indicates a bug, not bad input.
type AssemblyInconsistencyError struct {
	Want   int
	Got    int
	Detail string
}

func (e *AssemblyInconsistencyError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("assembly inconsistency (want %d tasks, got %d): %s", e.Want, e.Got, e.Detail)
	}
	return fmt.Sprintf("assembly inconsistency: want %d tasks, got %d", e.Want, e.Got)
}
