package providers

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Mode selects how a backend should read a page.
type Mode string

const (
	// ModeFreeOCR is plain text extraction, the cheapest pass.
	ModeFreeOCR Mode = "FREE_OCR"
	// ModeGrounding converts the page to markdown with layout grounding.
	ModeGrounding Mode = "GROUNDING"
	// ModeMultimodal asks the model to describe figures and mixed content.
	ModeMultimodal Mode = "MULTIMODAL"
)

// Modes lists every supported mode in display order.
var Modes = []Mode{ModeFreeOCR, ModeGrounding, ModeMultimodal}

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeFreeOCR:
		return ModeFreeOCR, nil
	case ModeGrounding:
		return ModeGrounding, nil
	case ModeMultimodal:
		return ModeMultimodal, nil
	default:
		return "", fmt.Errorf("unknown OCR mode %q (want one of FREE_OCR, GROUNDING, MULTIMODAL)", s)
	}
}

// String implements fmt.Stringer.
func (m Mode) String() string {
	return string(m)
}

// OCRProvider handles image-to-text extraction for a single page image.
type OCRProvider interface {
	// Name returns the provider identifier (e.g., "deepseek", "paddle").
	Name() string

	// ProcessImage extracts text from a page image in the given mode.
	ProcessImage(ctx context.Context, image []byte, pageNum int, mode Mode) (*OCRResult, error)

	// Rate limiting properties
	RequestsPerSecond() float64
	MaxRetries() int
	RetryDelayBase() time.Duration
}

// HealthChecker is implemented by providers that can verify connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ModeAgnostic is implemented by providers whose output does not depend on
// the requested Mode. A retry in another mode would repeat the same request.
type ModeAgnostic interface {
	IgnoresMode() bool
}

// IgnoresMode reports whether p, or a provider it wraps, ignores Mode.
func IgnoresMode(p OCRProvider) bool {
	for p != nil {
		if m, ok := p.(ModeAgnostic); ok {
			return m.IgnoresMode()
		}
		u, ok := p.(interface{ Unwrap() OCRProvider })
		if !ok {
			return false
		}
		p = u.Unwrap()
	}
	return false
}

// OCRResult is the response from an OCR provider.
type OCRResult struct {
	// Success/content
	Success bool   `json:"success"`
	Text    string `json:"text"` // Markdown formatted
	Mode    Mode   `json:"mode"`

	// Metadata from provider (model, token usage, etc.)
	Metadata map[string]any `json:"metadata,omitempty"`

	// Layout holds per-region layout data (bounding boxes, block labels) for
	// providers that report it and have it enabled.
	Layout []map[string]any `json:"layout,omitempty"`

	// Cost and timing
	CostUSD       float64       `json:"cost_usd"`
	ExecutionTime time.Duration `json:"execution_time"`

	// Error info
	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count"`
}

// failedResult builds the OCRResult returned alongside an error.
func failedResult(mode Mode, start time.Time, err error) *OCRResult {
	return &OCRResult{
		Success:       false,
		Mode:          mode,
		ErrorMessage:  err.Error(),
		ExecutionTime: time.Since(start),
	}
}

// HealthCheckerFor returns p's HealthChecker, looking through wrappers such as
// RateLimitedProvider.
func HealthCheckerFor(p OCRProvider) (HealthChecker, bool) {
	for p != nil {
		if hc, ok := p.(HealthChecker); ok {
			return hc, true
		}
		u, ok := p.(interface{ Unwrap() OCRProvider })
		if !ok {
			return nil, false
		}
		p = u.Unwrap()
	}
	return nil, false
}
