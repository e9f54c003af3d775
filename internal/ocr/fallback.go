package ocr

import (
	"strings"
	"unicode/utf8"

	"github.com/jackzampolin/pageocr/internal/providers"
)

// DefaultFallbackMinChars is the trimmed length under which a primary result
// is treated as under-extracted.
const DefaultFallbackMinChars = 50

// OcrOutcome is the text a backend produced for one page in one mode.
type OcrOutcome struct {
	Text   string
	Mode   providers.Mode
	Layout []map[string]any
}

// FallbackPolicy decides when a page is re-read in grounding mode.
// MinChars <= 0 disables fallback.
type FallbackPolicy struct {
	MinChars int
}

// ShouldFallback reports whether outcome is too short to accept.
func (p FallbackPolicy) ShouldFallback(outcome OcrOutcome) bool {
	if p.MinChars <= 0 {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(outcome.Text)) < p.MinChars
}
