package metrics

import "github.com/jackzampolin/pageocr/internal/providers"

// CallsByMode returns call counts per OCR mode.
func (r *Recorder) CallsByMode(f Filter) map[providers.Mode]int {
	breakdown := make(map[providers.Mode]int)
	for _, m := range r.List(f) {
		breakdown[m.Mode]++
	}
	return breakdown
}

// ErrorsByType returns failure counts per error type.
func (r *Recorder) ErrorsByType(f Filter) map[string]int {
	breakdown := make(map[string]int)
	for _, m := range r.List(f) {
		if !m.Success {
			breakdown[m.ErrorType]++
		}
	}
	return breakdown
}

// TokensByPage returns total tokens spent on each page, fallback calls included.
func (r *Recorder) TokensByPage(f Filter) map[int]int {
	breakdown := make(map[int]int)
	for _, m := range r.List(f) {
		breakdown[m.Page] += m.TotalTokens
	}
	return breakdown
}
