package ocr

import (
	"strings"
	"testing"
)

func TestFallbackPolicy_ShouldFallback(t *testing.T) {
	p := FallbackPolicy{MinChars: 10}

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", true},
		{"whitespace only", " \n\t  ", true},
		{"one under threshold", "123456789", true},
		{"exactly at threshold", "1234567890", false},
		{"above threshold", "12345678901", false},
		{"padding is trimmed", "   12345   \n\n", true},
		{"runes not bytes", strings.Repeat("é", 10), false},
		{"multibyte under threshold", strings.Repeat("日", 9), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldFallback(OcrOutcome{Text: tt.text}); got != tt.want {
				t.Errorf("ShouldFallback(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestFallbackPolicy_Disabled(t *testing.T) {
	for _, minChars := range []int{0, -1} {
		p := FallbackPolicy{MinChars: minChars}
		if p.ShouldFallback(OcrOutcome{}) {
			t.Errorf("MinChars=%d should never trigger fallback", minChars)
		}
	}
}
