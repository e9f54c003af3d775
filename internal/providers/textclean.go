package providers

import (
	"regexp"
	"strings"
)

var (
	// <|ref|>label<|/ref|><|det|>[[x1, y1, x2, y2]]<|/det|>
	groundingBlock = regexp.MustCompile(`(?s)<\|ref\|>(.*?)<\|/ref\|>\s*<\|det\|>.*?<\|/det\|>`)
	specialToken   = regexp.MustCompile(`<\|/?[a-z_]+\|>`)
	dataURIImage   = regexp.MustCompile(`!\[([^\]]*)\]\(data:[^)]+\)`)
	blankRun       = regexp.MustCompile(`\n{3,}`)
)

// CleanGroundingText strips layout grounding markup from DeepSeek-OCR output.
// Image regions keep an empty markdown image so figure positions survive.
func CleanGroundingText(s string) string {
	s = groundingBlock.ReplaceAllStringFunc(s, func(block string) string {
		m := groundingBlock.FindStringSubmatch(block)
		if len(m) > 1 && strings.EqualFold(strings.TrimSpace(m[1]), "image") {
			return "![]()"
		}
		return ""
	})
	s = specialToken.ReplaceAllString(s, "")
	s = blankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// StripDataURIImages replaces inline base64 images with empty links, keeping alt text.
func StripDataURIImages(s string) string {
	return dataURIImage.ReplaceAllString(s, "![$1]()")
}
