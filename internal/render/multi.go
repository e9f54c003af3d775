package render

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// part is one member document and its page range in the combined numbering.
type part struct {
	doc       Document
	startPage int // 1-indexed, cumulative
	endPage   int // inclusive
}

// MultiDocument presents several documents as one, numbering pages
// cumulatively in the order given.
type MultiDocument struct {
	parts []part
	total int
}

// Concat combines docs into a single document.
func Concat(docs ...Document) *MultiDocument {
	m := &MultiDocument{}
	next := 1
	for _, d := range docs {
		n := d.PageCount()
		if n == 0 {
			continue
		}
		m.parts = append(m.parts, part{doc: d, startPage: next, endPage: next + n - 1})
		next += n
	}
	m.total = next - 1
	return m
}

// PageCount returns the total pages across all members.
func (m *MultiDocument) PageCount() int {
	return m.total
}

// Locate returns the member document and its local page for a combined page.
func (m *MultiDocument) Locate(page int) (Document, int, error) {
	for _, p := range m.parts {
		if page >= p.startPage && page <= p.endPage {
			return p.doc, page - p.startPage + 1, nil
		}
	}
	return nil, 0, fmt.Errorf("page %d out of range (document has %d pages)", page, m.total)
}

// RenderPage renders a combined page from its member document.
func (m *MultiDocument) RenderPage(ctx context.Context, page int) ([]byte, error) {
	doc, local, err := m.Locate(page)
	if err != nil {
		return nil, err
	}
	return doc.RenderPage(ctx, local)
}

var numericSuffix = regexp.MustCompile(`-(\d+)\.[a-z]+$`)

// sortPathsByNumber orders paths by their numeric suffix.
// e.g., ["book-2.pdf", "book-1.pdf", "book-10.pdf"] -> ["book-1.pdf", "book-2.pdf", "book-10.pdf"]
func sortPathsByNumber(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)

	sort.SliceStable(sorted, func(i, j int) bool {
		mi := numericSuffix.FindStringSubmatch(strings.ToLower(sorted[i]))
		mj := numericSuffix.FindStringSubmatch(strings.ToLower(sorted[j]))

		// If both have numbers, sort numerically
		if len(mi) > 1 && len(mj) > 1 {
			ni, _ := strconv.Atoi(mi[1])
			nj, _ := strconv.Atoi(mj[1])
			if ni != nj {
				return ni < nj
			}
		}
		return sorted[i] < sorted[j]
	})

	return sorted
}
