package ocr

import (
	"fmt"
	"strconv"
	"strings"
)

type specKind int

const (
	specAll specKind = iota
	specSingle
	specList
)

// PageRange is an inclusive span of 1-based page indices.
type PageRange struct {
	First int
	Last  int
}

func (r PageRange) String() string {
	if r.First == r.Last {
		return strconv.Itoa(r.First)
	}
	return strconv.Itoa(r.First) + "-" + strconv.Itoa(r.Last)
}

// PageSpec selects which pages of a document to process.
// The zero value selects every page. Ranges stay unexpanded until Resolve
// knows the document length.
type PageSpec struct {
	kind  specKind
	items []PageRange
}

// AllPages selects every page in document order.
func AllPages() PageSpec {
	return PageSpec{kind: specAll}
}

// SinglePage selects one 1-based page.
func SinglePage(page int) PageSpec {
	return PageSpec{kind: specSingle, items: []PageRange{{page, page}}}
}

// PageList selects pages in the given order. Duplicates are dropped on Resolve.
func PageList(pages ...int) PageSpec {
	items := make([]PageRange, len(pages))
	for i, p := range pages {
		items[i] = PageRange{p, p}
	}
	return PageSpec{kind: specList, items: items}
}

// PageRanges selects pages span by span, in the given order.
func PageRanges(ranges ...PageRange) PageSpec {
	items := make([]PageRange, len(ranges))
	copy(items, ranges)
	return PageSpec{kind: specList, items: items}
}

// IsAll reports whether the spec selects every page.
func (s PageSpec) IsAll() bool {
	return s.kind == specAll
}

func (s PageSpec) String() string {
	if s.kind == specAll {
		return "all"
	}
	parts := make([]string, len(s.items))
	for i, r := range s.items {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// Resolve validates spec against a document with total pages and returns the
// ordered, deduplicated 1-based page indices to process. Only the in-range
// part of a span is ever expanded; out-of-range spans are reported whole.
func Resolve(total int, spec PageSpec) ([]int, error) {
	if spec.kind == specAll {
		pages := make([]int, total)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages, nil
	}
	if spec.kind != specSingle && spec.kind != specList {
		return nil, &InvalidPageError{Total: total, Reason: "unknown page spec"}
	}
	if len(spec.items) == 0 {
		return nil, &InvalidPageError{Total: total, Reason: "empty page list"}
	}

	seen := make(map[int]bool)
	seenSpans := make(map[PageRange]bool)
	var pages, invalid []int
	var spans []PageRange

	reject := func(r PageRange) {
		if r.First == r.Last {
			if !seen[r.First] {
				seen[r.First] = true
				invalid = append(invalid, r.First)
			}
			return
		}
		if !seenSpans[r] {
			seenSpans[r] = true
			spans = append(spans, r)
		}
	}

	for _, r := range spec.items {
		if r.First < 1 {
			reject(PageRange{r.First, min(r.Last, 0)})
		}
		if r.Last > total {
			reject(PageRange{max(r.First, total+1), r.Last})
		}
		for p := max(r.First, 1); p <= min(r.Last, total); p++ {
			if seen[p] {
				continue
			}
			seen[p] = true
			pages = append(pages, p)
		}
	}

	if len(invalid) > 0 || len(spans) > 0 {
		return nil, &InvalidPageError{Invalid: invalid, Ranges: spans, Total: total}
	}
	return pages, nil
}

// ParsePageSpec parses command-line page selections:
//
//	""  or "all"  every page
//	"3"           a single page
//	"3,1,2"       an explicit list, kept in that order
//	"1,4-6"       ranges select in place
func ParsePageSpec(s string) (PageSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return AllPages(), nil
	}

	parts := strings.Split(s, ",")
	var items []PageRange
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return PageSpec{}, &InvalidPageError{Reason: fmt.Sprintf("empty entry in %q", s)}
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.Atoi(strings.TrimSpace(lo))
			end, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil {
				return PageSpec{}, &InvalidPageError{Reason: fmt.Sprintf("malformed range %q", part)}
			}
			if start > end {
				return PageSpec{}, &InvalidPageError{Reason: fmt.Sprintf("inverted range %q", part)}
			}
			items = append(items, PageRange{start, end})
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return PageSpec{}, &InvalidPageError{Reason: fmt.Sprintf("malformed page %q", part)}
		}
		items = append(items, PageRange{p, p})
	}

	if len(items) == 1 && items[0].First == items[0].Last && !strings.Contains(s, "-") {
		return SinglePage(items[0].First), nil
	}
	return PageRanges(items...), nil
}
