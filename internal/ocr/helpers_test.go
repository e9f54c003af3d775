package ocr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/pageocr/internal/providers"
)

// fakeDoc is an in-memory Document whose pages render to their own labels.
type fakeDoc struct {
	pages     int
	renderErr map[int]error
	delay     map[int]time.Duration

	renders  atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64

	mu    sync.Mutex
	order []int
}

func newFakeDoc(pages int) *fakeDoc {
	return &fakeDoc{pages: pages}
}

func (d *fakeDoc) PageCount() int {
	return d.pages
}

func (d *fakeDoc) RenderPage(ctx context.Context, page int) ([]byte, error) {
	d.renders.Add(1)
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}

	d.mu.Lock()
	d.order = append(d.order, page)
	d.mu.Unlock()

	if delay := d.delay[page]; delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
	if err := d.renderErr[page]; err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("image-%d", page)), nil
}

func (d *fakeDoc) renderOrder() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int, len(d.order))
	copy(out, d.order)
	return out
}

// pageText is comfortably above DefaultFallbackMinChars.
func pageText(page int) string {
	return fmt.Sprintf("Page %d. %s", page, strings.Repeat("The quick brown fox jumps. ", 3))
}

// newTextProvider returns a mock that answers every page with pageText.
func newTextProvider() *providers.MockOCRProvider {
	p := providers.NewMockOCRProvider()
	p.Latency = 0
	p.TextFunc = func(page int, mode providers.Mode) (string, error) {
		return pageText(page), nil
	}
	return p
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}
