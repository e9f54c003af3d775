package ocr

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/pageocr/internal/providers"
)

func TestOrchestrator_Process(t *testing.T) {
	t.Run("all pages succeed on primary", func(t *testing.T) {
		provider := newTextProvider()
		orch := NewOrchestrator(provider, testOptions())

		tasks := orch.Process(context.Background(), newFakeDoc(3), []int{1, 2, 3})

		if len(tasks) != 3 {
			t.Fatalf("got %d tasks, want 3", len(tasks))
		}
		for i, task := range tasks {
			if task.Page != i+1 {
				t.Errorf("tasks[%d].Page = %d", i, task.Page)
			}
			if task.Status != StatusSucceeded {
				t.Errorf("page %d status = %s, err = %v", task.Page, task.Status, task.Err)
			}
			if task.Mode != providers.ModeFreeOCR {
				t.Errorf("page %d mode = %s", task.Page, task.Mode)
			}
			if task.Text != pageText(task.Page) {
				t.Errorf("page %d text = %q", task.Page, task.Text)
			}
			if task.Attempts != 1 {
				t.Errorf("page %d attempts = %d", task.Page, task.Attempts)
			}
		}
		if n := provider.ModeCount(providers.ModeGrounding); n != 0 {
			t.Errorf("grounding called %d times, want 0", n)
		}
	})

	t.Run("render failure is isolated", func(t *testing.T) {
		doc := newFakeDoc(3)
		doc.renderErr = map[int]error{2: errors.New("corrupt page")}
		provider := newTextProvider()

		tasks := NewOrchestrator(provider, testOptions()).Process(context.Background(), doc, []int{1, 2, 3})

		if tasks[0].Status != StatusSucceeded || tasks[2].Status != StatusSucceeded {
			t.Errorf("neighbours affected: %s, %s", tasks[0].Status, tasks[2].Status)
		}
		if tasks[1].Status != StatusFailed {
			t.Fatalf("page 2 status = %s, want failed", tasks[1].Status)
		}
		var renderErr *RenderError
		if !errors.As(tasks[1].Err, &renderErr) || renderErr.Page != 2 {
			t.Errorf("page 2 err = %v, want RenderError for page 2", tasks[1].Err)
		}
		if provider.RequestCount() != 2 {
			t.Errorf("backend called %d times, want 2", provider.RequestCount())
		}
	})

	t.Run("primary failure is isolated", func(t *testing.T) {
		provider := newTextProvider()
		provider.TextFunc = func(page int, mode providers.Mode) (string, error) {
			if page == 1 {
				return "", errors.New("backend exploded")
			}
			return pageText(page), nil
		}

		tasks := NewOrchestrator(provider, testOptions()).Process(context.Background(), newFakeDoc(2), []int{1, 2})

		var backendErr *BackendError
		if !errors.As(tasks[0].Err, &backendErr) {
			t.Fatalf("page 1 err = %v, want BackendError", tasks[0].Err)
		}
		if backendErr.Fallback || backendErr.Mode != providers.ModeFreeOCR {
			t.Errorf("unexpected BackendError: %+v", backendErr)
		}
		if tasks[0].Status != StatusFailed || tasks[0].Text != "" {
			t.Errorf("page 1 = %+v", tasks[0])
		}
		if tasks[1].Status != StatusSucceeded {
			t.Errorf("page 2 status = %s", tasks[1].Status)
		}
		if provider.ModeCount(providers.ModeGrounding) != 0 {
			t.Error("grounding should not run after a primary failure")
		}
	})

	t.Run("unsuccessful result without error is a failure", func(t *testing.T) {
		provider := failingResultProvider{providers.NewMockOCRProvider()}
		tasks := NewOrchestrator(provider, testOptions()).Process(context.Background(), newFakeDoc(1), []int{1})
		if tasks[0].Status != StatusFailed || tasks[0].Err == nil {
			t.Errorf("task = %+v", tasks[0])
		}
	})

	t.Run("empty page list", func(t *testing.T) {
		tasks := NewOrchestrator(newTextProvider(), testOptions()).Process(context.Background(), newFakeDoc(3), nil)
		if len(tasks) != 0 {
			t.Errorf("got %d tasks", len(tasks))
		}
	})
}

type failingResultProvider struct {
	*providers.MockOCRProvider
}

func (failingResultProvider) ProcessImage(ctx context.Context, image []byte, pageNum int, mode providers.Mode) (*providers.OCRResult, error) {
	return &providers.OCRResult{Success: false, ErrorMessage: "no text layer"}, nil
}

func TestOrchestrator_Fallback(t *testing.T) {
	short := "tiny"
	atThreshold := strings.Repeat("x", DefaultFallbackMinChars)
	underThreshold := "  " + strings.Repeat("x", DefaultFallbackMinChars-1) + "  "

	t.Run("short primary triggers grounding", func(t *testing.T) {
		provider := newTextProvider()
		provider.TextFunc = func(page int, mode providers.Mode) (string, error) {
			if mode == providers.ModeFreeOCR {
				return underThreshold, nil
			}
			return "grounded " + pageText(page), nil
		}

		tasks := NewOrchestrator(provider, testOptions()).Process(context.Background(), newFakeDoc(1), []int{1})

		task := tasks[0]
		if task.Status != StatusFallbackSucceeded {
			t.Fatalf("status = %s, err = %v", task.Status, task.Err)
		}
		if task.Mode != providers.ModeGrounding {
			t.Errorf("mode = %s, want GROUNDING", task.Mode)
		}
		if task.Text != "grounded "+pageText(1) {
			t.Errorf("text = %q", task.Text)
		}
		if task.Attempts != 2 || provider.ModeCount(providers.ModeGrounding) != 1 {
			t.Errorf("attempts = %d, grounding calls = %d", task.Attempts, provider.ModeCount(providers.ModeGrounding))
		}
	})

	t.Run("result at threshold is kept", func(t *testing.T) {
		provider := newTextProvider()
		provider.TextFunc = func(page int, mode providers.Mode) (string, error) {
			return atThreshold, nil
		}

		tasks := NewOrchestrator(provider, testOptions()).Process(context.Background(), newFakeDoc(1), []int{1})

		if tasks[0].Status != StatusSucceeded {
			t.Errorf("status = %s", tasks[0].Status)
		}
		if provider.ModeCount(providers.ModeGrounding) != 0 {
			t.Error("grounding should not run at threshold")
		}
	})

	t.Run("failed fallback keeps primary text", func(t *testing.T) {
		provider := newTextProvider()
		provider.TextFunc = func(page int, mode providers.Mode) (string, error) {
			if mode == providers.ModeGrounding {
				return "", errors.New("grounding unavailable")
			}
			return short, nil
		}

		tasks := NewOrchestrator(provider, testOptions()).Process(context.Background(), newFakeDoc(1), []int{1})

		task := tasks[0]
		if task.Status != StatusFailed || !task.Degraded {
			t.Fatalf("task = %+v", task)
		}
		if task.Text != short || task.Mode != providers.ModeFreeOCR {
			t.Errorf("primary result lost: text = %q, mode = %s", task.Text, task.Mode)
		}
		var backendErr *BackendError
		if !errors.As(task.Err, &backendErr) || !backendErr.Fallback || backendErr.Mode != providers.ModeGrounding {
			t.Errorf("err = %v, want fallback BackendError", task.Err)
		}
	})

	t.Run("grounding primary does not refallback", func(t *testing.T) {
		provider := newTextProvider()
		provider.TextFunc = func(page int, mode providers.Mode) (string, error) {
			return short, nil
		}
		opts := testOptions()
		opts.PrimaryMode = providers.ModeGrounding

		tasks := NewOrchestrator(provider, opts).Process(context.Background(), newFakeDoc(1), []int{1})

		if tasks[0].Status != StatusSucceeded || tasks[0].Text != short {
			t.Errorf("task = %+v", tasks[0])
		}
		if provider.ModeCount(providers.ModeGrounding) != 1 {
			t.Errorf("grounding calls = %d, want 1", provider.ModeCount(providers.ModeGrounding))
		}
	})

	t.Run("grounding primary refallback when enabled", func(t *testing.T) {
		provider := newTextProvider()
		var calls atomic.Int32
		provider.TextFunc = func(page int, mode providers.Mode) (string, error) {
			if calls.Add(1) == 1 {
				return short, nil
			}
			return pageText(page), nil
		}
		opts := testOptions()
		opts.PrimaryMode = providers.ModeGrounding
		opts.RefallbackGrounding = true

		tasks := NewOrchestrator(provider, opts).Process(context.Background(), newFakeDoc(1), []int{1})

		if tasks[0].Status != StatusFallbackSucceeded {
			t.Errorf("status = %s", tasks[0].Status)
		}
		if provider.ModeCount(providers.ModeGrounding) != 2 {
			t.Errorf("grounding calls = %d, want 2", provider.ModeCount(providers.ModeGrounding))
		}
	})

	t.Run("multimodal primary falls back to grounding", func(t *testing.T) {
		provider := newTextProvider()
		provider.TextFunc = func(page int, mode providers.Mode) (string, error) {
			if mode == providers.ModeMultimodal {
				return "", nil
			}
			return pageText(page), nil
		}
		opts := testOptions()
		opts.PrimaryMode = providers.ModeMultimodal

		tasks := NewOrchestrator(provider, opts).Process(context.Background(), newFakeDoc(2), []int{2, 1})

		for _, task := range tasks {
			if task.Status != StatusFallbackSucceeded || task.Mode != providers.ModeGrounding {
				t.Errorf("page %d = %s/%s", task.Page, task.Status, task.Mode)
			}
		}
	})

	t.Run("mode-agnostic provider skips grounding", func(t *testing.T) {
		provider := newTextProvider()
		provider.ModeBlind = true
		provider.TextFunc = func(page int, mode providers.Mode) (string, error) {
			return short, nil
		}

		tasks := NewOrchestrator(providers.WithRateLimit(provider), testOptions()).
			Process(context.Background(), newFakeDoc(2), []int{1, 2})

		for _, task := range tasks {
			if task.Status != StatusSucceeded || task.Text != short || task.Attempts != 1 {
				t.Errorf("page %d = %s, text %q, attempts %d", task.Page, task.Status, task.Text, task.Attempts)
			}
		}
		if n := provider.ModeCount(providers.ModeGrounding); n != 0 {
			t.Errorf("grounding calls = %d, want 0", n)
		}
	})

	t.Run("layout follows the text that was kept", func(t *testing.T) {
		layout := []map[string]any{{"block_label": "text"}}
		provider := &layoutProvider{MockOCRProvider: newTextProvider(), layout: layout}
		provider.TextFunc = func(page int, mode providers.Mode) (string, error) {
			if mode == providers.ModeFreeOCR {
				return short, nil
			}
			return pageText(page), nil
		}

		tasks := NewOrchestrator(provider, testOptions()).Process(context.Background(), newFakeDoc(1), []int{1})

		if tasks[0].Status != StatusFallbackSucceeded {
			t.Fatalf("status = %s, err = %v", tasks[0].Status, tasks[0].Err)
		}
		if !reflect.DeepEqual(tasks[0].Layout, layout) {
			t.Errorf("Layout = %v, want %v", tasks[0].Layout, layout)
		}

		result, err := Assemble([]int{1}, tasks, "|")
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(result.Pages[0].Layout, layout) {
			t.Errorf("PageStatus.Layout = %v", result.Pages[0].Layout)
		}
	})
}

// layoutProvider attaches fixed layout data to every successful mock result.
type layoutProvider struct {
	*providers.MockOCRProvider
	layout []map[string]any
}

func (p *layoutProvider) ProcessImage(ctx context.Context, image []byte, pageNum int, mode providers.Mode) (*providers.OCRResult, error) {
	res, err := p.MockOCRProvider.ProcessImage(ctx, image, pageNum, mode)
	if err == nil {
		res.Layout = p.layout
	}
	return res, err
}

func TestOrchestrator_Ordering(t *testing.T) {
	t.Run("completion order does not change result order", func(t *testing.T) {
		const n = 20
		pages := rand.New(rand.NewSource(7)).Perm(n)
		for i := range pages {
			pages[i]++
		}

		doc := newFakeDoc(n)
		doc.delay = make(map[int]time.Duration, n)
		rng := rand.New(rand.NewSource(42))
		for p := 1; p <= n; p++ {
			doc.delay[p] = time.Duration(rng.Intn(20)) * time.Millisecond
		}

		tasks := NewOrchestrator(newTextProvider(), testOptions()).Process(context.Background(), doc, pages)

		for i, task := range tasks {
			if task.Page != pages[i] || task.Text != pageText(pages[i]) {
				t.Errorf("slot %d = page %d %q, want page %d", i, task.Page, task.Text, pages[i])
			}
		}
	})

	t.Run("sync mode matches concurrent mode", func(t *testing.T) {
		pages := []int{4, 2, 5, 1, 3}
		provider := newTextProvider()
		provider.TextFunc = func(page int, mode providers.Mode) (string, error) {
			if page%2 == 0 && mode == providers.ModeFreeOCR {
				return "short", nil
			}
			return pageText(page), nil
		}

		concurrentDoc := newFakeDoc(5)
		concurrentDoc.renderErr = map[int]error{3: errors.New("bad page")}
		concurrent := NewOrchestrator(provider, testOptions()).Process(context.Background(), concurrentDoc, pages)

		syncDoc := newFakeDoc(5)
		syncDoc.renderErr = concurrentDoc.renderErr
		opts := testOptions()
		opts.Sync = true
		sequential := NewOrchestrator(provider, opts).Process(context.Background(), syncDoc, pages)

		if !reflect.DeepEqual(syncDoc.renderOrder(), pages) {
			t.Errorf("sync render order = %v, want %v", syncDoc.renderOrder(), pages)
		}
		if len(concurrent) != len(sequential) {
			t.Fatalf("task counts differ: %d vs %d", len(concurrent), len(sequential))
		}
		for i := range concurrent {
			c, s := concurrent[i], sequential[i]
			if c.Page != s.Page || c.Status != s.Status || c.Text != s.Text || c.Mode != s.Mode || c.Degraded != s.Degraded {
				t.Errorf("slot %d differs: concurrent %+v, sync %+v", i, c, s)
			}
		}
	})

	t.Run("max concurrency bounds in-flight pages", func(t *testing.T) {
		doc := newFakeDoc(8)
		doc.delay = map[int]time.Duration{}
		for p := 1; p <= 8; p++ {
			doc.delay[p] = 10 * time.Millisecond
		}
		opts := testOptions()
		opts.MaxConcurrency = 2

		tasks := NewOrchestrator(newTextProvider(), opts).Process(context.Background(), doc, []int{1, 2, 3, 4, 5, 6, 7, 8})

		if len(tasks) != 8 {
			t.Fatalf("got %d tasks", len(tasks))
		}
		if peak := doc.peak.Load(); peak > 2 {
			t.Errorf("peak in-flight renders = %d, want <= 2", peak)
		}
	})

	t.Run("progress reports every page", func(t *testing.T) {
		var calls atomic.Int32
		var maxDone atomic.Int32
		opts := testOptions()
		opts.Progress = func(done, total int, task PageTask) {
			calls.Add(1)
			if total != 4 {
				t.Errorf("total = %d, want 4", total)
			}
			if !task.Status.Terminal() {
				t.Errorf("progress for non-terminal task %+v", task)
			}
			for {
				m := maxDone.Load()
				if int32(done) <= m || maxDone.CompareAndSwap(m, int32(done)) {
					break
				}
			}
		}

		NewOrchestrator(newTextProvider(), opts).Process(context.Background(), newFakeDoc(4), []int{1, 2, 3, 4})

		if calls.Load() != 4 || maxDone.Load() != 4 {
			t.Errorf("progress calls = %d, max done = %d", calls.Load(), maxDone.Load())
		}
	})
}

func TestOrchestrator_Cancellation(t *testing.T) {
	doc := newFakeDoc(5)
	doc.delay = map[int]time.Duration{}
	for p := 1; p <= 5; p++ {
		doc.delay[p] = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	tasks := NewOrchestrator(newTextProvider(), testOptions()).Process(ctx, doc, []int{1, 2, 3, 4, 5})

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v", elapsed)
	}
	for _, task := range tasks {
		if task.Status != StatusFailed {
			t.Errorf("page %d status = %s, want failed", task.Page, task.Status)
		}
		if !errors.Is(task.Err, context.Canceled) {
			t.Errorf("page %d err = %v, want context.Canceled", task.Page, task.Err)
		}
	}
}

func ExampleOrchestrator_Process() {
	provider := providers.NewMockOCRProvider()
	provider.Latency = 0
	provider.TextFunc = func(page int, mode providers.Mode) (string, error) {
		return fmt.Sprintf("text of page %d, long enough to skip the grounding fallback pass", page), nil
	}

	tasks := NewOrchestrator(provider, DefaultOptions()).Process(context.Background(), newFakeDoc(3), []int{3, 1})
	for _, task := range tasks {
		fmt.Println(task.Page, task.Status)
	}
	// Output:
	// 3 succeeded
	// 1 succeeded
}
