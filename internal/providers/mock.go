package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockOCRName = "mock"

// MockOCRProvider is an OCRProvider for testing and dry runs.
type MockOCRProvider struct {
	ProviderName string
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	RPS          float64
	Retries      int
	RetryDelay   time.Duration
	// ModeBlind makes the mock report IgnoresMode, like a layout-only backend.
	ModeBlind bool

	// TextFunc, when set, decides the response per page and mode.
	// A non-nil error is returned as the call's failure.
	TextFunc func(page int, mode Mode) (string, error)

	requestCount atomic.Int64

	mu         sync.Mutex
	modeCounts map[Mode]int
}

// NewMockOCRProvider creates a new mock OCR provider.
func NewMockOCRProvider() *MockOCRProvider {
	return &MockOCRProvider{
		ProviderName: MockOCRName,
		Latency:      10 * time.Millisecond,
		ResponseText: "mock OCR text",
		RPS:          0,
		Retries:      3,
		RetryDelay:   time.Second,
	}
}

// Name returns the provider identifier.
func (p *MockOCRProvider) Name() string {
	return p.ProviderName
}

// RequestsPerSecond returns the rate limit.
func (p *MockOCRProvider) RequestsPerSecond() float64 {
	return p.RPS
}

// MaxRetries returns the max retry count.
func (p *MockOCRProvider) MaxRetries() int {
	return p.Retries
}

// RetryDelayBase returns the base retry delay.
func (p *MockOCRProvider) RetryDelayBase() time.Duration {
	return p.RetryDelay
}

// ProcessImage returns canned text for a page.
func (p *MockOCRProvider) ProcessImage(ctx context.Context, image []byte, pageNum int, mode Mode) (*OCRResult, error) {
	start := time.Now()
	count := p.requestCount.Add(1)

	p.mu.Lock()
	if p.modeCounts == nil {
		p.modeCounts = make(map[Mode]int)
	}
	p.modeCounts[mode]++
	p.mu.Unlock()

	if p.ShouldFail {
		err := fmt.Errorf("mock OCR provider configured to fail")
		return failedResult(mode, start, err), err
	}
	if p.FailAfter > 0 && int(count) > p.FailAfter {
		err := fmt.Errorf("mock OCR provider failed after %d requests", p.FailAfter)
		return failedResult(mode, start, err), err
	}

	// Simulate latency
	if p.Latency > 0 {
		timer := time.NewTimer(p.Latency)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return failedResult(mode, start, ctx.Err()), ctx.Err()
		}
	}

	text := fmt.Sprintf("Page %d: %s", pageNum, p.ResponseText)
	if p.TextFunc != nil {
		t, err := p.TextFunc(pageNum, mode)
		if err != nil {
			return failedResult(mode, start, err), err
		}
		text = t
	}

	return &OCRResult{
		Success:       true,
		Text:          text,
		Mode:          mode,
		ExecutionTime: time.Since(start),
		Metadata: map[string]any{
			"page_num":    pageNum,
			"char_count":  len(text),
			"provider":    p.ProviderName,
			"image_bytes": len(image),
		},
	}, nil
}

// IgnoresMode reports the ModeBlind setting.
func (p *MockOCRProvider) IgnoresMode() bool {
	return p.ModeBlind
}

// RequestCount returns the number of requests made.
func (p *MockOCRProvider) RequestCount() int64 {
	return p.requestCount.Load()
}

// ModeCount returns how many requests used mode.
func (p *MockOCRProvider) ModeCount(mode Mode) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modeCounts[mode]
}

// Reset resets the request counters.
func (p *MockOCRProvider) Reset() {
	p.requestCount.Store(0)
	p.mu.Lock()
	p.modeCounts = nil
	p.mu.Unlock()
}

// HealthCheck always succeeds unless the mock is configured to fail.
func (p *MockOCRProvider) HealthCheck(ctx context.Context) error {
	if p.ShouldFail {
		return fmt.Errorf("mock OCR provider configured to fail")
	}
	return nil
}

// Verify interface
var _ OCRProvider = (*MockOCRProvider)(nil)
