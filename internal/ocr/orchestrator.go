// Package ocr turns documents into text one page at a time: it resolves page
// selections, fans pages out to an OCR provider, re-reads weak pages in
// grounding mode and assembles the results in page order.
package ocr

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/pageocr/internal/metrics"
	"github.com/jackzampolin/pageocr/internal/providers"
)

// DefaultPageSeparator joins page texts in the assembled document.
const DefaultPageSeparator = "\n\n---\n\n"

// Renderer produces a single-page image for OCR.
type Renderer interface {
	RenderPage(ctx context.Context, page int) ([]byte, error)
}

// Options configures page processing and assembly.
// Use DefaultOptions as a starting point; the zero value disables fallback
// and joins pages with an empty separator.
type Options struct {
	PrimaryMode providers.Mode
	Fallback    FallbackPolicy
	Separator   string

	// MaxConcurrency bounds in-flight pages; <= 0 launches every page at once.
	MaxConcurrency int
	// Sync processes pages one at a time in resolved order.
	Sync bool

	// IncludeDegraded keeps the primary text of pages whose fallback failed.
	IncludeDegraded bool
	// RefallbackGrounding re-runs grounding when the primary mode already was grounding.
	RefallbackGrounding bool

	// Progress, if set, is called as each page reaches a terminal status.
	// It may be called from multiple goroutines.
	Progress func(done, total int, task PageTask)

	// Metrics, if set, receives one record per backend call.
	Metrics *metrics.Recorder

	runID string

	Logger *slog.Logger
}

// DefaultOptions returns the standard processing options.
func DefaultOptions() Options {
	return Options{
		PrimaryMode:     providers.ModeFreeOCR,
		Fallback:        FallbackPolicy{MinChars: DefaultFallbackMinChars},
		Separator:       DefaultPageSeparator,
		IncludeDegraded: true,
	}
}

// Orchestrator runs the per-page render → OCR → fallback pipeline.
type Orchestrator struct {
	provider providers.OCRProvider
	opts     Options
	logger   *slog.Logger

	// modeBlind is set for providers that return the same output in every mode.
	modeBlind bool
}

// NewOrchestrator creates an orchestrator that sends pages to provider.
func NewOrchestrator(provider providers.OCRProvider, opts Options) *Orchestrator {
	if opts.PrimaryMode == "" {
		opts.PrimaryMode = providers.ModeFreeOCR
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		provider:  provider,
		opts:      opts,
		logger:    logger,
		modeBlind: providers.IgnoresMode(provider),
	}
}

// Process runs every page concurrently (or sequentially when Options.Sync is
// set) and returns one terminal task per page, in the order given.
// Page failures are recorded on their task and never stop other pages.
func (o *Orchestrator) Process(ctx context.Context, doc Renderer, pages []int) []PageTask {
	if o.opts.Sync {
		return o.ProcessSync(ctx, doc, pages)
	}

	tasks := newTasks(pages)
	var done atomic.Int64

	var g errgroup.Group
	if o.opts.MaxConcurrency > 0 {
		g.SetLimit(o.opts.MaxConcurrency)
	}
	for i := range tasks {
		g.Go(func() error {
			o.runPage(ctx, doc, &tasks[i])
			o.report(int(done.Add(1)), len(tasks), tasks[i])
			return nil
		})
	}
	_ = g.Wait()

	return tasks
}

// ProcessSync is Process without concurrency: pages run strictly in order.
func (o *Orchestrator) ProcessSync(ctx context.Context, doc Renderer, pages []int) []PageTask {
	tasks := newTasks(pages)
	for i := range tasks {
		o.runPage(ctx, doc, &tasks[i])
		o.report(i+1, len(tasks), tasks[i])
	}
	return tasks
}

func newTasks(pages []int) []PageTask {
	tasks := make([]PageTask, len(pages))
	for i, p := range pages {
		tasks[i] = PageTask{Page: p, Status: StatusPending}
	}
	return tasks
}

func (o *Orchestrator) report(done, total int, task PageTask) {
	if o.opts.Progress != nil {
		o.opts.Progress(done, total, task)
	}
}

// runPage drives a single task to a terminal status.
func (o *Orchestrator) runPage(ctx context.Context, doc Renderer, task *PageTask) {
	start := time.Now()
	logger := o.logger.With("page", task.Page)
	task.Status = StatusRunning

	if err := ctx.Err(); err != nil {
		task.Status = StatusFailed
		task.Err = err
		return
	}

	image, err := doc.RenderPage(ctx, task.Page)
	if err != nil {
		task.Status = StatusFailed
		task.Err = &RenderError{Page: task.Page, Err: err}
		logger.Warn("page render failed", "error", err)
		return
	}

	primaryMode := o.opts.PrimaryMode
	primary, err := o.call(ctx, image, task, primaryMode, false)
	if err != nil {
		task.Status = StatusFailed
		task.Mode = primaryMode
		task.Err = err
		logger.Warn("primary OCR failed", "mode", primaryMode, "error", err)
		return
	}

	task.Mode = primary.Mode
	task.Text = primary.Text
	task.Layout = primary.Layout

	if !o.opts.Fallback.ShouldFallback(primary) {
		task.Status = StatusSucceeded
		logger.Debug("page complete", "mode", primaryMode, "chars", len(primary.Text), "elapsed", time.Since(start))
		return
	}
	if primaryMode == providers.ModeGrounding && !o.opts.RefallbackGrounding {
		task.Status = StatusSucceeded
		logger.Debug("short grounding result kept", "chars", len(primary.Text))
		return
	}
	if o.modeBlind {
		task.Status = StatusSucceeded
		logger.Debug("short result kept, provider ignores mode", "chars", len(primary.Text))
		return
	}

	logger.Info("primary result below threshold, retrying with grounding",
		"mode", primaryMode,
		"chars", len(primary.Text),
		"min_chars", o.opts.Fallback.MinChars)

	grounded, err := o.call(ctx, image, task, providers.ModeGrounding, true)
	if err != nil {
		// Keep the primary text; the page is degraded rather than lost.
		task.Status = StatusFailed
		task.Degraded = true
		task.Err = err
		logger.Warn("grounding fallback failed, keeping primary text", "error", err)
		return
	}

	task.Status = StatusFallbackSucceeded
	task.Mode = grounded.Mode
	task.Text = grounded.Text
	if grounded.Layout != nil {
		task.Layout = grounded.Layout
	}
	logger.Debug("page complete via fallback", "chars", len(grounded.Text), "elapsed", time.Since(start))
}

// call performs one backend request and wraps any failure as a BackendError.
func (o *Orchestrator) call(ctx context.Context, image []byte, task *PageTask, mode providers.Mode, fallback bool) (OcrOutcome, error) {
	task.Attempts++
	start := time.Now()
	res, err := o.provider.ProcessImage(ctx, image, task.Page, mode)
	if o.opts.Metrics != nil {
		o.opts.Metrics.RecordOCRCall(metrics.RecordOpts{
			RunID:    o.opts.runID,
			Page:     task.Page,
			Mode:     mode,
			Fallback: fallback,
		}, o.provider.Name(), res, err, time.Since(start))
	}
	if err == nil && (res == nil || !res.Success) {
		msg := "provider returned no result"
		if res != nil && res.ErrorMessage != "" {
			msg = res.ErrorMessage
		}
		err = errors.New(msg)
	}
	if err != nil {
		return OcrOutcome{}, &BackendError{
			Page:     task.Page,
			Mode:     mode,
			Provider: o.provider.Name(),
			Fallback: fallback,
			Err:      err,
		}
	}
	return OcrOutcome{Text: res.Text, Mode: mode, Layout: res.Layout}, nil
}
