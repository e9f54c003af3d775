package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/pageocr/internal/providers"
)

// interrupted returns the first cancellation a page ended with, or nil if
// every page finished on its own.
func interrupted(tasks []PageTask) error {
	for _, t := range tasks {
		if t.Err != nil && (errors.Is(t.Err, context.Canceled) || errors.Is(t.Err, context.DeadlineExceeded)) {
			return t.Err
		}
	}
	return nil
}

// Document is an opened, renderable document.
type Document interface {
	Renderer
	PageCount() int
}

// Converter runs resolve → process → assemble for whole documents.
type Converter struct {
	provider providers.OCRProvider
	opts     Options
	logger   *slog.Logger
}

// NewConverter creates a converter that sends pages to provider.
func NewConverter(provider providers.OCRProvider, opts Options) *Converter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{provider: provider, opts: opts, logger: logger}
}

// Options returns the converter's processing options.
func (c *Converter) Options() Options {
	return c.opts
}

// Convert processes the pages of doc selected by spec.
//
// Page selection errors are returned before any page is dispatched. Page-level
// render and OCR failures never fail the call; they are reported per page in
// the result. If ctx is cancelled while pages are in flight they are abandoned
// and the context error is returned. A cancellation that arrives after every
// page has finished does not discard the result.
func (c *Converter) Convert(ctx context.Context, doc Document, spec PageSpec) (*DocumentResult, error) {
	total := doc.PageCount()
	pages, err := Resolve(total, spec)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := c.logger.With("run_id", runID, "provider", c.provider.Name())

	opts := c.opts
	opts.Logger = logger
	opts.runID = runID
	orch := NewOrchestrator(c.provider, opts)

	logger.Info("converting document",
		"pages", len(pages),
		"total_pages", total,
		"spec", spec.String(),
		"primary_mode", orch.opts.PrimaryMode,
		"sync", opts.Sync)

	start := time.Now()
	tasks := orch.Process(ctx, doc, pages)

	if err := interrupted(tasks); err != nil {
		logger.Warn("conversion cancelled", "elapsed", time.Since(start))
		return nil, fmt.Errorf("conversion cancelled: %w", err)
	}

	assembleFn := AssembleStrict
	if opts.IncludeDegraded {
		assembleFn = Assemble
	}
	result, err := assembleFn(pages, tasks, opts.Separator)
	if err != nil {
		return nil, err
	}
	result.RunID = runID
	result.Provider = c.provider.Name()
	result.PrimaryMode = orch.opts.PrimaryMode

	logger.Info("conversion complete",
		"pages", len(pages),
		"failed", len(result.Failed()),
		"chars", len(result.Text),
		"elapsed", time.Since(start))

	return result, nil
}
