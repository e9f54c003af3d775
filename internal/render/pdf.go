package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFDocument renders pages of a PDF with pdftoppm (poppler-utils).
// The page count comes from pdfcpu so a broken file fails at open time.
type PDFDocument struct {
	path     string
	pages    int
	dpi      int
	pdftoppm string
	logger   *slog.Logger
}

// OpenPDF validates path and reads its page count.
func OpenPDF(path string, opts Options) (*PDFDocument, error) {
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}
	if opts.Pdftoppm == "" {
		opts.Pdftoppm = "pdftoppm"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	pages, err := PDFPageCount(path)
	if err != nil {
		return nil, err
	}

	return &PDFDocument{
		path:     path,
		pages:    pages,
		dpi:      opts.DPI,
		pdftoppm: opts.Pdftoppm,
		logger:   opts.Logger,
	}, nil
}

// PDFPageCount returns the number of pages in the PDF at path.
func PDFPageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer f.Close()

	n, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count for %s: %w", path, err)
	}
	return n, nil
}

// Path returns the PDF file path.
func (d *PDFDocument) Path() string {
	return d.path
}

// PageCount returns the number of pages.
func (d *PDFDocument) PageCount() int {
	return d.pages
}

// RenderPage rasterises one 1-based page to PNG.
// This renders the page correctly, unlike extracting embedded image objects
// whose internal numbering may not match page order.
func (d *PDFDocument) RenderPage(ctx context.Context, page int) ([]byte, error) {
	if err := checkPage(page, d.pages); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "pageocr-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	// -singlefile: no page number suffix, output is <prefix>.png
	pageStr := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, d.pdftoppm,
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(d.dpi),
		"-singlefile",
		d.path,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}

	d.logger.Debug("rendered page", "path", d.path, "page", page, "dpi", d.dpi, "bytes", len(data))
	return data, nil
}
