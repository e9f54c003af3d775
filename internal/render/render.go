// Package render opens documents and rasterises their pages for OCR.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDPI is the resolution pages are rendered at.
const DefaultDPI = 300

// Document is an opened document whose pages can be rendered to images.
type Document interface {
	PageCount() int
	RenderPage(ctx context.Context, page int) ([]byte, error)
}

// ImageExtensions are the single-page image formats accepted as documents.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif", ".webp"}

// Options configures how documents are opened.
type Options struct {
	DPI      int    // PDF render resolution
	Pdftoppm string // Path to the pdftoppm binary; looked up on PATH when empty
	Logger   *slog.Logger
}

// Open opens path as a PDF or image document, chosen by file extension.
func Open(path string, opts Options) (Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".pdf":
		return OpenPDF(path, opts)
	case IsImage(path):
		return OpenImage(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q (want .pdf or one of %s)", ext, strings.Join(ImageExtensions, " "))
	}
}

// OpenAll opens every path and presents them as a single document.
// Paths are ordered by their numeric suffix (book-2.pdf before book-10.pdf).
func OpenAll(paths []string, opts Options) (Document, error) {
	if len(paths) == 1 {
		return Open(paths[0], opts)
	}
	sorted := sortPathsByNumber(paths)
	docs := make([]Document, 0, len(sorted))
	for _, p := range sorted {
		doc, err := Open(p, opts)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return Concat(docs...), nil
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func checkPage(page, total int) error {
	if page < 1 || page > total {
		return fmt.Errorf("page %d out of range (document has %d pages)", page, total)
	}
	return nil
}
