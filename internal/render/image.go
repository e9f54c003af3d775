package render

import (
	"context"
	"fmt"
	"os"
)

// ImageDocument is a single image treated as a one-page document.
type ImageDocument struct {
	path string
	data []byte
}

// OpenImage reads the image at path.
func OpenImage(path string) (*ImageDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image %s is empty", path)
	}
	return &ImageDocument{path: path, data: data}, nil
}

// NewImageDocument wraps already-loaded image bytes.
func NewImageDocument(name string, data []byte) *ImageDocument {
	return &ImageDocument{path: name, data: data}
}

// Path returns the image file path.
func (d *ImageDocument) Path() string {
	return d.path
}

// PageCount is always 1.
func (d *ImageDocument) PageCount() int {
	return 1
}

// RenderPage returns the image bytes for page 1.
func (d *ImageDocument) RenderPage(ctx context.Context, page int) ([]byte, error) {
	if err := checkPage(page, 1); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.data, nil
}
