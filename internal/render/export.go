package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// PageImagePath returns the file name used for an exported page.
func PageImagePath(outDir string, page int) string {
	return filepath.Join(outDir, fmt.Sprintf("page_%04d.png", page))
}

// ExportPages renders pages into outDir as page_NNNN.png, using up to
// workers concurrent renders (NumCPU when <= 0). The returned paths follow
// the order of pages. The first failure cancels the remaining renders.
func ExportPages(ctx context.Context, doc Document, pages []int, outDir string, workers int) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outDir, err)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	paths := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, page := range pages {
		g.Go(func() error {
			data, err := doc.RenderPage(gctx, page)
			if err != nil {
				return fmt.Errorf("failed to render page %d: %w", page, err)
			}
			dst := PageImagePath(outDir, page)
			if err := os.WriteFile(dst, data, 0o644); err != nil {
				return fmt.Errorf("failed to write page image: %w", err)
			}
			paths[i] = dst
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
