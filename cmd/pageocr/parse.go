package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/pageocr/internal/config"
	"github.com/jackzampolin/pageocr/internal/metrics"
	"github.com/jackzampolin/pageocr/internal/ocr"
	"github.com/jackzampolin/pageocr/internal/output"
	"github.com/jackzampolin/pageocr/internal/render"
)

var (
	parseProvider       string
	parsePages          string
	parseMode           string
	parseSeparator      string
	parseMinChars       int
	parseSync           bool
	parseMaxConcurrency int
	parseDPI            int
	parseOut            string
	parseSave           bool
	parseFailOnError    bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <file> [file...]",
	Short: "OCR a PDF or image, page by page",
	Long: `Parse renders the selected pages, sends them to the OCR backend concurrently,
and joins the text in page order.

Several files are treated as one document, ordered by their numeric suffix
(scan-1.png, scan-2.png, ..., scan-10.png).

Page selection:
  --pages all        every page (default)
  --pages 3          a single page
  --pages 3,1,5-7    an ordered list; duplicates are dropped

Output:
  With -o text and no --out, the assembled text is printed to stdout.
  Otherwise a report (per-page status) is printed in the selected format and
  the text is written to --out if given.

Examples:
  pageocr parse book.pdf -o text > book.md
  pageocr parse book.pdf --pages 1-20 --out book.md
  pageocr parse scans/*.png --provider paddle --sync
  PAGEOCR_PAGE_SEPARATOR='\n\n' pageocr parse book.pdf -o text`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	f := parseCmd.Flags()
	f.StringVarP(&parseProvider, "provider", "p", "", "OCR provider name (default: defaults.provider)")
	f.StringVar(&parsePages, "pages", "all", "pages to process: all, N, or a list like 3,1,5-7")
	f.StringVar(&parseMode, "mode", "", "primary mode: FREE_OCR, GROUNDING or MULTIMODAL")
	f.StringVar(&parseSeparator, "separator", "", `text between pages; \n and \t escapes are expanded`)
	f.IntVar(&parseMinChars, "min-chars", 0, "grounding fallback threshold in characters, 0 disables")
	f.BoolVar(&parseSync, "sync", false, "process pages one at a time")
	f.IntVar(&parseMaxConcurrency, "max-concurrency", 0, "maximum pages in flight, 0 = all")
	f.IntVar(&parseDPI, "dpi", 0, "PDF rasterisation resolution")
	f.StringVar(&parseOut, "out", "", "write the assembled text to this file")
	f.BoolVar(&parseSave, "save", false, "save the full report under <home>/runs/<run_id>.yaml")
	f.BoolVar(&parseFailOnError, "fail-on-error", false, "exit non-zero if any page failed")

	rootCmd.AddCommand(parseCmd)
}

// applyParseFlags overlays explicitly set flags on a copy of cfg.
func applyParseFlags(cmd *cobra.Command, base *config.Config) config.Config {
	cfg := *base
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.PrimaryMode = parseMode
	}
	if flags.Changed("separator") {
		cfg.PageSeparator = parseSeparator
	}
	if flags.Changed("min-chars") {
		cfg.FallbackMinChars = parseMinChars
	}
	if flags.Changed("sync") {
		cfg.Sync = parseSync
	}
	if flags.Changed("max-concurrency") {
		cfg.MaxConcurrency = parseMaxConcurrency
	}
	if flags.Changed("dpi") {
		cfg.DPI = parseDPI
	}
	if flags.Changed("provider") {
		cfg.Defaults.Provider = parseProvider
	}
	return cfg
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()
	logger := e.logger

	cfg := applyParseFlags(cmd, e.config.Get())

	opts, err := cfg.ToOptions(logger)
	if err != nil {
		return err
	}
	rec := metrics.NewRecorder()
	opts.Metrics = rec
	opts.Progress = func(done, total int, task ocr.PageTask) {
		logger.Info("page finished",
			"done", done,
			"total", total,
			"page", task.Page,
			"status", task.Status,
			"attempts", task.Attempts)
	}

	spec, err := ocr.ParsePageSpec(parsePages)
	if err != nil {
		return err
	}

	registry := e.newRegistry()
	provider, err := registry.GetOCR(cfg.Defaults.Provider)
	if err != nil {
		return fmt.Errorf("%w (enabled and configured: %v)", err, registry.ListOCR())
	}

	doc, err := render.OpenAll(args, render.Options{
		DPI:      cfg.DPI,
		Pdftoppm: cfg.Pdftoppm,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := ocr.NewConverter(provider, opts).Convert(ctx, doc, spec)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	failed := result.Failed()
	logger.Info("conversion complete",
		"run_id", result.RunID,
		"pages", len(result.Pages),
		"failed", len(failed),
		"chars", len(result.Text),
		"elapsed", elapsed.Round(time.Millisecond))

	if parseOut != "" {
		if err := os.WriteFile(parseOut, []byte(result.Text), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", parseOut, err)
		}
	}

	if parseSave {
		if err := e.home.EnsureExists(); err != nil {
			return err
		}
		path := e.home.RunReportPath(result.RunID, "yaml")
		if err := output.ToFile(path, output.NewReport(result, args, elapsed, true).WithUsage(rec)); err != nil {
			return err
		}
		logger.Info("saved run report", "path", path)
	}

	if output.GetFormat() == output.FormatText && parseOut == "" {
		if err := output.Output(result.Text); err != nil {
			return err
		}
	} else if err := output.Output(output.NewReport(result, args, elapsed, false).WithUsage(rec)); err != nil {
		return err
	}

	if parseFailOnError && len(failed) > 0 {
		return fmt.Errorf("%d of %d pages failed", len(failed), len(result.Pages))
	}
	return nil
}

