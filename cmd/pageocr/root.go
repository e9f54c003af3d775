package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/pageocr/internal/config"
	"github.com/jackzampolin/pageocr/internal/home"
	"github.com/jackzampolin/pageocr/internal/output"
	"github.com/jackzampolin/pageocr/internal/providers"
	"github.com/jackzampolin/pageocr/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	verbose      bool
	logToFile    bool
)

var rootCmd = &cobra.Command{
	Use:   "pageocr",
	Short: "Page-parallel OCR for PDFs and scans",
	Long: `pageocr converts PDFs and page images into text by sending every page
to an OCR backend concurrently and stitching the results back in page order.

Backends:
  - DeepSeek-OCR served behind an OpenAI-compatible endpoint (vLLM)
  - PaddleOCR-VL layout parsing
  - Gemini vision models

Pages whose free-OCR text is too short are retried in grounding mode.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.pageocr/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "pageocr home directory (default: ~/.pageocr)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml, json or text",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "debug logging",
	)
	rootCmd.PersistentFlags().BoolVar(
		&logToFile, "log-file", false, "also write logs to <home>/logs/pageocr-<timestamp>.log",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return output.SetFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// env is the per-invocation setup shared by subcommands.
type env struct {
	home   *home.Dir
	config *config.Manager
	logger *slog.Logger
	close  func()
}

// setup resolves the home directory, loads config and builds the logger.
func setup() (*env, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := newLogger(h)
	if err != nil {
		return nil, err
	}
	if used := mgr.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config", "path", used)
	}

	return &env{home: h, config: mgr, logger: logger, close: closeLog}, nil
}

// newLogger writes text logs to stderr, tee'd to a log file with --log-file.
func newLogger(h *home.Dir) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if logToFile {
		if err := h.EnsureExists(); err != nil {
			return nil, nil, err
		}
		path := h.LogPath(time.Now())
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeFn = func() { f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, closeFn, nil
}

// newRegistry builds providers from the current config.
func (e *env) newRegistry() *providers.Registry {
	r := providers.NewRegistry()
	r.SetLogger(e.logger)
	r.Reload(e.config.Get().ToProviderRegistryConfig())
	return r
}
