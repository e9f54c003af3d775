package main

import (
	"context"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/pageocr/internal/config"
	"github.com/jackzampolin/pageocr/internal/output"
	"github.com/jackzampolin/pageocr/internal/providers"
)

var (
	checkTimeout time.Duration
	checkWatch   bool
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect configured OCR providers",
}

// providerInfo is one row of 'providers list'.
type providerInfo struct {
	Name       string  `json:"name" yaml:"name"`
	Type       string  `json:"type" yaml:"type"`
	Model      string  `json:"model,omitempty" yaml:"model,omitempty"`
	BaseURL    string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	Registered bool    `json:"registered" yaml:"registered"`
	Default    bool    `json:"default,omitempty" yaml:"default,omitempty"`
	RateLimit  float64 `json:"rate_limit" yaml:"rate_limit"`
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured providers and whether they can be used",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		cfg := e.config.Get()
		registry := e.newRegistry()

		names := make([]string, 0, len(cfg.OCRProviders))
		for name := range cfg.OCRProviders {
			names = append(names, name)
		}
		sort.Strings(names)

		rows := make([]providerInfo, 0, len(names))
		for _, name := range names {
			p := cfg.OCRProviders[name]
			rows = append(rows, providerInfo{
				Name:       name,
				Type:       p.Type,
				Model:      p.Model,
				BaseURL:    config.ResolveEnvVars(p.BaseURL),
				Enabled:    p.Enabled,
				Registered: registry.HasOCR(name),
				Default:    name == cfg.Defaults.Provider,
				RateLimit:  p.RateLimit,
			})
		}
		return output.Output(rows)
	},
}

// healthResult is one row of 'providers check'.
type healthResult struct {
	Name    string `json:"name" yaml:"name"`
	Healthy bool   `json:"healthy" yaml:"healthy"`
	Latency string `json:"latency,omitempty" yaml:"latency,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

var providersCheckCmd = &cobra.Command{
	Use:   "check [name...]",
	Short: "Check connectivity to registered providers",
	Long: `Check calls each provider's health endpoint.

With --watch the config file is watched and providers are re-checked every
time it changes, until Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		registry := e.newRegistry()
		if err := output.Output(checkProviders(ctx, registry, args, checkTimeout)); err != nil {
			return err
		}
		if !checkWatch {
			return nil
		}

		e.config.OnChange(func(cfg *config.Config) {
			e.logger.Info("config changed, re-checking providers")
			registry.Reload(cfg.ToProviderRegistryConfig())
			if err := output.Output(checkProviders(ctx, registry, args, checkTimeout)); err != nil {
				e.logger.Error("failed to write check results", "error", err)
			}
		})
		e.config.WatchConfig()
		e.logger.Info("watching config", "path", e.config.ConfigFileUsed())

		<-ctx.Done()
		return nil
	},
}

// checkProviders health-checks the named providers, or all registered ones.
func checkProviders(ctx context.Context, registry *providers.Registry, names []string, timeout time.Duration) []healthResult {
	if len(names) == 0 {
		names = registry.ListOCR()
	}

	results := make([]healthResult, 0, len(names))
	for _, name := range names {
		res := healthResult{Name: name}

		p, err := registry.GetOCR(name)
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		hc, ok := providers.HealthCheckerFor(p)
		if !ok {
			res.Error = "provider has no health check"
			results = append(results, res)
			continue
		}

		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		err = hc.HealthCheck(checkCtx)
		cancel()

		res.Latency = time.Since(start).Round(time.Millisecond).String()
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Healthy = true
		}
		results = append(results, res)
	}
	return results
}

func init() {
	providersCheckCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Second, "per-provider timeout")
	providersCheckCmd.Flags().BoolVar(&checkWatch, "watch", false, "re-check whenever the config file changes")

	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersCheckCmd)
	rootCmd.AddCommand(providersCmd)
}
