package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry holds references to OCR providers.
// It supports config-driven instantiation, hot-reload, and provides thread-safe access.
type Registry struct {
	mu           sync.RWMutex
	ocrProviders map[string]OCRProvider
	configs      map[string]OCRProviderConfig
	logger       *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		ocrProviders: make(map[string]OCRProvider),
		configs:      make(map[string]OCRProviderConfig),
		logger:       slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterOCR registers an OCR provider by name.
func (r *Registry) RegisterOCR(name string, provider OCRProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ocrProviders[name] = provider
	delete(r.configs, name)
	if r.logger != nil {
		r.logger.Info("registered OCR provider", "name", name)
	}
}

// UnregisterOCR removes an OCR provider by name.
func (r *Registry) UnregisterOCR(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ocrProviders, name)
	delete(r.configs, name)
	if r.logger != nil {
		r.logger.Info("unregistered OCR provider", "name", name)
	}
}

// GetOCR returns an OCR provider by name.
func (r *Registry) GetOCR(name string) (OCRProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.ocrProviders[name]
	if !ok {
		return nil, fmt.Errorf("OCR provider not found: %s", name)
	}
	return provider, nil
}

// ListOCR returns all registered OCR provider names, sorted.
func (r *Registry) ListOCR() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ocrProviders))
	for name := range r.ocrProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasOCR checks if an OCR provider is registered.
func (r *Registry) HasOCR(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ocrProviders[name]
	return ok
}

// OCRProviders returns a map of all registered OCR providers.
func (r *Registry) OCRProviders() map[string]OCRProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]OCRProvider, len(r.ocrProviders))
	for name, provider := range r.ocrProviders {
		result[name] = provider
	}
	return result
}

// RegistryConfig defines the providers to instantiate from config.
// This mirrors the config.Config structure for provider setup.
type RegistryConfig struct {
	// OCRProviders maps provider names to their config
	OCRProviders map[string]OCRProviderConfig
}

// OCRProviderConfig matches config.OCRProviderCfg with resolved API key.
type OCRProviderConfig struct {
	Type      string  // "deepseek", "paddle", "gemini", "mock"
	Model     string  // Served model name (deepseek, gemini)
	BaseURL   string  // Endpoint root
	APIKey    string  // Resolved API key
	RateLimit float64 // Requests per second, 0 = unlimited
	Timeout   time.Duration
	MaxTokens int
	Retry     RetryPolicy
	Enabled   bool

	// ReturnLayoutInfo asks layout-aware backends (paddle) to report page layout.
	ReturnLayoutInfo bool
}

// usable reports whether cfg has enough to build a provider.
// Self-hosted backends (deepseek, paddle) need a base URL; gemini needs a key.
func (cfg OCRProviderConfig) usable() bool {
	if !cfg.Enabled {
		return false
	}
	switch cfg.Type {
	case "gemini":
		return cfg.APIKey != ""
	case "deepseek", "paddle":
		return cfg.BaseURL != "" || cfg.APIKey != ""
	case "mock":
		return true
	default:
		return false
	}
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
// Only enabled providers with enough connection settings are registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Providers that are no longer configured will be unregistered.
// Providers with changed settings will be re-registered.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)

	for name, provCfg := range cfg.OCRProviders {
		if !provCfg.usable() {
			continue
		}
		want[name] = true

		prev, hasExisting := r.configs[name]
		if hasExisting && prev == provCfg {
			continue
		}
		provider, err := createOCRProvider(provCfg, r.logger)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("failed to create OCR provider", "name", name, "type", provCfg.Type, "error", err)
			}
			delete(want, name)
			continue
		}
		r.ocrProviders[name] = provider
		r.configs[name] = provCfg
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated OCR provider", "name", name, "type", provCfg.Type)
			} else {
				r.logger.Info("registered OCR provider", "name", name, "type", provCfg.Type)
			}
		}
	}

	// Remove config-driven providers that are no longer configured
	for name := range r.configs {
		if !want[name] {
			delete(r.ocrProviders, name)
			delete(r.configs, name)
			if r.logger != nil {
				r.logger.Info("unregistered OCR provider", "name", name)
			}
		}
	}
}

// createOCRProvider creates a rate-limited OCR provider based on provider type.
func createOCRProvider(cfg OCRProviderConfig, logger *slog.Logger) (OCRProvider, error) {
	var p OCRProvider
	switch cfg.Type {
	case "deepseek":
		p = NewDeepSeekOCRClient(DeepSeekOCRConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			Retry:     cfg.Retry,
			Logger:    logger,
		})
	case "paddle":
		p = NewPaddleOCRVLClient(PaddleOCRVLConfig{
			APIKey:           cfg.APIKey,
			BaseURL:          cfg.BaseURL,
			ReturnLayoutInfo: cfg.ReturnLayoutInfo,
			Timeout:          cfg.Timeout,
			RateLimit:        cfg.RateLimit,
			Retry:            cfg.Retry,
			Logger:           logger,
		})
	case "gemini":
		g, err := NewGeminiOCRClient(context.Background(), GeminiOCRConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			Retry:     cfg.Retry,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		p = g
	case "mock":
		m := NewMockOCRProvider()
		m.RPS = cfg.RateLimit
		p = m
	default:
		return nil, fmt.Errorf("unknown OCR provider type %q", cfg.Type)
	}
	return WithRateLimit(p), nil
}
