package config

// Config holds pageocr configuration.
// Stored at: ~/.pageocr/config.yaml (or ./config.yaml, or --config)
type Config struct {
	OCRProviders map[string]OCRProviderCfg `mapstructure:"ocr_providers" yaml:"ocr_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`

	// Conversion options
	PageSeparator       string `mapstructure:"page_separator" yaml:"page_separator"`
	FallbackMinChars    int    `mapstructure:"fallback_min_chars" yaml:"fallback_min_chars"`
	PrimaryMode         string `mapstructure:"primary_mode" yaml:"primary_mode"`
	MaxConcurrency      int    `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	Sync                bool   `mapstructure:"sync" yaml:"sync"`
	IncludeDegraded     bool   `mapstructure:"include_degraded" yaml:"include_degraded"`
	RefallbackGrounding bool   `mapstructure:"refallback_grounding" yaml:"refallback_grounding"`

	// Rendering
	DPI      int    `mapstructure:"dpi" yaml:"dpi"`
	Pdftoppm string `mapstructure:"pdftoppm" yaml:"pdftoppm"`
}

// OCRProviderCfg configures an OCR provider.
type OCRProviderCfg struct {
	Type              string  `mapstructure:"type" yaml:"type"`             // "deepseek", "paddle", "gemini", "mock"
	Model             string  `mapstructure:"model" yaml:"model"`           // Served model name
	BaseURL           string  `mapstructure:"base_url" yaml:"base_url"`     // Endpoint root
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	RateLimit         float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second, 0 = unlimited
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries        *int    `mapstructure:"max_retries" yaml:"max_retries,omitempty"` // 429/5xx retries, default 3
	RetryDelaySeconds float64 `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`

	// ReturnLayoutInfo keeps per-page layout blocks (paddle only) in saved reports.
	ReturnLayoutInfo bool `mapstructure:"return_layout_info" yaml:"return_layout_info,omitempty"`
}

// DefaultsCfg specifies default provider selections.
type DefaultsCfg struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // OCR provider used when --provider is not given
}

// GetOCRProvider returns an OCR provider config by name.
func (c *Config) GetOCRProvider(name string) (OCRProviderCfg, bool) {
	cfg, ok := c.OCRProviders[name]
	return cfg, ok
}

// EnabledOCRProviders returns all enabled OCR providers.
func (c *Config) EnabledOCRProviders() map[string]OCRProviderCfg {
	result := make(map[string]OCRProviderCfg)
	for name, cfg := range c.OCRProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
