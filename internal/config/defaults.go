package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// Entry is a single configuration key with its default value.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns the default configuration entries.
// Every key is registered with viper so environment overrides reach Unmarshal.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// OCR Providers
		// ===================

		// OCR Providers - DeepSeek-OCR (vLLM, OpenAI-compatible)
		{
			Key:         "ocr_providers.deepseek.type",
			Value:       "deepseek",
			Description: "OCR provider type for DeepSeek-OCR",
		},
		{
			Key:         "ocr_providers.deepseek.model",
			Value:       "deepseek-ai/DeepSeek-OCR",
			Description: "Served model name on the vLLM endpoint",
		},
		{
			Key:         "ocr_providers.deepseek.base_url",
			Value:       "http://localhost:8000/v1",
			Description: "OpenAI-compatible endpoint root",
		},
		{
			Key:         "ocr_providers.deepseek.api_key",
			Value:       "${DEEPSEEK_OCR_API_KEY}",
			Description: "API key for the DeepSeek-OCR endpoint (uses environment variable)",
		},
		{
			Key:         "ocr_providers.deepseek.rate_limit",
			Value:       0.0,
			Description: "Rate limit in requests per second, 0 = unlimited",
		},
		{
			Key:         "ocr_providers.deepseek.timeout_seconds",
			Value:       120,
			Description: "HTTP timeout in seconds for DeepSeek-OCR requests",
		},
		{
			Key:         "ocr_providers.deepseek.max_retries",
			Value:       3,
			Description: "Maximum retries for 429 and 5xx responses",
		},
		{
			Key:         "ocr_providers.deepseek.retry_delay_seconds",
			Value:       5.0,
			Description: "Base retry delay, doubled on each retry",
		},
		{
			Key:         "ocr_providers.deepseek.max_tokens",
			Value:       8192,
			Description: "Maximum tokens generated per page",
		},
		{
			Key:         "ocr_providers.deepseek.enabled",
			Value:       true,
			Description: "Whether the DeepSeek-OCR provider is enabled",
		},

		// OCR Providers - PaddleOCR-VL
		{
			Key:         "ocr_providers.paddle.type",
			Value:       "paddle",
			Description: "OCR provider type for PaddleOCR-VL",
		},
		{
			Key:         "ocr_providers.paddle.base_url",
			Value:       "http://localhost:8080",
			Description: "PaddleX serving root (layout-parsing endpoint)",
		},
		{
			Key:         "ocr_providers.paddle.api_key",
			Value:       "${PADDLE_OCR_API_KEY}",
			Description: "Bearer token for the PaddleOCR-VL server, if any",
		},
		{
			Key:         "ocr_providers.paddle.timeout_seconds",
			Value:       120,
			Description: "HTTP timeout in seconds for PaddleOCR-VL requests",
		},
		{
			Key:         "ocr_providers.paddle.max_retries",
			Value:       3,
			Description: "Maximum retries for 5xx responses",
		},
		{
			Key:         "ocr_providers.paddle.enabled",
			Value:       false,
			Description: "Whether the PaddleOCR-VL provider is enabled",
		},
		{
			Key:         "ocr_providers.paddle.return_layout_info",
			Value:       false,
			Description: "Keep each page's layout blocks and boxes (prunedResult) in saved reports",
		},

		// OCR Providers - Gemini
		{
			Key:         "ocr_providers.gemini.type",
			Value:       "gemini",
			Description: "OCR provider type for Gemini",
		},
		{
			Key:         "ocr_providers.gemini.model",
			Value:       "gemini-2.5-flash",
			Description: "Gemini model used for page transcription",
		},
		{
			Key:         "ocr_providers.gemini.api_key",
			Value:       "${GEMINI_API_KEY}",
			Description: "Gemini API key (uses environment variable)",
		},
		{
			Key:         "ocr_providers.gemini.rate_limit",
			Value:       5.0,
			Description: "Rate limit in requests per second for Gemini",
		},
		{
			Key:         "ocr_providers.gemini.enabled",
			Value:       false,
			Description: "Whether the Gemini provider is enabled",
		},

		// OCR Providers - Mock
		{
			Key:         "ocr_providers.mock.type",
			Value:       "mock",
			Description: "Offline provider returning canned text",
		},
		{
			Key:         "ocr_providers.mock.enabled",
			Value:       false,
			Description: "Whether the mock provider is enabled",
		},

		// ===================
		// Defaults
		// ===================
		{
			Key:         "defaults.provider",
			Value:       "deepseek",
			Description: "OCR provider used when --provider is not given",
		},

		// ===================
		// Conversion
		// ===================
		{
			Key:         "page_separator",
			Value:       "\n\n---\n\n",
			Description: `Text placed between pages; \n and \t escapes are expanded`,
		},
		{
			Key:         "fallback_min_chars",
			Value:       50,
			Description: "Pages with fewer characters are re-run in grounding mode, 0 disables",
		},
		{
			Key:         "primary_mode",
			Value:       "FREE_OCR",
			Description: "Mode for the first OCR call on each page",
		},
		{
			Key:         "max_concurrency",
			Value:       0,
			Description: "Maximum pages in flight, 0 = all at once",
		},
		{
			Key:         "sync",
			Value:       false,
			Description: "Process pages one at a time",
		},
		{
			Key:         "include_degraded",
			Value:       true,
			Description: "Keep primary text for pages whose grounding fallback failed",
		},
		{
			Key:         "refallback_grounding",
			Value:       false,
			Description: "Re-run grounding when the primary mode is already grounding",
		},

		// ===================
		// Rendering
		// ===================
		{
			Key:         "dpi",
			Value:       300,
			Description: "Rasterisation resolution for PDF pages",
		},
		{
			Key:         "pdftoppm",
			Value:       "pdftoppm",
			Description: "Path to the poppler pdftoppm binary",
		},
	}
}

// DefaultConfig returns the configuration built from DefaultEntries.
func DefaultConfig() *Config {
	return &Config{
		OCRProviders: map[string]OCRProviderCfg{
			"deepseek": {
				Type:              "deepseek",
				Model:             "deepseek-ai/DeepSeek-OCR",
				BaseURL:           "http://localhost:8000/v1",
				APIKey:            "${DEEPSEEK_OCR_API_KEY}",
				TimeoutSeconds:    120,
				MaxRetries:        intPtr(3),
				RetryDelaySeconds: 5,
				MaxTokens:         8192,
				Enabled:           true,
			},
			"paddle": {
				Type:           "paddle",
				BaseURL:        "http://localhost:8080",
				APIKey:         "${PADDLE_OCR_API_KEY}",
				TimeoutSeconds: 120,
				MaxRetries:     intPtr(3),
				Enabled:        false,
			},
			"gemini": {
				Type:      "gemini",
				Model:     "gemini-2.5-flash",
				APIKey:    "${GEMINI_API_KEY}",
				RateLimit: 5.0,
				Enabled:   false,
			},
			"mock": {
				Type:    "mock",
				Enabled: false,
			},
		},
		Defaults: DefaultsCfg{
			Provider: "deepseek",
		},
		PageSeparator:    "\n\n---\n\n",
		FallbackMinChars: 50,
		PrimaryMode:      "FREE_OCR",
		IncludeDegraded:  true,
		DPI:              300,
		Pdftoppm:         "pdftoppm",
	}
}

func intPtr(v int) *int { return &v }

// GetDefault returns the default entry for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// DefaultKeys returns every default key, sorted.
func DefaultKeys() []string {
	entries := DefaultEntries()
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	sort.Strings(keys)
	return keys
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}
