package providers

import (
	"os"
	"time"
)

// TestConfig holds provider endpoints loaded from environment variables.
// This allows integration tests to use the same configuration pattern as production.
type TestConfig struct {
	DeepSeekBaseURL string
	DeepSeekAPIKey  string
	PaddleBaseURL   string
	GeminiAPIKey    string
}

// LoadTestConfig loads provider settings from environment variables.
// Returns a TestConfig with whatever settings are available.
func LoadTestConfig() TestConfig {
	return TestConfig{
		DeepSeekBaseURL: os.Getenv("DEEPSEEK_OCR_BASE_URL"),
		DeepSeekAPIKey:  os.Getenv("DEEPSEEK_OCR_API_KEY"),
		PaddleBaseURL:   os.Getenv("PADDLE_OCR_BASE_URL"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
	}
}

// HasDeepSeek returns true if a DeepSeek-OCR endpoint is configured.
func (c TestConfig) HasDeepSeek() bool {
	return c.DeepSeekBaseURL != ""
}

// HasPaddle returns true if a PaddleOCR-VL endpoint is configured.
func (c TestConfig) HasPaddle() bool {
	return c.PaddleBaseURL != ""
}

// HasGemini returns true if a Gemini API key is configured.
func (c TestConfig) HasGemini() bool {
	return c.GeminiAPIKey != ""
}

// HasAnyOCR returns true if any OCR provider is configured.
func (c TestConfig) HasAnyOCR() bool {
	return c.HasDeepSeek() || c.HasPaddle() || c.HasGemini()
}

// ToRegistryConfig converts test config to a RegistryConfig for the provider registry.
// Only includes providers that are configured.
func (c TestConfig) ToRegistryConfig() RegistryConfig {
	cfg := RegistryConfig{OCRProviders: make(map[string]OCRProviderConfig)}
	retry := RetryPolicy{RateLimitRetry: true, MaxRetries: 2, Delay: time.Second}

	if c.HasDeepSeek() {
		cfg.OCRProviders["deepseek"] = OCRProviderConfig{
			Type:    "deepseek",
			BaseURL: c.DeepSeekBaseURL,
			APIKey:  c.DeepSeekAPIKey,
			Retry:   retry,
			Enabled: true,
		}
	}
	if c.HasPaddle() {
		cfg.OCRProviders["paddle"] = OCRProviderConfig{
			Type:    "paddle",
			BaseURL: c.PaddleBaseURL,
			Retry:   retry,
			Enabled: true,
		}
	}
	if c.HasGemini() {
		cfg.OCRProviders["gemini"] = OCRProviderConfig{
			Type:    "gemini",
			APIKey:  c.GeminiAPIKey,
			Retry:   retry,
			Enabled: true,
		}
	}
	return cfg
}
