package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/pageocr/internal/ocr"
	"github.com/jackzampolin/pageocr/internal/providers"
)

// EnvPrefix prefixes environment overrides, e.g. PAGEOCR_PAGE_SEPARATOR.
const EnvPrefix = "PAGEOCR"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v         *viper.Viper
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// An empty cfgFile searches ./config.yaml and $HOME/.pageocr/config.yaml;
// a missing file is not an error.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	for _, entry := range DefaultEntries() {
		cm.v.SetDefault(entry.Key, entry.Value)
	}

	// Environment variables with PAGEOCR_ prefix; nested keys use underscores
	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.pageocr")
	}

	// Try to read config file (not required)
	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed returns the path of the loaded config file, or "" if none was found.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// Set updates a single key and persists it to the loaded config file.
func (cm *Manager) Set(key string, value any) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if cm.v.ConfigFileUsed() == "" {
		return fmt.Errorf("no config file loaded; run 'pageocr config init' first")
	}

	cm.v.Set(key, value)
	if err := cm.v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	cfg, err := cm.load()
	if err != nil {
		return err
	}
	cm.mu.Lock()
	cm.config = cfg
	cm.mu.Unlock()
	return nil
}

// Reset writes a key's default value back to the config file.
// Returns ErrNoDefault if no default exists for the key.
func (cm *Manager) Reset(key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return cm.Set(key, def.Value)
}

// Value returns the effective value for a key, after file and environment overrides.
func (cm *Manager) Value(key string) any {
	return cm.v.Get(key)
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

var separatorEscapes = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r", `\\`, `\`)

// UnescapeSeparator expands \n, \t and \r escapes so separators can be
// given on the command line or in an environment variable.
func UnescapeSeparator(s string) string {
	return separatorEscapes.Replace(s)
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in API keys and base URLs.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		OCRProviders: make(map[string]providers.OCRProviderConfig),
	}

	for name, p := range c.OCRProviders {
		retry := providers.DefaultRetryPolicy()
		if p.MaxRetries != nil {
			retry.MaxRetries = *p.MaxRetries
		}
		if p.RetryDelaySeconds > 0 {
			retry.Delay = time.Duration(p.RetryDelaySeconds * float64(time.Second))
		}

		var timeout time.Duration
		if p.TimeoutSeconds > 0 {
			timeout = time.Duration(p.TimeoutSeconds) * time.Second
		}

		cfg.OCRProviders[name] = providers.OCRProviderConfig{
			Type:      p.Type,
			Model:     p.Model,
			BaseURL:   ResolveEnvVars(p.BaseURL),
			APIKey:    ResolveEnvVars(p.APIKey),
			RateLimit: p.RateLimit,
			Timeout:   timeout,
			MaxTokens: p.MaxTokens,
			Retry:     retry,
			Enabled:   p.Enabled,

			ReturnLayoutInfo: p.ReturnLayoutInfo,
		}
	}

	return cfg
}

// ToOptions converts the conversion settings into orchestrator options.
func (c *Config) ToOptions(logger *slog.Logger) (ocr.Options, error) {
	opts := ocr.DefaultOptions()

	if c.PrimaryMode != "" {
		mode, err := providers.ParseMode(c.PrimaryMode)
		if err != nil {
			return ocr.Options{}, fmt.Errorf("primary_mode: %w", err)
		}
		opts.PrimaryMode = mode
	}
	if c.FallbackMinChars < 0 {
		return ocr.Options{}, fmt.Errorf("fallback_min_chars must be >= 0, got %d", c.FallbackMinChars)
	}
	if c.MaxConcurrency < 0 {
		return ocr.Options{}, fmt.Errorf("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}

	opts.Fallback = ocr.FallbackPolicy{MinChars: c.FallbackMinChars}
	opts.Separator = UnescapeSeparator(c.PageSeparator)
	opts.MaxConcurrency = c.MaxConcurrency
	opts.Sync = c.Sync
	opts.IncludeDegraded = c.IncludeDegraded
	opts.RefallbackGrounding = c.RefallbackGrounding
	opts.Logger = logger

	return opts, nil
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# pageocr configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export DEEPSEEK_OCR_API_KEY=xxx GEMINI_API_KEY=xxx
# Any key can be overridden with PAGEOCR_<KEY>, e.g. PAGEOCR_PAGE_SEPARATOR='\n\n'

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
