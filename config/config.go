// Package config loads and validates the application configuration from
// YAML, resolving API keys from the environment when the file omits them.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sidenote-ai/sidenote/translate"
	"github.com/sidenote-ai/sidenote/types"
)

// DefaultEnvVars maps credential slots to the environment variables
// consulted when the config file does not name one.
var DefaultEnvVars = map[string][]string{
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"translate": {"GOOGLE_TRANSLATE_API_KEY"},
}

// Credential holds one API key, either inline or resolved from the
// environment.
type Credential struct {
	// APIKey is the explicit key value. Takes precedence over env lookup.
	APIKey string `yaml:"api_key"`

	// APIKeyEnv names an environment variable to read the key from.
	APIKeyEnv string `yaml:"api_key_env"`
}

// Resolve returns the key for the named credential slot following the
// chain: explicit value, configured env var, default env vars.
func (c Credential) Resolve(slot string) (string, error) {
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	if c.APIKeyEnv != "" {
		key := os.Getenv(c.APIKeyEnv)
		if key == "" {
			return "", fmt.Errorf("environment variable %s is not set", c.APIKeyEnv)
		}
		return key, nil
	}
	for _, envVar := range DefaultEnvVars[slot] {
		if key := os.Getenv(envVar); key != "" {
			return key, nil
		}
	}
	return "", nil
}

// GeminiConfig configures the streaming, embedding, and fallback
// translation provider.
type GeminiConfig struct {
	Credential `yaml:",inline"`

	// Model overrides the default live model.
	Model string `yaml:"model"`

	// EmbeddingModel overrides the default embedding model.
	EmbeddingModel string `yaml:"embedding_model"`
}

// TranslateConfig configures the speech translation pipeline and its
// primary (bulk) provider.
type TranslateConfig struct {
	Credential `yaml:",inline"`

	Enabled    bool   `yaml:"enabled"`
	SourceLang string `yaml:"source_lang"`
	TargetLang string `yaml:"target_lang"`
}

// Pipeline converts the section into the pipeline's runtime config.
func (c TranslateConfig) Pipeline() translate.Config {
	return translate.Config{
		Enabled:    c.Enabled,
		SourceLang: c.SourceLang,
		TargetLang: c.TargetLang,
	}
}

// RedisConfig configures the optional Redis state store.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// MetricsConfig configures the optional Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// AudioConfig is the YAML shape of the capture format.
type AudioConfig struct {
	SampleRate    int           `yaml:"sample_rate"`
	Channels      int           `yaml:"channels"`
	FrameDuration time.Duration `yaml:"frame_duration"`
}

// Capture converts the section into the capture pipeline's config.
func (c AudioConfig) Capture() types.AudioConfig {
	return types.AudioConfig{
		SampleRate:    c.SampleRate,
		Channels:      c.Channels,
		BitDepth:      16,
		FrameDuration: c.FrameDuration,
	}
}

// SessionConfig configures session behavior.
type SessionConfig struct {
	// Profile is the default assistant profile ("interview", "meeting", ...).
	Profile string `yaml:"profile"`

	// Language is the default BCP-47 conversation language.
	Language string `yaml:"language"`

	// ReconnectDelay is the fixed wait between reconnect attempts.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// Config is the root application configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Translate TranslateConfig `yaml:"translate"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Audio     AudioConfig     `yaml:"audio"`
	Session   SessionConfig   `yaml:"session"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "sidenote",
			TTL:    24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Audio: AudioConfig{
			SampleRate:    24000,
			Channels:      2,
			FrameDuration: 100 * time.Millisecond,
		},
		Session: SessionConfig{
			Profile:        "meeting",
			Language:       "en-US",
			ReconnectDelay: 2 * time.Second,
		},
	}
}

// Load reads a YAML config file, layers it over the defaults, and
// validates the result. An invalid file is rejected without partial
// application.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes over the defaults and validates them.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration synchronously. It does not resolve
// credentials; missing keys surface at provider construction.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.LogLevel)
	}

	if c.Translate.Enabled {
		if err := c.Translate.Pipeline().Validate(); err != nil {
			return fmt.Errorf("invalid translate config: %w", err)
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis enabled but no addr configured")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics enabled but no addr configured")
	}

	audio := c.Audio.Capture()
	if err := audio.Validate(); err != nil {
		return fmt.Errorf("invalid audio config: %w", err)
	}

	if c.Session.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive, got: %v", c.Session.ReconnectDelay)
	}
	return nil
}

// GeminiKey resolves the Gemini API key.
func (c *Config) GeminiKey() (string, error) {
	key, err := c.Gemini.Resolve("gemini")
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("no Gemini API key: set gemini.api_key or GEMINI_API_KEY")
	}
	return key, nil
}

// TranslateKey resolves the bulk translation API key. Empty means the
// primary provider is unavailable and translation falls back to the model.
func (c *Config) TranslateKey() (string, error) {
	return c.Translate.Resolve("translate")
}
