// Package config loads application configuration from the environment
// and an optional YAML file. The Config value is constructed once at
// startup and passed into constructors; nothing reads it globally.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// Cache backend selectors.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds every runtime setting for the agent.
type Config struct {
	// NCBIAPIKey raises the PubMed rate limit from 3 to 10 req/s.
	NCBIAPIKey string `mapstructure:"ncbi_api_key"`

	// AnthropicAPIKey authenticates the LLM service.
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`

	// Model is the LLM model name.
	Model string `mapstructure:"model"`

	// MaxTokens bounds the LLM completion length.
	MaxTokens int `mapstructure:"max_tokens"`

	// MaxResults caps search results per question (1-50).
	MaxResults int `mapstructure:"max_results"`

	// YearsBack is the default publication date window.
	YearsBack int `mapstructure:"years_back"`

	// CacheBackend selects "memory" or "redis".
	CacheBackend string `mapstructure:"cache_backend"`

	// RedisURL is required when CacheBackend is "redis".
	RedisURL string `mapstructure:"redis_url"`

	// CacheTTL is the cache entry lifetime.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// LogFormat is "json" or "console".
	LogFormat string `mapstructure:"log_format"`
}

// Load reads configuration from MEDLIT_* environment variables and an
// optional medlit.yaml in the working directory or $HOME/.config/medlit.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("model", "claude-sonnet-4-20250514")
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("max_results", 8)
	v.SetDefault("years_back", 5)
	v.SetDefault("cache_backend", CacheMemory)
	v.SetDefault("cache_ttl", time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetEnvPrefix("MEDLIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional unprefixed keys for the external services.
	v.BindEnv("ncbi_api_key", "MEDLIT_NCBI_API_KEY", "NCBI_API_KEY")
	v.BindEnv("anthropic_api_key", "MEDLIT_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	v.SetConfigName("medlit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/medlit")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate enforces backend selection and bounds.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.CacheBackend, validation.Required, validation.In(CacheMemory, CacheRedis)),
		validation.Field(&c.RedisURL, validation.Required.When(c.CacheBackend == CacheRedis).Error("redis_url is required for the redis cache backend")),
		validation.Field(&c.MaxResults, validation.Required, validation.Min(1), validation.Max(50)),
		validation.Field(&c.MaxTokens, validation.Min(1)),
		validation.Field(&c.YearsBack, validation.Min(0)),
	)
}
