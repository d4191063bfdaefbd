// Package config loads application configuration from file and environment
// and owns global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/competitor-intel/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Reader    ReaderConfig    `yaml:"reader" mapstructure:"reader"`
	Research  ResearchConfig  `yaml:"research" mapstructure:"research"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Refresh   RefreshConfig   `yaml:"refresh" mapstructure:"refresh"`
	Sweep     SweepConfig     `yaml:"sweep" mapstructure:"sweep"`
	Synthesis SynthesisConfig `yaml:"synthesis" mapstructure:"synthesis"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. Pool only applies to the
// postgres driver; zero values take the store's defaults.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ReaderConfig holds reader API settings for website and review scans.
type ReaderConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string  `yaml:"search_base_url" mapstructure:"search_base_url"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// ResearchConfig holds deep-research API settings.
type ResearchConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings for angle writing.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	AngleModel string `yaml:"angle_model" mapstructure:"angle_model"`
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
}

// RefreshConfig configures scan freshness and fetch resilience.
type RefreshConfig struct {
	// PolicyPath points at a YAML TTL policy; empty means built-in defaults.
	PolicyPath string `yaml:"policy_path" mapstructure:"policy_path"`
	// FetchTimeoutSecs bounds one provider fetch.
	FetchTimeoutSecs int `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`

	RetryMaxAttempts      int `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs int `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	BreakerThreshold      int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs      int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// SweepConfig configures the periodic background refresh over all tracked
// entities.
type SweepConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries  int `yaml:"max_retries" mapstructure:"max_retries"`
}

// SynthesisConfig configures gap synthesis.
type SynthesisConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	MinQuality          float64 `yaml:"min_quality" mapstructure:"min_quality"`
	MaxGaps             int     `yaml:"max_gaps" mapstructure:"max_gaps"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("reader.base_url", "https://r.jina.ai")
	v.SetDefault("reader.search_base_url", "https://s.jina.ai")
	v.SetDefault("reader.rate_per_sec", 5)
	v.SetDefault("reader.rate_burst", 5)
	v.SetDefault("research.base_url", "https://api.perplexity.ai")
	v.SetDefault("research.model", "sonar-pro")
	v.SetDefault("anthropic.angle_model", "claude-haiku-4-5-20251001")
	v.SetDefault("refresh.fetch_timeout_secs", 60)
	v.SetDefault("refresh.retry_max_attempts", 3)
	v.SetDefault("refresh.retry_initial_backoff_ms", 500)
	v.SetDefault("refresh.breaker_threshold", 5)
	v.SetDefault("refresh.breaker_reset_secs", 30)
	v.SetDefault("sweep.concurrency", 4)
	v.SetDefault("sweep.max_retries", 2)
	v.SetDefault("synthesis.similarity_threshold", 0.45)
	v.SetDefault("synthesis.min_quality", 0.2)
	v.SetDefault("synthesis.max_gaps", 20)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a serving process needs are present.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver")
		}
	case "sqlite":
		// Empty database_url falls back to a local file.
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Anthropic.Enabled && c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required when anthropic.enabled")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
