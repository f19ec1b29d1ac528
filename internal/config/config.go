package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files, environment variables and flags.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	SanityProjectID string `mapstructure:"sanity_project_id"`
	SanityDataset   string `mapstructure:"sanity_dataset"`
	SanityToken     string `mapstructure:"sanity_token"`
	SanityUseProd   bool   `mapstructure:"sanity_use_prod"`
	SanityEndpoint  string `mapstructure:"sanity_endpoint"`

	HTTPTimeoutSeconds    int64         `mapstructure:"http_timeout_seconds"`
	RetryMaxAttempts      int           `mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs int64         `mapstructure:"retry_initial_backoff_ms"`
	RateLimitRPS          float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst        int           `mapstructure:"rate_limit_burst"`
	HTTPTimeout           time.Duration `mapstructure:"-"`
	RetryInitialBackoff   time.Duration `mapstructure:"-"`

	QueriesFile         string        `mapstructure:"queries_file"`
	PublishersFile      string        `mapstructure:"publishers_file"`
	PollIntervalSeconds int64         `mapstructure:"poll_interval"`
	Concurrency         int           `mapstructure:"concurrency"`
	PollInterval        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	RedisAddr              string        `mapstructure:"redis_addr"`
	RedisPassword          string        `mapstructure:"redis_password"`
	RedisDB                int           `mapstructure:"redis_db"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"project":   "sanity_project_id",
	"dataset":   "sanity_dataset",
	"token":     "sanity_token",
	"prod":      "sanity_use_prod",
	"endpoint":  "sanity_endpoint",
	"log-level": "log_level",
	"timeout":   "http_timeout_seconds",
	"retries":   "retry_max_attempts",
	"rate":      "rate_limit_rps",
	"queries":   "queries_file",
	"interval":  "poll_interval",
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags is Load with command-line flags taking precedence over env and defaults.
// Only flags named in flagKeys are bound; unknown flags are left to the caller.
func LoadWithFlags(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "sanity-query")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sanity_project_id", "")
	v.SetDefault("sanity_dataset", "production")
	v.SetDefault("sanity_token", "")
	v.SetDefault("sanity_use_prod", true)
	v.SetDefault("sanity_endpoint", "")
	v.SetDefault("http_timeout_seconds", 30)
	v.SetDefault("retry_max_attempts", 5)
	v.SetDefault("retry_initial_backoff_ms", 1000)
	v.SetDefault("rate_limit_rps", 0)
	v.SetDefault("rate_limit_burst", 1)
	v.SetDefault("queries_file", "./configs/queries.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("poll_interval", 300) // seconds
	v.SetDefault("concurrency", 4)
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/snapshots.db")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("storage_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.SanityProjectID = strings.TrimSpace(c.SanityProjectID)
	c.SanityDataset = strings.TrimSpace(c.SanityDataset)
	c.StorageType = strings.ToLower(strings.TrimSpace(c.StorageType))

	if c.SanityProjectID == "" {
		return fmt.Errorf("sanity_project_id is required")
	}
	if c.SanityDataset == "" {
		return fmt.Errorf("sanity_dataset is required")
	}

	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	c.HTTPTimeout = time.Duration(c.HTTPTimeoutSeconds) * time.Second

	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("invalid retry_max_attempts (must be at least 1)")
	}
	if c.RetryInitialBackoffMs <= 0 {
		return fmt.Errorf("invalid retry_initial_backoff_ms (must be positive milliseconds)")
	}
	c.RetryInitialBackoff = time.Duration(c.RetryInitialBackoffMs) * time.Millisecond

	if c.RateLimitRPS < 0 {
		return fmt.Errorf("invalid rate_limit_rps (must not be negative)")
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 1
	}

	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("invalid poll_interval (must be positive seconds)")
	}
	c.PollInterval = time.Duration(c.PollIntervalSeconds) * time.Second
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}

	if c.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if c.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	c.StorageTTL = time.Duration(c.StorageTTLSeconds) * time.Second
	c.StorageCleanupInterval = time.Duration(c.StorageCleanupSeconds) * time.Second

	return nil
}

const redactedValue = "***"

// Redacted returns a copy safe to log: secrets are masked.
func (c Config) Redacted() Config {
	if c.SanityToken != "" {
		c.SanityToken = redactedValue
	}
	if c.RedisPassword != "" {
		c.RedisPassword = redactedValue
	}
	return c
}
