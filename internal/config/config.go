// Package config handles configuration loading and validation for xchpool-stats.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xchpool-tools/xchpool-stats/internal/util"
)

// Config holds all configuration for a report run
type Config struct {
	LauncherID      string  `mapstructure:"launcher_id"`
	RealNetspaceTiB float64 `mapstructure:"real_netspace_tib"`

	Period    PeriodConfig    `mapstructure:"period"`
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	NewRelic  NewRelicConfig  `mapstructure:"newrelic"`
	API       APIConfig       `mapstructure:"api"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
}

// PeriodConfig defines the pool accounting period and chain constants
type PeriodConfig struct {
	Length       time.Duration `mapstructure:"length"`
	BlocksPerDay float64       `mapstructure:"blocks_per_day"`
	BlockReward  float64       `mapstructure:"block_reward"`
}

// EndpointsConfig defines the upstream HTTP APIs
type EndpointsConfig struct {
	PoolStats      string `mapstructure:"pool_stats"`
	Member         string `mapstructure:"member"`
	PricePrimary   string `mapstructure:"price_primary"`
	PriceSecondary string `mapstructure:"price_secondary"`
	Yield          string `mapstructure:"yield"`
	YieldQuery     string `mapstructure:"yield_query"`
}

// HTTPConfig defines upstream request settings
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig defines logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// RedisConfig defines the optional snapshot store
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	History  int64  `mapstructure:"history"`
}

// NotifyConfig defines webhook notification settings
type NotifyConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DiscordURL   string `mapstructure:"discord_url"`
	TelegramBot  string `mapstructure:"telegram_bot"`
	TelegramChat string `mapstructure:"telegram_chat"`
}

// NewRelicConfig defines New Relic APM settings
type NewRelicConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AppName    string `mapstructure:"app_name"`
	LicenseKey string `mapstructure:"license_key"`
}

// APIConfig defines the serve mode HTTP server
type APIConfig struct {
	Bind         string        `mapstructure:"bind"`
	ReportCache  time.Duration `mapstructure:"report_cache"`
	PushInterval time.Duration `mapstructure:"push_interval"`
}

// ProfilingConfig defines the pprof listener
type ProfilingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bind    string `mapstructure:"bind"`
}

// DefaultLogLevel keeps the report on stdout free of diagnostics
const DefaultLogLevel = "warn"

// DefaultYieldQuery asks for the most recent daily yield entry
const DefaultYieldQuery = `query { history(orderBy: DATE_DESC, first: 1) { date xchPerTib amount } }`

// Load reads configuration from file and environment.
// An empty configPath searches for config.json in the working directory and
// next to the executable.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(exe))
		}
	}

	v.SetEnvPrefix("XCHPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without defaults are only seen by Unmarshal when bound explicitly
	_ = v.BindEnv("launcher_id")
	_ = v.BindEnv("real_netspace_tib")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigError{Key: "file", Reason: "config file not found", Err: err}
		}
		return nil, &ConfigError{Key: "file", Reason: "cannot read config file", Err: err}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Key: "file", Reason: "cannot decode config", Err: err}
	}
	cfg.LauncherID = util.NormalizeLauncherID(cfg.LauncherID)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	util.Debugw("config loaded", "file", v.ConfigFileUsed(), "period", cfg.Period.Length)
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("real_netspace_tib", 0)

	// XCHPool pays out every 6 hours; Chia targets 4608 blocks per day
	v.SetDefault("period.length", "6h")
	v.SetDefault("period.blocks_per_day", 4608)
	v.SetDefault("period.block_reward", 1.75)

	v.SetDefault("endpoints.pool_stats", "https://api.xchpool.org/v1/poolstats")
	v.SetDefault("endpoints.member", "https://api.xchpool.org/v1/members/get")
	v.SetDefault("endpoints.price_primary", "https://api.chiaprofitability.com/market")
	v.SetDefault("endpoints.price_secondary", "https://api.coingecko.com/api/v3/simple/price?ids=chia&vs_currencies=usd")
	v.SetDefault("endpoints.yield", "https://api.chiaprofitability.com/graphql")
	v.SetDefault("endpoints.yield_query", DefaultYieldQuery)

	v.SetDefault("http.timeout", "5s")

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", "console")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.history", 1000)

	v.SetDefault("notify.enabled", false)

	v.SetDefault("newrelic.enabled", false)
	v.SetDefault("newrelic.app_name", "xchpool-stats")

	v.SetDefault("api.bind", "127.0.0.1:8080")
	v.SetDefault("api.report_cache", "60s")
	v.SetDefault("api.push_interval", "5m")

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.bind", "127.0.0.1:6060")
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.LauncherID == "" || c.LauncherID == PlaceholderLauncherID {
		return &ConfigError{Key: "launcher_id", Reason: "launcher id not set in config file"}
	}

	if !util.ValidateLauncherID(c.LauncherID) {
		return &ConfigError{Key: "launcher_id", Reason: fmt.Sprintf("%q is not a 32-byte hex launcher id", c.LauncherID)}
	}

	if c.RealNetspaceTiB < 0 {
		return &ConfigError{Key: "real_netspace_tib", Reason: "must not be negative"}
	}

	if c.Period.Length <= 0 || c.Period.Length > 24*time.Hour {
		return &ConfigError{Key: "period.length", Reason: "must be between 0 and 24h"}
	}

	if c.Period.BlocksPerDay <= 0 {
		return &ConfigError{Key: "period.blocks_per_day", Reason: "must be positive"}
	}

	if c.Period.BlockReward < 0 {
		return &ConfigError{Key: "period.block_reward", Reason: "must not be negative"}
	}

	required := []struct {
		key, value string
	}{
		{"endpoints.pool_stats", c.Endpoints.PoolStats},
		{"endpoints.member", c.Endpoints.Member},
		{"endpoints.price_primary", c.Endpoints.PricePrimary},
		{"endpoints.yield", c.Endpoints.Yield},
	}
	for _, r := range required {
		if r.value == "" {
			return &ConfigError{Key: r.key, Reason: "is required"}
		}
	}

	if c.HTTP.Timeout <= 0 {
		return &ConfigError{Key: "http.timeout", Reason: "must be positive"}
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return &ConfigError{Key: "redis.url", Reason: "is required when redis is enabled"}
	}

	return nil
}

// ReferenceSpaceBytes returns the operator's declared capacity in bytes
func (c *Config) ReferenceSpaceBytes() float64 {
	return util.TiBToBytes(c.RealNetspaceTiB)
}

// NotifyEnabled returns true if at least one webhook target is configured
func (c *Config) NotifyEnabled() bool {
	return c.Notify.Enabled && (c.Notify.DiscordURL != "" || (c.Notify.TelegramBot != "" && c.Notify.TelegramChat != ""))
}
