package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	ReadOnly bool   `mapstructure:"read_only"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	RequireAPIKey bool    `mapstructure:"require_api_key"`
	AdminKey      string  `mapstructure:"admin_key"`
	KeyQPS        float64 `mapstructure:"key_qps"`   // per API key edge throttle
	KeyBurst      int     `mapstructure:"key_burst"` // 0 = 2 * key_qps
}

type DatabaseConfig struct {
	Driver             string `mapstructure:"driver"` // postgres | sqlite
	DSN                string `mapstructure:"dsn"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
	UsageRetentionDays int    `mapstructure:"usage_retention_days"`
	CleanupCron        string `mapstructure:"cleanup_cron"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
	AuditListKey          string `mapstructure:"audit_list_key"`
	AuditListMax          int    `mapstructure:"audit_list_max"`
}

// RuntimeConfig tunes the execution gateway guards.
type RuntimeConfig struct {
	KillSwitchTTLSeconds   int  `mapstructure:"kill_switch_ttl_seconds"`
	KillSwitchDefault      bool `mapstructure:"kill_switch_default"`
	ProviderTimeoutSeconds int  `mapstructure:"provider_timeout_seconds"`
	RateWindowSeconds      int  `mapstructure:"rate_window_seconds"`
}

// EndpointsConfig tunes the tenant endpoint fetcher used by chat.
type EndpointsConfig struct {
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MaxRecords        int     `mapstructure:"max_records"`         // pagination cap
	MaxItems          int     `mapstructure:"max_items"`           // filtered items per endpoint
	MaxChars          int     `mapstructure:"max_chars"`           // serialized data per endpoint block
	PageRatePerSecond float64 `mapstructure:"page_rate_per_second"` // 0 = unthrottled
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads path when given, otherwise config.yaml from . or ./configs.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// e.g. NERIA_DATABASE_DSN
	v.SetEnvPrefix("neria")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_only", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("auth.require_api_key", true)
	v.SetDefault("auth.admin_key", "")
	v.SetDefault("auth.key_qps", 20)
	v.SetDefault("auth.key_burst", 40)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.audit_retention_days", 90)
	v.SetDefault("database.usage_retention_days", 400)
	v.SetDefault("database.cleanup_cron", "@hourly")
	v.SetDefault("redis.idempotency_ttl_seconds", 86400)
	v.SetDefault("redis.audit_list_key", "audit_events")
	v.SetDefault("redis.audit_list_max", 10000)
	v.SetDefault("runtime.kill_switch_ttl_seconds", 30)
	v.SetDefault("runtime.kill_switch_default", false)
	v.SetDefault("runtime.provider_timeout_seconds", 60)
	v.SetDefault("runtime.rate_window_seconds", 60)
	v.SetDefault("endpoints.timeout_seconds", 15)
	v.SetDefault("endpoints.max_records", 5000)
	v.SetDefault("endpoints.max_items", 10)
	v.SetDefault("endpoints.max_chars", 4000)
	v.SetDefault("endpoints.page_rate_per_second", 0)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
