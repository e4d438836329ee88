package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type WorkerConfig struct {
	Name           string `mapstructure:"name"`
	GridAddress    string `mapstructure:"grid_address"`   // host:port
	Secure         bool   `mapstructure:"secure"`         // wss/https instead of ws/http
	AuthTokenEnv   string `mapstructure:"auth_token_env"` // e.g. GRIDWORKER_AUTH_TOKEN
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Model          string `mapstructure:"model"`
	ModelVersion   string `mapstructure:"model_version"`
}

type ProbeConfig struct {
	RateLimitMB float64 `mapstructure:"rate_limit_mb"` // 0 = no cap on the download probe
}

type MonitorConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
}

type Config struct {
	Worker  WorkerConfig  `mapstructure:"worker"`
	Probe   ProbeConfig   `mapstructure:"probe"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Logging LoggingConfig `mapstructure:"logging"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// env overrides: GRIDWORKER_* (optional)
	v.SetEnvPrefix("gridworker")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("worker.timeout_seconds", 60)
	v.SetDefault("worker.auth_token_env", "GRIDWORKER_AUTH_TOKEN")
	v.SetDefault("probe.rate_limit_mb", 0)
	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.interval_seconds", 30)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// quick sanity checks
	if cfg.Worker.GridAddress == "" {
		return nil, fmt.Errorf("worker.grid_address is required")
	}
	if cfg.Worker.TimeoutSeconds < 1 {
		cfg.Worker.TimeoutSeconds = 60
	}
	if cfg.Monitor.IntervalSeconds < 1 {
		cfg.Monitor.IntervalSeconds = 30
	}

	return &cfg, nil
}
