package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Input   InputConfig   `yaml:"input" mapstructure:"input"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Alert   AlertConfig   `yaml:"alert" mapstructure:"alert"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// InputConfig locates the metrics document.
type InputConfig struct {
	MetricsPath string `yaml:"metrics_path" mapstructure:"metrics_path"`
}

// OutputConfig controls where report artifacts are written.
type OutputConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	JSONName     string `yaml:"json_name" mapstructure:"json_name"`
	MarkdownName string `yaml:"markdown_name" mapstructure:"markdown_name"`
}

// DatasetConfig configures metrics computation from an impression log.
type DatasetConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	MaxRows  int    `yaml:"max_rows" mapstructure:"max_rows"`
	Seed     uint64 `yaml:"seed" mapstructure:"seed"`
	Simulate bool   `yaml:"simulate" mapstructure:"simulate"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AlertConfig configures webhook alerting on findings.
type AlertConfig struct {
	WebhookURL        string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	MinSeverity       string  `yaml:"min_severity" mapstructure:"min_severity"`
	CheckIntervalSecs int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	RatePerSec        float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`

	// Run history checks (watch mode, runs stats).
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// FetchConfig configures remote metrics document downloads.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// BatchConfig configures multi-document runs.
type BatchConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
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
	v.SetEnvPrefix("ADRANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("input.metrics_path", "metrics_sample.json")
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.json_name", "debug_report.json")
	v.SetDefault("output.markdown_name", "debug_report.md")
	v.SetDefault("dataset.max_rows", 50000)
	v.SetDefault("dataset.seed", 42)
	v.SetDefault("dataset.simulate", true)
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("alert.min_severity", "high")
	v.SetDefault("alert.check_interval_secs", 300)
	v.SetDefault("alert.rate_per_sec", 1.0)
	v.SetDefault("alert.max_attempts", 3)
	v.SetDefault("alert.failure_rate_threshold", 0.5)
	v.SetDefault("alert.lookback_window_hours", 24)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "adrank-triage/1.0")
	v.SetDefault("batch.max_concurrency", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command mode depends on and reports every
// problem at once. Modes: run, batch, compute, serve, watch.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "none", "":
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of none, sqlite, postgres", c.Store.Driver))
	}

	switch mode {
	case "run":
		if c.Input.MetricsPath == "" {
			errs = append(errs, "input.metrics_path is required")
		}
	case "batch":
		if c.Batch.MaxConcurrency < 1 || c.Batch.MaxConcurrency > 64 {
			errs = append(errs, "batch.max_concurrency must be between 1 and 64")
		}
	case "compute":
		if c.Dataset.MaxRows < 0 {
			errs = append(errs, "dataset.max_rows must be >= 0")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "watch":
		if c.Input.MetricsPath == "" {
			errs = append(errs, "input.metrics_path is required")
		}
		if c.Alert.CheckIntervalSecs <= 0 {
			errs = append(errs, "alert.check_interval_secs must be > 0")
		}
		if c.Alert.FailureRateThreshold < 0 || c.Alert.FailureRateThreshold > 1 {
			errs = append(errs, "alert.failure_rate_threshold must be between 0 and 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "serve" || mode == "watch" || c.Alert.WebhookURL != "" {
		switch c.Alert.MinSeverity {
		case "low", "medium", "high":
		default:
			errs = append(errs, fmt.Sprintf("alert.min_severity %q is not one of low, medium, high", c.Alert.MinSeverity))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
