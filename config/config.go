// Package config loads runtime configuration from file, environment and
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/warp/production-report/production"
)

// configName is the config file name without extension.
const configName = ".prodreport"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix, e.g. PRODREPORT_DATABASE_PATH.
const envPrefix = "PRODREPORT"

// Defaults.
const (
	DefaultDatabasePath = "production.db"
	DefaultSourcePath   = "production.xlsx"
	DefaultReportPath   = "./teams.xlsx"
	DefaultReportSheet  = "Total"
	DefaultLogLevel     = "info"
	DefaultServerPort   = 8080

	DefaultReconcileInterval = time.Hour
)

// Config is the full runtime configuration.
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Source      SourceConfig      `mapstructure:"source"`
	Report      ReportConfig      `mapstructure:"report"`
	Enumeration EnumerationConfig `mapstructure:"enumeration"`
	Log         LogConfig         `mapstructure:"log"`
	Server      ServerConfig      `mapstructure:"server"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type SourceConfig struct {
	// DefaultPath is processed when no file is given on the command line.
	DefaultPath string `mapstructure:"default_path"`
}

type ReportConfig struct {
	Path  string `mapstructure:"path"`
	Sheet string `mapstructure:"sheet"`
}

// EnumerationConfig lists the column layout of source rows. Order matters.
type EnumerationConfig struct {
	Statuses []string `mapstructure:"statuses"`
	Metrics  []string `mapstructure:"metrics"`
	Dates    []string `mapstructure:"dates"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`

	// ReconcileInterval is the period of the background reconciliation
	// check. Zero disables it.
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

// Load loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
// A .env file in CWD is loaded into the environment first; variables that
// are already set win.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	v := viper.New()
	applyDefaults(v)

	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func applyDefaults(v *viper.Viper) {
	enum := production.DefaultEnumeration()

	statuses := make([]string, len(enum.Statuses))
	for i, s := range enum.Statuses {
		statuses[i] = string(s)
	}
	metrics := make([]string, len(enum.Metrics))
	for i, m := range enum.Metrics {
		metrics[i] = string(m)
	}
	dates := make([]string, len(enum.Dates))
	for i, d := range enum.Dates {
		dates[i] = d.Format(production.DateLayout)
	}

	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("source.default_path", DefaultSourcePath)
	v.SetDefault("report.path", DefaultReportPath)
	v.SetDefault("report.sheet", DefaultReportSheet)
	v.SetDefault("enumeration.statuses", statuses)
	v.SetDefault("enumeration.metrics", metrics)
	v.SetDefault("enumeration.dates", dates)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.pretty", false)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.reconcile_interval", DefaultReconcileInterval)
}

// Validate checks field values and that the enumeration is usable.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Report.Path == "" {
		return errors.New("report.path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.ReconcileInterval < 0 {
		return fmt.Errorf("server.reconcile_interval %s is negative", c.Server.ReconcileInterval)
	}
	if _, err := c.Enumeration.Build(); err != nil {
		return err
	}
	return nil
}

// Enum builds the production enumeration from the configuration.
func (c *Config) Enum() (production.Enumeration, error) {
	return c.Enumeration.Build()
}

// Build converts the configured labels into a production.Enumeration.
func (e EnumerationConfig) Build() (production.Enumeration, error) {
	statuses := make([]production.Status, len(e.Statuses))
	for i, s := range e.Statuses {
		statuses[i] = production.Status(strings.TrimSpace(s))
	}
	metrics := make([]production.Metric, len(e.Metrics))
	for i, m := range e.Metrics {
		metrics[i] = production.Metric(strings.TrimSpace(m))
	}
	dates := make([]time.Time, len(e.Dates))
	for i, d := range e.Dates {
		parsed, err := production.ParseDate(strings.TrimSpace(d))
		if err != nil {
			return production.Enumeration{}, fmt.Errorf("enumeration.dates[%d]: %w", i, err)
		}
		dates[i] = parsed
	}
	return production.NewEnumeration(statuses, metrics, dates)
}
