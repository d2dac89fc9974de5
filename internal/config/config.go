package config

import (
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultServerAddr = ":8080"
	DefaultTimezone   = "Local"
	DefaultWorkers    = 4
	DefaultDateFormat = "2006-01-02"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "console"
)

// Config is the typed view of the application's settings.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Import   ImportConfig
	Rules    RulesConfig
	Apply    ApplyConfig
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string
	Format string
}

// ImportConfig configures CSV and OFX imports.
type ImportConfig struct {
	DateFormat  string
	BankAccount string
	Columns     map[string]string
}

// RulesConfig configures rule evaluation.
type RulesConfig struct {
	Timezone string
}

// ApplyConfig configures the rule application driver.
type ApplyConfig struct {
	Workers int
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
	v.SetDefault("import.date_format", DefaultDateFormat)
	v.SetDefault("rules.timezone", DefaultTimezone)
	v.SetDefault("apply.workers", DefaultWorkers)
}

// Load reads the typed configuration out of v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Import: ImportConfig{
			DateFormat:  v.GetString("import.date_format"),
			BankAccount: v.GetString("import.bank_account"),
			Columns:     v.GetStringMapString("import.columns"),
		},
		Rules: RulesConfig{
			Timezone: v.GetString("rules.timezone"),
		},
		Apply: ApplyConfig{
			Workers: v.GetInt("apply.workers"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty", common.ErrMissingConfig)
	}
	if c.Apply.Workers < 1 {
		return fmt.Errorf("%w: apply.workers must be at least 1, got %d", common.ErrInvalidConfig, c.Apply.Workers)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves rules.timezone. "Local" and "" mean the process time zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Rules.Timezone {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Rules.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: rules.timezone %q: %w", common.ErrInvalidConfig, c.Rules.Timezone, err)
	}
	return loc, nil
}
