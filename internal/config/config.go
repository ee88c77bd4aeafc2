// Package config loads and validates the service configuration from a YAML
// file. Configuration is read once at startup and treated as immutable for
// the process lifetime; changing the exposure policy or the schema requires
// a restart.
package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tables   TablesConfig   `yaml:"tables"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds connection and pool settings.
type DatabaseConfig struct {
	// Driver is "postgres" or "mysql".
	Driver string `yaml:"driver"`

	// DSN is the full connection string. The DATABASE_DSN environment
	// variable overrides it, so the secret can stay out of the file.
	DSN string `yaml:"dsn"`

	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TablesConfig is the exposure policy: which tables the API serves and how.
// All lists are matched case-insensitively against canonical table names.
type TablesConfig struct {
	// Allowed is the fixed allow-list; tables absent from it do not exist
	// as far as callers are concerned.
	Allowed []string `yaml:"allowed"`

	// Excluded removes tables from the API even when allowed, for tables
	// storage cannot fully represent.
	Excluded []string `yaml:"excluded"`

	// AdminOnly tables are visible and writable only to the admin role.
	AdminOnly []string `yaml:"admin_only"`

	// ReadOnly tables never accept writes regardless of role.
	ReadOnly []string `yaml:"read_only"`

	// HiddenFields are stripped from every projection (credential digest,
	// refresh token). Defaults apply when the list is empty.
	HiddenFields []string `yaml:"hidden_fields"`

	// TableHiddenFields maps a table name to additional hidden fields.
	TableHiddenFields map[string][]string `yaml:"table_hidden_fields"`

	// SchemaFile, when set, loads table descriptors from a YAML schema
	// definition instead of live introspection.
	SchemaFile string `yaml:"schema_file"`
}

// Load reads, parses, validates, and defaults the configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 25
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = 5
	}
	if c.Database.MaxConnLifetime == 0 {
		c.Database.MaxConnLifetime = 30 * time.Minute
	}
	if c.Database.MaxConnIdleTime == 0 {
		c.Database.MaxConnIdleTime = 5 * time.Minute
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = 10 * time.Second
	}
	if c.Database.QueryTimeout == 0 {
		c.Database.QueryTimeout = 30 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if len(c.Tables.HiddenFields) == 0 {
		c.Tables.HiddenFields = []string{"password", "refresh_token"}
	}
}

// Validate fails fast on misconfiguration so the process does not start
// with a broken setup.
func (c *Config) Validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "mysql" {
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("config: database.dsn is required (or set DATABASE_DSN)")
	}
	if len(c.Tables.Allowed) == 0 {
		return fmt.Errorf("config: tables.allowed must list at least one table")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	return nil
}
