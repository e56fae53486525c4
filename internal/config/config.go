package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"

	// DefaultDSN has no credentials; lib/pq reads PGUSER and PGPASSWORD.
	DefaultDSN         = "postgres://localhost:5432/postgres?sslmode=disable"
	DefaultOutput      = "census.xlsx"
	DefaultColumnWidth = 18
	DefaultSchema      = "public"

	maxColumnWidth = 255
)

type Config struct {
	Source SourceConfig `yaml:"source"`
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`
}

type SourceConfig struct {
	Type         string        `yaml:"type"`
	DSN          string        `yaml:"dsn"`
	Schema       string        `yaml:"schema"`
	QueryTimeout time.Duration `yaml:"queryTimeout"`
}

type OutputConfig struct {
	Path        string  `yaml:"path"`
	ColumnWidth float64 `yaml:"columnWidth"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file, environment or flag
// overrides anything.
func Default() *Config {
	return &Config{
		Source: SourceConfig{DSN: DefaultDSN},
		Output: OutputConfig{Path: DefaultOutput, ColumnWidth: DefaultColumnWidth},
		Log:    LogConfig{Level: "info"},
	}
}

// LoadConfig reads the file at path, applies the environment and validates
// the result.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load builds a configuration from defaults, the optional file at path and
// the environment. It does not validate, so callers can still apply flags.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		_, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("config file not found: %w", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("DATABASE_URL"); ok && v != "" {
		c.Source.DSN = v
	}
	if v, ok := os.LookupEnv("DATACENSUS_DSN"); ok && v != "" {
		c.Source.DSN = v
	}
	if v, ok := os.LookupEnv("DATACENSUS_DRIVER"); ok && v != "" {
		c.Source.Type = v
	}
	if v, ok := os.LookupEnv("DATACENSUS_SCHEMA"); ok && v != "" {
		c.Source.Schema = v
	}
	if v, ok := os.LookupEnv("DATACENSUS_OUTPUT"); ok && v != "" {
		c.Output.Path = v
	}
	if v, ok := os.LookupEnv("DATACENSUS_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate fills in the driver and schema when they can be derived from the
// DSN and then checks every field.
func (c *Config) Validate() error {
	c.Source.Type = strings.ToLower(strings.TrimSpace(c.Source.Type))
	if c.Source.DSN == "" {
		return errors.New("source.dsn is required")
	}
	if c.Source.Type == "" {
		c.Source.Type = inferDriver(c.Source.DSN)
	}
	if err := checkDSNShape(c.Source.Type, c.Source.DSN); err != nil {
		return err
	}

	switch c.Source.Type {
	case DriverPostgres:
		if isPostgresURL(c.Source.DSN) {
			if _, err := pq.ParseURL(c.Source.DSN); err != nil {
				return fmt.Errorf("source.dsn: %w", err)
			}
		}
		if c.Source.Schema == "" {
			c.Source.Schema = DefaultSchema
		}
	case DriverMySQL:
		parsed, err := mysql.ParseDSN(c.Source.DSN)
		if err != nil {
			return fmt.Errorf("source.dsn: %w", err)
		}
		if c.Source.Schema == "" {
			c.Source.Schema = parsed.DBName
		}
	default:
		return fmt.Errorf("source.type must be %s or %s, got %q", DriverPostgres, DriverMySQL, c.Source.Type)
	}

	if c.Source.Schema == "" {
		return errors.New("source.schema is required")
	}
	if c.Source.QueryTimeout < 0 {
		return errors.New("source.queryTimeout must not be negative")
	}
	if c.Output.Path == "" {
		return errors.New("output.path is required")
	}
	if !strings.EqualFold(filepath.Ext(c.Output.Path), ".xlsx") {
		return fmt.Errorf("output.path %s must have the .xlsx extension", c.Output.Path)
	}
	if c.Output.ColumnWidth <= 0 || c.Output.ColumnWidth > maxColumnWidth {
		return fmt.Errorf("output.columnWidth must be in (0, %d]", maxColumnWidth)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func inferDriver(dsn string) string {
	if strings.Contains(dsn, "@tcp(") || strings.Contains(dsn, "@unix(") {
		return DriverMySQL
	}
	return DriverPostgres
}

// checkDSNShape rejects a DSN written for the other driver, so a type set in
// one layer and a DSN set in another fail here instead of at connect time.
func checkDSNShape(driver, dsn string) error {
	switch {
	case driver == DriverPostgres && inferDriver(dsn) == DriverMySQL:
		return fmt.Errorf("source.type is %s but source.dsn is a MySQL DSN", driver)
	case driver == DriverMySQL && isPostgresURL(dsn):
		return fmt.Errorf("source.type is %s but source.dsn is a PostgreSQL URL", driver)
	}
	return nil
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
