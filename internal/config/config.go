// Package config loads and validates the settings every querypipe
// component is built from.
//
// Settings come from three layers, later layers winning:
//
//  1. Defaults (Default).
//  2. A YAML file (Load).
//  3. Environment variables (ApplyEnv), QUERYPIPE_* plus the secret.
//
// The secret is never read from a file. It is taken from the environment
// variable named by SecretEnv (MYSQL_PASSWORD unless configured otherwise)
// and its absence is a configuration fault.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	"github.com/roach88/querypipe/internal/fault"
)

// Supported driver names. They match the names the drivers register with
// database/sql.
const (
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
	DriverSQLite  = "sqlite"  // modernc.org/sqlite (pure Go)
	DriverMySQL   = "mysql"   // github.com/go-sql-driver/mysql
	DriverPgx     = "pgx"     // github.com/jackc/pgx/v5/stdlib
)

// DefaultSecretEnv is the variable the secret is read from by default.
const DefaultSecretEnv = "MYSQL_PASSWORD"

// Config holds connection and pipeline settings.
type Config struct {
	Driver    string `yaml:"driver"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Secret    string `yaml:"-"`
	SecretEnv string `yaml:"secret_env"`
	Database  string `yaml:"database"`

	PageSize    int           `yaml:"page_size"`
	BatchSize   int           `yaml:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// Default returns the built-in defaults. The secret is left empty.
func Default() Config {
	return Config{
		Driver:      DriverSQLite3,
		Host:        "localhost",
		User:        "alx_user",
		SecretEnv:   DefaultSecretEnv,
		Database:    "ALX_prodev",
		PageSize:    100,
		BatchSize:   50,
		MaxAttempts: 3,
		Delay:       time.Second,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the process environment. It does not validate.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		Merge(&cfg, parsed)
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Merge copies every non-zero field of src into dst.
func Merge(dst *Config, src Config) {
	if src.Driver != "" {
		dst.Driver = src.Driver
	}
	if src.Host != "" {
		dst.Host = src.Host
	}
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.User != "" {
		dst.User = src.User
	}
	if src.Secret != "" {
		dst.Secret = src.Secret
	}
	if src.SecretEnv != "" {
		dst.SecretEnv = src.SecretEnv
	}
	if src.Database != "" {
		dst.Database = src.Database
	}
	if src.PageSize != 0 {
		dst.PageSize = src.PageSize
	}
	if src.BatchSize != 0 {
		dst.BatchSize = src.BatchSize
	}
	if src.MaxAttempts != 0 {
		dst.MaxAttempts = src.MaxAttempts
	}
	if src.Delay != 0 {
		dst.Delay = src.Delay
	}
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg from the environment. Malformed numeric values are
// configuration faults rather than being silently ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fault.Configurationf("env "+key, "not an integer: %q", v)
		}
		*dst = n
		return nil
	}

	str("QUERYPIPE_DRIVER", &cfg.Driver)
	str("QUERYPIPE_HOST", &cfg.Host)
	str("QUERYPIPE_USER", &cfg.User)
	str("QUERYPIPE_DATABASE", &cfg.Database)

	for key, dst := range map[string]*int{
		"QUERYPIPE_PORT":         &cfg.Port,
		"QUERYPIPE_PAGE_SIZE":    &cfg.PageSize,
		"QUERYPIPE_BATCH_SIZE":   &cfg.BatchSize,
		"QUERYPIPE_MAX_ATTEMPTS": &cfg.MaxAttempts,
	} {
		if err := integer(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("QUERYPIPE_DELAY"); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fault.Configurationf("env QUERYPIPE_DELAY", "not a duration: %q", v)
		}
		cfg.Delay = d
	}

	secretEnv := cfg.SecretEnv
	if secretEnv == "" {
		secretEnv = DefaultSecretEnv
	}
	if v, ok := lookup(secretEnv); ok && v != "" {
		cfg.Secret = v
	}
	return nil
}

// Validate checks that cfg is complete. The secret check comes first so a
// missing credential is always the reported fault.
func (c Config) Validate() error {
	if err := c.ValidateSecret(); err != nil {
		return err
	}
	switch c.Driver {
	case DriverSQLite3, DriverSQLite, DriverMySQL, DriverPgx:
	default:
		return fault.Configurationf("validate", "unsupported driver %q", c.Driver)
	}
	if c.Database == "" {
		return fault.Configurationf("validate", "database is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fault.Configurationf("validate", "port out of range: %d", c.Port)
	}
	if c.PageSize < 1 {
		return fault.Configurationf("validate", "page_size must be >= 1, got %d", c.PageSize)
	}
	if c.BatchSize < 1 {
		return fault.Configurationf("validate", "batch_size must be >= 1, got %d", c.BatchSize)
	}
	if c.MaxAttempts < 1 {
		return fault.Configurationf("validate", "max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.Delay < 0 {
		return fault.Configurationf("validate", "delay must be >= 0, got %s", c.Delay)
	}
	return nil
}

// ValidateSecret reports a configuration fault when the secret is absent.
func (c Config) ValidateSecret() error {
	if c.Secret == "" {
		env := c.SecretEnv
		if env == "" {
			env = DefaultSecretEnv
		}
		return fault.Configurationf("secret", "%s is not set", env)
	}
	return nil
}

// DSN renders the data source name for the configured driver.
func (c Config) DSN() (string, error) {
	switch c.Driver {
	case DriverSQLite3, DriverSQLite:
		return c.Database, nil

	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Secret
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.portOr(3306)))
		mc.DBName = c.Database
		// Report matched rows, not changed rows, in RowsAffected.
		mc.ClientFoundRows = true
		return mc.FormatDSN(), nil

	case DriverPgx:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Secret),
			Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.portOr(5432))),
			Path:   "/" + c.Database,
		}
		return u.String(), nil

	default:
		return "", fault.Configurationf("dsn", "unsupported driver %q", c.Driver)
	}
}

func (c Config) portOr(def int) int {
	if c.Port != 0 {
		return c.Port
	}
	return def
}

// LogValue implements slog.LogValuer. The secret is reported only as set
// or unset.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("driver", c.Driver),
		slog.String("host", c.Host),
		slog.Int("port", c.Port),
		slog.String("user", c.User),
		slog.Bool("credential_set", c.Secret != ""),
		slog.String("database", c.Database),
		slog.Int("page_size", c.PageSize),
		slog.Int("batch_size", c.BatchSize),
		slog.Int("max_attempts", c.MaxAttempts),
		slog.Duration("delay", c.Delay),
	)
}
