package history

import (
	"errors"
	"fmt"
	"net/url"
)

// Driver names accepted by the archive.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrInvalidDriver   = errors.New("unsupported history driver")
	ErrMissingPath     = errors.New("sqlite database path is required")
	ErrMissingHost     = errors.New("postgres host is required")
	ErrMissingDatabase = errors.New("postgres database name is required")
	ErrMissingUsername = errors.New("postgres username is required")
)

// Config selects and parameterizes the history backend.
type Config struct {
	Driver string `json:"driver" toml:"driver" mapstructure:"driver"`

	// Path is the sqlite database file, or ":memory:".
	Path string `json:"path" toml:"path" mapstructure:"path"`

	// Postgres connection settings.
	Host     string `json:"host" toml:"host" mapstructure:"host"`
	Port     int    `json:"port" toml:"port" mapstructure:"port"`
	Database string `json:"database" toml:"database" mapstructure:"database"`
	Username string `json:"username" toml:"username" mapstructure:"username"`
	Password string `json:"password" toml:"password" mapstructure:"password"`
	SSLMode  string `json:"ssl_mode" toml:"ssl_mode" mapstructure:"ssl_mode"`
}

// NewConfig returns the embedded-sqlite default.
func NewConfig() Config {
	return Config{
		Driver:  DriverSQLite,
		Path:    "feesplitd-history.db",
		Port:    5432,
		SSLMode: "prefer",
	}
}

// Validate checks the configuration for the selected driver.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite, "sqlite3":
		c.Driver = DriverSQLite
		if c.Path == "" {
			return ErrMissingPath
		}
	case DriverPostgres, "postgresql":
		c.Driver = DriverPostgres
		if c.Host == "" {
			return ErrMissingHost
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("invalid postgres port: %d", c.Port)
		}
		if c.Database == "" {
			return ErrMissingDatabase
		}
		if c.Username == "" {
			return ErrMissingUsername
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidDriver, c.Driver)
	}
	return nil
}

// DSN builds the driver-specific connection string.
func (c *Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
		User:   url.UserPassword(c.Username, c.Password),
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
