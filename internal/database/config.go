package database

import (
	"net"
	"net/url"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DefaultMaxConns       = 15
	DefaultAcquireTimeout = 5 * time.Second
)

// PoolConfig configures one side of the pair.
type PoolConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Database       string        `mapstructure:"database"`
	SSLMode        string        `mapstructure:"sslmode"`
	MaxConns       int           `mapstructure:"max_conns"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
}

// DefaultPoolConfig returns a local PostgreSQL pool of DefaultMaxConns.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Host:           "localhost",
		Port:           5432,
		User:           "postgres",
		Database:       "postgres",
		SSLMode:        "disable",
		MaxConns:       DefaultMaxConns,
		AcquireTimeout: DefaultAcquireTimeout,
	}
}

// Validate implements validation.Validatable.
func (c PoolConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.User, validation.Required),
		validation.Field(&c.Database, validation.Required),
		validation.Field(&c.SSLMode, validation.In("", "disable", "allow", "prefer", "require", "verify-ca", "verify-full")),
		validation.Field(&c.MaxConns, validation.Required, validation.Min(1)),
		validation.Field(&c.AcquireTimeout, validation.Min(time.Duration(0))),
	)
}

// DSN renders a postgres URL.
func (c PoolConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{c.SSLMode}}.Encode()
	}
	return u.String()
}

// Config selects the backend and configures both pools.
type Config struct {
	Driver     string     `mapstructure:"driver"`
	Table      string     `mapstructure:"table"`
	SQLitePath string     `mapstructure:"sqlite_path"`
	Read       PoolConfig `mapstructure:"read"`
	Write      PoolConfig `mapstructure:"write"`
}

// DefaultConfig returns a PostgreSQL configuration with both pools on localhost.
func DefaultConfig() Config {
	return Config{
		Driver:     DriverPostgres,
		Table:      "advertisement",
		SQLitePath: "data/ads.db",
		Read:       DefaultPoolConfig(),
		Write:      DefaultPoolConfig(),
	}
}

// Validate implements validation.Validatable. Pool settings are only
// checked for the postgres driver.
func (c Config) Validate() error {
	pg := c.Driver == DriverPostgres
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverPostgres, DriverSQLite)),
		validation.Field(&c.Table, validation.Required),
		validation.Field(&c.SQLitePath, validation.When(c.Driver == DriverSQLite, validation.Required)),
		validation.Field(&c.Read, validation.Skip.When(!pg)),
		validation.Field(&c.Write, validation.Skip.When(!pg)),
	)
}
