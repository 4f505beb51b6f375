// Package config loads the service configuration from file and environment.
package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-targeted-ads/cache"
	"github.com/goliatone/go-targeted-ads/internal/database"
	"github.com/goliatone/go-targeted-ads/internal/logging"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ADS_SERVER_ADDR.
const EnvPrefix = "ADS"

// DefaultMaxLimit caps the page size a reader may request.
const DefaultMaxLimit = 100

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	MaxLimit        int           `mapstructure:"max_limit"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Validate implements validation.Validatable.
func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.MaxLimit, validation.Required, validation.Min(1)),
		validation.Field(&s.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

// Config is the root configuration document.
type Config struct {
	Server   Server          `mapstructure:"server"`
	Database database.Config `mapstructure:"database"`
	Cache    cache.Config    `mapstructure:"cache"`
	Log      logging.Config  `mapstructure:"log"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			MaxLimit:        DefaultMaxLimit,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: database.DefaultConfig(),
		Cache:    cache.DefaultConfig(),
		Log:      logging.DefaultConfig(),
	}
}

// Validate reports the first invalid section.
func (c Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return errors.Wrap(err, "server")
	}
	if err := c.Database.Validate(); err != nil {
		return errors.Wrap(err, "database")
	}
	if err := c.Cache.Validate(); err != nil {
		return errors.Wrap(err, "cache")
	}
	// A page weighs at most MaxLimit rows; heavier pages would never be cached.
	if int64(c.Server.MaxLimit) > c.Cache.MaxEntryWeight {
		return errors.Errorf("server: max_limit %d exceeds cache max_entry_weight %d",
			c.Server.MaxLimit, c.Cache.MaxEntryWeight)
	}
	return nil
}

// Load reads path, or ./adserver.{yaml,toml} when path is empty, and
// applies environment overrides. A missing default file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Replica and primary hosts keep their unprefixed names.
	_ = v.BindEnv("database.read.host", "READ_HOST", EnvPrefix+"_DATABASE_READ_HOST")
	_ = v.BindEnv("database.write.host", "WRITE_HOST", EnvPrefix+"_DATABASE_WRITE_HOST")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	} else {
		v.SetConfigName("adserver")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, errors.Wrap(err, "read config")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.max_limit", d.Server.MaxLimit)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.table", d.Database.Table)
	v.SetDefault("database.sqlite_path", d.Database.SQLitePath)
	for role, pool := range map[string]database.PoolConfig{"read": d.Database.Read, "write": d.Database.Write} {
		prefix := "database." + role + "."
		v.SetDefault(prefix+"host", pool.Host)
		v.SetDefault(prefix+"port", pool.Port)
		v.SetDefault(prefix+"user", pool.User)
		v.SetDefault(prefix+"password", pool.Password)
		v.SetDefault(prefix+"database", pool.Database)
		v.SetDefault(prefix+"sslmode", pool.SSLMode)
		v.SetDefault(prefix+"max_conns", pool.MaxConns)
		v.SetDefault(prefix+"acquire_timeout", pool.AcquireTimeout)
	}

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.capacity", d.Cache.Capacity)
	v.SetDefault("cache.num_shards", d.Cache.NumShards)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.max_entry_weight", d.Cache.MaxEntryWeight)
	v.SetDefault("cache.eviction_percentage", d.Cache.EvictionPercentage)
	v.SetDefault("cache.eviction_interval", d.Cache.EvictionInterval)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
}
