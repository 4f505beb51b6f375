package cache

import (
	"time"

	"github.com/goliatone/go-targeted-ads/internal/cacheinfra"
)

// Backends accepted by Config.Backend.
const (
	BackendWeighted  = cacheinfra.BackendWeighted
	BackendSturdyc   = cacheinfra.BackendSturdyc
	BackendRistretto = cacheinfra.BackendRistretto
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Backend            string              `mapstructure:"backend"`
	Capacity           int64               `mapstructure:"capacity"`
	NumShards          int                 `mapstructure:"num_shards"`
	TTL                time.Duration       `mapstructure:"ttl"`
	MaxEntryWeight     int64               `mapstructure:"max_entry_weight"`
	EvictionPercentage int                 `mapstructure:"eviction_percentage"`
	EarlyRefresh       *EarlyRefreshConfig `mapstructure:"early_refresh"`
	EvictionInterval   time.Duration       `mapstructure:"eviction_interval"`
}

// EarlyRefreshConfig mirrors the underlying sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `mapstructure:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `mapstructure:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `mapstructure:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewService constructs the configured backend. weigher assigns each value
// its cost against Capacity; nil counts every entry as 1.
func NewService[V any](cfg Config, weigher func(V) int64) (Service[V], error) {
	internal := cfg.toInternal()
	if err := internal.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendSturdyc:
		svc, err := cacheinfra.NewSturdyc[V](internal, weigher)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case BackendRistretto:
		svc, err := cacheinfra.NewRistretto[V](internal, weigher)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	svc, err := cacheinfra.NewWeighted[V](internal, weigher)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (c Config) toInternal() cacheinfra.Config {
	var early *cacheinfra.EarlyRefreshConfig
	if c.EarlyRefresh != nil {
		early = &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: c.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     c.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      c.EarlyRefresh.RetryBaseDelay,
		}
	}

	return cacheinfra.Config{
		Backend:            c.Backend,
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		MaxEntryWeight:     c.MaxEntryWeight,
		EvictionPercentage: c.EvictionPercentage,
		EarlyRefresh:       early,
		EvictionInterval:   c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	var early *EarlyRefreshConfig
	if cfg.EarlyRefresh != nil {
		early = &EarlyRefreshConfig{
			MinAsyncRefreshTime: cfg.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: cfg.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     cfg.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      cfg.EarlyRefresh.RetryBaseDelay,
		}
	}

	return Config{
		Backend:            cfg.Backend,
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		MaxEntryWeight:     cfg.MaxEntryWeight,
		EvictionPercentage: cfg.EvictionPercentage,
		EarlyRefresh:       early,
		EvictionInterval:   cfg.EvictionInterval,
	}
}
