package cacheinfra

import (
	"strconv"
	"time"

	"github.com/viccon/sturdyc"
)

const (
	BackendWeighted  = "weighted"
	BackendSturdyc   = "sturdyc"
	BackendRistretto = "ristretto"
)

// Config holds the configuration shared by the cache backends.
type Config struct {
	// Backend selects the implementation. Default: weighted
	Backend string

	// Capacity is the maximum aggregate weight the cache may hold.
	// Must be greater than 0.
	Capacity int64

	// NumShards determines the number of cache shards for concurrent access.
	// Each shard owns Capacity/NumShards of the weight budget. The ristretto
	// backend shards internally and ignores it.
	NumShards int

	// TTL is the fixed time-to-live for cached entries.
	TTL time.Duration

	// MaxEntryWeight is the heaviest entry the cache is expected to hold.
	// The weighted backend requires it to fit a single shard; the sturdyc
	// backend, which counts entries, derives its capacity from it.
	MaxEntryWeight int64

	// EvictionPercentage is used by the sturdyc backend only.
	EvictionPercentage int

	// EarlyRefresh configures sturdyc early refreshes. nil disables them.
	EarlyRefresh *EarlyRefreshConfig

	// EvictionInterval sets how often sturdyc sweeps expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig configures sturdyc early refresh behavior.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns a weighted cache holding up to 100k rows for one
// minute.
func DefaultConfig() Config {
	return Config{
		Backend:            BackendWeighted,
		Capacity:           100_000,
		NumShards:          64,
		TTL:                time.Minute,
		MaxEntryWeight:     100,
		EvictionPercentage: 10,
	}
}

// ShardCapacity is the weight budget of a single shard.
func (c Config) ShardCapacity() int64 {
	if c.NumShards <= 0 {
		return 0
	}
	return c.Capacity / int64(c.NumShards)
}

// EntryCapacity is the sturdyc capacity in entries.
func (c Config) EntryCapacity() int {
	if c.MaxEntryWeight <= 0 {
		return int(c.Capacity)
	}
	return int(c.Capacity / c.MaxEntryWeight)
}

// ToSturdycOptions converts the Config to sturdyc.Option slice.
// Capacity, NumShards, TTL and EvictionPercentage are passed to sturdyc.New.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendWeighted, BackendSturdyc, BackendRistretto:
	default:
		return &ConfigError{Field: "Backend", Message: "must be " + BackendWeighted + ", " + BackendSturdyc + " or " + BackendRistretto}
	}

	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	if c.MaxEntryWeight <= 0 {
		return &ConfigError{Field: "MaxEntryWeight", Message: "must be greater than 0"}
	}

	switch c.Backend {
	case BackendWeighted:
		if c.ShardCapacity() < c.MaxEntryWeight {
			return &ConfigError{
				Field:   "NumShards",
				Message: "shard capacity " + strconv.FormatInt(c.ShardCapacity(), 10) + " is below MaxEntryWeight",
			}
		}
	case BackendRistretto:
		if c.MaxEntryWeight > c.Capacity {
			return &ConfigError{Field: "MaxEntryWeight", Message: "must not exceed Capacity"}
		}
	case BackendSturdyc:
		if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
			return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
		}
		if c.EntryCapacity() < c.NumShards {
			return &ConfigError{Field: "Capacity", Message: "must hold at least one MaxEntryWeight entry per shard"}
		}
		if c.EarlyRefresh != nil {
			if c.EarlyRefresh.MinAsyncRefreshTime < 0 {
				return &ConfigError{Field: "EarlyRefresh.MinAsyncRefreshTime", Message: "must be non-negative"}
			}
			if c.EarlyRefresh.MaxAsyncRefreshTime < c.EarlyRefresh.MinAsyncRefreshTime {
				return &ConfigError{Field: "EarlyRefresh.MaxAsyncRefreshTime", Message: "must not be below MinAsyncRefreshTime"}
			}
			if c.EarlyRefresh.SyncRefreshTime < 0 {
				return &ConfigError{Field: "EarlyRefresh.SyncRefreshTime", Message: "must be non-negative"}
			}
			if c.EarlyRefresh.RetryBaseDelay < 0 {
				return &ConfigError{Field: "EarlyRefresh.RetryBaseDelay", Message: "must be non-negative"}
			}
		}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
