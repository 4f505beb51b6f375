package di

import (
	"context"
	"net/http"

	"github.com/goliatone/go-targeted-ads/ads"
	"github.com/goliatone/go-targeted-ads/cache"
	"github.com/goliatone/go-targeted-ads/internal/api"
	"github.com/goliatone/go-targeted-ads/internal/config"
	"github.com/goliatone/go-targeted-ads/internal/database"
	"github.com/goliatone/go-targeted-ads/internal/matrix"
	"github.com/goliatone/go-targeted-ads/internal/metrics"
	"github.com/goliatone/go-targeted-ads/internal/targeting"
	"github.com/goliatone/go-targeted-ads/targetingcache"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// Container owns the process wide singletons: the compiled statement
// matrix, the pool pair, the targeting service and the shared read cache.
// Handlers obtain everything through it.
type Container struct {
	config   config.Config
	logger   zerolog.Logger
	matrix   *matrix.Matrix
	pools    *database.Pair
	service  *targeting.Service
	cache    cache.Service[[]ads.PartialAdvertisement]
	querier  *targetingcache.CachedService
	registry *prometheus.Registry
}

// NewContainer validates cfg, compiles the matrix, opens the configured
// store and builds the cached querier. Startup fails if any statement is
// rejected by the store.
func NewContainer(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dialect, err := matrix.DialectFor(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	m, err := matrix.Build(dialect, cfg.Database.Table)
	if err != nil {
		return nil, err
	}

	var pools *database.Pair
	switch cfg.Database.Driver {
	case database.DriverSQLite:
		pools, err = database.OpenSQLite(ctx, cfg.Database, m, logger)
	default:
		pools, err = database.OpenPostgres(ctx, cfg.Database, m, logger)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}

	svc, err := cache.NewService[[]ads.PartialAdvertisement](cfg.Cache, targetingcache.Weigh)
	if err != nil {
		pools.Close()
		return nil, errors.Wrap(err, "build cache")
	}

	service := targeting.NewService(pools, m, logger)
	querier := targetingcache.New(service, svc, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.NewCollector(querier, pools),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	logger.Info().
		Str("driver", cfg.Database.Driver).
		Str("cache_backend", cfg.Cache.Backend).
		Int64("cache_capacity", cfg.Cache.Capacity).
		Dur("cache_ttl", cfg.Cache.TTL).
		Msg("container ready")

	return &Container{
		config:   cfg,
		logger:   logger,
		matrix:   m,
		pools:    pools,
		service:  service,
		cache:    svc,
		querier:  querier,
		registry: registry,
	}, nil
}

// Config returns the configuration the container was built from.
func (c *Container) Config() config.Config {
	return c.config
}

func (c *Container) Matrix() *matrix.Matrix {
	return c.matrix
}

func (c *Container) Pools() *database.Pair {
	return c.pools
}

// Service returns the uncached targeting service.
func (c *Container) Service() *targeting.Service {
	return c.service
}

// Querier returns the cached service that handlers should use.
func (c *Container) Querier() *targetingcache.CachedService {
	return c.querier
}

func (c *Container) CacheService() cache.Service[[]ads.PartialAdvertisement] {
	return c.cache
}

func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

// Handler builds the HTTP router over the cached querier.
func (c *Container) Handler() http.Handler {
	return api.NewRouter(api.Options{
		Querier:  c.querier,
		Health:   c.pools,
		Gatherer: c.registry,
		MaxLimit: c.config.Server.MaxLimit,
		Logger:   c.logger,
	})
}

// Close releases the cache and both pools.
func (c *Container) Close() {
	cache.Close(c.cache)
	c.pools.Close()
}
