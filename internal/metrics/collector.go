// Package metrics exports cache and connection pool state to Prometheus.
package metrics

import (
	"github.com/goliatone/go-targeted-ads/cache"
	"github.com/goliatone/go-targeted-ads/internal/database"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adserver"

// CacheSource reports cache counters.
type CacheSource interface {
	Stats() cache.Stats
}

// PoolSource reports pool snapshots, one per role.
type PoolSource interface {
	Stats() []database.PoolStats
}

// Collector reads its sources on every scrape.
type Collector struct {
	cache CacheSource
	pools PoolSource

	cacheHits        *prometheus.Desc
	cacheMisses      *prometheus.Desc
	cacheLoads       *prometheus.Desc
	cacheLoadErrors  *prometheus.Desc
	cacheEvictions   *prometheus.Desc
	cacheExpirations *prometheus.Desc
	cacheEntries     *prometheus.Desc
	cacheWeight      *prometheus.Desc
	cacheCapacity    *prometheus.Desc

	poolAcquired *prometheus.Desc
	poolIdle     *prometheus.Desc
	poolTotal    *prometheus.Desc
	poolMax      *prometheus.Desc
}

// NewCollector creates a collector. Either source may be nil.
func NewCollector(c CacheSource, p PoolSource) *Collector {
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
	}
	return &Collector{
		cache: c,
		pools: p,

		cacheHits:        desc("cache", "hits_total", "Reads served from a live cache entry"),
		cacheMisses:      desc("cache", "misses_total", "Reads that found no live entry"),
		cacheLoads:       desc("cache", "loads_total", "Fetches executed against the store"),
		cacheLoadErrors:  desc("cache", "load_errors_total", "Fetches that failed"),
		cacheEvictions:   desc("cache", "evictions_total", "Entries evicted to respect capacity"),
		cacheExpirations: desc("cache", "expirations_total", "Entries dropped after their TTL"),
		cacheEntries:     desc("cache", "entries", "Entries currently stored"),
		cacheWeight:      desc("cache", "weight", "Aggregate weight of stored entries"),
		cacheCapacity:    desc("cache", "capacity", "Maximum aggregate weight"),

		poolAcquired: desc("pool", "acquired_connections", "Connections currently held", "role"),
		poolIdle:     desc("pool", "idle_connections", "Idle connections", "role"),
		poolTotal:    desc("pool", "total_connections", "Open connections", "role"),
		poolMax:      desc("pool", "max_connections", "Configured pool size", "role"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.cacheHits, c.cacheMisses, c.cacheLoads, c.cacheLoadErrors, c.cacheEvictions,
		c.cacheExpirations, c.cacheEntries, c.cacheWeight, c.cacheCapacity,
		c.poolAcquired, c.poolIdle, c.poolTotal, c.poolMax,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.cache != nil {
		st := c.cache.Stats()
		counter := func(d *prometheus.Desc, v int64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
		}
		gauge := func(d *prometheus.Desc, v int64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
		}
		counter(c.cacheHits, st.Hits)
		counter(c.cacheMisses, st.Misses)
		counter(c.cacheLoads, st.Loads)
		counter(c.cacheLoadErrors, st.LoadErrors)
		counter(c.cacheEvictions, st.Evictions)
		counter(c.cacheExpirations, st.Expirations)
		gauge(c.cacheEntries, st.Entries)
		gauge(c.cacheWeight, st.Weight)
		gauge(c.cacheCapacity, st.Capacity)
	}

	if c.pools != nil {
		for _, ps := range c.pools.Stats() {
			role := string(ps.Role)
			ch <- prometheus.MustNewConstMetric(c.poolAcquired, prometheus.GaugeValue, float64(ps.Acquired), role)
			ch <- prometheus.MustNewConstMetric(c.poolIdle, prometheus.GaugeValue, float64(ps.Idle), role)
			ch <- prometheus.MustNewConstMetric(c.poolTotal, prometheus.GaugeValue, float64(ps.Total), role)
			ch <- prometheus.MustNewConstMetric(c.poolMax, prometheus.GaugeValue, float64(ps.Max), role)
		}
	}
}
