package cacheinfra

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

const ristrettoBufferItems = 64

// Ristretto stores entries in a ristretto cache with cost equal to weight
// and MaxCost equal to Capacity. ristretto admits through TinyLFU, so once
// full a fetched value can be served without being kept. Misses for the
// same key share one fetch.
type Ristretto[V any] struct {
	cache     *ristretto.Cache[string, V]
	weigher   Weigher[V]
	ttl       time.Duration
	maxWeight int64
	group     singleflight.Group
	stats     counters
	cap       int64
}

// NewRistretto creates a ristretto backed cache. Close releases its
// background goroutines.
func NewRistretto[V any](cfg Config, weigher Weigher[V]) (*Ristretto[V], error) {
	cfg.Backend = BackendRistretto
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if weigher == nil {
		weigher = func(V) int64 { return 1 }
	}

	r := &Ristretto[V]{
		weigher:   weigher,
		ttl:       cfg.TTL,
		maxWeight: cfg.MaxEntryWeight,
		stats:     newCounters(),
		cap:       cfg.Capacity,
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, V]{
		// ten counters per entry at the smallest weight
		NumCounters:        cfg.Capacity * 10,
		MaxCost:            cfg.Capacity,
		BufferItems:        ristrettoBufferItems,
		Metrics:            true,
		IgnoreInternalCost: true,
		// expired entries swept by ristretto are reported here too
		OnEvict: func(*ristretto.Item[V]) { r.stats.evictions.Inc() },
	})
	if err != nil {
		return nil, &ConfigError{Field: "Backend", Message: err.Error()}
	}
	r.cache = c
	return r, nil
}

// GetOrFetch returns the cached value for key or runs fetch once for all
// concurrent callers of key. A caller whose ctx ends stops waiting; the
// fetch keeps running for the others.
func (r *Ristretto[V]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := r.cache.Get(key); ok {
		r.stats.hits.Inc()
		return v, nil
	}
	r.stats.misses.Inc()

	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		if v, ok := r.cache.Get(key); ok {
			return v, nil
		}
		r.stats.loads.Inc()
		v, err := fetch(fetchCtx)
		if err != nil {
			r.stats.loadErrors.Inc()
			return nil, err
		}
		if w := max(1, r.weigher(v)); w <= r.maxWeight {
			// Wait makes the write visible before waiters return.
			if r.cache.SetWithTTL(key, v, w, r.ttl) {
				r.cache.Wait()
			}
		}
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

// Stats derives entries and weight from ristretto's admission metrics.
func (r *Ristretto[V]) Stats() Stats {
	st := r.stats.snapshot()
	if m := r.cache.Metrics; m != nil {
		st.Entries = max(0, int64(m.KeysAdded())-int64(m.KeysEvicted()))
		st.Weight = max(0, int64(m.CostAdded())-int64(m.CostEvicted()))
	}
	st.Capacity = r.cap
	return st
}

// Close stops the ristretto goroutines. The cache must not be used after.
func (r *Ristretto[V]) Close() {
	r.cache.Close()
}
