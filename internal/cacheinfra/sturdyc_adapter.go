package cacheinfra

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/viccon/sturdyc"
)

// Sturdyc wraps a sturdyc client. sturdyc bounds entries rather than
// weight, so its capacity is Capacity/MaxEntryWeight entries; the aggregate
// weight can therefore never exceed Capacity. Values heavier than
// MaxEntryWeight are served to every waiter but never stored.
type Sturdyc[V any] struct {
	client    *sturdyc.Client[V]
	weigher   Weigher[V]
	stats     counters
	cap       int64
	maxWeight int64
}

// oversized carries a fetched value that must not be cached. sturdyc does
// not store a fetch that fails, and it hands the same error to every
// coalesced caller, so the value reaches all of them.
type oversized[V any] struct {
	value  V
	weight int64
}

func (e *oversized[V]) Error() string {
	return "cacheinfra: value exceeds max entry weight"
}

// NewSturdyc creates a sturdyc backed cache. Extra options are appended
// after the ones derived from cfg.
//
// Missing record storage is never enabled: an empty result is a value,
// not a missing record, and failures must not be cached.
func NewSturdyc[V any](cfg Config, weigher Weigher[V], opts ...sturdyc.Option) (*Sturdyc[V], error) {
	cfg.Backend = BackendSturdyc
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if weigher == nil {
		weigher = func(V) int64 { return 1 }
	}

	client := sturdyc.New[V](
		cfg.EntryCapacity(),
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		append(cfg.ToSturdycOptions(), opts...)...,
	)

	return &Sturdyc[V]{
		client:  client,
		weigher: weigher,
		stats:     newCounters(),
		cap:       cfg.Capacity,
		maxWeight: cfg.MaxEntryWeight,
	}, nil
}

// GetOrFetch delegates to sturdyc, which already deduplicates in-flight
// fetches per key.
func (s *Sturdyc[V]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	var loaded atomic.Bool
	v, err := s.client.GetOrFetch(ctx, key, func(fctx context.Context) (V, error) {
		loaded.Store(true)
		s.stats.loads.Inc()
		v, err := fetch(context.WithoutCancel(fctx))
		if err != nil {
			s.stats.loadErrors.Inc()
			return v, err
		}
		if w := max(1, s.weigher(v)); s.maxWeight > 0 && w > s.maxWeight {
			var zero V
			return zero, &oversized[V]{value: v, weight: w}
		}
		return v, nil
	})

	var big *oversized[V]
	if errors.As(err, &big) {
		v, err = big.value, nil
	}
	if loaded.Load() {
		s.stats.misses.Inc()
	} else if err == nil {
		s.stats.hits.Inc()
	}
	return v, err
}

// Stats reports counters, stored entries and their weight. Computing the
// weight walks every key, so it is meant for metric scrapes.
func (s *Sturdyc[V]) Stats() Stats {
	st := s.stats.snapshot()
	for _, key := range s.client.ScanKeys() {
		if v, ok := s.client.Get(key); ok {
			st.Entries++
			st.Weight += max(1, s.weigher(v))
		}
	}
	st.Capacity = s.cap
	return st
}
