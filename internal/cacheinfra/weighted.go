package cacheinfra

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// Weigher returns the cost of a value against the cache capacity.
type Weigher[V any] func(V) int64

// Clock abstracts time for expiry checks.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type weightedEntry[V any] struct {
	key       string
	value     V
	weight    int64
	expiresAt time.Time
}

type weightedShard[V any] struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	lru      *list.List
	weight   int64
	capacity int64
}

// Weighted is a sharded LRU bounded by aggregate weight. Misses for the same
// key are collapsed into a single fetch shared by every waiter.
type Weighted[V any] struct {
	shards  []*weightedShard[V]
	weigher Weigher[V]
	ttl     time.Duration
	clock   Clock
	group   singleflight.Group
	stats   counters
	cap     int64
}

// WeightedOption customises a Weighted cache.
type WeightedOption[V any] func(*Weighted[V])

// WithClock replaces the wall clock used for expiry.
func WithClock[V any](c Clock) WeightedOption[V] {
	return func(w *Weighted[V]) { w.clock = c }
}

// NewWeighted creates a weighted cache. A nil weigher counts every entry as 1.
func NewWeighted[V any](cfg Config, weigher Weigher[V], opts ...WeightedOption[V]) (*Weighted[V], error) {
	cfg.Backend = BackendWeighted
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if weigher == nil {
		weigher = func(V) int64 { return 1 }
	}

	w := &Weighted[V]{
		shards:  make([]*weightedShard[V], cfg.NumShards),
		weigher: weigher,
		ttl:     cfg.TTL,
		clock:   systemClock{},
		stats:   newCounters(),
		cap:     cfg.ShardCapacity() * int64(cfg.NumShards),
	}
	for i := range w.shards {
		w.shards[i] = &weightedShard[V]{
			items:    make(map[string]*list.Element),
			lru:      list.New(),
			capacity: cfg.ShardCapacity(),
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Weighted[V]) shardFor(key string) *weightedShard[V] {
	return w.shards[xxhash.Sum64String(key)%uint64(len(w.shards))]
}

// GetOrFetch returns the live entry for key or runs fetch once for all
// concurrent callers of key. Errors are shared with the waiters and never
// stored. A caller whose ctx ends stops waiting; the fetch keeps running for
// the others.
func (w *Weighted[V]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := w.get(key); ok {
		w.stats.hits.Inc()
		return v, nil
	}
	w.stats.misses.Inc()

	fetchCtx := context.WithoutCancel(ctx)
	ch := w.group.DoChan(key, func() (any, error) {
		if v, ok := w.get(key); ok {
			return v, nil
		}
		w.stats.loads.Inc()
		v, err := fetch(fetchCtx)
		if err != nil {
			w.stats.loadErrors.Inc()
			return nil, err
		}
		w.set(key, v)
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

func (w *Weighted[V]) get(key string) (V, bool) {
	s := w.shardFor(key)
	now := w.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	el, ok := s.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*weightedEntry[V])
	if !now.Before(e.expiresAt) {
		s.remove(el)
		w.stats.expirations.Inc()
		return zero, false
	}
	s.lru.MoveToFront(el)
	return e.value, true
}

func (w *Weighted[V]) set(key string, v V) {
	weight := w.weigher(v)
	if weight < 1 {
		weight = 1
	}
	s := w.shardFor(key)
	if weight > s.capacity {
		return
	}
	expiresAt := w.clock.Now().Add(w.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		s.remove(el)
	}
	for s.weight+weight > s.capacity {
		oldest := s.lru.Back()
		if oldest == nil {
			break
		}
		s.remove(oldest)
		w.stats.evictions.Inc()
	}
	s.items[key] = s.lru.PushFront(&weightedEntry[V]{
		key:       key,
		value:     v,
		weight:    weight,
		expiresAt: expiresAt,
	})
	s.weight += weight
}

func (s *weightedShard[V]) remove(el *list.Element) {
	e := s.lru.Remove(el).(*weightedEntry[V])
	delete(s.items, e.key)
	s.weight -= e.weight
}

// Stats returns counters together with the current entry count and weight.
func (w *Weighted[V]) Stats() Stats {
	st := w.stats.snapshot()
	for _, s := range w.shards {
		s.mu.Lock()
		st.Entries += int64(len(s.items))
		st.Weight += s.weight
		s.mu.Unlock()
	}
	st.Capacity = w.cap
	return st
}
