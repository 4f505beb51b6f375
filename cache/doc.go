// Package cache provides the read-through cache used in front of the
// targeting query path.
//
// # Overview
//
// Service is a keyed read-through cache with three guarantees:
//
//   - a live entry is returned without calling the fetch function
//   - concurrent misses for the same key share a single fetch, including its error
//   - failed fetches are never stored, so the next call retries
//
// Entries live for a fixed TTL. Memory is bounded by weight: every value is
// assigned a cost by a weigher and the aggregate cost never exceeds Capacity.
//
// # Basic Usage
//
//	svc, err := cache.NewService[[]ads.PartialAdvertisement](cache.DefaultConfig(),
//		func(rows []ads.PartialAdvertisement) int64 { return int64(len(rows)) })
//
//	key := cache.NewKey("ads").Field("age", cond.Age).Field("limit", page.Limit).String()
//	rows, err := svc.GetOrFetch(ctx, key, func(ctx context.Context) ([]ads.PartialAdvertisement, error) {
//		return querier.QueryPartial(ctx, cond, page)
//	})
//
// # Backends
//
// The weighted backend is a sharded LRU where every shard owns
// Capacity/NumShards of the weight budget. Values heavier than a shard are
// returned but not stored.
//
// The sturdyc backend counts entries instead of weight. Its capacity is
// Capacity/MaxEntryWeight entries, which keeps the aggregate weight within
// Capacity as long as no value is heavier than MaxEntryWeight.
//
// # Cancellation
//
// A caller whose context ends stops waiting and gets the context error. The
// shared fetch runs on a context detached from cancellation so the remaining
// waiters still receive its result.
package cache
