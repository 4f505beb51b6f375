package cache

import (
	"context"

	"github.com/goliatone/go-targeted-ads/internal/cacheinfra"
)

// FetchFn is the function signature Service expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Stats is a snapshot of cache activity.
type Stats = cacheinfra.Stats

// Service exposes the read-through operation used to decorate the query path.
// Implementations guarantee at most one in-flight fetch per key and never
// store a failed fetch.
type Service[V any] interface {
	GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (V, error)) (V, error)
	Stats() Stats
}

// Close releases background resources held by svc, if it owns any.
func Close[V any](svc Service[V]) {
	if c, ok := svc.(interface{ Close() }); ok {
		c.Close()
	}
}

// GetOrFetch is a convenience wrapper accepting a named FetchFn.
func GetOrFetch[T any](ctx context.Context, service Service[T], key string, fetchFn FetchFn[T]) (T, error) {
	return service.GetOrFetch(ctx, key, fetchFn)
}
