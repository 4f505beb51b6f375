package targetingcache

import (
	"context"

	"github.com/goliatone/go-targeted-ads/ads"
	"github.com/goliatone/go-targeted-ads/cache"
	"github.com/goliatone/go-targeted-ads/internal/targeting"
	"github.com/rs/zerolog"
)

// keyNamespace prefixes every query key.
const keyNamespace = "targeting.query_partial"

var _ targeting.Querier = (*CachedService)(nil)

// CachedService decorates a base querier with caching functionality.
type CachedService struct {
	base   targeting.Querier
	cache  cache.Service[[]ads.PartialAdvertisement]
	logger zerolog.Logger
}

// New creates a CachedService that wraps base.
func New(base targeting.Querier, svc cache.Service[[]ads.PartialAdvertisement], logger zerolog.Logger) *CachedService {
	return &CachedService{
		base:   base,
		cache:  svc,
		logger: logger.With().Str("component", "targeting_cache").Logger(),
	}
}

// Weigh charges a cached result one unit per row.
func Weigh(rows []ads.PartialAdvertisement) int64 {
	return int64(len(rows))
}

// Key renders the cache key of a read.
func Key(cond ads.Condition, page ads.Page) string {
	return cache.NewKey(keyNamespace).
		Field("country", codeOf(cond.Country)).
		Field("platform", codeOf(cond.Platform)).
		Field("age", cond.Age).
		Field("gender", codeOf(cond.Gender)).
		Field("limit", page.Limit).
		Field("offset", page.Offset).
		String()
}

func codeOf[E interface{ Code() int16 }](v *E) *int16 {
	if v == nil {
		return nil
	}
	code := (*v).Code()
	return &code
}

// QueryPartial serves the read from cache, querying the base on a miss. An
// empty page is answered directly and never cached.
func (c *CachedService) QueryPartial(ctx context.Context, cond ads.Condition, page ads.Page) ([]ads.PartialAdvertisement, error) {
	if page.Empty() {
		return []ads.PartialAdvertisement{}, nil
	}

	key := Key(cond, page)
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) ([]ads.PartialAdvertisement, error) {
		c.logger.Debug().Str("key", key).Msg("cache miss")
		return c.base.QueryPartial(ctx, cond, page)
	})
}

// Insert passes through to the base querier. Cached reads are not
// invalidated.
func (c *CachedService) Insert(ctx context.Context, ad ads.Advertisement) error {
	return c.base.Insert(ctx, ad)
}

// Stats exposes the underlying cache counters.
func (c *CachedService) Stats() cache.Stats {
	return c.cache.Stats()
}
