// Package targetingcache decorates a targeting.Querier with a read-through
// cache.
//
// # Cached vs Pass-through Operations
//
// QueryPartial is cached under a key built from every Condition field plus
// the page, so two calls share an entry only when all of them match. Absent
// filters are part of the key.
//
// Insert passes straight through to the base querier and never touches the
// cache. A new advertisement becomes visible to cached reads once the entries
// covering it expire, at most one TTL later.
//
// # Basic Usage
//
//	svc, _ := cache.NewService[[]ads.PartialAdvertisement](cfg, targetingcache.Weigh)
//	cached := targetingcache.New(base, svc, logger)
//
//	rows, err := cached.QueryPartial(ctx, cond, ads.Page{Limit: 10})
package targetingcache
