package cacheinfra

import "github.com/puzpuzpuz/xsync/v3"

// Stats is a point in time snapshot of cache activity.
type Stats struct {
	Hits        int64
	Misses      int64
	Loads       int64
	LoadErrors  int64
	Evictions   int64
	Expirations int64
	Entries     int64
	Weight      int64
	Capacity    int64
}

// counters are updated from many goroutines without a shared lock.
type counters struct {
	hits        *xsync.Counter
	misses      *xsync.Counter
	loads       *xsync.Counter
	loadErrors  *xsync.Counter
	evictions   *xsync.Counter
	expirations *xsync.Counter
}

func newCounters() counters {
	return counters{
		hits:        xsync.NewCounter(),
		misses:      xsync.NewCounter(),
		loads:       xsync.NewCounter(),
		loadErrors:  xsync.NewCounter(),
		evictions:   xsync.NewCounter(),
		expirations: xsync.NewCounter(),
	}
}

func (c counters) snapshot() Stats {
	return Stats{
		Hits:        c.hits.Value(),
		Misses:      c.misses.Value(),
		Loads:       c.loads.Value(),
		LoadErrors:  c.loadErrors.Value(),
		Evictions:   c.evictions.Value(),
		Expirations: c.expirations.Value(),
	}
}
