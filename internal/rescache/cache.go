// internal/rescache/cache.go
//
// Short-TTL host-resolution cache.
//
// Context
// -------
// Every public request needs a subdomain or custom domain turned into a
// {slug, first page} pair before the path rewrite.  The database answer
// changes rarely, so the middleware consults this process-local cache
// first and only falls through to a live query on miss or expiry.  The
// cache is not shared across serving instances; correctness depends only
// on the TTL bound, never on coherence.  There is no active invalidation
// on publish — editors verifying fresh content bypass the cache per
// request with the preview token instead.
//
// Workflow
// --------
//  1. Get checks the keyspace map; a fresh entry returns immediately.
//  2. Misses collapse through singleflight so one store query serves all
//     concurrent requests for the same key.
//  3. A background sweeper drops expired entries so the maps do not grow
//     with dead hosts.
package rescache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/canopyhq/canopy/internal/metrics"
)

// Static defaults.  Override via the cache section of the config.
const (
	DefaultTTL           = 60 * time.Second
	DefaultSweepInterval = 5 * time.Minute
)

// Resolution is the cached answer for one routing key.
type Resolution struct {
	Slug      string
	FirstPage string
	CachedAt  time.Time
}

// LookupFunc computes a Resolution on cache miss.  Implemented by the
// routing middleware over the site loader.
type LookupFunc func(ctx context.Context, key string) (Resolution, error)

// Keyspace separates the two independent maps.
type Keyspace int

const (
	KeySubdomain Keyspace = iota
	KeyCustomDomain
)

func (k Keyspace) prefix() string {
	if k == KeyCustomDomain {
		return "cd:"
	}
	return "sd:"
}

// Cache holds both keyspaces plus the singleflight group.  Construct with
// New; the zero value has no sweeper.
type Cache struct {
	ttl         time.Duration
	sfg         singleflight.Group
	subdomains  sync.Map // label → *entry
	customs     sync.Map // host  → *entry
	sweepTicker *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type entry struct {
	res Resolution
}

// New constructs a Cache and starts the background sweeper.
func New(ttl, sweepInterval time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	c := &Cache{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	c.sweepTicker = time.NewTicker(sweepInterval)
	go c.sweepLoop()
	return c
}

// Close stops the sweeper.  Cached entries remain readable.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		c.sweepTicker.Stop()
		close(c.done)
	})
}

func (c *Cache) space(k Keyspace) *sync.Map {
	if k == KeyCustomDomain {
		return &c.customs
	}
	return &c.subdomains
}

// Get returns the Resolution for key, computing and caching it on miss or
// expiry.  Get-or-compute: a stale entry is treated exactly like a miss.
func (c *Cache) Get(ctx context.Context, space Keyspace, key string, lookup LookupFunc) (Resolution, error) {
	m := c.space(space)

	if v, ok := m.Load(key); ok {
		ent := v.(*entry)
		if time.Since(ent.res.CachedAt) < c.ttl {
			metrics.ResolutionCacheHitsTotal.Inc()
			return ent.res, nil
		}
	}

	v, err, _ := c.sfg.Do(space.prefix()+key, func() (interface{}, error) {
		// Double-check after the singleflight barrier.
		if v, ok := m.Load(key); ok {
			ent := v.(*entry)
			if time.Since(ent.res.CachedAt) < c.ttl {
				return ent.res, nil
			}
		}
		metrics.ResolutionCacheMissesTotal.Inc()
		res, err := lookup(ctx, key)
		if err != nil {
			return Resolution{}, err
		}
		if res.CachedAt.IsZero() {
			res.CachedAt = time.Now()
		}
		if _, existed := m.Swap(key, &entry{res: res}); !existed {
			metrics.ResolutionCacheEntries.Inc()
		}
		return res, nil
	})
	if err != nil {
		return Resolution{}, err
	}
	return v.(Resolution), nil
}

// sweepLoop drops expired entries on each tick.  Negative-result hosts
// would otherwise pin map slots forever.
func (c *Cache) sweepLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.sweepTicker.C:
			for _, m := range []*sync.Map{&c.subdomains, &c.customs} {
				m.Range(func(key, value any) bool {
					if time.Since(value.(*entry).res.CachedAt) >= c.ttl {
						m.Delete(key)
						metrics.ResolutionCacheEntries.Dec()
					}
					return true
				})
			}
		}
	}
}
