// internal/headcache/cache.go
//
// Read-through cache of published head records.
//
// Context
// -------
// The public render path resolves a site by id (or slug pair) on every hit,
// but head rows change only when somebody publishes.  The cache keeps
// recently served published heads in a sync.Map, deduplicates concurrent
// loads through singleflight, and drops entries on idle TTL or LRU
// pressure.  A publish invalidates the affected entry explicitly, so a TTL
// miss is only a fallback.
//
// Only heads with status=published are served; drafts and archived sites
// are a cache miss by design.
package headcache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/minisite/internal/metrics"
	"github.com/yanizio/minisite/internal/site"
)

// Static defaults.  Override via the Cache constructor if desired.
const (
	IdleTTL       = 10 * time.Minute
	MaxEntries    = 1000
	evictInterval = time.Minute
)

// ErrNotPublished is returned when the site does not exist or is not
// currently live.
var ErrNotPublished = errors.New("headcache: site not published")

type entry struct {
	head     *site.Head
	lastSeen int64 // UnixNano
}

// Cache lazily loads published heads and evicts them on idle TTL or LRU
// pressure.  Zero value is unusable; construct with New.
type Cache struct {
	db         *sqlx.DB
	sfg        singleflight.Group
	m          sync.Map
	ticker     *time.Ticker
	idleTTL    time.Duration
	maxEntries int
}

// New constructs a Cache and starts the background evictor.
func New(db *sqlx.DB, idleTTL time.Duration, maxEntries int) *Cache {
	c := &Cache{
		db:         db,
		idleTTL:    idleTTL,
		maxEntries: maxEntries,
	}
	c.ticker = time.NewTicker(evictInterval)
	go c.evictLoop()
	return c
}

// Get returns the published head for siteID, loading it on demand.
func (c *Cache) Get(ctx context.Context, siteID string) (*site.Head, error) {
	if v, ok := c.m.Load(siteID); ok {
		ent := v.(*entry)
		atomic.StoreInt64(&ent.lastSeen, time.Now().UnixNano())
		return ent.head, nil
	}

	v, err, _ := c.sfg.Do(siteID, func() (interface{}, error) {
		// Double-check after singleflight barrier.
		if v, ok := c.m.Load(siteID); ok {
			ent := v.(*entry)
			atomic.StoreInt64(&ent.lastSeen, time.Now().UnixNano())
			return ent.head, nil
		}
		head, err := site.ByID(ctx, c.db, siteID)
		if err != nil {
			return nil, err
		}
		if head == nil || head.Status != site.StatusPublished {
			return nil, ErrNotPublished
		}
		c.m.Store(siteID, &entry{head: head, lastSeen: time.Now().UnixNano()})
		metrics.HeadCacheLoadTotal.Inc()
		metrics.HeadCacheEntries.Inc()
		return head, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*site.Head), nil
}

// Invalidate drops the entry for siteID.  Called after a successful publish
// so the next read sees the new live version immediately.
func (c *Cache) Invalidate(siteID string) {
	if _, ok := c.m.LoadAndDelete(siteID); ok {
		metrics.HeadCacheEntries.Dec()
	}
}

// Close stops the background evictor.
func (c *Cache) Close() { c.ticker.Stop() }

// evictLoop scans the map every evictInterval and removes entries idle
// longer than idleTTL, then trims least-recently-used entries when the map
// exceeds maxEntries.
func (c *Cache) evictLoop() {
	for range c.ticker.C {
		now := time.Now().UnixNano()
		var count int

		c.m.Range(func(key, value any) bool {
			count++
			ent := value.(*entry)
			idle := time.Duration(now - atomic.LoadInt64(&ent.lastSeen))
			if idle > c.idleTTL {
				c.m.Delete(key)
				count--
				zap.S().Debugw("head cache evict", "site", key, "idle", idle.Truncate(time.Second))
				metrics.HeadCacheEvictTotal.Inc()
				metrics.HeadCacheEntries.Dec()
			}
			return true
		})

		if c.maxEntries <= 0 || count <= c.maxEntries {
			continue
		}
		type kv struct {
			key string
			at  int64
		}
		var all []kv
		c.m.Range(func(key, value any) bool {
			ent := value.(*entry)
			all = append(all, kv{key: key.(string), at: atomic.LoadInt64(&ent.lastSeen)})
			return true
		})
		sort.Slice(all, func(i, j int) bool { return all[i].at < all[j].at })
		for i := 0; i < len(all)-c.maxEntries; i++ {
			if _, ok := c.m.LoadAndDelete(all[i].key); ok {
				zap.S().Debugw("head cache evict", "site", all[i].key, "reason", "lru")
				metrics.HeadCacheEvictTotal.Inc()
				metrics.HeadCacheEntries.Dec()
			}
		}
	}
}
