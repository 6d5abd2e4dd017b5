package mapbox

import (
	"context"
	"sync"

	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/observability"
)

// CachedTiles wraps a TileFetcher with an in-memory LRU cache bounded by
// entry count and total bytes. Entries are keyed per access key, so a tile
// cached for one site is never served under another site's key. Tiles are
// immutable per key and style/z/x/y; only successful fetches are cached.
type CachedTiles struct {
	inner   domain.TileFetcher
	cache   *lruCache[domain.Tile]
	metrics *observability.Metrics
}

// NewCachedTiles creates a cache decorator around a tile fetcher.
func NewCachedTiles(inner domain.TileFetcher, maxEntries, maxBytes int, metrics *observability.Metrics) *CachedTiles {
	return &CachedTiles{
		inner:   inner,
		cache:   newLRUCache(maxEntries, maxBytes, func(t domain.Tile) int { return len(t.Data) }),
		metrics: metrics,
	}
}

func (c *CachedTiles) FetchTile(ctx context.Context, accessKey string, req domain.TileRequest) (domain.Tile, error) {
	key := TileKey(accessKey, req)
	if tile, ok := c.cache.get(key); ok {
		c.metrics.TileCache.WithLabelValues("hit").Inc()
		return tile, nil
	}
	c.metrics.TileCache.WithLabelValues("miss").Inc()

	tile, err := c.inner.FetchTile(ctx, accessKey, req)
	if err != nil {
		return tile, err
	}
	c.cache.put(key, tile)
	return tile, nil
}

// lruCache is a thread-safe LRU cache. A nil cost makes it count-bounded
// only; otherwise values are evicted until the summed cost fits maxCost.
// A value costing more than maxCost is not stored.
type lruCache[V any] struct {
	maxEntries int
	maxCost    int
	cost       func(V) int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	total      int
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	cost  int
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries, maxCost int, cost func(V) int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		maxCost:    maxCost,
		cost:       cost,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	if c.cost != nil {
		n = c.cost(value)
		if n > c.maxCost {
			return
		}
	}

	if e, ok := c.entries[key]; ok {
		c.total += n - e.cost
		e.value, e.cost = value, n
		c.moveToFront(e)
	} else {
		e := &entry[V]{key: key, value: value, cost: n}
		c.entries[key] = e
		c.total += n
		c.addToFront(e)
	}

	for len(c.entries) > c.maxEntries || (c.cost != nil && c.total > c.maxCost) {
		c.evictTail()
	}
}

func (c *lruCache[V]) bytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *lruCache[V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	c.total -= c.tail.cost
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
