// Package cache provides a thread-safe LRU cache for compiled JMESPath expressions.
//
// The cache sits in front of the parser: it maps raw expression text to the
// parsed and projected Expression so the same query string is parsed once no
// matter how many documents it is applied to. A hit is indistinguishable from
// a fresh compile because compiled expressions are immutable.
//
// # Example
//
//	c := cache.New(1024)
//	expr, err := c.GetOrCompile("people[?age > `20`].name", func() (*types.Expression, error) {
//	    return parser.Compile("people[?age > `20`].name")
//	})
package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/sandrolain/gojmespath/pkg/types"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 256

// entry is a cache entry stored in the doubly-linked list.
type entry struct {
	key  string
	expr *types.Expression
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Purges    uint64
	Len       int
	Capacity  int
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger receiving eviction and purge debug records.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// Cache is a thread-safe LRU (Least Recently Used) cache for compiled expressions.
// Once the capacity is reached, the least recently accessed entry is evicted.
//
// Safe for concurrent use by multiple goroutines.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element

	group  singleflight.Group
	logger *slog.Logger

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	purges    atomic.Uint64
}

// New creates a new LRU cache with the given capacity.
// capacity must be > 0; if <= 0, DefaultCapacity is used.
func New(capacity int, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Get retrieves a compiled expression from the cache.
// Returns (expr, true) if found and moves the entry to front (MRU).
// Returns (nil, false) if not present.
func (c *Cache) Get(key string) (*types.Expression, bool) {
	c.mu.RLock()
	el, ok := c.items[key]
	// Already most recent: no need for the write lock.
	alreadyFront := ok && c.ll.Front() == el
	var expr *types.Expression
	if ok {
		expr = el.Value.(*entry).expr
	}
	c.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if !alreadyFront {
		// Promote to front under write lock; re-check in case of concurrent eviction.
		c.mu.Lock()
		if el, ok = c.items[key]; ok {
			c.ll.MoveToFront(el)
			expr = el.Value.(*entry).expr
		}
		c.mu.Unlock()

		if !ok {
			c.misses.Add(1)
			return nil, false
		}
	}
	c.hits.Add(1)
	return expr, true
}

// Set inserts or replaces an expression in the cache.
// If at capacity, the least recently used entry is evicted first.
func (c *Cache) Set(key string, expr *types.Expression) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).expr = expr
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.capacity {
		c.evictLocked()
	}

	el := c.ll.PushFront(&entry{key: key, expr: expr})
	c.items[key] = el
}

// GetOrCompile retrieves the expression for key from cache, or calls compile()
// to create it, caches the result, and returns it.
//
// Concurrent callers missing on the same key share a single compile call.
// Errors are returned to every waiting caller and never cached.
func (c *Cache) GetOrCompile(key string, compile func() (*types.Expression, error)) (*types.Expression, error) {
	if expr, ok := c.Get(key); ok {
		return expr, nil
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		expr, err := compile()
		if err != nil {
			return nil, err
		}
		c.Set(key, expr)
		return expr, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Expression), nil
}

// Len returns the number of entries currently in the cache.
func (c *Cache) Len() int {
	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	return n
}

// Capacity returns the maximum number of entries the cache can hold.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Invalidate removes a single entry from the cache.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

// Purge removes all entries from the cache. It is safe to call while other
// goroutines are reading; a lookup racing with Purge either sees the entry
// or misses.
func (c *Cache) Purge() {
	c.mu.Lock()
	n := len(c.items)
	c.ll.Init()
	c.items = make(map[string]*list.Element, c.capacity)
	c.mu.Unlock()

	c.purges.Add(1)
	c.logger.Debug("expression cache purged", "entries", n)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Purges:    c.purges.Load(),
		Len:       c.Len(),
		Capacity:  c.capacity,
	}
}

// evictLocked removes the least recently used entry.
// Must be called with c.mu held for writing.
func (c *Cache) evictLocked() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.ll.Remove(el)
	key := el.Value.(*entry).key
	delete(c.items, key)
	c.evictions.Add(1)
	c.logger.Debug("expression evicted from cache", "expression", key, "capacity", c.capacity)
}
