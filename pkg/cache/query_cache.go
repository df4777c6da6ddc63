// Package cache caches compiled algebraic expressions keyed by their
// source pattern text, so a repeated MATCH pattern skips path-to-expression
// compilation (pkg/cypher.Compile, pkg/algebra) entirely. LRU eviction
// bounds memory; TTL expiration drops entries once the underlying
// label/relation matrices are likely to have changed shape.
package cache

import (
	"container/list"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

// PlanCache is a thread-safe LRU+TTL cache keyed by a pattern's fnv64a hash,
// generic over the compiled value it stores — in this module's case
// *cypher.Compiled, instantiated as cache.NewPlanCache[*cypher.Compiled]
// by pkg/server so a second "MATCH (a)-[:KNOWS]->(b) RETURN a,b" skips
// cypher.Compile (path parse + algebra.Build + traversal-operator wiring)
// and returns the same *cypher.Compiled the first compile produced.
type PlanCache[V any] struct {
	mu sync.RWMutex

	maxSize int
	ttl     time.Duration
	enabled bool

	list  *list.List
	items map[uint64]*list.Element

	hits   uint64
	misses uint64
}

// entry holds one cached value with its expiration deadline.
type entry[V any] struct {
	key       uint64
	value     V
	expiresAt time.Time
}

// NewPlanCache creates a cache holding at most maxSize entries, each valid
// for ttl (0 disables expiration — only LRU eviction bounds the cache).
func NewPlanCache[V any](maxSize int, ttl time.Duration) *PlanCache[V] {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &PlanCache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		enabled: true,
		list:    list.New(),
		items:   make(map[uint64]*list.Element, maxSize),
	}
}

// Key hashes pattern together with the names of any bound parameters —
// parameter values are deliberately excluded so "MATCH (n {id: $id})"
// compiles once and serves every $id, since compilation only depends on
// the pattern shape, never the bound values.
func (c *PlanCache[V]) Key(pattern string, params map[string]interface{}) uint64 {
	h := fnv.New64a()
	h.Write([]byte(pattern))
	for k := range params {
		h.Write([]byte(k))
	}
	return h.Sum64()
}

// Get returns the cached value for key if present and unexpired, moving it
// to the front of the LRU list on a hit.
func (c *PlanCache[V]) Get(key uint64) (V, bool) {
	var zero V
	if !c.enabled {
		atomic.AddUint64(&c.misses, 1)
		return zero, false
	}

	c.mu.RLock()
	elem, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return zero, false
	}

	e := elem.Value.(*entry[V])

	if c.ttl > 0 && time.Now().After(e.expiresAt) {
		c.mu.Lock()
		c.removeElement(elem)
		c.mu.Unlock()
		atomic.AddUint64(&c.misses, 1)
		return zero, false
	}

	c.mu.Lock()
	c.list.MoveToFront(elem)
	c.mu.Unlock()

	atomic.AddUint64(&c.hits, 1)
	return e.value, true
}

// Put stores value under key, evicting the least recently used entry first
// if the cache is already at capacity.
func (c *PlanCache[V]) Put(key uint64, value V) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		if c.ttl > 0 {
			e.expiresAt = time.Now().Add(c.ttl)
		}
		c.list.MoveToFront(elem)
		return
	}

	for c.list.Len() >= c.maxSize {
		c.evictOldest()
	}

	e := &entry[V]{key: key, value: value}
	if c.ttl > 0 {
		e.expiresAt = time.Now().Add(c.ttl)
	}

	elem := c.list.PushFront(e)
	c.items[key] = elem
}

// Remove drops key from the cache, if present.
func (c *PlanCache[V]) Remove(key uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear empties the cache, e.g. after a schema change invalidates every
// compiled plan (a new label or relation type changes matrix dimensions
// that compiled CondTraverse/ExpandInto operators captured by reference).
func (c *PlanCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list.Init()
	c.items = make(map[uint64]*list.Element, c.maxSize)
}

// Len returns the number of entries currently cached.
func (c *PlanCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.Len()
}

// Stats reports cache hit/miss counters for the admin/status surface
// (pkg/server's /admin/stats).
func (c *PlanCache[V]) Stats() Stats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	c.mu.RLock()
	size := c.list.Len()
	c.mu.RUnlock()

	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Size:    size,
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

// Stats holds point-in-time cache performance counters.
type Stats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// SetEnabled toggles the cache on or off. Disabling clears all entries;
// re-enabling starts from empty.
func (c *PlanCache[V]) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.list.Init()
		c.items = make(map[uint64]*list.Element, c.maxSize)
	}
}

// evictOldest removes the least recently used entry. Caller must hold mu.
func (c *PlanCache[V]) evictOldest() {
	if elem := c.list.Back(); elem != nil {
		c.removeElement(elem)
	}
}

// removeElement unlinks elem from both the list and the key index. Caller
// must hold mu.
func (c *PlanCache[V]) removeElement(elem *list.Element) {
	c.list.Remove(elem)
	e := elem.Value.(*entry[V])
	delete(c.items, e.key)
}
