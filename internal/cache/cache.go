// Package cache provides a bounded in-memory response cache with per-entry
// TTL and least-recently-used eviction. It sits in front of the upstream API
// client so identical requests inside a short window are answered locally.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// sweepInterval bounds how often Get performs a passive scan for expired
// entries. Expired entries hit by Get directly are removed eagerly regardless.
const sweepInterval = time.Minute

// entry is the stored record for one fingerprint.
type entry struct {
	key       string
	value     interface{}
	createdAt time.Time
	expiresAt time.Time
	hitCount  int
}

// Stats is a point-in-time snapshot of cache counters. Counters accumulate
// for the lifetime of the cache; Clear empties entries but not counters.
type Stats struct {
	Hits           uint64
	Misses         uint64
	Evictions      uint64
	ExpiredEntries uint64
	Size           int
	Capacity       int
	HitRatePercent float64
}

// Cache is a TTL + LRU response cache. Safe for concurrent use.
//
// Recency: both Get and Put count as an access and move the entry to the
// most-recently-used position. When a brand-new key is inserted at capacity,
// the least-recently-accessed entry is evicted; insertion order breaks ties
// by construction of the recency list.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = least recently used
	capacity   int
	defaultTTL time.Duration

	hits      uint64
	misses    uint64
	evictions uint64
	expired   uint64

	lastSweep time.Time
	now       func() time.Time
}

// New creates a cache holding at most capacity entries, each living for
// defaultTTL unless Put overrides it. Non-positive arguments fall back to
// a 500-entry, 5-minute cache.
func New(capacity int, defaultTTL time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 500
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &Cache{
		entries:    make(map[string]*list.Element, capacity),
		order:      list.New(),
		capacity:   capacity,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the cached value for fingerprint, or (nil, false) when absent
// or expired. An expired entry is removed eagerly and counted as a miss.
func (c *Cache) Get(fingerprint string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.maybeSweep(now)

	elem, ok := c.entries[fingerprint]
	if !ok {
		c.misses++
		return nil, false
	}

	ent := elem.Value.(*entry)
	if !now.Before(ent.expiresAt) {
		c.removeElement(elem)
		c.expired++
		c.misses++
		return nil, false
	}

	c.order.MoveToBack(elem)
	ent.hitCount++
	c.hits++
	return ent.value, true
}

// Put inserts or overwrites the value for fingerprint. A non-positive ttl
// selects the cache default. Inserting a new key at capacity evicts the
// least-recently-used entry first, so the size bound holds unconditionally.
func (c *Cache) Put(fingerprint string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if elem, ok := c.entries[fingerprint]; ok {
		ent := elem.Value.(*entry)
		ent.value = value
		ent.createdAt = now
		ent.expiresAt = now.Add(ttl)
		c.order.MoveToBack(elem)
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictLRU()
	}

	elem := c.order.PushBack(&entry{
		key:       fingerprint,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	})
	c.entries[fingerprint] = elem
}

// Clear removes all entries. Counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}
	return Stats{
		Hits:           c.hits,
		Misses:         c.misses,
		Evictions:      c.evictions,
		ExpiredEntries: c.expired,
		Size:           len(c.entries),
		Capacity:       c.capacity,
		HitRatePercent: hitRate,
	}
}

// evictLRU removes the least-recently-used entry. Caller holds the lock.
func (c *Cache) evictLRU() {
	front := c.order.Front()
	if front == nil {
		return
	}
	c.removeElement(front)
	c.evictions++
}

// maybeSweep removes all expired entries at most once per sweepInterval.
// Caller holds the lock.
func (c *Cache) maybeSweep(now time.Time) {
	if now.Sub(c.lastSweep) < sweepInterval {
		return
	}
	c.lastSweep = now

	var next *list.Element
	for elem := c.order.Front(); elem != nil; elem = next {
		next = elem.Next()
		if !now.Before(elem.Value.(*entry).expiresAt) {
			c.removeElement(elem)
			c.expired++
		}
	}
}

// removeElement drops an entry from both the map and the recency list.
// Caller holds the lock.
func (c *Cache) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry)
	delete(c.entries, ent.key)
	c.order.Remove(elem)
}
