// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package dedup

import (
	"sync"
	"time"
)

// cacheEntry is a node in the doubly-linked recency list.
type cacheEntry struct {
	key        string
	exists     bool
	recordedAt time.Time
	expiresAt  time.Time
	prev       *cacheEntry
	next       *cacheEntry
}

// Cache holds fingerprint verdicts keyed by "hypertable:fingerprint".
// Entries expire after a TTL and the least recently used entry is
// evicted when the cache is full. All methods are safe for concurrent
// use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*cacheEntry
	head     *cacheEntry // sentinel, head.next is most recent
	tail     *cacheEntry // sentinel, tail.prev is least recent

	hits      int64
	misses    int64
	evictions int64
}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Entries   int     `json:"entries"`
	Capacity  int     `json:"capacity"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// NewCache creates a verdict cache with the given capacity and entry
// TTL.
func NewCache(capacity int, ttl time.Duration) *Cache {
	head := &cacheEntry{}
	tail := &cacheEntry{}
	head.next = tail
	tail.prev = head

	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*cacheEntry, capacity),
		head:     head,
		tail:     tail,
	}
}

func cacheKey(hypertable, fingerprint string) string {
	return hypertable + ":" + fingerprint
}

// Get returns the cached verdict for a fingerprint. The second return
// is false on a miss or when the entry has outlived the TTL; expired
// entries are removed on the way out.
func (c *Cache) Get(hypertable, fingerprint string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[cacheKey(hypertable, fingerprint)]
	if !ok {
		c.misses++
		return false, false
	}

	if time.Now().After(entry.expiresAt) {
		c.removeEntry(entry)
		c.evictions++
		c.misses++
		return false, false
	}

	c.moveToFront(entry)
	c.hits++
	return entry.exists, true
}

// Put records a verdict, replacing any existing entry and refreshing
// its TTL. When the cache is over capacity the least recently used
// entries are evicted.
func (c *Cache) Put(hypertable, fingerprint string, exists bool) {
	now := time.Now()
	key := cacheKey(hypertable, fingerprint)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		entry.exists = exists
		entry.recordedAt = now
		entry.expiresAt = now.Add(c.ttl)
		c.moveToFront(entry)
		return
	}

	entry := &cacheEntry{
		key:        key,
		exists:     exists,
		recordedAt: now,
		expiresAt:  now.Add(c.ttl),
	}
	c.items[key] = entry
	c.addToFront(entry)

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear drops every entry. Counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*cacheEntry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// CleanupExpired removes every entry past its TTL and returns how many
// were dropped.
func (c *Cache) CleanupExpired() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for entry := c.tail.prev; entry != c.head; {
		prev := entry.prev
		if now.After(entry.expiresAt) {
			c.removeEntry(entry)
			c.evictions++
			removed++
		}
		entry = prev
	}
	return removed
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return CacheStats{
		Entries:   len(c.items),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRate:   hitRate,
	}
}

// addToFront inserts the entry right after the head sentinel.
// Caller must hold mu.
func (c *Cache) addToFront(entry *cacheEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

// moveToFront relinks an existing entry to the most-recent position.
// Caller must hold mu.
func (c *Cache) moveToFront(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

// removeEntry unlinks the entry and deletes it from the index.
// Caller must hold mu.
func (c *Cache) removeEntry(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

// evictOldest drops the entry before the tail sentinel.
// Caller must hold mu.
func (c *Cache) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
	c.evictions++
}
