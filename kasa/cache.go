// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package kasa

import (
	"sync"
	"time"
)

// Request identifies one device command for caching purposes. Equality is
// defined by namespace and command only: the command argument is NOT part
// of the key. Two calls with the same command but different arguments
// collide in the cache, which is why every mutating command must
// invalidate its namespace before executing (see CachePolicy).
type Request struct {
	Namespace string
	Command   string
}

type cacheEntry struct {
	insertedAt time.Time
	value      any
}

// ResponseCache bounds the frequency of identical device polls. Entries
// are valid while their age is below the TTL; reading an expired entry
// evicts it and counts as a miss. Hit/miss counters are monotonic for the
// life of the cache and are not reset by eviction.
//
// A cache belongs to exactly one Transport. The mutex makes the counters
// and the store safe if a caller nevertheless shares a handle.
type ResponseCache struct {
	mu     sync.Mutex
	store  map[Request]cacheEntry
	ttl    time.Duration
	hits   uint64
	misses uint64
}

// NewResponseCache creates a cache with the given TTL.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		store: make(map[Request]cacheEntry),
		ttl:   ttl,
	}
}

// Get returns the cached value for key if present and unexpired. An
// expired entry is evicted and reported as a miss.
func (c *ResponseCache) Get(key Request) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *ResponseCache) getLocked(key Request) (any, bool) {
	entry, ok := c.store[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Since(entry.insertedAt) >= c.ttl {
		c.misses++
		delete(c.store, key)
		return nil, false
	}
	c.hits++
	return entry.value, true
}

// Insert stores value under key, stamping it with the current time.
// Insertion always resets the entry's age to zero.
func (c *ResponseCache) Insert(key Request, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = cacheEntry{insertedAt: time.Now(), value: value}
}

// GetOrInsert returns the cached value on a hit. On a miss it invokes
// producer, inserts the produced value on success, and returns it. A
// producer failure propagates unchanged and nothing is inserted; cache
// operations themselves never fail.
func (c *ResponseCache) GetOrInsert(key Request, producer func(Request) (any, error)) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value, ok := c.getLocked(key); ok {
		return value, nil
	}
	value, err := producer(key)
	if err != nil {
		return nil, err
	}
	c.store[key] = cacheEntry{insertedAt: time.Now(), value: value}
	return value, nil
}

// Retain removes every entry for which pred returns false. Used for
// namespace-scoped invalidation after a mutating command, or as a full
// clear with a predicate that always returns false.
func (c *ResponseCache) Retain(pred func(key Request, value any) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.store {
		if !pred(key, entry.value) {
			delete(c.store, key)
		}
	}
}

// InvalidateNamespace drops every entry under the given namespace,
// regardless of command.
func (c *ResponseCache) InvalidateNamespace(namespace string) {
	c.Retain(func(key Request, _ any) bool {
		return key.Namespace != namespace
	})
}

// Clear drops every entry.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[Request]cacheEntry)
}

// Hits returns the number of cache hits since creation.
func (c *ResponseCache) Hits() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Misses returns the number of cache misses since creation.
func (c *ResponseCache) Misses() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.misses
}

// Len returns the number of live entries, expired or not.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}

// TTL returns the configured time-to-live.
func (c *ResponseCache) TTL() time.Duration {
	return c.ttl
}
