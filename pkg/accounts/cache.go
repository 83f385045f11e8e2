package accounts

import (
	"sync"
	"time"
)

// Cache defines the interface for caching account records by store key
// to reduce storage backend load.
type Cache interface {
	// Get retrieves a cached record.
	// Returns the record and true if found, nil and false otherwise
	Get(key string) (*Record, bool)

	// Set stores a record in the cache with TTL
	Set(key string, rec *Record, ttl time.Duration)

	// Invalidate removes a record from the cache
	Invalidate(key string)

	// Clear removes all entries from the cache
	Clear()

	// Stats returns cache statistics
	Stats() CacheStats
}

// CacheStats holds cache performance statistics
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// cacheEntry wraps a cached record with expiration time and access time for LRU
type cacheEntry struct {
	record     *Record
	expiration time.Time
	accessTime time.Time
	sequence   int64 // tiebreak when access times are equal
}

func (e *cacheEntry) isExpired(now time.Time) bool {
	return now.After(e.expiration)
}

// NoopCache is a cache implementation that does nothing.
// Used when caching is disabled
type NoopCache struct{}

// NewNoopCache creates a new no-op cache
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (c *NoopCache) Get(_ string) (*Record, bool) {
	return nil, false
}

func (c *NoopCache) Set(_ string, _ *Record, _ time.Duration) {}

func (c *NoopCache) Invalidate(_ string) {}

func (c *NoopCache) Clear() {}

func (c *NoopCache) Stats() CacheStats {
	return CacheStats{}
}

// LRUCache implements Cache using an in-memory LRU map with TTL support
type LRUCache struct {
	entries    map[string]*cacheEntry
	maxEntries int
	mu         sync.Mutex
	hits       int64
	misses     int64
	evictions  int64
	sequence   int64
	now        func() time.Time
}

// NewLRUCache creates a new LRU cache holding at most maxEntries records
func NewLRUCache(maxEntries int) *LRUCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}

	return &LRUCache{
		entries:    make(map[string]*cacheEntry, maxEntries),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *LRUCache) Get(key string) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, exists := c.entries[key]
	if !exists || entry.isExpired(now) {
		if exists {
			delete(c.entries, key)
		}
		c.misses++
		return nil, false
	}

	entry.accessTime = now
	c.hits++
	return entry.record.Clone(), true
}

func (c *LRUCache) Set(key string, rec *Record, ttl time.Duration) {
	if rec == nil || ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	_, exists := c.entries[key]

	// Evict least recently used (oldest accessTime, then oldest sequence)
	if len(c.entries) >= c.maxEntries && !exists {
		var oldestKey string
		var oldestTime time.Time
		var oldestSeq int64
		first := true
		for k, entry := range c.entries {
			if first || entry.accessTime.Before(oldestTime) ||
				(entry.accessTime.Equal(oldestTime) && entry.sequence < oldestSeq) {
				oldestKey = k
				oldestTime = entry.accessTime
				oldestSeq = entry.sequence
				first = false
			}
		}
		if !first {
			delete(c.entries, oldestKey)
			c.evictions++
		}
	}

	seq := c.sequence
	c.sequence++
	c.entries[key] = &cacheEntry{
		record:     rec.Clone(),
		expiration: now.Add(ttl),
		accessTime: now,
		sequence:   seq,
	}
}

func (c *LRUCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry, c.maxEntries)
}

func (c *LRUCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
	}
}
