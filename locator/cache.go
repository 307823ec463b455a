package locator

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCacheCapacity is used when a locator is built without an explicit
// cache capacity.
const DefaultCacheCapacity = 128

// CacheEntry is the metadata kept alongside each cached instance.
type CacheEntry struct {
	Key            ServiceKey
	Instance       any
	CreatedAt      time.Time
	LastAccessedAt time.Time
	AccessCount    uint64
}

// CacheStats is a snapshot of the cache's counters.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
	Capacity  int
}

// HitRate returns hits/(hits+misses), or 0 before any lookup.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// ResolutionCache is a capacity-bounded LRU sitting in front of repeated
// resolutions. It is a pure accelerator: disabling it changes nothing but
// speed and the hit/miss counters. Recency is updated on both Get and Put;
// inserting beyond capacity evicts the least-recently-used entry.
type ResolutionCache struct {
	mu        sync.Mutex
	lru       *simplelru.LRU[ServiceKey, *CacheEntry]
	capacity  int
	hits      uint64
	misses    uint64
	evictions uint64
}

// NewResolutionCache creates a cache holding at most capacity entries.
// Capacities below 1 fall back to DefaultCacheCapacity.
func NewResolutionCache(capacity int) *ResolutionCache {
	if capacity < 1 {
		capacity = DefaultCacheCapacity
	}
	c := &ResolutionCache{capacity: capacity}
	// NewLRU only fails for non-positive sizes, which are clamped above.
	c.lru, _ = simplelru.NewLRU(capacity, func(ServiceKey, *CacheEntry) {
		c.evictions++
	})
	return c
}

// Get returns the cached instance for key, marking the entry as most
// recently used on a hit.
func (c *ResolutionCache) Get(key ServiceKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	entry.LastAccessedAt = time.Now()
	entry.AccessCount++
	return entry.Instance, true
}

// Put stores instance under key, evicting the least-recently-used entry if
// the cache is full.
func (c *ResolutionCache) Put(key ServiceKey, instance any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if entry, ok := c.lru.Get(key); ok {
		entry.Instance = instance
		entry.LastAccessedAt = now
		return
	}
	c.lru.Add(key, &CacheEntry{
		Key:            key,
		Instance:       instance,
		CreatedAt:      now,
		LastAccessedAt: now,
	})
}

// Contains reports whether key is cached, without touching recency.
func (c *ResolutionCache) Contains(key ServiceKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(key)
}

// Peek returns a copy of the entry's metadata without touching recency.
func (c *ResolutionCache) Peek(key ServiceKey) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lru.Peek(key)
	if !ok {
		return CacheEntry{}, false
	}
	return *entry, true
}

// Remove drops key from the cache, reporting whether it was present.
// Removal is not an eviction and does not count as one.
func (c *ResolutionCache) Remove(key ServiceKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lru.Contains(key) {
		return false
	}
	evictionsBefore := c.evictions
	removed := c.lru.Remove(key)
	c.evictions = evictionsBefore
	return removed
}

// Clear drops every entry. Counters other than Size are preserved.
func (c *ResolutionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	evictionsBefore := c.evictions
	c.lru.Purge()
	c.evictions = evictionsBefore
}

// Len returns the number of cached entries.
func (c *ResolutionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Capacity returns the fixed capacity set at construction.
func (c *ResolutionCache) Capacity() int { return c.capacity }

// Stats returns a snapshot of the counters.
func (c *ResolutionCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.lru.Len(),
		Capacity:  c.capacity,
	}
}
