package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// responseCache is a bounded TTL cache for generation results. Expiry is
// enforced at read time; capacity pressure evicts the oldest entry.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	cap     int
	ttl     time.Duration
	hits    uint64
	misses  uint64

	now func() time.Time
}

type cacheEntry struct {
	result   MCQResult
	cachedAt time.Time
}

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

func newResponseCache(capacity int, ttl time.Duration) *responseCache {
	return &responseCache{
		entries: make(map[string]cacheEntry, capacity),
		cap:     capacity,
		ttl:     ttl,
		now:     time.Now,
	}
}

// get returns a copy of the cached result, or false when the key is missing
// or stale. Stale entries are deleted on the spot.
func (c *responseCache) get(key string) (MCQResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return MCQResult{}, false
	}
	if c.now().Sub(entry.cachedAt) > c.ttl {
		delete(c.entries, key)
		c.misses++
		return MCQResult{}, false
	}

	c.hits++
	return cloneResult(entry.result), true
}

// put stores a result, evicting the oldest entry when at capacity.
func (c *responseCache) put(key string, result MCQResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cap {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry{result: cloneResult(result), cachedAt: c.now()}
}

// cloneResult deep-copies the slices so neither the caller that produced a
// result nor a caller served from the cache can mutate the stored entry.
func cloneResult(r MCQResult) MCQResult {
	r.Questions = append([]Question(nil), r.Questions...)
	r.SourcesUsed = append([]string(nil), r.SourcesUsed...)
	return r
}

func (c *responseCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.cachedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.cachedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *responseCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// cacheKey fingerprints a generation request. Difficulty and count are part
// of the identity, so distinct requests never collide.
func cacheKey(subject string, numQuestions int, difficulty string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%s", subject, numQuestions, difficulty))
	return hex.EncodeToString(sum[:])
}
