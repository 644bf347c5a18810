package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheHitWithinTTL(t *testing.T) {
	c := newResponseCache(4, time.Hour)
	c.put("k", MCQResult{ModelUsed: "m"})

	got, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, "m", got.ModelUsed)

	stats := c.stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestCacheExpiresAtRead(t *testing.T) {
	c := newResponseCache(4, time.Hour)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.put("k", MCQResult{})

	now = now.Add(61 * time.Minute)
	_, ok := c.get("k")
	assert.False(t, ok, "stale entry must not be served")
	assert.Equal(t, 0, c.stats().Entries, "stale entry is deleted on read")
}

func TestCacheEvictsOldest(t *testing.T) {
	c := newResponseCache(2, time.Hour)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.put("first", MCQResult{})
	now = now.Add(time.Minute)
	c.put("second", MCQResult{})
	now = now.Add(time.Minute)
	c.put("third", MCQResult{})

	_, ok := c.get("first")
	assert.False(t, ok, "oldest entry is evicted under capacity pressure")
	_, ok = c.get("second")
	assert.True(t, ok)
	_, ok = c.get("third")
	assert.True(t, ok)
}

func TestCacheOverwriteDoesNotEvict(t *testing.T) {
	c := newResponseCache(2, time.Hour)
	c.put("a", MCQResult{ModelUsed: "v1"})
	c.put("b", MCQResult{})
	c.put("a", MCQResult{ModelUsed: "v2"})

	got, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, "v2", got.ModelUsed)
	_, ok = c.get("b")
	assert.True(t, ok, "overwriting a present key must not evict others")
}

func TestCacheHitIsolatedFromCallerMutation(t *testing.T) {
	c := newResponseCache(4, time.Hour)
	stored := MCQResult{
		Questions:   []Question{{Question: "q1", CorrectAnswer: "a"}},
		SourcesUsed: []string{"notes.txt"},
	}
	c.put("k", stored)

	// Mutating the slice handed to put must not reach the cache.
	stored.Questions[0].Question = "clobbered by producer"

	got, ok := c.get("k")
	require.True(t, ok)
	got.Questions[0].Question = "clobbered by consumer"
	got.SourcesUsed[0] = "clobbered by consumer"

	again, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, "q1", again.Questions[0].Question)
	assert.Equal(t, "notes.txt", again.SourcesUsed[0])
}

func TestCacheKeyDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for _, subject := range []string{"physics", "biology"} {
		for n := 1; n <= 3; n++ {
			for _, diff := range []string{"easy", "medium", "hard"} {
				key := cacheKey(subject, n, diff)
				require.False(t, seen[key], "collision for %s/%d/%s", subject, n, diff)
				seen[key] = true
			}
		}
	}
	assert.Equal(t, cacheKey("physics", 5, "easy"), cacheKey("physics", 5, "easy"))
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := newResponseCache(8, time.Hour)
	done := make(chan struct{})
	for range 4 {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := range 100 {
				key := fmt.Sprintf("k%d", j%10)
				c.put(key, MCQResult{})
				c.get(key)
			}
		}()
	}
	for range 4 {
		<-done
	}
	assert.LessOrEqual(t, c.stats().Entries, 8)
}
