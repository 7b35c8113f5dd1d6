package search

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source for TTL tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func entry(key string) *CacheEntry {
	return &CacheEntry{SearchKey: key, PageNumber: 1}
}

func TestPaginationCache_PutGet(t *testing.T) {
	cache := NewPaginationCache(10, time.Hour)

	cache.Put(entry("k1"))

	got, ok := cache.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "k1", got.SearchKey)

	_, ok = cache.Get("missing")
	assert.False(t, ok)
}

func TestPaginationCache_ExpiredEntryIsAMiss(t *testing.T) {
	clock := newFakeClock()
	cache := NewPaginationCache(10, time.Hour, WithCacheClock(clock.Now))

	cache.Put(entry("k1"))
	clock.Advance(time.Hour + time.Second)

	_, ok := cache.Get("k1")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len(), "expired entry is removed on read")
}

func TestPaginationCache_GetRefreshesTimestamp(t *testing.T) {
	clock := newFakeClock()
	cache := NewPaginationCache(10, time.Hour, WithCacheClock(clock.Now))

	cache.Put(entry("k1"))

	// Reads inside the TTL keep the entry alive past its original expiry.
	clock.Advance(50 * time.Minute)
	_, ok := cache.Get("k1")
	require.True(t, ok)

	clock.Advance(50 * time.Minute)
	_, ok = cache.Get("k1")
	assert.True(t, ok)
}

func TestPaginationCache_BoundedSize(t *testing.T) {
	cache := NewPaginationCache(3, time.Hour)

	for i := 0; i < 10; i++ {
		cache.Put(entry(fmt.Sprintf("k%d", i)))
	}

	assert.Equal(t, 3, cache.Len())
}

func TestPaginationCache_EvictsExpiredBeforeLive(t *testing.T) {
	clock := newFakeClock()
	cache := NewPaginationCache(2, time.Hour, WithCacheClock(clock.Now))

	cache.Put(entry("old"))
	clock.Advance(2 * time.Hour)
	cache.Put(entry("live"))

	// Given: the cache is full with one expired and one live entry
	// When: a new entry arrives
	cache.Put(entry("new"))

	// Then: the expired entry went first
	_, ok := cache.Get("live")
	assert.True(t, ok)
	_, ok = cache.Get("new")
	assert.True(t, ok)
	_, ok = cache.Get("old")
	assert.False(t, ok)
}

func TestPaginationCache_EvictsOldestLiveEntry(t *testing.T) {
	clock := newFakeClock()
	cache := NewPaginationCache(2, time.Hour, WithCacheClock(clock.Now))

	cache.Put(entry("first"))
	clock.Advance(time.Minute)
	cache.Put(entry("second"))
	clock.Advance(time.Minute)

	cache.Put(entry("third"))

	_, ok := cache.Get("first")
	assert.False(t, ok, "oldest live entry is evicted")
	_, ok = cache.Get("second")
	assert.True(t, ok)
	_, ok = cache.Get("third")
	assert.True(t, ok)
}

func TestPaginationCache_ReplacingExistingKeyDoesNotEvict(t *testing.T) {
	cache := NewPaginationCache(2, time.Hour)

	cache.Put(entry("k1"))
	cache.Put(entry("k2"))
	cache.Put(entry("k1"))

	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Get("k2")
	assert.True(t, ok)
}

func TestPaginationCache_Cleanup(t *testing.T) {
	clock := newFakeClock()
	cache := NewPaginationCache(10, time.Hour, WithCacheClock(clock.Now))

	cache.Put(entry("a"))
	cache.Put(entry("b"))
	clock.Advance(2 * time.Hour)
	cache.Put(entry("c"))

	removed := cache.Cleanup()

	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, cache.Len())
	_, ok := cache.Get("c")
	assert.True(t, ok)
}

func TestPaginationMetrics_Efficiency(t *testing.T) {
	assert.InDelta(t, 0.5, PaginationMetrics{ResultsFetched: 50, ObjectsScanned: 100}.Efficiency(), 1e-9)
	assert.InDelta(t, 0.0, PaginationMetrics{ResultsFetched: 0, ObjectsScanned: 0}.Efficiency(), 1e-9)
	assert.InDelta(t, 5.0, PaginationMetrics{ResultsFetched: 5, ObjectsScanned: 0}.Efficiency(), 1e-9)
}
