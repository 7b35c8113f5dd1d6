package search

import (
	"sync"
	"time"
)

// Default pagination cache settings.
const (
	DefaultCacheMaxEntries = 1000
	DefaultCacheTTL        = time.Hour
)

// PaginationMetrics captures per-page fetch performance. Metrics tune
// the next page's buffer size for the same query only; they are never
// shared across unrelated queries.
type PaginationMetrics struct {
	ResultsFetched  int
	ObjectsScanned  int
	BufferOverflows int
	Duration        time.Duration
}

// Efficiency is results fetched per object scanned, in [0,1].
func (m PaginationMetrics) Efficiency() float64 {
	scanned := m.ObjectsScanned
	if scanned < 1 {
		scanned = 1
	}
	return float64(m.ResultsFetched) / float64(scanned)
}

// CacheEntry is the pagination state stored for one query page.
// Entries are immutable once written; only the timestamp is refreshed,
// on read.
type CacheEntry struct {
	SearchKey      string
	PageNumber     int
	ScoreThreshold *float64
	BackendTokens  map[string]string
	Metrics        PaginationMetrics
	Timestamp      time.Time
}

// PaginationCacheOption configures the cache.
type PaginationCacheOption func(*PaginationCache)

// WithCacheClock injects the clock used for TTL decisions, for
// deterministic tests.
func WithCacheClock(now func() time.Time) PaginationCacheOption {
	return func(c *PaginationCache) {
		if now != nil {
			c.now = now
		}
	}
}

// PaginationCache is a bounded, TTL-aware store of pagination state,
// shared across requests and guarded by a single mutex. At capacity,
// expired entries are evicted before any live entry; live entries are
// evicted oldest-timestamp first.
type PaginationCache struct {
	mu         sync.Mutex
	entries    map[string]*CacheEntry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// NewPaginationCache creates a cache holding at most maxEntries entries
// that expire after ttl. Non-positive arguments select the defaults.
func NewPaginationCache(maxEntries int, ttl time.Duration, opts ...PaginationCacheOption) *PaginationCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &PaginationCache{
		entries:    make(map[string]*CacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PaginationCache) expired(e *CacheEntry, now time.Time) bool {
	return now.Sub(e.Timestamp) > c.ttl
}

// Get returns the live entry for key, refreshing its timestamp.
// An expired entry is removed and reported as a miss.
func (c *PaginationCache) Get(key string) (*CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	now := c.now()
	if c.expired(e, now) {
		delete(c.entries, key)
		return nil, false
	}
	e.Timestamp = now
	return e, true
}

// Put stores an entry under its SearchKey, evicting if at capacity.
// The entry's timestamp is set by the cache.
func (c *PaginationCache) Put(e *CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e.Timestamp = now

	if _, replacing := c.entries[e.SearchKey]; !replacing && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[e.SearchKey] = e
}

// evictLocked removes one entry: any expired entry if one exists,
// otherwise the entry with the oldest timestamp.
func (c *PaginationCache) evictLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			return
		}
		if oldestKey == "" || e.Timestamp.Before(oldest) {
			oldestKey = k
			oldest = e.Timestamp
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Cleanup removes every expired entry and reports how many were
// removed. Correctness never depends on it having run; it is an
// amortized sweep triggered probabilistically by the orchestrator.
func (c *PaginationCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len reports the current entry count.
func (c *PaginationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
