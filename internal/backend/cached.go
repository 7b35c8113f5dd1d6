package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/seqscout/seqscout/internal/genomics"
	"github.com/seqscout/seqscout/internal/search"
)

// DefaultResultCacheSize is the default number of query results kept.
const DefaultResultCacheSize = 256

// CachedBackend wraps a backend with an LRU cache over simple-mode
// queries. Paginated calls pass through untouched: replaying stale
// continuation state from a cache would break cursor semantics.
type CachedBackend struct {
	inner search.Backend
	cache *lru.Cache[string, []*genomics.GenomicsFile]
}

var _ search.Backend = (*CachedBackend)(nil)

// NewCachedBackend wraps inner with a result cache of the given size.
func NewCachedBackend(inner search.Backend, cacheSize int) *CachedBackend {
	if cacheSize <= 0 {
		cacheSize = DefaultResultCacheSize
	}
	cache, _ := lru.New[string, []*genomics.GenomicsFile](cacheSize)
	return &CachedBackend{inner: inner, cache: cache}
}

// cacheKey hashes the backend name and the query so distinct wrapped
// backends never share entries.
func (c *CachedBackend) cacheKey(q genomics.Query) string {
	parts := []string{c.inner.Name(), string(q.FileType)}
	parts = append(parts, q.Terms...)
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// Name implements the backend interface.
func (c *CachedBackend) Name() string { return c.inner.Name() }

// Search returns cached results when available. Cached slices are
// treated as read-only by callers.
func (c *CachedBackend) Search(ctx context.Context, q genomics.Query) ([]*genomics.GenomicsFile, error) {
	key := c.cacheKey(q)
	if files, ok := c.cache.Get(key); ok {
		return files, nil
	}
	files, err := c.inner.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, files)
	return files, nil
}

// SearchPaginated passes through to the inner backend.
func (c *CachedBackend) SearchPaginated(ctx context.Context, q genomics.Query, page genomics.BackendPageRequest) (*genomics.BackendPage, error) {
	return c.inner.SearchPaginated(ctx, q, page)
}

// Purge drops every cached result.
func (c *CachedBackend) Purge() {
	c.cache.Purge()
}
