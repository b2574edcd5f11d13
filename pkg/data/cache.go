package data

import (
	"sync"
	"time"

	"github.com/quantlab/stocklab/internal/monitoring"
	"github.com/quantlab/stocklab/pkg/types"
)

// CachedProvider wraps a Provider with an in-memory dataset cache keyed by
// path, so repeated optimizer runs over the same export parse it once.
type CachedProvider struct {
	inner Provider
	cache *MemoryCache
}

// NewCachedProvider wraps inner with a cache using the given entry TTL.
// A non-positive TTL keeps entries forever.
func NewCachedProvider(inner Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, cache: NewMemoryCache(ttl)}
}

// Load returns the cached dataset for path, loading through the inner
// provider on a miss.
func (p *CachedProvider) Load(path string) (types.Dataset, error) {
	if ds, ok := p.cache.Get(path); ok {
		monitoring.RecordCacheHit()
		return ds, nil
	}
	ds, err := p.inner.Load(path)
	if err != nil {
		return nil, err
	}
	p.cache.Put(path, ds)
	return ds, nil
}

type cacheEntry struct {
	dataset  types.Dataset
	loadedAt time.Time
}

// MemoryCache is a TTL map of loaded datasets. Datasets are treated as
// immutable after load, so Get hands back the shared value.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry), ttl: ttl}
}

// Get returns the dataset for key if present and not expired.
func (c *MemoryCache) Get(key string) (types.Dataset, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(entry.loadedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.dataset, true
}

// Put stores a dataset under key.
func (c *MemoryCache) Put(key string, ds types.Dataset) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{dataset: ds, loadedAt: time.Now()}
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
