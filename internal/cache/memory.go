package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMaxEntries bounds the in-memory cache when no cap is
// configured. Bundles run a few KB each, so the default stays well
// under 10MB.
const DefaultMaxEntries = 512

// MemoryCache is the in-process backend: a size-bounded LRU whose
// entries expire after the configured TTL.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
	ttl time.Duration
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an in-memory cache. maxEntries <= 0 uses the
// default cap; ttl <= 0 disables expiry.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, []byte](maxEntries, nil, ttl),
		ttl: ttl,
	}
}

// Get returns the cached value or ErrNotFound once expired or evicted.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if value, ok := c.lru.Get(key); ok {
		return value, nil
	}
	return nil, ErrNotFound
}

// Set stores a value; the entry expires after the cache TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte) error {
	c.lru.Add(key, value)
	return nil
}

// Delete removes a single key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Flush drops every entry.
func (c *MemoryCache) Flush(ctx context.Context) error {
	c.lru.Purge()
	return nil
}

// Len reports how many live entries the cache holds.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Name identifies the backend.
func (c *MemoryCache) Name() string { return "memory" }

// Close releases resources; the LRU needs no teardown.
func (c *MemoryCache) Close() error { return nil }
