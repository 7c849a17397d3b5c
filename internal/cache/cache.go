// Package cache provides the bundle result cache behind a small
// facade: an in-process expirable LRU by default, Redis when several
// processes share one library. Keys incorporate the index generation,
// so an ingest rebuild invalidates every cached bundle without
// explicit flushes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound reports a cache miss. Callers treat it as "go compute",
// never as a failure.
var ErrNotFound = errors.New("cache: key not found")

// Cache stores serialized context bundles. Implementations must be
// safe for concurrent use. Failures other than ErrNotFound are
// logged by the caller and treated as misses; the cache never fails a
// search.
type Cache interface {
	// Get returns the cached value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value under key, subject to the backend's TTL.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a single key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Flush drops every entry this cache owns.
	Flush(ctx context.Context) error

	// Name identifies the backend for status output.
	Name() string

	// Close releases backend resources.
	Close() error
}

// Options carries backend settings; the config package maps its cache
// section onto this.
type Options struct {
	// TTL bounds how long a bundle may be served from cache.
	// Zero or negative means entries never expire.
	TTL time.Duration

	// MaxEntries caps the in-memory backend (ignored by Redis).
	MaxEntries int

	// RedisAddr is the host:port of the Redis server.
	RedisAddr string
}

// New constructs the configured backend: "memory", "redis", or "none".
func New(backend string, opts Options) (Cache, error) {
	switch strings.ToLower(backend) {
	case "memory", "":
		return NewMemoryCache(opts.MaxEntries, opts.TTL), nil
	case "redis":
		return NewRedisCache(RedisConfig{
			Addr: opts.RedisAddr,
			TTL:  opts.TTL,
		})
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (want memory, redis, or none)", backend)
	}
}

// Nop is the disabled cache: every Get misses, every Set is dropped.
type Nop struct{}

var _ Cache = Nop{}

func (Nop) Get(ctx context.Context, key string) ([]byte, error) { return nil, ErrNotFound }

func (Nop) Set(ctx context.Context, key string, value []byte) error { return nil }

func (Nop) Delete(ctx context.Context, key string) error { return nil }

func (Nop) Flush(ctx context.Context) error { return nil }

func (Nop) Name() string { return "none" }

func (Nop) Close() error { return nil }
