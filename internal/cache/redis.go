package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	mserrors "github.com/mosaicsearch/mosaic/internal/errors"
)

// redisKeyPrefix namespaces bundle entries so a shared Redis can hold
// other applications' data without collisions.
const redisKeyPrefix = "mosaic:"

// RedisConfig holds connection parameters for the Redis backend.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Username and Password authenticate when the server requires it.
	Username string
	Password string

	// DB selects the logical database.
	DB int

	// TTL applied to every Set. Zero or negative stores without expiry.
	TTL time.Duration
}

// RedisCache is the shared backend for deployments where several
// processes serve the same library.
type RedisCache struct {
	client rueidis.Client
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection with a
// ping so a bad address fails at startup, not mid-search.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis cache requires an address")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{cfg.Addr},
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, mserrors.CacheError("connect to redis", err)
	}

	c := &RedisCache{client: client, ttl: cfg.TTL}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		client.Close()
		return nil, err
	}

	return c, nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	cmd := c.client.B().Ping().Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return mserrors.CacheError("redis ping", err)
	}
	return nil
}

// Get returns the cached value or ErrNotFound.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := c.client.B().Get().Key(redisKeyPrefix + key).Build()
	data, err := c.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrNotFound
		}
		return nil, mserrors.CacheError("redis get", err)
	}
	return data, nil
}

// Set stores a value with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	var cmd rueidis.Completed
	if c.ttl > 0 {
		cmd = c.client.B().Set().Key(redisKeyPrefix + key).Value(string(value)).Ex(c.ttl).Build()
	} else {
		cmd = c.client.B().Set().Key(redisKeyPrefix + key).Value(string(value)).Build()
	}
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return mserrors.CacheError("redis set", err)
	}
	return nil
}

// Delete removes a single key. Missing keys are not an error.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	cmd := c.client.B().Del().Key(redisKeyPrefix + key).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return mserrors.CacheError("redis delete", err)
	}
	return nil
}

// Flush removes every key under the mosaic prefix, leaving the rest of
// the database alone.
func (c *RedisCache) Flush(ctx context.Context) error {
	var cursor uint64
	for {
		cmd := c.client.B().Scan().Cursor(cursor).Match(redisKeyPrefix + "*").Count(100).Build()
		entry, err := c.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return mserrors.CacheError("redis scan", err)
		}

		if len(entry.Elements) > 0 {
			del := c.client.B().Del().Key(entry.Elements...).Build()
			if err := c.client.Do(ctx, del).Error(); err != nil {
				return mserrors.CacheError("redis flush", err)
			}
		}

		cursor = entry.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

// Name identifies the backend.
func (c *RedisCache) Name() string { return "redis" }

// Close shuts down the client.
func (c *RedisCache) Close() error {
	c.client.Close()
	return nil
}
