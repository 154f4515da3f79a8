package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache stores looked-up connections for a short time.
type Cache interface {
	Get(ctx context.Context, key string) (*Connection, bool, error)
	Set(ctx context.Context, key string, conn *Connection, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cached fronts a Lookup with a Cache. Only active connections are cached,
// so a user who connects an account is picked up on the next request.
type Cached struct {
	next   Lookup
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCached(next Lookup, cache Cache, ttl time.Duration, logger zerolog.Logger) *Cached {
	return &Cached{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "connection_cache").Logger(),
	}
}

func cacheKey(userID, provider string) string {
	return "askgate:conn:" + provider + ":" + userID
}

func (c *Cached) GetConnection(ctx context.Context, userID, provider string) (*Connection, error) {
	key := cacheKey(userID, provider)
	conn, hit, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("provider", provider).Msg("cache read failed, falling through")
	} else if hit && conn.Active() {
		return conn, nil
	}

	conn, err = c.next.GetConnection(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	switch {
	case conn.Active():
		if err := c.cache.Set(ctx, key, conn, c.ttl); err != nil {
			c.logger.Warn().Err(err).Str("provider", provider).Msg("cache write failed")
		}
	case hit:
		// The cached entry went stale and nothing active replaced it.
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.Warn().Err(err).Str("provider", provider).Msg("cache delete failed")
		}
	}
	return conn, nil
}

// RedisCache keeps connections as JSON in Redis.
type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) (*Connection, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var conn Connection
	if err := json.Unmarshal(data, &conn); err != nil {
		return nil, false, fmt.Errorf("redis decode: %w", err)
	}
	return &conn, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, conn *Connection, ttl time.Duration) error {
	data, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("redis encode: %w", err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// MemoryCache is the in-process cache used when no Redis is configured.
type MemoryCache struct {
	c *gocache.Cache
}

func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(defaultTTL, 2*defaultTTL)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (*Connection, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	conn, ok := v.(*Connection)
	return conn, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, conn *Connection, ttl time.Duration) error {
	m.c.Set(key, conn, ttl)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}
