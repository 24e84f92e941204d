// Package cache keeps per-user unread counters in Redis. A nil *Cache is a
// valid, disabled cache: every read misses and every write is a no-op.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrCacheDisabled is returned when cache operations are attempted but the
// cache is disabled.
var ErrCacheDisabled = errors.New("cache is disabled")

const (
	keyPrefix  = "sufi:"
	defaultTTL = 10 * time.Minute
)

// Counter kinds.
const (
	UnreadNotifications = "unread_notifications"
	UnreadMessages      = "unread_messages"
)

// Cache wraps a Redis client.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to the Redis server at url. An empty url disables the cache
// and returns (nil, nil).
func New(ctx context.Context, url string, ttl time.Duration) (*Cache, error) {
	if url == "" {
		log.Info().Msg("redis cache disabled")
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.DialTimeout = 3 * time.Second
	opt.ReadTimeout = 2 * time.Second
	opt.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opt)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info().Msg("redis connection established")
	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Key returns the namespaced key of a counter.
func Key(kind, userID string) string {
	return keyPrefix + kind + ":" + userID
}

// GetCount returns the cached counter. ok is false on a miss, on any error,
// or when the cache is disabled.
func (c *Cache) GetCount(ctx context.Context, kind, userID string) (n int64, ok bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	s, err := c.client.Get(ctx, Key(kind, userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("kind", kind).Msg("cache get failed")
		}
		return 0, false
	}
	n, err = strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetCount stores a counter with the configured TTL.
func (c *Cache) SetCount(ctx context.Context, kind, userID string, n int64) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Set(ctx, Key(kind, userID), n, c.ttl).Err()
}

// Invalidate drops a counter so the next read recomputes it.
func (c *Cache) Invalidate(ctx context.Context, kind, userID string) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Del(ctx, Key(kind, userID)).Err()
}

// Health pings the server.
func (c *Cache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
