// Package redis implements cache.Cache on top of go-redis/redis/v8, for
// deployments sharing a cache across multiple engine processes.
package redis

import (
	"context"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/oceanbase/agentmem/pkg/cache"
)

// Config configures a Cache.
type Config struct {
	// Addr is the redis server address, e.g. "localhost:6379".
	Addr string

	// Password is the redis AUTH password, empty if none.
	Password string

	// DB is the redis logical database index.
	DB int

	// KeyPrefix is prepended to every key, so one redis instance can
	// safely host more than one agentmem deployment.
	KeyPrefix string
}

// Cache wraps a *goredis.Client.
type Cache struct {
	client *goredis.Client
	prefix string
}

// New connects to the configured redis server. The connection is
// verified with a PING before returning.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Cache{client: client, prefix: cfg.KeyPrefix}, nil
}

func (c *Cache) namespaced(key string) string {
	return c.prefix + key
}

// Get implements cache.Cache.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, c.namespaced(key)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set implements cache.Cache. A zero ttl is passed through as redis's
// "no expiration" sentinel (0).
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.namespaced(key), value, ttl).Err()
}

// Delete implements cache.Cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.namespaced(key)).Err()
}

// Close implements cache.Cache.
func (c *Cache) Close() error {
	return c.client.Close()
}

var _ cache.Cache = (*Cache)(nil)
