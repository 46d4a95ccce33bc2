package revival

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/streamsite/services/site/internal/domain"
)

// Cache memoizes fetched metadata by compound key. Entries never expire;
// catalog metadata is close to static.
type Cache interface {
	Get(ctx context.Context, key string) (domain.Metadata, bool, error)
	Set(ctx context.Context, key string, m domain.Metadata) error
}

// MemoryCache is a process-local Cache with no size bound.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]domain.Metadata
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]domain.Metadata)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (domain.Metadata, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.entries[key]
	return m, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, m domain.Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = m
	return nil
}

const redisKeyPrefix = "site:revival:"

// RedisClient is the part of a go-redis client RedisCache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisCache shares the memo between replicas. Keys are stored without a TTL.
type RedisCache struct {
	Client RedisClient
}

func NewRedisCache(url string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisCache{Client: redis.NewClient(opt)}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (domain.Metadata, bool, error) {
	val, err := c.Client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Metadata{}, false, nil
		}
		return domain.Metadata{}, false, err
	}
	var m domain.Metadata
	if err := json.Unmarshal(val, &m); err != nil {
		return domain.Metadata{}, false, err
	}
	return m, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, m domain.Metadata) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, redisKeyPrefix+key, b, 0).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error { return c.Client.Ping(ctx).Err() }
func (c *RedisCache) Close() error                   { return c.Client.Close() }
