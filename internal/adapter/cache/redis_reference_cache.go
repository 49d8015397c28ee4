package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/repository"
)

const referenceKeyPrefix = "tracker:ref:"

// RedisReferenceCache stores JSON encoded reference data with a TTL.
type RedisReferenceCache struct {
	client redis.UniversalClient
}

var _ repository.ReferenceCache = (*RedisReferenceCache)(nil)

func NewRedisReferenceCache(client redis.UniversalClient) *RedisReferenceCache {
	return &RedisReferenceCache{client: client}
}

// Get decodes the cached value into dest and reports whether it was present.
func (c *RedisReferenceCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	bytes, err := c.client.Get(ctx, referenceKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("load reference %s: %w", key, err)
	}
	if err := json.Unmarshal(bytes, dest); err != nil {
		return false, fmt.Errorf("decode reference %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisReferenceCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal reference %s: %w", key, err)
	}
	if err := c.client.Set(ctx, referenceKeyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist reference %s: %w", key, err)
	}
	return nil
}
