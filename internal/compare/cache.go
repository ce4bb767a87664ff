package compare

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "compare:"

type Cache interface {
	Get(ctx context.Context, key string) (*CompareOutput, bool, error)
	Set(ctx context.Context, key string, out *CompareOutput, ttl time.Duration) error
}

type redisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string) (*CompareOutput, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var out CompareOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, err
	}
	return &out, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, out *CompareOutput, ttl time.Duration) error {
	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

func cacheKey(productURL string) string {
	sum := sha256.Sum256([]byte(productURL))
	return cachePrefix + hex.EncodeToString(sum[:])
}
