package tracking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	clickDedupePrefix = "click_dedupe:"
	clickDedupeWindow = 30 * time.Second
)

// ClickDeduper remembers recent clicks so a double click does not count twice.
type ClickDeduper interface {
	// Claim stores clickID under key unless another click holds it. It returns
	// the click id that owns the key and whether it is the one passed in.
	Claim(ctx context.Context, key, clickID string, ttl time.Duration) (string, bool, error)
	// Release drops key if clickID still owns it.
	Release(ctx context.Context, key, clickID string) error
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisDeduper struct {
	client *redis.Client
}

func NewRedisDeduper(client *redis.Client) ClickDeduper {
	return &redisDeduper{client: client}
}

func (d *redisDeduper) Claim(ctx context.Context, key, clickID string, ttl time.Duration) (string, bool, error) {
	ok, err := d.client.SetNX(ctx, clickDedupePrefix+key, clickID, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return clickID, true, nil
	}

	existing, err := d.client.Get(ctx, clickDedupePrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls
		return clickID, true, d.client.Set(ctx, clickDedupePrefix+key, clickID, ttl).Err()
	}
	if err != nil {
		return "", false, err
	}
	return existing, false, nil
}

func (d *redisDeduper) Release(ctx context.Context, key, clickID string) error {
	return releaseScript.Run(ctx, d.client, []string{clickDedupePrefix + key}, clickID).Err()
}

func dedupeKey(affiliateID, ip, target string) string {
	sum := sha256.Sum256([]byte(affiliateID + "|" + ip + "|" + target))
	return hex.EncodeToString(sum[:])
}
