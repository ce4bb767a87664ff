package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const passwordResetPrefix = "password_reset:"

// ResetCode is a pending password reset.
type ResetCode struct {
	Code     string
	Attempts int
}

type ResetRepository interface {
	Save(ctx context.Context, key, code string, ttl time.Duration) error
	Get(ctx context.Context, key string) (*ResetCode, error)
	IncrementAttempts(ctx context.Context, key string) (int, error)
	Delete(ctx context.Context, key string) error
}

type resetRepository struct {
	client *redis.Client
}

func NewResetRepository(client *redis.Client) ResetRepository {
	return &resetRepository{client: client}
}

func (r *resetRepository) Save(ctx context.Context, key, code string, ttl time.Duration) error {
	redisKey := passwordResetPrefix + key

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, redisKey)
	pipe.HSet(ctx, redisKey, "code", code, "attempts", 0)
	pipe.Expire(ctx, redisKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store reset code: %w", err)
	}
	return nil
}

func (r *resetRepository) Get(ctx context.Context, key string) (*ResetCode, error) {
	values, err := r.client.HGetAll(ctx, passwordResetPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get reset code: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	attempts, _ := strconv.Atoi(values["attempts"])
	return &ResetCode{Code: values["code"], Attempts: attempts}, nil
}

func (r *resetRepository) IncrementAttempts(ctx context.Context, key string) (int, error) {
	n, err := r.client.HIncrBy(ctx, passwordResetPrefix+key, "attempts", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment reset attempts: %w", err)
	}
	return int(n), nil
}

func (r *resetRepository) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, passwordResetPrefix+key).Err()
}
