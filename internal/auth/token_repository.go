package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	refreshTokenPrefix  = "refresh_token:"
	revokedTokenPrefix  = "revoked_token:"
	tokenFamilyPrefix   = "token_family:"
	subjectTokensPrefix = "subject_tokens:"
)

type TokenData struct {
	SubjectID string    `json:"subject_id"`
	Role      string    `json:"role"`
	FamilyID  string    `json:"family_id"`
	CreatedAt time.Time `json:"created_at"`
	UserAgent string    `json:"user_agent"`
	IP        string    `json:"ip"`
}

type TokenRepository interface {
	StoreToken(ctx context.Context, tokenHash string, data TokenData, ttl time.Duration) error
	GetToken(ctx context.Context, tokenHash string) (*TokenData, error)
	// RevokeToken deletes the token and remembers its family so a later
	// presentation of the same token can be detected as reuse.
	RevokeToken(ctx context.Context, tokenHash string) error
	RevokedFamily(ctx context.Context, tokenHash string) (string, error)
	RevokeTokenFamily(ctx context.Context, familyID string) error
	RevokeAllSubjectTokens(ctx context.Context, subjectID string) error
}

type tokenRepository struct {
	client *redis.Client
}

func NewTokenRepository(client *redis.Client) TokenRepository {
	return &tokenRepository{client: client}
}

func (r *tokenRepository) StoreToken(ctx context.Context, tokenHash string, data TokenData, ttl time.Duration) error {
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal token data: %w", err)
	}

	pipe := r.client.Pipeline()

	// Store the token data
	pipe.Set(ctx, refreshTokenPrefix+tokenHash, jsonData, ttl)

	// Add to token family set
	familyKey := tokenFamilyPrefix + data.FamilyID
	pipe.SAdd(ctx, familyKey, tokenHash)
	pipe.Expire(ctx, familyKey, ttl)

	// Add to the subject's token set
	subjectKey := subjectTokensPrefix + data.SubjectID
	pipe.SAdd(ctx, subjectKey, tokenHash)
	pipe.Expire(ctx, subjectKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	return nil
}

func (r *tokenRepository) GetToken(ctx context.Context, tokenHash string) (*TokenData, error) {
	data, err := r.client.Get(ctx, refreshTokenPrefix+tokenHash).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var tokenData TokenData
	if err := json.Unmarshal([]byte(data), &tokenData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token data: %w", err)
	}

	return &tokenData, nil
}

func (r *tokenRepository) RevokeToken(ctx context.Context, tokenHash string) error {
	tokenData, err := r.GetToken(ctx, tokenHash)
	if err != nil {
		return err
	}
	if tokenData == nil {
		return nil
	}

	ttl, err := r.client.TTL(ctx, refreshTokenPrefix+tokenHash).Result()
	if err != nil || ttl <= 0 {
		ttl = time.Hour
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, refreshTokenPrefix+tokenHash)
	pipe.Set(ctx, revokedTokenPrefix+tokenHash, tokenData.FamilyID, ttl)
	pipe.SRem(ctx, tokenFamilyPrefix+tokenData.FamilyID, tokenHash)
	pipe.SRem(ctx, subjectTokensPrefix+tokenData.SubjectID, tokenHash)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	return nil
}

func (r *tokenRepository) RevokedFamily(ctx context.Context, tokenHash string) (string, error) {
	familyID, err := r.client.Get(ctx, revokedTokenPrefix+tokenHash).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to check revoked token: %w", err)
	}
	return familyID, nil
}

func (r *tokenRepository) RevokeTokenFamily(ctx context.Context, familyID string) error {
	familyKey := tokenFamilyPrefix + familyID

	tokens, err := r.client.SMembers(ctx, familyKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get family tokens: %w", err)
	}

	pipe := r.client.Pipeline()

	for _, tokenHash := range tokens {
		tokenData, err := r.GetToken(ctx, tokenHash)
		if err != nil {
			continue
		}
		if tokenData != nil {
			pipe.SRem(ctx, subjectTokensPrefix+tokenData.SubjectID, tokenHash)
		}
		pipe.Del(ctx, refreshTokenPrefix+tokenHash)
	}

	pipe.Del(ctx, familyKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke token family: %w", err)
	}

	return nil
}

func (r *tokenRepository) RevokeAllSubjectTokens(ctx context.Context, subjectID string) error {
	subjectKey := subjectTokensPrefix + subjectID

	tokens, err := r.client.SMembers(ctx, subjectKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get subject tokens: %w", err)
	}

	if len(tokens) == 0 {
		return nil
	}

	familyIDs := make(map[string]bool)

	pipe := r.client.Pipeline()

	for _, tokenHash := range tokens {
		tokenData, err := r.GetToken(ctx, tokenHash)
		if err != nil {
			continue
		}
		if tokenData != nil {
			familyIDs[tokenData.FamilyID] = true
		}
		pipe.Del(ctx, refreshTokenPrefix+tokenHash)
	}

	pipe.Del(ctx, subjectKey)

	for familyID := range familyIDs {
		pipe.Del(ctx, tokenFamilyPrefix+familyID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke all subject tokens: %w", err)
	}

	return nil
}
