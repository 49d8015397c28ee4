package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain/oauth"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/repository"
)

const (
	codeKeyPrefix = "oauth_code_"
	// DefaultCodeTTL is how long an issued authorization code stays redeemable.
	DefaultCodeTTL = 600 * time.Second
)

// RedisCodeStore implements AuthorizationCodeStore. Codes are stored under a
// sha256 of their value and redeemed with GETDEL.
type RedisCodeStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ repository.AuthorizationCodeStore = (*RedisCodeStore)(nil)

// NewRedisCodeStore constructs a Redis-backed code store. A non-positive ttl uses DefaultCodeTTL.
func NewRedisCodeStore(client redis.UniversalClient, ttl time.Duration) *RedisCodeStore {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &RedisCodeStore{client: client, ttl: ttl}
}

// Store persists the pending authorization for code.
func (s *RedisCodeStore) Store(ctx context.Context, code string, data oauth.AuthorizationCodeData) error {
	if code == "" {
		return domain.NewValidationError("code", "must not be empty")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal authorization code: %w", err)
	}
	if err := s.client.Set(ctx, codeKey(code), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("persist authorization code: %w", err)
	}
	return nil
}

// ConsumeOnce atomically reads and deletes the code. Replays get a NotFoundError.
func (s *RedisCodeStore) ConsumeOnce(ctx context.Context, code string) (*oauth.AuthorizationCodeData, error) {
	if code == "" {
		return nil, &domain.NotFoundError{Resource: "authorization code", ID: ""}
	}
	payload, err := s.client.GetDel(ctx, codeKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &domain.NotFoundError{Resource: "authorization code", ID: redact(code)}
		}
		return nil, fmt.Errorf("consume authorization code: %w", err)
	}
	var data oauth.AuthorizationCodeData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decode authorization code: %w", err)
	}
	return &data, nil
}

// Exists reports whether code is still redeemable without consuming it.
func (s *RedisCodeStore) Exists(ctx context.Context, code string) (bool, error) {
	n, err := s.client.Exists(ctx, codeKey(code)).Result()
	if err != nil {
		return false, fmt.Errorf("authorization code exists: %w", err)
	}
	return n > 0, nil
}

func codeKey(code string) string {
	sum := sha256.Sum256([]byte(code))
	return codeKeyPrefix + hex.EncodeToString(sum[:])
}

func redact(code string) string {
	if len(code) <= 6 {
		return "***"
	}
	return code[:6] + "***"
}
