package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"mercado/internal/config"

	"github.com/redis/go-redis/v9"
)

// RevocationStore records tokens that must be rejected before they expire.
type RevocationStore interface {
	// RevokeToken denies a single token id until ttl elapses.
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	// RevokeUserTokens denies every token of userID issued before at.
	RevokeUserTokens(ctx context.Context, userID string, at time.Time) error
	// UserRevokedAt returns the cutoff set by RevokeUserTokens, or the zero time.
	UserRevokedAt(ctx context.Context, userID string) (time.Time, error)
}

const (
	revokedTokenPrefix = "revoked:jti:"
	revokedUserPrefix  = "revoked:user:"
)

// RedisRevocationStore keeps revocations in Redis with an expiry so that
// entries vanish once the tokens they cover could no longer validate.
type RedisRevocationStore struct {
	client *redis.Client
	maxTTL time.Duration
}

// NewRedisClient builds a client from configuration and checks connectivity.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisRevocationStore creates a store. maxTTL bounds per-user cutoffs and
// should equal the token lifetime.
func NewRedisRevocationStore(client *redis.Client, maxTTL time.Duration) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, maxTTL: maxTTL}
}

func (s *RedisRevocationStore) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedTokenPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedTokenPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

func (s *RedisRevocationStore) RevokeUserTokens(ctx context.Context, userID string, at time.Time) error {
	if err := s.client.Set(ctx, revokedUserPrefix+userID, at.Unix(), s.maxTTL).Err(); err != nil {
		return fmt.Errorf("failed to revoke tokens of user %s: %w", userID, err)
	}
	return nil
}

func (s *RedisRevocationStore) UserRevokedAt(ctx context.Context, userID string) (time.Time, error) {
	raw, err := s.client.Get(ctx, revokedUserPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read revocation of user %s: %w", userID, err)
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt revocation entry for user %s: %w", userID, err)
	}
	return time.Unix(sec, 0), nil
}
