// Package session provides refresh-token storage backends.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sitebook/api/internal/principal"
)

// ErrNotFound is returned when a refresh token is unknown, expired or revoked.
var ErrNotFound = errors.New("refresh session not found")

// tokenData is the payload stored per refresh token.
type tokenData struct {
	Kind        string    `json:"kind"`
	PrincipalID string    `json:"principalId"`
	StaffRole   string    `json:"staffRole,omitempty"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RedisStore implements refresh token storage using Redis. Expiry rides on
// the key TTL, so revoked and expired tokens look identical to callers.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "refresh:"}, nil
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

// SaveRefreshSession stores a refresh token with its principal payload.
func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash string, p principal.Principal, name string, expiresAt time.Time) error {
	data := tokenData{
		Kind:        string(p.Kind),
		PrincipalID: p.ID,
		StaffRole:   string(p.StaffRole),
		DisplayName: name,
		CreatedAt:   time.Now(),
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	if err := s.client.Set(ctx, s.key(tokenHash), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// LookupRefreshSession retrieves the principal behind a refresh token.
func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (principal.Principal, string, error) {
	jsonData, err := s.client.Get(ctx, s.key(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return principal.Principal{}, "", ErrNotFound
	}
	if err != nil {
		return principal.Principal{}, "", fmt.Errorf("lookup refresh token: %w", err)
	}

	var data tokenData
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return principal.Principal{}, "", fmt.Errorf("unmarshal token data: %w", err)
	}

	kind, err := principal.ParseKind(data.Kind)
	if err != nil {
		return principal.Principal{}, "", fmt.Errorf("stored session: %w", err)
	}

	return principal.Principal{
		Kind:      kind,
		ID:        data.PrincipalID,
		StaffRole: principal.StaffRole(data.StaffRole),
	}, data.DisplayName, nil
}

// RevokeRefreshSession deletes a refresh token.
func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
