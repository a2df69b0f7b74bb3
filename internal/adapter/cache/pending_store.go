package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/notehaven/notehaven-auth/internal/domain"
	"github.com/notehaven/notehaven-auth/internal/repository"
)

const pendingPrefix = "discord:pending:"

// RedisPendingSignupStore implements PendingSignupStore backed by Redis.
// Records expire server-side via TTL; Consume uses GETDEL so a token can
// only ever be redeemed by one request.
type RedisPendingSignupStore struct {
	client redis.UniversalClient
}

var _ repository.PendingSignupStore = (*RedisPendingSignupStore)(nil)

// NewRedisPendingSignupStore constructs a Redis-backed pending store.
func NewRedisPendingSignupStore(client redis.UniversalClient) *RedisPendingSignupStore {
	return &RedisPendingSignupStore{client: client}
}

// Save stores the pending signup under its token with the record's
// remaining TTL.
func (s *RedisPendingSignupStore) Save(ctx context.Context, signup domain.PendingSignup) error {
	payload, err := json.Marshal(signup)
	if err != nil {
		return fmt.Errorf("marshal pending signup: %w", err)
	}
	ttl := time.Until(signup.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("pending signup already expired")
	}
	if err := s.client.Set(ctx, pendingPrefix+signup.Token, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist pending signup: %w", err)
	}
	return nil
}

// Consume atomically loads and deletes the record. A missing or already
// consumed token yields (nil, nil).
func (s *RedisPendingSignupStore) Consume(ctx context.Context, token string) (*domain.PendingSignup, error) {
	bytes, err := s.client.GetDel(ctx, pendingPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("consume pending signup: %w", err)
	}
	var signup domain.PendingSignup
	if err := json.Unmarshal(bytes, &signup); err != nil {
		return nil, fmt.Errorf("decode pending signup: %w", err)
	}
	return &signup, nil
}
