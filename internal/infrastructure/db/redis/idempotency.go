package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/farmconnect/marketplace-api/internal/core/domain"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	pendingMarker         = "pending"
)

// IdempotencyStore remembers which order an Idempotency-Key produced.
// Key format: idem:order:<scoped key>. While the first request runs the key
// holds pendingMarker; afterwards it holds the order ID.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates an IdempotencyStore wrapping the given Redis client.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Reserve claims the key with SETNX. It returns the stored order ID when the key
// was completed before, or domain.ErrIdempotencyInFlight while it is pending.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (string, error) {
	k := s.key(key)
	ok, err := s.client.SetNX(ctx, k, pendingMarker, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("idempotency reserve: %w", err)
	}
	if ok {
		return "", nil
	}

	val, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired or released between SETNX and GET; the caller may retry.
		return "", domain.ErrIdempotencyInFlight
	}
	if err != nil {
		return "", fmt.Errorf("idempotency lookup: %w", err)
	}
	if val == pendingMarker {
		return "", domain.ErrIdempotencyInFlight
	}
	return val, nil
}

// Complete binds the key to the created order for the rest of the TTL.
func (s *IdempotencyStore) Complete(ctx context.Context, key, orderID string) error {
	return s.client.Set(ctx, s.key(key), orderID, s.ttl).Err()
}

// Release deletes a pending key so the client can retry a failed request.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *IdempotencyStore) key(key string) string {
	return "idem:order:" + key
}
