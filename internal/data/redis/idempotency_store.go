package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers Idempotency-Key values so a retried mutation is
// applied at most once within the TTL
type IdempotencyStore struct {
	client goredis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewIdempotencyStore(client goredis.Cmdable, prefix string, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, prefix: prefix, ttl: ttl}
}

// Reserve claims the key. It returns false when the key was already claimed.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	return ok, nil
}

// Release forgets the key so the request may be retried
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) key(key string) string {
	return s.prefix + ":idempotency:" + key
}
