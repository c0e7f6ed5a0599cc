// Package redis implements rate limit storage using Redis
package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/versewall/versewall/internal/versed/ratelimit"
)

// Store implements rate limit storage using Redis
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis-backed rate limit store
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// keyStr converts a LimitKey to a Redis key
func (s *Store) keyStr(key ratelimit.LimitKey) string {
	return fmt.Sprintf("rate:%s:%s", key.Type, key.RemoteIP)
}

// Increment attempts to increment a counter and returns current count
func (s *Store) Increment(ctx context.Context, key ratelimit.LimitKey, limit ratelimit.Limit) (int, error) {
	redisKey := s.keyStr(key)

	pipe := s.client.Pipeline()

	getCmd := pipe.Get(ctx, redisKey)
	pipe.Incr(ctx, redisKey)

	// Set expiry if new key
	pipe.Expire(ctx, redisKey, limit.Period)

	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("%w: %v", ratelimit.ErrStoreError, err)
	}

	count := 1 // Default for new keys
	if val, err := getCmd.Result(); err == nil {
		count, _ = strconv.Atoi(val)
		count++
	}

	if count > limit.Rate+limit.BurstSize {
		return count, ratelimit.ErrLimitExceeded
	}

	return count, nil
}

// Reset clears a rate limit counter
func (s *Store) Reset(ctx context.Context, key ratelimit.LimitKey) error {
	err := s.client.Del(ctx, s.keyStr(key)).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ratelimit.ErrStoreError, err)
	}
	return nil
}
