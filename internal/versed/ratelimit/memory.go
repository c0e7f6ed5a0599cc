package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for single-node deployments and
// tests
type MemoryStore struct {
	mu       sync.Mutex
	counters map[LimitKey]*counter
	now      func() time.Time
}

type counter struct {
	count     int
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory rate limit store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[LimitKey]*counter),
		now:      time.Now,
	}
}

// Increment attempts to increment a counter and returns current count
func (s *MemoryStore) Increment(_ context.Context, key LimitKey, limit Limit) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &counter{expiresAt: now.Add(limit.Period)}
		s.counters[key] = c
	}
	c.count++

	if c.count > limit.Rate+limit.BurstSize {
		return c.count, ErrLimitExceeded
	}
	return c.count, nil
}

// Reset clears a rate limit counter
func (s *MemoryStore) Reset(_ context.Context, key LimitKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.counters, key)
	return nil
}
