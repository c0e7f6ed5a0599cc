package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Limit types used across the host
const (
	// TypeLocalAuth limits LOCAL_AUTH handshake attempts per remote IP
	TypeLocalAuth = "local_auth"
	// TypePairingPoll limits claim polling against the backing store
	TypePairingPoll = "pairing_poll"
)

type service struct {
	store  Store
	limits map[string]Limit
	logger *slog.Logger
}

// NewService creates a rate limit service with the standard limits
// registered
func NewService(store Store, logger *slog.Logger) Service {
	s := &service{
		store:  store,
		limits: make(map[string]Limit),
		logger: logger,
	}
	s.registerDefaultLimits()
	return s
}

// registerDefaultLimits configures standard rate limits
func (s *service) registerDefaultLimits() {
	s.limits[TypeLocalAuth] = Limit{
		Rate:      10,
		Period:    time.Minute,
		BurstSize: 5,
	}
	s.limits[TypePairingPoll] = Limit{
		Rate:      30,
		Period:    time.Minute,
		BurstSize: 10,
	}
}

// Allow checks if an operation should be allowed
func (s *service) Allow(ctx context.Context, key LimitKey) error {
	limit, ok := s.limits[key.Type]
	if !ok {
		// Unregistered types are not limited
		return nil
	}

	count, err := s.store.Increment(ctx, key, limit)
	if err != nil {
		if err == ErrLimitExceeded {
			s.logger.Info("rate limit exceeded",
				"type", key.Type,
				"remoteIp", key.RemoteIP,
				"count", count,
			)
			return err
		}
		// A broken store must not lock out legitimate peers
		s.logger.Error("rate limit store error", "error", err)
		return nil
	}
	return nil
}

// GetLimit returns the configured limit for a key type
func (s *service) GetLimit(limitType string) Limit {
	return s.limits[limitType]
}

// Reset clears rate limit counters for a key
func (s *service) Reset(ctx context.Context, key LimitKey) error {
	return s.store.Reset(ctx, key)
}
