// Package ratelimit guards the host's exposed entry points: LOCAL_AUTH
// handshake attempts on the LAN listener and pairing-claim polling
// against the backing store.
package ratelimit

import (
	"context"
	"time"
)

// LimitKey identifies a specific rate limit
type LimitKey struct {
	// Type selects the limit, e.g. "local_auth" or "pairing_poll"
	Type string
	// RemoteIP scopes the limit to one peer
	RemoteIP string
}

// Limit defines the rate limit configuration
type Limit struct {
	// Rate is the number of operations allowed per period
	Rate int
	// Period is the time window for the rate
	Period time.Duration
	// BurstSize allows a short burst over the rate
	BurstSize int
}

// Store handles rate limit state persistence
type Store interface {
	// Increment attempts to increment a counter and returns the current
	// count. Returns ErrLimitExceeded when the limit is exceeded.
	Increment(ctx context.Context, key LimitKey, limit Limit) (int, error)

	// Reset clears a rate limit counter
	Reset(ctx context.Context, key LimitKey) error
}

// Service manages rate limiting for the host
type Service interface {
	// Allow checks if an operation should be allowed
	Allow(ctx context.Context, key LimitKey) error

	// GetLimit returns the configured limit for a key type
	GetLimit(limitType string) Limit

	// Reset clears rate limit counters for a key
	Reset(ctx context.Context, key LimitKey) error
}

// Error types for rate limiting
var (
	ErrLimitExceeded = NewError("RATE_LIMITED", "rate limit exceeded")
	ErrStoreError    = NewError("STORE_ERROR", "rate limit store error")
)

// Error represents a rate limiting error
type Error struct {
	Code    string
	Message string
}

func (e Error) Error() string {
	return e.Message
}

// NewError creates a new rate limit error
func NewError(code string, message string) Error {
	return Error{
		Code:    code,
		Message: message,
	}
}
