// Package pairing handles claiming a display into a tenant: generating
// the short-lived numeric code a user enters in the dashboard, polling
// the backing store for the claim, and persisting the result locally so
// the host resumes its identity across restarts.
package pairing

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	werrors "github.com/versewall/versewall/internal/errors"
	"github.com/versewall/versewall/internal/versed/ratelimit"
	"github.com/versewall/versewall/internal/versed/store"
)

const (
	// CodeExpiry is how long a pairing code stays claimable
	CodeExpiry = 15 * time.Minute
	// pollInterval is how often the store is checked for a claim
	pollInterval = 5 * time.Second
	// uriScheme prefixes the QR-encodable pairing URI
	uriScheme = "versewall"
)

// Code is a pending pairing request shown on the idle screen
type Code struct {
	// Value is the six-digit numeric code
	Value string
	// URI is the QR-encodable form
	URI string
	// ExpiresAt is when the code stops being claimable
	ExpiresAt time.Time
}

// Service drives the pairing workflow for one host
type Service struct {
	repo    store.Repository
	file    *File
	limiter ratelimit.Service
	logger  *slog.Logger
}

// NewService creates a pairing service
func NewService(repo store.Repository, file *File, limiter ratelimit.Service, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		file:    file,
		limiter: limiter,
		logger:  logger,
	}
}

// Resolve loads the persisted pairing, if any, and verifies the claim
// still exists in the backing store. Returns ErrNotPaired when the host
// has no identity and must pair again.
func (s *Service) Resolve(ctx context.Context) (*v1alpha1.DisplayIdentity, error) {
	const op = "Pairing.Resolve"

	saved, err := s.file.Load()
	if err != nil {
		return nil, werrors.NewError("PAIRING_FILE", "error reading pairing file", op, err)
	}
	if saved == nil {
		return nil, werrors.ErrNotPaired
	}

	identity, err := s.repo.Get(ctx, saved.DisplayID)
	if err != nil {
		if werrors.IsNotFound(err) {
			// The display was removed while this host was offline;
			// forget the stale pairing.
			s.logger.Info("persisted pairing no longer claimed", "displayId", saved.DisplayID)
			if err := s.file.Clear(); err != nil {
				s.logger.Error("error clearing pairing file", "error", err)
			}
			return nil, werrors.ErrNotPaired
		}
		return nil, err
	}

	if identity.TenantID != saved.TenantID {
		s.logger.Info("persisted pairing moved tenants; repairing required",
			"displayId", saved.DisplayID,
		)
		if err := s.file.Clear(); err != nil {
			s.logger.Error("error clearing pairing file", "error", err)
		}
		return nil, werrors.ErrNotPaired
	}

	return identity, nil
}

// NewCode generates a pairing code, records it in the backing store,
// and returns it with its QR-encodable URI.
func (s *Service) NewCode(ctx context.Context) (*Code, error) {
	const op = "Pairing.NewCode"

	value, err := numericCode(6)
	if err != nil {
		return nil, werrors.NewError("PAIRING_CODE", "error generating code", op, err)
	}

	expiresAt := time.Now().Add(CodeExpiry)
	if err := s.repo.SavePairingCode(ctx, value, expiresAt); err != nil {
		return nil, err
	}

	return &Code{
		Value:     value,
		URI:       fmt.Sprintf("%s://pair?code=%s", uriScheme, value),
		ExpiresAt: expiresAt,
	}, nil
}

// AwaitClaim polls the backing store until the code is exchanged for an
// identity, the code expires, or ctx ends. On success the pairing is
// persisted locally before returning.
func (s *Service) AwaitClaim(ctx context.Context, code *Code) (*v1alpha1.DisplayIdentity, error) {
	const op = "Pairing.AwaitClaim"

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if time.Now().After(code.ExpiresAt) {
				return nil, werrors.NewError("PAIRING_EXPIRED", "pairing code expired", op, werrors.ErrNotFound)
			}

			if err := s.limiter.Allow(ctx, ratelimit.LimitKey{
				Type:     ratelimit.TypePairingPoll,
				RemoteIP: "self",
			}); err != nil {
				continue
			}

			identity, err := s.repo.GetClaim(ctx, code.Value)
			if err != nil {
				if werrors.IsNotFound(err) {
					continue
				}
				s.logger.Error("claim poll failed", "error", err)
				continue
			}

			if err := s.file.Save(&Pairing{
				DisplayID: identity.DisplayID,
				TenantID:  identity.TenantID,
				Name:      identity.Name,
			}); err != nil {
				return nil, werrors.NewError("PAIRING_FILE", "error persisting pairing", op, err)
			}

			s.logger.Info("display claimed",
				"displayId", identity.DisplayID,
				"tenantId", identity.TenantID,
			)
			return identity, nil
		}
	}
}

// Forget discards the persisted pairing. Called when the display's
// registry row is removed while the host is running.
func (s *Service) Forget() error {
	return s.file.Clear()
}

// numericCode returns n random decimal digits
func numericCode(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}
