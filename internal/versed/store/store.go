// Package store defines the display registry: the backing-store view of
// paired displays, their advertised local addresses, and their liveness
// timestamps.
package store

import (
	"context"
	"time"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
)

// ChangeOp classifies a row-change notification from the backing store
type ChangeOp string

const (
	// OpClaim indicates a display row was created or claimed
	OpClaim ChangeOp = "claim"
	// OpUpdate indicates a display row changed
	OpUpdate ChangeOp = "update"
	// OpRemove indicates a display row was deleted (unpaired)
	OpRemove ChangeOp = "remove"
)

// Change is one row-change event on the display table.
//
// Removal events arrive for every deleted row because the store cannot
// scope deletions server-side; subscribers filter by DisplayID after
// receipt.
type Change struct {
	Op        ChangeOp `json:"op"`
	DisplayID string   `json:"displayId"`
	TenantID  string   `json:"tenantId,omitempty"`
}

// Repository defines storage operations for the display registry
type Repository interface {
	// Get returns a display by id
	Get(ctx context.Context, displayID string) (*v1alpha1.DisplayIdentity, error)

	// List returns all displays belonging to a tenant
	List(ctx context.Context, tenantID string) ([]*v1alpha1.DisplayIdentity, error)

	// UpdateLastSeen writes the heartbeat liveness timestamp
	UpdateLastSeen(ctx context.Context, displayID string, seenAt time.Time) error

	// UpdateLocalAddress records the host's advertised LAN address
	UpdateLocalAddress(ctx context.Context, displayID, ip string, port int) error

	// ClearLocalAddress removes the advertised address on graceful shutdown
	ClearLocalAddress(ctx context.Context, displayID string) error

	// SavePairingCode records a short-lived pairing code for this host
	SavePairingCode(ctx context.Context, code string, expiresAt time.Time) error

	// GetClaim returns the identity a pairing code was exchanged for, or
	// ErrNotFound while the code is still unclaimed
	GetClaim(ctx context.Context, code string) (*v1alpha1.DisplayIdentity, error)
}

// ChangeHandler receives row-change events
type ChangeHandler func(Change)

// ChangeFeed delivers row-change notifications from the display table
type ChangeFeed interface {
	// Subscribe starts delivering changes to the handler until ctx ends
	Subscribe(ctx context.Context, handler ChangeHandler) error

	// Close stops the feed
	Close() error
}
