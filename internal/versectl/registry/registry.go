// Package registry gives the CLI a direct view of the display registry:
// listing a tenant's displays, claiming pairing codes, and removing
// displays (which sends the host back to pairing).
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	werrors "github.com/versewall/versewall/internal/errors"
)

// Registry performs display registry operations for the CLI
type Registry struct {
	db *sql.DB
}

// Connect opens the registry database
func Connect(connStr string) (*Registry, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening registry database: %w", err)
	}
	db.SetMaxOpenConns(2)
	return &Registry{db: db}, nil
}

// Close releases the database connection
func (r *Registry) Close() error {
	return r.db.Close()
}

const displayColumns = "id, tenant_id, name, local_ip, local_port, last_seen_at"

func scanDisplay(row interface{ Scan(...interface{}) error }) (*v1alpha1.DisplayIdentity, error) {
	var d v1alpha1.DisplayIdentity
	var localIP sql.NullString
	var localPort sql.NullInt64
	var lastSeen sql.NullTime

	if err := row.Scan(&d.DisplayID, &d.TenantID, &d.Name, &localIP, &localPort, &lastSeen); err != nil {
		return nil, err
	}
	if localIP.Valid {
		d.LocalIP = &localIP.String
	}
	if localPort.Valid {
		port := int(localPort.Int64)
		d.LocalPort = &port
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		d.LastSeenAt = &t
	}
	return &d, nil
}

// Get returns one display by id
func (r *Registry) Get(ctx context.Context, displayID string) (*v1alpha1.DisplayIdentity, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+displayColumns+" FROM displays WHERE id = $1", displayID)
	d, err := scanDisplay(row)
	if err == sql.ErrNoRows {
		return nil, werrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching display: %w", err)
	}
	return d, nil
}

// List returns all displays for a tenant
func (r *Registry) List(ctx context.Context, tenantID string) ([]*v1alpha1.DisplayIdentity, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+displayColumns+" FROM displays WHERE tenant_id = $1 ORDER BY name", tenantID)
	if err != nil {
		return nil, fmt.Errorf("error listing displays: %w", err)
	}
	defer rows.Close()

	var displays []*v1alpha1.DisplayIdentity
	for rows.Next() {
		d, err := scanDisplay(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning display: %w", err)
		}
		displays = append(displays, d)
	}
	return displays, rows.Err()
}

// Claim exchanges a pairing code shown on a host's screen for a new
// display registered under the tenant. The host learns its identity by
// polling the code.
func (r *Registry) Claim(ctx context.Context, code, tenantID, name string) (*v1alpha1.DisplayIdentity, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting claim: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var expiresAt time.Time
	var claimedBy sql.NullString
	err = tx.QueryRowContext(ctx,
		"SELECT expires_at, claimed_display_id FROM pairing_codes WHERE code = $1 FOR UPDATE",
		code).Scan(&expiresAt, &claimedBy)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pairing code not found")
	}
	if err != nil {
		return nil, fmt.Errorf("error looking up pairing code: %w", err)
	}
	if claimedBy.Valid {
		return nil, fmt.Errorf("pairing code already claimed")
	}
	if time.Now().After(expiresAt) {
		return nil, fmt.Errorf("pairing code expired")
	}

	displayID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO displays (id, tenant_id, name) VALUES ($1, $2, $3)",
		displayID, tenantID, name); err != nil {
		return nil, fmt.Errorf("error registering display: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE pairing_codes SET claimed_display_id = $1 WHERE code = $2",
		displayID, code); err != nil {
		return nil, fmt.Errorf("error marking code claimed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing claim: %w", err)
	}

	return &v1alpha1.DisplayIdentity{
		DisplayID: displayID,
		TenantID:  tenantID,
		Name:      name,
	}, nil
}

// Remove deletes a display. The host observes the removal through the
// registry change feed and returns to pairing.
func (r *Registry) Remove(ctx context.Context, displayID, tenantID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM displays WHERE id = $1 AND tenant_id = $2", displayID, tenantID)
	if err != nil {
		return fmt.Errorf("error removing display: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return werrors.ErrNotFound
	}
	return nil
}
