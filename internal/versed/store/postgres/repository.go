// Package postgres implements the display registry using PostgreSQL
package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	"github.com/versewall/versewall/internal/versed/database"
)

// Repository implements store.Repository using PostgreSQL
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL display registry
func NewRepository(db *sql.DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

const displayColumns = `id, tenant_id, name, local_ip, local_port, last_seen_at`

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

// Get returns a display by id
func (r *Repository) Get(ctx context.Context, displayID string) (*v1alpha1.DisplayIdentity, error) {
	const op = "DisplayRepository.Get"

	row := r.db.QueryRowContext(ctx, `
		SELECT `+displayColumns+`
		FROM displays
		WHERE id = $1
	`, displayID)

	d, err := scanDisplay(row)
	if err != nil {
		return nil, database.MapError(err, op)
	}
	return d, nil
}

// List returns all displays belonging to a tenant
func (r *Repository) List(ctx context.Context, tenantID string) ([]*v1alpha1.DisplayIdentity, error) {
	const op = "DisplayRepository.List"

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+displayColumns+`
		FROM displays
		WHERE tenant_id = $1
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, database.MapError(err, op)
	}
	defer rows.Close()

	var displays []*v1alpha1.DisplayIdentity
	for rows.Next() {
		d, err := scanDisplay(rows)
		if err != nil {
			return nil, database.MapError(err, op)
		}
		displays = append(displays, d)
	}
	return displays, database.MapError(rows.Err(), op)
}

// UpdateLastSeen writes the heartbeat liveness timestamp
func (r *Repository) UpdateLastSeen(ctx context.Context, displayID string, seenAt time.Time) error {
	const op = "DisplayRepository.UpdateLastSeen"

	result, err := r.db.ExecContext(ctx, `
		UPDATE displays SET last_seen_at = $2 WHERE id = $1
	`, displayID, seenAt)
	if err != nil {
		return database.MapError(err, op)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return database.MapError(sql.ErrNoRows, op)
	}
	return nil
}

// UpdateLocalAddress records the host's advertised LAN address
func (r *Repository) UpdateLocalAddress(ctx context.Context, displayID, ip string, port int) error {
	const op = "DisplayRepository.UpdateLocalAddress"

	_, err := r.db.ExecContext(ctx, `
		UPDATE displays
		SET local_ip = $2, local_port = $3, local_ip_updated_at = NOW()
		WHERE id = $1
	`, displayID, ip, port)
	if err != nil {
		return database.MapError(err, op)
	}

	r.logger.Info("advertised local address",
		"displayId", displayID,
		"localIp", ip,
		"localPort", port,
	)
	return nil
}

// ClearLocalAddress removes the advertised address on graceful shutdown
func (r *Repository) ClearLocalAddress(ctx context.Context, displayID string) error {
	const op = "DisplayRepository.ClearLocalAddress"

	_, err := r.db.ExecContext(ctx, `
		UPDATE displays
		SET local_ip = NULL, local_port = NULL, local_ip_updated_at = NULL
		WHERE id = $1
	`, displayID)
	return database.MapError(err, op)
}

// SavePairingCode records a short-lived pairing code for this host
func (r *Repository) SavePairingCode(ctx context.Context, code string, expiresAt time.Time) error {
	const op = "DisplayRepository.SavePairingCode"

	err := database.RunInTx(ctx, r.db, nil, func(tx *database.Tx) error {
		// A host only ever has one live code; stale ones just expire.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pairing_codes (code, expires_at)
			VALUES ($1, $2)
			ON CONFLICT (code) DO UPDATE SET expires_at = EXCLUDED.expires_at
		`, code, expiresAt)
		return err
	})
	return database.MapError(err, op)
}

// GetClaim returns the identity a pairing code was exchanged for. The
// claim row is written by the pairing workflow when a user enters the
// code; until then this returns a not-found error.
func (r *Repository) GetClaim(ctx context.Context, code string) (*v1alpha1.DisplayIdentity, error) {
	const op = "DisplayRepository.GetClaim"

	row := r.db.QueryRowContext(ctx, `
		SELECT `+displayColumns+`
		FROM displays d
		JOIN pairing_codes p ON p.claimed_display_id = d.id
		WHERE p.code = $1 AND p.expires_at > NOW()
	`, code)

	d, err := scanDisplay(row)
	if err != nil {
		return nil, database.MapError(err, op)
	}
	return d, nil
}
