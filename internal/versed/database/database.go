// Package database provides utilities for backing store operations
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/versewall/versewall/internal/versed/config"
	werrors "github.com/versewall/versewall/internal/errors"
)

// Tx wraps a database transaction with additional functionality
type Tx struct {
	*sql.Tx
}

// TxOptions defines options for transaction execution
type TxOptions struct {
	// Isolation sets the transaction isolation level
	Isolation sql.IsolationLevel
	// ReadOnly indicates if the transaction is read-only
	ReadOnly bool
}

// ConnString builds a lib/pq connection string from config
func ConnString(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// Connect opens the backing store connection with pooling configured,
// retrying the initial ping a few times so the daemon survives a store
// that is still starting.
func Connect(cfg config.DatabaseConfig, retries int, retryDelay time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	for attempt := 0; ; attempt++ {
		err = db.Ping()
		if err == nil {
			return db, nil
		}
		if attempt >= retries {
			db.Close()
			return nil, fmt.Errorf("error connecting to database: %w", err)
		}
		time.Sleep(retryDelay)
	}
}

// RunInTx executes a function within a transaction
func RunInTx(ctx context.Context, db *sql.DB, opts *TxOptions, fn func(*Tx) error) error {
	var txOpts *sql.TxOptions
	if opts != nil {
		txOpts = &sql.TxOptions{
			Isolation: opts.Isolation,
			ReadOnly:  opts.ReadOnly,
		}
	}

	tx, err := db.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	wtx := &Tx{Tx: tx}

	if err := fn(wtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("error rolling back transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// MapError converts database-specific errors to domain errors
func MapError(err error, op string) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return werrors.NewError(
				"CONFLICT",
				"resource already exists",
				op,
				werrors.ErrInvalidInput,
			)
		case "23514": // check_violation
			return werrors.NewError(
				"INVALID_INPUT",
				pqErr.Message,
				op,
				werrors.ErrInvalidInput,
			)
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return werrors.NewError(
			"NOT_FOUND",
			"resource not found",
			op,
			werrors.ErrNotFound,
		)
	}

	return werrors.NewError(
		"INTERNAL",
		"internal database error",
		op,
		err,
	)
}
