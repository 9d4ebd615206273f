package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TobiSchelling/drivereport/internal/telemetry"
	"github.com/TobiSchelling/drivereport/internal/tokens"
)

var _ tokens.Store = (*DB)(nil)

// Set inserts or replaces a dataset.
func (db *DB) Set(ctx context.Context, ds *tokens.Dataset) error {
	if ds == nil || ds.Token == "" {
		return errors.New("dataset without token")
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO datasets
		(token, fingerprint, payload, driver_count, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ds.Token, ds.Fingerprint, ds.Payload, len(ds.Drivers),
		ds.CreatedAt.UnixMilli(), ds.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storing dataset: %w", err)
	}
	return nil
}

// Get returns a live dataset with its payload decoded.
func (db *DB) Get(ctx context.Context, token string) (*tokens.Dataset, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT token, fingerprint, payload, created_at, expires_at
		FROM datasets WHERE token = ?`, token,
	)
	ds, err := scanDataset(row)
	if err != nil {
		return nil, err
	}
	if ds.Expired(db.now()) {
		return nil, tokens.ErrExpired
	}
	return ds, nil
}

// Expire deletes datasets expired at now.
func (db *DB) Expire(ctx context.Context, now time.Time) (int, error) {
	result, err := db.conn.ExecContext(ctx,
		"DELETE FROM datasets WHERE expires_at <= ?", now.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("expiring datasets: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ByFingerprint returns the newest live dataset with the given fingerprint.
func (db *DB) ByFingerprint(ctx context.Context, fingerprint string, now time.Time) (*tokens.Dataset, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT token, fingerprint, payload, created_at, expires_at
		FROM datasets WHERE fingerprint = ? AND expires_at > ?
		ORDER BY created_at DESC LIMIT 1`, fingerprint, now.UnixMilli(),
	)
	return scanDataset(row)
}

func scanDataset(row *sql.Row) (*tokens.Dataset, error) {
	var (
		ds                 tokens.Dataset
		created, expiresAt int64
	)
	if err := row.Scan(&ds.Token, &ds.Fingerprint, &ds.Payload, &created, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tokens.ErrNotFound
		}
		return nil, err
	}
	ds.CreatedAt = time.UnixMilli(created)
	ds.ExpiresAt = time.UnixMilli(expiresAt)

	drivers, err := telemetry.Decode(ds.Payload)
	if err != nil {
		return nil, fmt.Errorf("decoding stored dataset %s: %w", ds.Token, err)
	}
	ds.Drivers = drivers
	return &ds, nil
}
