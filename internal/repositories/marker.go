package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/trackbot/internal/models"
)

// MarkerRepository stores TTL markers. Expired rows are invisible to reads and removed by [MarkerRepository.Purge].
type MarkerRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewMarkerRepository creates a new MarkerRepository with the given database connection
func NewMarkerRepository(db *sql.DB) *MarkerRepository {
	return &MarkerRepository{db: db, now: time.Now}
}

// WithClock replaces the wall clock used for expiry, mostly for tests.
func (r *MarkerRepository) WithClock(now func() time.Time) *MarkerRepository {
	r.now = now
	return r
}

// Get returns the value of a live marker. The boolean is false when the key is absent or expired.
func (r *MarkerRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM markers WHERE key = ? AND expires_at > ?`, key, r.now().UnixMilli(),
	).Scan(&value)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("failed to get marker: %w", err)
	}

	return value, true, nil
}

// Set writes key with the given ttl, replacing any previous marker.
func (r *MarkerRepository) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	query := `
		INSERT INTO markers (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`

	if _, err := r.db.ExecContext(ctx, query, key, value, r.now().Add(ttl).UnixMilli()); err != nil {
		return fmt.Errorf("failed to set marker: %w", err)
	}

	return nil
}

// Claim sets key only if no live marker exists, reporting whether it did.
//
// A live marker is left untouched, so its expiry is not extended.
func (r *MarkerRepository) Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := r.now()
	query := `
		INSERT INTO markers (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		WHERE markers.expires_at <= ?
	`

	result, err := r.db.ExecContext(ctx, query, key, value, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to claim marker: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows == 1, nil
}

// Purge deletes markers that expired before now and returns how many were removed.
func (r *MarkerRepository) Purge(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM markers WHERE expires_at <= ?`, r.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge markers: %w", err)
	}
	return result.RowsAffected()
}

// List returns every stored marker, including expired ones not yet purged.
func (r *MarkerRepository) List(ctx context.Context) ([]models.Marker, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value, expires_at FROM markers ORDER BY expires_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query markers: %w", err)
	}
	defer rows.Close()

	var markers []models.Marker
	for rows.Next() {
		var (
			m       models.Marker
			expires int64
		)
		if err := rows.Scan(&m.Key, &m.Value, &expires); err != nil {
			return nil, fmt.Errorf("failed to scan marker: %w", err)
		}
		m.ExpiresAt = time.UnixMilli(expires)
		markers = append(markers, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return markers, nil
}
