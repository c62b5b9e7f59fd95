package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ RateLimitRepository = (*RateLimitRepositoryImpl)(nil)

// RateLimitRepositoryImpl keeps one last-added timestamp per client identifier
type RateLimitRepositoryImpl struct {
	db *DB
}

func NewRateLimitRepository(db *DB) *RateLimitRepositoryImpl {
	return &RateLimitRepositoryImpl{db: db}
}

// GetLastAdded returns nil when the identifier has never added anything.
func (r *RateLimitRepositoryImpl) GetLastAdded(ctx context.Context, identifier string) (*time.Time, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		"SELECT last_added FROM rate_limits WHERE ip_address = ?", identifier).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last added time: %w", err)
	}

	t, err := parseTime(value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last added time %q: %w", value, err)
	}
	return &t, nil
}

func (r *RateLimitRepositoryImpl) SetLastAdded(ctx context.Context, identifier string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rate_limits (ip_address, last_added) VALUES (?, ?)
		ON CONFLICT (ip_address) DO UPDATE SET last_added = excluded.last_added
	`, identifier, formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to set last added time: %w", err)
	}
	return nil
}

func (r *RateLimitRepositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM rate_limits WHERE last_added < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune rate limits: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return deleted, nil
}
