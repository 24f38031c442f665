package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Count returns the consumed lookups recorded for day (YYYY-MM-DD).
func (d *DB) Count(ctx context.Context, day string) (int, error) {
	var n int
	err := d.Pool.QueryRowContext(ctx, `SELECT count FROM quota_ledger WHERE day = ?;`, day).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read quota ledger: %w", err)
	}
	return n, nil
}

// Add increments day's counter by n, creating the row on first use, and
// returns the new total.
func (d *DB) Add(ctx context.Context, day string, n int) (int, error) {
	var total int
	err := d.Pool.QueryRowContext(ctx, `
INSERT INTO quota_ledger(day, count, updated_at)
VALUES(?,?,?)
ON CONFLICT(day) DO UPDATE SET
  count = count + excluded.count,
  updated_at = excluded.updated_at
RETURNING count;`, day, n, d.stamp()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("add quota ledger: %w", err)
	}
	return total, nil
}
