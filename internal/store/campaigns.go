package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"outreach-engine/internal/domain"
)

const campaignCols = `id, name, status, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (domain.Campaign, error) {
	var c domain.Campaign
	var status, created, updated string
	if err := row.Scan(&c.ID, &c.Name, &status, &created, &updated); err != nil {
		return c, err
	}
	c.Status = domain.CampaignStatus(status)
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

func (d *DB) CreateCampaign(ctx context.Context, name string) (domain.Campaign, error) {
	now := d.stamp()
	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO campaigns(name, status, created_at, updated_at)
VALUES(?,?,?,?);`, name, string(domain.CampaignJobsAdded), now, now)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("insert campaign: %w", err)
	}
	id, _ := res.LastInsertId()
	return d.GetCampaign(ctx, id)
}

func (d *DB) GetCampaign(ctx context.Context, id int64) (domain.Campaign, error) {
	c, err := scanCampaign(d.Pool.QueryRowContext(ctx,
		`SELECT `+campaignCols+` FROM campaigns WHERE id = ? LIMIT 1;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("campaign %d: %w", id, ErrNotFound)
	}
	return c, err
}

func (d *DB) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+campaignCols+` FROM campaigns ORDER BY created_at DESC, id DESC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCampaign removes the campaign; jobs, prospects and tasks cascade.
func (d *DB) DeleteCampaign(ctx context.Context, id int64) error {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("campaign %d: %w", id, ErrNotFound)
	}
	return nil
}

// AdvanceCampaign moves a campaign from one status to the next as a single
// compare-and-set. It reports false when the campaign was not in status from.
func (d *DB) AdvanceCampaign(ctx context.Context, id int64, from, to domain.CampaignStatus) (bool, error) {
	if !from.CanAdvanceTo(to) {
		return false, fmt.Errorf("campaign %d: %s -> %s is not a forward transition", id, from, to)
	}
	res, err := d.Pool.ExecContext(ctx, `
UPDATE campaigns SET status = ?, updated_at = ?
WHERE id = ? AND status = ?;`, string(to), d.stamp(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("advance campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
