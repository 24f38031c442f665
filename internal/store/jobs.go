package store

import (
	"context"
	"fmt"

	"outreach-engine/internal/domain"
)

func (d *DB) InsertJob(ctx context.Context, j domain.JobPosting) (domain.JobPosting, error) {
	now := d.now()
	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO jobs(campaign_id, company_id, title, description, location, country, url, created_at)
VALUES(?,?,?,?,?,?,?,?);`,
		j.CampaignID, j.CompanyID, j.Title, j.Description, j.Location, j.Country, j.URL, formatTime(now))
	if err != nil {
		return domain.JobPosting{}, fmt.Errorf("insert job: %w", err)
	}
	j.ID, _ = res.LastInsertId()
	j.CreatedAt = parseTime(formatTime(now))
	return j, nil
}

// ListJobs returns a campaign's jobs in insertion order.
func (d *DB) ListJobs(ctx context.Context, campaignID int64) ([]domain.JobPosting, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, campaign_id, company_id, title, description, location, country, url, created_at
FROM jobs
WHERE campaign_id = ?
ORDER BY id ASC;`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JobPosting
	for rows.Next() {
		var j domain.JobPosting
		var created string
		if err := rows.Scan(&j.ID, &j.CampaignID, &j.CompanyID, &j.Title, &j.Description,
			&j.Location, &j.Country, &j.URL, &created); err != nil {
			return nil, err
		}
		j.CreatedAt = parseTime(created)
		out = append(out, j)
	}
	return out, rows.Err()
}

// CampaignCompanies returns the distinct companies referenced by a campaign's
// jobs, ordered by first appearance.
func (d *DB) CampaignCompanies(ctx context.Context, campaignID int64) ([]domain.Company, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT `+companyColsPrefixed+`
FROM companies c
JOIN (SELECT company_id, MIN(id) AS first_job FROM jobs WHERE campaign_id = ? GROUP BY company_id) j
  ON j.company_id = c.id
ORDER BY j.first_job ASC;`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCompanies(rows)
}

// CampaignIDsForCompany lists campaigns with at least one job at the company,
// most recent first.
func (d *DB) CampaignIDsForCompany(ctx context.Context, companyID int64) ([]int64, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT campaign_id FROM jobs
WHERE company_id = ?
GROUP BY campaign_id
ORDER BY MAX(id) DESC;`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
