package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"outreach-engine/internal/domain"
)

const prospectCols = `id, campaign_id, company_id, name, name_key, title, department, priority,
  location, linkedin_url, source, ai_score, selected, auto_selected, email, phone,
  contact_enriched, created_at, updated_at`

func scanProspect(row interface{ Scan(...any) error }) (domain.Prospect, error) {
	var p domain.Prospect
	var priority, created, updated string
	var selected, auto, enriched int
	var email, phone sql.NullString
	if err := row.Scan(&p.ID, &p.CampaignID, &p.CompanyID, &p.Name, &p.NameKey, &p.Title,
		&p.Department, &priority, &p.Location, &p.LinkedInURL, &p.Source, &p.AIScore,
		&selected, &auto, &email, &phone, &enriched, &created, &updated); err != nil {
		return p, err
	}
	p.Priority = domain.Priority(priority)
	p.Selected = selected != 0
	p.AutoSelected = auto != 0
	p.ContactEnriched = enriched != 0
	p.Email = stringPtr(email)
	p.Phone = stringPtr(phone)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

func (d *DB) InsertProspect(ctx context.Context, p domain.Prospect) (domain.Prospect, error) {
	now := d.stamp()
	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO prospects(campaign_id, company_id, name, name_key, title, department, priority,
  location, linkedin_url, source, ai_score, selected, auto_selected, email, phone,
  contact_enriched, created_at, updated_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		p.CampaignID, p.CompanyID, p.Name, p.NameKey, p.Title, p.Department, string(p.Priority),
		p.Location, p.LinkedInURL, p.Source, p.AIScore, boolInt(p.Selected), boolInt(p.AutoSelected),
		nullString(p.Email), nullString(p.Phone), boolInt(p.ContactEnriched), now, now)
	if err != nil {
		return domain.Prospect{}, fmt.Errorf("insert prospect: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	p.CreatedAt = parseTime(now)
	p.UpdatedAt = p.CreatedAt
	return p, nil
}

func (d *DB) GetProspect(ctx context.Context, id int64) (domain.Prospect, error) {
	p, err := scanProspect(d.Pool.QueryRowContext(ctx,
		`SELECT `+prospectCols+` FROM prospects WHERE id = ? LIMIT 1;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("prospect %d: %w", id, ErrNotFound)
	}
	return p, err
}

// ProspectFilter narrows ListProspects. Zero values match everything.
type ProspectFilter struct {
	CompanyID       int64
	SelectedOnly    bool
	PendingContacts bool // selected and not yet contact enriched
}

// ListProspects returns a campaign's prospects, best first within each company.
func (d *DB) ListProspects(ctx context.Context, campaignID int64, f ProspectFilter) ([]domain.Prospect, error) {
	where := []string{"campaign_id = ?"}
	args := []any{campaignID}
	if f.CompanyID > 0 {
		where = append(where, "company_id = ?")
		args = append(args, f.CompanyID)
	}
	if f.SelectedOnly || f.PendingContacts {
		where = append(where, "selected = 1")
	}
	if f.PendingContacts {
		where = append(where, "contact_enriched = 0")
	}

	q := `SELECT ` + prospectCols + ` FROM prospects WHERE ` + strings.Join(where, " AND ") + `
ORDER BY company_id ASC,
  ai_score * CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC,
  id ASC;`

	rows, err := d.Pool.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProspectNameKeys returns the name keys already stored for a campaign and company.
func (d *DB) ProspectNameKeys(ctx context.Context, campaignID, companyID int64) (map[string]bool, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT name_key FROM prospects WHERE campaign_id = ? AND company_id = ?;`, campaignID, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out[k] = true
	}
	return out, rows.Err()
}

// SetProspectSelected writes both selection flags.
func (d *DB) SetProspectSelected(ctx context.Context, id int64, selected, auto bool) error {
	res, err := d.Pool.ExecContext(ctx, `
UPDATE prospects SET selected = ?, auto_selected = ?, updated_at = ?
WHERE id = ?;`, boolInt(selected), boolInt(auto), d.stamp(), id)
	if err != nil {
		return fmt.Errorf("select prospect: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("prospect %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateProspectContact stores lookup results. The prospect counts as contact
// enriched once either field is known.
func (d *DB) UpdateProspectContact(ctx context.Context, id int64, email, phone *string) error {
	enriched := email != nil || phone != nil
	_, err := d.Pool.ExecContext(ctx, `
UPDATE prospects
SET email = COALESCE(?, email), phone = COALESCE(?, phone),
    contact_enriched = ?, updated_at = ?
WHERE id = ?;`, nullString(email), nullString(phone), boolInt(enriched), d.stamp(), id)
	if err != nil {
		return fmt.Errorf("update prospect contact: %w", err)
	}
	return nil
}
