package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"outreach-engine/internal/domain"
)

const companyCols = `id, domain, name, enrichment_status, enrichment_attempts, last_error,
  employee_count, profile, enriched_at, created_at, updated_at`

const companyColsPrefixed = `c.id, c.domain, c.name, c.enrichment_status, c.enrichment_attempts, c.last_error,
  c.employee_count, c.profile, c.enriched_at, c.created_at, c.updated_at`

func scanCompany(row interface{ Scan(...any) error }) (domain.Company, error) {
	var c domain.Company
	var status, created, updated string
	var profile, enrichedAt sql.NullString
	if err := row.Scan(&c.ID, &c.Domain, &c.Name, &status, &c.EnrichmentAttempts, &c.LastError,
		&c.EmployeeCount, &profile, &enrichedAt, &created, &updated); err != nil {
		return c, err
	}
	c.EnrichmentStatus = domain.EnrichmentStatus(status)
	c.EnrichedAt = parseNullTime(enrichedAt)
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	if profile.Valid && profile.String != "" {
		var p domain.CompanyProfile
		if err := json.Unmarshal([]byte(profile.String), &p); err == nil {
			c.Profile = &p
		}
	}
	return c, nil
}

func scanCompanies(rows *sql.Rows) ([]domain.Company, error) {
	var out []domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) GetCompany(ctx context.Context, id int64) (domain.Company, error) {
	c, err := scanCompany(d.Pool.QueryRowContext(ctx,
		`SELECT `+companyCols+` FROM companies WHERE id = ? LIMIT 1;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("company %d: %w", id, ErrNotFound)
	}
	return c, err
}

func (d *DB) GetCompanyByDomain(ctx context.Context, dom string) (domain.Company, error) {
	c, err := scanCompany(d.Pool.QueryRowContext(ctx,
		`SELECT `+companyCols+` FROM companies WHERE domain = ? LIMIT 1;`, dom))
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("company %q: %w", dom, ErrNotFound)
	}
	return c, err
}

// GetOrCreateCompany returns the company for a normalized domain, creating a
// pending record on first sight. The name is only filled in when still empty.
func (d *DB) GetOrCreateCompany(ctx context.Context, dom, name string) (domain.Company, bool, error) {
	now := d.stamp()
	res, err := d.Pool.ExecContext(ctx, `
INSERT OR IGNORE INTO companies(domain, name, enrichment_status, created_at, updated_at)
VALUES(?,?,?,?,?);`, dom, name, string(domain.EnrichmentPending), now, now)
	if err != nil {
		return domain.Company{}, false, fmt.Errorf("insert company: %w", err)
	}
	created, _ := res.RowsAffected()

	if created == 0 && name != "" {
		_, _ = d.Pool.ExecContext(ctx,
			`UPDATE companies SET name = ?, updated_at = ? WHERE domain = ? AND name = '';`, name, now, dom)
	}

	c, err := d.GetCompanyByDomain(ctx, dom)
	return c, created > 0, err
}

// ClaimCompanyForEnrichment flips a pending or failed company to processing.
// The status column doubles as the lock: false means another run owns it or
// it is already completed.
func (d *DB) ClaimCompanyForEnrichment(ctx context.Context, id int64) (bool, error) {
	res, err := d.Pool.ExecContext(ctx, `
UPDATE companies SET enrichment_status = ?, updated_at = ?
WHERE id = ? AND enrichment_status IN (?, ?);`,
		string(domain.EnrichmentProcessing), d.stamp(), id,
		string(domain.EnrichmentPending), string(domain.EnrichmentFailed))
	if err != nil {
		return false, fmt.Errorf("claim company: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// MarkCompanyEnriched stores the profile of a processing company. It returns
// false when the company is no longer processing.
func (d *DB) MarkCompanyEnriched(ctx context.Context, id int64, profile *domain.CompanyProfile, employeeCount int) (bool, error) {
	var raw sql.NullString
	if profile != nil {
		b, err := json.Marshal(profile)
		if err != nil {
			return false, fmt.Errorf("encode profile: %w", err)
		}
		raw = sql.NullString{String: string(b), Valid: true}
	}
	now := d.stamp()
	res, err := d.Pool.ExecContext(ctx, `
UPDATE companies
SET enrichment_status = ?, last_error = '', employee_count = ?, profile = ?,
    enriched_at = ?, updated_at = ?,
    name = CASE WHEN name = '' THEN ? ELSE name END
WHERE id = ? AND enrichment_status = ?;`,
		string(domain.EnrichmentCompleted), employeeCount, raw, now, now, profileName(profile), id,
		string(domain.EnrichmentProcessing))
	if err != nil {
		return false, fmt.Errorf("mark company enriched: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// MarkCompanyFailed records a failed attempt on a processing company. The
// attempt counter only grows; companies in any other status are left alone.
func (d *DB) MarkCompanyFailed(ctx context.Context, id int64, msg string) error {
	_, err := d.Pool.ExecContext(ctx, `
UPDATE companies
SET enrichment_status = ?, enrichment_attempts = enrichment_attempts + 1,
    last_error = ?, updated_at = ?
WHERE id = ? AND enrichment_status = ?;`,
		string(domain.EnrichmentFailed), msg, d.stamp(), id, string(domain.EnrichmentProcessing))
	if err != nil {
		return fmt.Errorf("mark company failed: %w", err)
	}
	return nil
}

// ResetCompany puts a company back to pending and clears its error, leaving
// the attempt counter alone. Companies currently processing are not touched.
func (d *DB) ResetCompany(ctx context.Context, id int64) (bool, error) {
	res, err := d.Pool.ExecContext(ctx, `
UPDATE companies SET enrichment_status = ?, last_error = '', updated_at = ?
WHERE id = ? AND enrichment_status != ?;`,
		string(domain.EnrichmentPending), d.stamp(), id, string(domain.EnrichmentProcessing))
	if err != nil {
		return false, fmt.Errorf("reset company: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (d *DB) ListCompaniesByStatus(ctx context.Context, status domain.EnrichmentStatus) ([]domain.Company, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+companyCols+` FROM companies WHERE enrichment_status = ? ORDER BY updated_at ASC, id ASC;`,
		string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCompanies(rows)
}

func profileName(p *domain.CompanyProfile) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Name)
}

// GetCompanyDomain returns the cached domain for a company name, or "" if missing.
func (d *DB) GetCompanyDomain(ctx context.Context, company string) (string, error) {
	company = normalizeCompanyKey(company)
	if company == "" {
		return "", nil
	}

	var dom string
	err := d.Pool.QueryRowContext(ctx,
		`SELECT domain FROM company_domains WHERE company = ? LIMIT 1;`,
		company,
	).Scan(&dom)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(dom), nil
}

func (d *DB) UpsertCompanyDomain(ctx context.Context, company, dom string) error {
	company = normalizeCompanyKey(company)
	dom = strings.ToLower(strings.TrimSpace(dom))

	if company == "" || dom == "" {
		return nil
	}

	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO company_domains(company, domain, fetched_at)
VALUES(?,?,?)
ON CONFLICT(company) DO UPDATE SET
  domain = excluded.domain,
  fetched_at = excluded.fetched_at;
`, company, dom, d.now().Format(time.RFC3339))

	return err
}

func normalizeCompanyKey(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ToLower(s)
	return s
}
