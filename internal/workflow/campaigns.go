package workflow

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/enrich"
	"outreach-engine/internal/quota"
	"outreach-engine/internal/store"
)

func (e *Engine) CreateCampaign(ctx context.Context, name string) (domain.Campaign, error) {
	name = enrich.CleanText(name)
	if name == "" {
		return domain.Campaign{}, invalid("name", "is required")
	}
	c, err := e.store.CreateCampaign(ctx, name)
	if err != nil {
		return c, err
	}
	e.log.Info("campaign created", zap.Int64("campaign_id", c.ID), zap.String("name", name))
	return c, nil
}

func (e *Engine) GetCampaign(ctx context.Context, id int64) (domain.Campaign, error) {
	return e.store.GetCampaign(ctx, id)
}

func (e *Engine) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	return e.store.ListCampaigns(ctx)
}

// DeleteCampaign removes the campaign with its jobs, prospects and tasks.
// Companies are shared and stay.
func (e *Engine) DeleteCampaign(ctx context.Context, id int64) error {
	if err := e.store.DeleteCampaign(ctx, id); err != nil {
		return err
	}
	e.log.Info("campaign deleted", zap.Int64("campaign_id", id))
	return nil
}

type JobInput struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Location      string `json:"location"`
	Country       string `json:"country"`
	URL           string `json:"url"`
	CompanyName   string `json:"company_name"`
	CompanyDomain string `json:"company_domain"`
}

// AddJob records a posting and, depending on the company's enrichment
// status, starts enrichment, retries it, or re-checks the campaign.
func (e *Engine) AddJob(ctx context.Context, campaignID int64, in JobInput) (domain.JobPosting, error) {
	c, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return domain.JobPosting{}, err
	}

	title := enrich.CleanText(in.Title)
	if title == "" {
		return domain.JobPosting{}, invalid("title", "is required")
	}
	companyName := enrich.CleanText(in.CompanyName)
	dom, err := e.resolveDomain(ctx, in.CompanyDomain, companyName)
	if err != nil {
		return domain.JobPosting{}, err
	}

	company, created, err := e.store.GetOrCreateCompany(ctx, dom, companyName)
	if err != nil {
		return domain.JobPosting{}, err
	}

	job, err := e.store.InsertJob(ctx, domain.JobPosting{
		CampaignID:  c.ID,
		CompanyID:   company.ID,
		Title:       title,
		Description: enrich.PlainText(in.Description),
		Location:    enrich.NormalizeLocation(in.Location),
		Country:     enrich.CleanText(in.Country),
		URL:         strings.TrimSpace(in.URL),
	})
	if err != nil {
		return job, err
	}

	// Re-read after the insert: an enrichment that finished in between
	// re-checked campaigns before this job existed.
	company, err = e.store.GetCompany(ctx, company.ID)
	if err != nil {
		return job, err
	}
	e.log.Info("job added",
		zap.Int64("campaign_id", c.ID),
		zap.Int64("job_id", job.ID),
		zap.String("domain", company.Domain),
		zap.Bool("new_company", created),
		zap.String("enrichment_status", string(company.EnrichmentStatus)))

	switch company.EnrichmentStatus {
	case domain.EnrichmentPending:
		e.startEnrichment(ctx, company, c.ID)
	case domain.EnrichmentFailed:
		if e.policy.ShouldRetryNow(company) {
			e.startEnrichment(ctx, company, c.ID)
		}
	case domain.EnrichmentProcessing:
		// the running enrichment re-checks every campaign when it finishes
	case domain.EnrichmentCompleted:
		if _, err := e.CheckCampaignEnrichment(ctx, c.ID); err != nil {
			e.log.Warn("enrichment check failed", zap.Int64("campaign_id", c.ID), zap.Error(err))
		}
	}
	return job, nil
}

func (e *Engine) resolveDomain(ctx context.Context, rawDomain, name string) (string, error) {
	if strings.TrimSpace(rawDomain) != "" {
		dom := enrich.NormalizeDomain(rawDomain)
		if dom == "" {
			return "", invalid("company_domain", "is not a valid domain")
		}
		return dom, nil
	}
	if name == "" {
		return "", invalid("company", "a company domain or name is required")
	}
	if e.domains == nil {
		return "", invalid("company_domain", "is required when domain lookup is disabled")
	}
	found, err := e.domains.Find(ctx, name)
	if err != nil {
		e.log.Warn("domain lookup failed", zap.String("company", name), zap.Error(err))
	}
	if dom := enrich.NormalizeDomain(found); dom != "" {
		return dom, nil
	}
	return "", invalid("company_domain", "could not find a website for "+name)
}

func (e *Engine) ListJobs(ctx context.Context, campaignID int64) ([]domain.JobPosting, error) {
	if _, err := e.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return e.store.ListJobs(ctx, campaignID)
}

func (e *Engine) ListProspects(ctx context.Context, campaignID int64, f store.ProspectFilter) ([]domain.Prospect, error) {
	if _, err := e.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return e.store.ListProspects(ctx, campaignID, f)
}

// CampaignCompanies lists the companies a campaign's jobs point at.
func (e *Engine) CampaignCompanies(ctx context.Context, campaignID int64) ([]domain.Company, error) {
	if _, err := e.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return e.store.CampaignCompanies(ctx, campaignID)
}

func (e *Engine) GetCompany(ctx context.Context, id int64) (domain.Company, error) {
	return e.store.GetCompany(ctx, id)
}

func (e *Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return e.tracker.Get(ctx, id)
}

func (e *Engine) ListTasks(ctx context.Context, campaignID int64) ([]domain.Task, error) {
	if _, err := e.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return e.tracker.ListForCampaign(ctx, campaignID)
}

func (e *Engine) QuotaUsage(ctx context.Context) (quota.Usage, error) {
	return e.gate.Usage(ctx)
}

// IsNotFound reports whether err means a record does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
