package workflow

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/events"
)

// startEnrichment claims the company and queues an enrichment run. The
// company status is the lock: when the claim fails someone else owns the run
// or the company is already completed.
func (e *Engine) startEnrichment(ctx context.Context, company domain.Company, campaignID int64) bool {
	log := e.log.With(zap.Int64("company_id", company.ID), zap.String("domain", company.Domain))

	ok, err := e.store.ClaimCompanyForEnrichment(ctx, company.ID)
	if err != nil {
		log.Error("enrichment claim failed", zap.Error(err))
		return false
	}
	if !ok {
		log.Debug("enrichment already claimed")
		return false
	}

	companyID := company.ID
	taskID, err := e.tracker.Create(ctx, domain.TaskCompanyEnrichment, campaignID, &companyID, 1)
	if err != nil {
		e.failCompany(ctx, company, fmt.Sprintf("create task: %v", err))
		return false
	}

	err = e.dispatch.Dispatch("company:"+strconv.FormatInt(company.ID, 10), func(bg context.Context) {
		e.runEnrichment(bg, company, taskID)
	})
	if err != nil {
		e.tracker.Fail(ctx, taskID, err.Error())
		e.failCompany(ctx, company, err.Error())
		return false
	}
	log.Info("enrichment queued", zap.String("task_id", taskID))
	return true
}

func (e *Engine) runEnrichment(ctx context.Context, company domain.Company, taskID string) {
	defer e.guard(ctx, taskID, func(msg string) { e.failCompany(ctx, company, msg) })
	log := e.log.With(zap.Int64("company_id", company.ID), zap.String("domain", company.Domain))

	if !e.tracker.SetProgress(ctx, taskID, 0) {
		log.Warn("enrichment task already finished, run skipped", zap.String("task_id", taskID))
		return
	}
	res, err := e.enricher.Enrich(ctx, company.Domain, company.Name)
	if err == nil && res.Profile == nil {
		err = fmt.Errorf("enricher returned no profile")
	}
	if err != nil {
		log.Warn("enrichment failed", zap.Error(err))
		e.failCompany(ctx, company, err.Error())
		e.tracker.Fail(ctx, taskID, err.Error())
		return
	}

	employees := res.Profile.EmployeeCount
	saved, err := e.store.MarkCompanyEnriched(ctx, company.ID, res.Profile, employees)
	if err != nil {
		log.Error("enrichment not saved", zap.Error(err))
		e.failCompany(ctx, company, err.Error())
		e.tracker.Fail(ctx, taskID, err.Error())
		return
	}
	if !saved {
		log.Warn("company no longer processing, enrichment result dropped")
		e.tracker.Fail(ctx, taskID, "company is no longer processing")
		return
	}

	e.tracker.Complete(ctx, taskID, map[string]any{
		"status":         res.Status,
		"employee_count": employees,
		"founders":       len(res.Profile.Founders),
		"leadership":     len(res.Profile.Leadership),
		"targets":        len(res.Profile.TargetContacts),
	})
	e.publish(events.TypeCompanyEnriched, map[string]any{"company_id": company.ID, "domain": company.Domain})
	log.Info("company enriched", zap.String("status", res.Status), zap.Int("employees", employees))

	e.checkCampaignsFor(ctx, company.ID)
}

func (e *Engine) failCompany(ctx context.Context, company domain.Company, msg string) {
	if err := e.store.MarkCompanyFailed(ctx, company.ID, msg); err != nil {
		e.log.Error("company failure not recorded", zap.Int64("company_id", company.ID), zap.Error(err))
	}
	e.publish(events.TypeCompanyFailed, map[string]any{"company_id": company.ID, "domain": company.Domain, "error": msg})
}

// checkCampaignsFor re-checks every campaign with a job at the company.
func (e *Engine) checkCampaignsFor(ctx context.Context, companyID int64) {
	ids, err := e.store.CampaignIDsForCompany(ctx, companyID)
	if err != nil {
		e.log.Error("campaigns for company", zap.Int64("company_id", companyID), zap.Error(err))
		return
	}
	for _, id := range ids {
		if _, err := e.CheckCampaignEnrichment(ctx, id); err != nil {
			e.log.Warn("enrichment check failed", zap.Int64("campaign_id", id), zap.Error(err))
		}
	}
}

// CheckCampaignEnrichment advances a jobs_added campaign once every company
// behind its jobs is enriched. Calling it again is a no-op.
func (e *Engine) CheckCampaignEnrichment(ctx context.Context, campaignID int64) (bool, error) {
	c, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return false, err
	}
	if c.Status != domain.CampaignJobsAdded {
		return false, nil
	}

	companies, err := e.store.CampaignCompanies(ctx, campaignID)
	if err != nil {
		return false, err
	}
	if len(companies) == 0 {
		return false, nil
	}
	for _, co := range companies {
		if co.EnrichmentStatus != domain.EnrichmentCompleted {
			return false, nil
		}
	}

	return e.advance(ctx, c, domain.CampaignCompanyEnriched,
		"Companies enriched",
		fmt.Sprintf("All %d companies in %q are enriched. Prospect collection can start.", len(companies), c.Name)), nil
}

// RetryCompany is the manual retry. It resets a failed or completed company
// to pending, keeps its attempt count, and enriches it again regardless of
// the automatic retry ceiling.
func (e *Engine) RetryCompany(ctx context.Context, companyID int64) (domain.Company, error) {
	co, err := e.store.GetCompany(ctx, companyID)
	if err != nil {
		return co, err
	}
	if co.EnrichmentStatus == domain.EnrichmentProcessing {
		return co, ErrCompanyBusy
	}
	ok, err := e.store.ResetCompany(ctx, companyID)
	if err != nil {
		return co, err
	}
	if !ok {
		return co, ErrCompanyBusy
	}

	campaigns, err := e.store.CampaignIDsForCompany(ctx, companyID)
	if err != nil {
		return co, err
	}
	if len(campaigns) == 0 {
		e.log.Info("company reset without campaign, enrichment waits for the next job", zap.Int64("company_id", companyID))
		return e.store.GetCompany(ctx, companyID)
	}

	co.EnrichmentStatus = domain.EnrichmentPending
	e.startEnrichment(ctx, co, campaigns[0])
	return e.store.GetCompany(ctx, companyID)
}

// RetryFailedCompanies re-runs enrichment for failed companies the retry
// policy still allows. It returns how many runs were queued.
func (e *Engine) RetryFailedCompanies(ctx context.Context) (int, error) {
	failed, err := e.store.ListCompaniesByStatus(ctx, domain.EnrichmentFailed)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, co := range failed {
		if !e.policy.EligibleForSweep(co) {
			continue
		}
		campaigns, err := e.store.CampaignIDsForCompany(ctx, co.ID)
		if err != nil {
			e.log.Warn("campaigns for company", zap.Int64("company_id", co.ID), zap.Error(err))
			continue
		}
		if len(campaigns) == 0 {
			continue
		}
		if e.startEnrichment(ctx, co, campaigns[0]) {
			n++
		}
	}
	if n > 0 {
		e.log.Info("bulk retry", zap.Int("queued", n), zap.Int("failed", len(failed)))
	}
	return n, nil
}
