package workflow

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/rank"
	"outreach-engine/internal/store"
)

// CollectionResult is the payload of a completed prospect_collection task.
type CollectionResult struct {
	CompaniesProcessed int `json:"companies_processed"`
	ProspectsCreated   int `json:"prospects_created"`
	Errors             int `json:"errors"`
}

// CollectProspects queues a campaign-wide collection run and returns its
// task id.
func (e *Engine) CollectProspects(ctx context.Context, campaignID int64) (string, error) {
	c, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return "", err
	}
	if !c.Status.AtLeast(domain.CampaignCompanyEnriched) {
		return "", stageError(ref(c), string(domain.CampaignCompanyEnriched))
	}
	active, err := e.tracker.ActiveFor(ctx, c.ID, domain.TaskProspectCollection)
	if err != nil {
		return "", err
	}
	if active != nil {
		return "", fmt.Errorf("%w: %s", ErrTaskInProgress, active.ID)
	}

	companies, err := e.enrichedCompanies(ctx, c.ID)
	if err != nil {
		return "", err
	}
	taskID, err := e.tracker.Create(ctx, domain.TaskProspectCollection, c.ID, nil, len(companies))
	if err != nil {
		return "", err
	}

	err = e.dispatch.Dispatch(campaignKey(c.ID), func(bg context.Context) {
		e.runCollection(bg, c.ID, taskID)
	})
	if err != nil {
		e.tracker.Fail(ctx, taskID, err.Error())
		return "", err
	}
	e.log.Info("prospect collection queued", zap.Int64("campaign_id", c.ID), zap.String("task_id", taskID), zap.Int("companies", len(companies)))
	return taskID, nil
}

func (e *Engine) enrichedCompanies(ctx context.Context, campaignID int64) ([]domain.Company, error) {
	all, err := e.store.CampaignCompanies(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, co := range all {
		if co.EnrichmentStatus == domain.EnrichmentCompleted {
			out = append(out, co)
		}
	}
	return out, nil
}

func (e *Engine) runCollection(ctx context.Context, campaignID int64, taskID string) {
	defer e.guard(ctx, taskID, nil)
	log := e.log.With(zap.Int64("campaign_id", campaignID), zap.String("task_id", taskID))

	if !e.tracker.SetProgress(ctx, taskID, 0) {
		log.Warn("collection task already finished, run skipped")
		return
	}
	companies, err := e.enrichedCompanies(ctx, campaignID)
	if err != nil {
		e.tracker.Fail(ctx, taskID, err.Error())
		return
	}
	jobs, err := e.store.ListJobs(ctx, campaignID)
	if err != nil {
		e.tracker.Fail(ctx, taskID, err.Error())
		return
	}
	firstJob := make(map[int64]domain.JobPosting, len(companies))
	for _, j := range jobs {
		if _, ok := firstJob[j.CompanyID]; !ok {
			firstJob[j.CompanyID] = j
		}
	}

	var res CollectionResult
	for i, co := range companies {
		n, err := e.collectCompany(ctx, campaignID, co, firstJob[co.ID])
		if err != nil {
			res.Errors++
			log.Warn("prospect collection failed for company", zap.Int64("company_id", co.ID), zap.Error(err))
		} else {
			res.ProspectsCreated += n
		}
		res.CompaniesProcessed++
		e.tracker.SetProgress(ctx, taskID, i+1)
	}

	e.tracker.Complete(ctx, taskID, res)
	e.taskFinished(taskID, domain.TaskProspectCollection, campaignID, res)
	log.Info("prospect collection finished",
		zap.Int("companies", res.CompaniesProcessed),
		zap.Int("prospects", res.ProspectsCreated),
		zap.Int("errors", res.Errors))

	c, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		log.Error("campaign reload failed", zap.Error(err))
		return
	}
	if c.Status == domain.CampaignCompanyEnriched {
		e.advance(ctx, c, domain.CampaignProspectsCollected,
			"Prospects collected",
			fmt.Sprintf("Found %d prospects across %d companies in %q.", res.ProspectsCreated, res.CompaniesProcessed, c.Name))
	}
}

// collectCompany ranks one company's candidates and stores the ones the
// campaign does not already hold.
func (e *Engine) collectCompany(ctx context.Context, campaignID int64, co domain.Company, job domain.JobPosting) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	cands := e.ranker.Rank(ctx, rank.Input{Company: co, Job: job})
	if len(cands) == 0 {
		return 0, nil
	}
	existing, err := e.store.ProspectNameKeys(ctx, campaignID, co.ID)
	if err != nil {
		return 0, err
	}
	for _, cand := range cands {
		key := rank.NameKey(cand.Name)
		if key == "" || existing[key] {
			continue
		}
		_, err := e.store.InsertProspect(ctx, domain.Prospect{
			CampaignID:  campaignID,
			CompanyID:   co.ID,
			Name:        cand.Name,
			NameKey:     key,
			Title:       cand.Title,
			Department:  cand.Department,
			Priority:    cand.Priority,
			Location:    cand.Location,
			LinkedInURL: cand.LinkedInURL,
			Source:      cand.Source,
			AIScore:     cand.Score,
		})
		if err != nil {
			return n, err
		}
		existing[key] = true
		n++
	}
	return n, nil
}

// AutoSelect flags the best prospects of each company and moves a
// prospects_collected campaign to prospects_selected. Prospects already
// selected count towards the per-company limit.
func (e *Engine) AutoSelect(ctx context.Context, campaignID int64) (int, error) {
	c, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if !c.Status.AtLeast(domain.CampaignProspectsCollected) {
		return 0, stageError(ref(c), string(domain.CampaignProspectsCollected))
	}

	prospects, err := e.store.ListProspects(ctx, c.ID, store.ProspectFilter{})
	if err != nil {
		return 0, err
	}
	byCompany := map[int64][]domain.Prospect{}
	var order []int64
	for _, p := range prospects {
		if _, ok := byCompany[p.CompanyID]; !ok {
			order = append(order, p.CompanyID)
		}
		byCompany[p.CompanyID] = append(byCompany[p.CompanyID], p)
	}

	per := e.opts.AutoSelectPerCompany
	selected := 0
	for _, companyID := range order {
		group := byCompany[companyID]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].RankScore() > group[j].RankScore()
		})
		remaining := per
		for _, p := range group {
			if p.Selected {
				remaining--
			}
		}
		for _, p := range group {
			if remaining <= 0 {
				break
			}
			if p.Selected {
				continue
			}
			if err := e.store.SetProspectSelected(ctx, p.ID, true, true); err != nil {
				return selected, err
			}
			selected++
			remaining--
		}
	}
	e.log.Info("auto-select", zap.Int64("campaign_id", c.ID), zap.Int("selected", selected), zap.Int("companies", len(order)))

	if c.Status == domain.CampaignProspectsCollected {
		e.advance(ctx, c, domain.CampaignProspectsSelected,
			"Prospects selected",
			fmt.Sprintf("Selected %d prospects across %d companies in %q. Contact enrichment can start.", selected, len(order), c.Name))
	}
	return selected, nil
}

// SetProspectSelected is the manual toggle. It never advances the campaign.
func (e *Engine) SetProspectSelected(ctx context.Context, prospectID int64, selected bool) (domain.Prospect, error) {
	if err := e.store.SetProspectSelected(ctx, prospectID, selected, false); err != nil {
		return domain.Prospect{}, err
	}
	return e.store.GetProspect(ctx, prospectID)
}

func campaignKey(id int64) string { return "campaign:" + strconv.FormatInt(id, 10) }
