package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"outreach-engine/internal/directory"
	"outreach-engine/internal/domain"
	"outreach-engine/internal/store"
)

// ContactResult is the payload of a completed contact_enrichment task.
type ContactResult struct {
	Enriched      int `json:"enriched"`
	NotFound      int `json:"not_found"`
	Failed        int `json:"failed"`
	QuotaConsumed int `json:"quota_consumed"`
}

// EnrichContacts looks up email and phone for every selected prospect that
// has none yet. The whole batch is rejected up front when it would not fit
// in today's quota.
func (e *Engine) EnrichContacts(ctx context.Context, campaignID int64) (string, error) {
	c, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return "", err
	}
	if e.lookuper == nil {
		return "", fmt.Errorf("%w: directory lookups are not configured", ErrUnavailable)
	}
	if !c.Status.AtLeast(domain.CampaignProspectsCollected) {
		return "", stageError(ref(c), string(domain.CampaignProspectsCollected))
	}
	active, err := e.tracker.ActiveFor(ctx, c.ID, domain.TaskContactEnrichment)
	if err != nil {
		return "", err
	}
	if active != nil {
		return "", fmt.Errorf("%w: %s", ErrTaskInProgress, active.ID)
	}

	pending, err := e.store.ListProspects(ctx, c.ID, store.ProspectFilter{SelectedOnly: true, PendingContacts: true})
	if err != nil {
		return "", err
	}
	k := len(pending)
	if k == 0 {
		return "", invalid("prospects", "no selected prospects are waiting for contact details")
	}

	ok, usage, err := e.gate.CanConsume(ctx, k)
	if err != nil {
		return "", err
	}
	if !ok {
		e.log.Warn("contact enrichment rejected by quota",
			zap.Int64("campaign_id", c.ID),
			zap.Int("requested", k),
			zap.Int("current", usage.Count),
			zap.Int("limit", usage.Limit))
		return "", &QuotaExceededError{Current: usage.Count, Requested: k, Limit: usage.Limit}
	}

	approved := make(map[int64]bool, k)
	for _, p := range pending {
		approved[p.ID] = true
	}

	taskID, err := e.tracker.Create(ctx, domain.TaskContactEnrichment, c.ID, nil, k)
	if err != nil {
		return "", err
	}
	err = e.dispatch.Dispatch(campaignKey(c.ID), func(bg context.Context) {
		e.runContacts(bg, c.ID, taskID, approved)
	})
	if err != nil {
		e.tracker.Fail(ctx, taskID, err.Error())
		return "", err
	}
	e.log.Info("contact enrichment queued", zap.Int64("campaign_id", c.ID), zap.String("task_id", taskID), zap.Int("prospects", k))
	return taskID, nil
}

// runContacts looks up only the prospects the quota gate approved. Prospects
// selected after approval wait for the next run; approved ones that were
// deselected or enriched meanwhile are skipped.
func (e *Engine) runContacts(ctx context.Context, campaignID int64, taskID string, approved map[int64]bool) {
	defer e.guard(ctx, taskID, nil)
	log := e.log.With(zap.Int64("campaign_id", campaignID), zap.String("task_id", taskID))

	if !e.tracker.SetProgress(ctx, taskID, 0) {
		log.Warn("contact task already finished, run skipped")
		return
	}
	listed, err := e.store.ListProspects(ctx, campaignID, store.ProspectFilter{SelectedOnly: true, PendingContacts: true})
	if err != nil {
		e.tracker.Fail(ctx, taskID, err.Error())
		return
	}
	pending := listed[:0]
	for _, p := range listed {
		if approved[p.ID] {
			pending = append(pending, p)
		}
	}
	if skipped := len(listed) - len(pending); skipped > 0 {
		log.Info("prospects selected after quota approval left for the next run", zap.Int("skipped", skipped))
	}

	domains := map[int64]string{}
	var res ContactResult
	for i, p := range pending {
		if i > 0 {
			e.sleep(ctx, e.opts.CallDelay)
		}

		dom, ok := domains[p.CompanyID]
		if !ok {
			co, err := e.store.GetCompany(ctx, p.CompanyID)
			if err != nil {
				log.Warn("company lookup failed", zap.Int64("company_id", p.CompanyID), zap.Error(err))
			}
			dom = co.Domain
			domains[p.CompanyID] = dom
		}

		contact, err := e.lookuper.Lookup(ctx, directory.LookupRequest{
			Name:        p.Name,
			Title:       p.Title,
			LinkedInURL: p.LinkedInURL,
			Domain:      dom,
		})
		switch {
		case errors.Is(err, directory.ErrNotFound):
			res.NotFound++
			e.metrics.Lookups.WithLabelValues("not_found").Inc()
		case err != nil:
			res.Failed++
			e.metrics.Lookups.WithLabelValues("error").Inc()
			log.Warn("contact lookup failed", zap.Int64("prospect_id", p.ID), zap.Error(err))
		case contact.Email == nil && contact.Phone == nil:
			res.NotFound++
			e.metrics.Lookups.WithLabelValues("not_found").Inc()
		default:
			if err := e.store.UpdateProspectContact(ctx, p.ID, contact.Email, contact.Phone); err != nil {
				res.Failed++
				log.Error("contact not saved", zap.Int64("prospect_id", p.ID), zap.Error(err))
				break
			}
			res.Enriched++
			e.metrics.Lookups.WithLabelValues("found").Inc()
			if contact.Email != nil {
				if _, err := e.gate.Consume(ctx, 1); err != nil {
					log.Error("quota not recorded", zap.Error(err))
				} else {
					res.QuotaConsumed++
					e.metrics.QuotaConsumed.Inc()
				}
			}
		}
		e.tracker.SetProgress(ctx, taskID, i+1)
	}

	e.tracker.Complete(ctx, taskID, res)
	e.taskFinished(taskID, domain.TaskContactEnrichment, campaignID, res)
	log.Info("contact enrichment finished",
		zap.Int("enriched", res.Enriched),
		zap.Int("not_found", res.NotFound),
		zap.Int("failed", res.Failed))

	c, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		log.Error("campaign reload failed", zap.Error(err))
		return
	}
	if c.Status == domain.CampaignProspectsSelected {
		e.advance(ctx, c, domain.CampaignReadyForOutreach,
			"Ready for outreach",
			fmt.Sprintf("Contact details found for %d of %d prospects in %q.", res.Enriched, len(pending), c.Name))
	}
}
