// Package workflow sequences a campaign through its fixed stages:
// jobs_added, company_enriched, prospects_collected, prospects_selected and
// ready_for_outreach. Each stage operation runs as a background task whose
// record is the caller's only handle on it.
package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"outreach-engine/internal/directory"
	"outreach-engine/internal/domain"
	"outreach-engine/internal/enrich"
	"outreach-engine/internal/events"
	"outreach-engine/internal/logging"
	"outreach-engine/internal/metrics"
	"outreach-engine/internal/notify"
	"outreach-engine/internal/quota"
	"outreach-engine/internal/rank"
	"outreach-engine/internal/retry"
	"outreach-engine/internal/store"
	"outreach-engine/internal/tasks"
	"outreach-engine/internal/worker"
)

// Store is the datastore the engine drives.
type Store interface {
	CreateCampaign(ctx context.Context, name string) (domain.Campaign, error)
	GetCampaign(ctx context.Context, id int64) (domain.Campaign, error)
	ListCampaigns(ctx context.Context) ([]domain.Campaign, error)
	DeleteCampaign(ctx context.Context, id int64) error
	AdvanceCampaign(ctx context.Context, id int64, from, to domain.CampaignStatus) (bool, error)

	InsertJob(ctx context.Context, j domain.JobPosting) (domain.JobPosting, error)
	ListJobs(ctx context.Context, campaignID int64) ([]domain.JobPosting, error)
	CampaignCompanies(ctx context.Context, campaignID int64) ([]domain.Company, error)
	CampaignIDsForCompany(ctx context.Context, companyID int64) ([]int64, error)

	GetCompany(ctx context.Context, id int64) (domain.Company, error)
	GetOrCreateCompany(ctx context.Context, dom, name string) (domain.Company, bool, error)
	ClaimCompanyForEnrichment(ctx context.Context, id int64) (bool, error)
	MarkCompanyEnriched(ctx context.Context, id int64, profile *domain.CompanyProfile, employeeCount int) (bool, error)
	MarkCompanyFailed(ctx context.Context, id int64, msg string) error
	ResetCompany(ctx context.Context, id int64) (bool, error)
	ListCompaniesByStatus(ctx context.Context, status domain.EnrichmentStatus) ([]domain.Company, error)

	InsertProspect(ctx context.Context, p domain.Prospect) (domain.Prospect, error)
	GetProspect(ctx context.Context, id int64) (domain.Prospect, error)
	ListProspects(ctx context.Context, campaignID int64, f store.ProspectFilter) ([]domain.Prospect, error)
	ProspectNameKeys(ctx context.Context, campaignID, companyID int64) (map[string]bool, error)
	SetProspectSelected(ctx context.Context, id int64, selected, auto bool) error
	UpdateProspectContact(ctx context.Context, id int64, email, phone *string) error
}

// DomainResolver finds a website domain for a company name.
type DomainResolver interface {
	Find(ctx context.Context, company string) (string, error)
}

// Publisher receives fine-grained activity events, typically an *events.Hub.
type Publisher interface {
	Publish(evt string)
}

type Options struct {
	BaseURL              string
	AutoSelectPerCompany int
	CallDelay            time.Duration // between directory contact lookups
}

type Deps struct {
	Store      Store
	Tracker    *tasks.Tracker
	Gate       *quota.Gate
	Policy     retry.Policy
	Ranker     *rank.Ranker
	Enricher   enrich.Enricher
	Lookuper   directory.Lookuper // optional
	Domains    DomainResolver     // optional
	Notifier   notify.Notifier    // optional
	Publisher  Publisher          // optional
	Dispatcher worker.Dispatcher
	Log        *zap.Logger
	Metrics    *metrics.Metrics
	Options    Options
}

type Engine struct {
	store    Store
	tracker  *tasks.Tracker
	gate     *quota.Gate
	policy   retry.Policy
	ranker   *rank.Ranker
	enricher enrich.Enricher
	lookuper directory.Lookuper
	domains  DomainResolver
	notifier notify.Notifier
	pub      Publisher
	dispatch worker.Dispatcher
	log      *zap.Logger
	metrics  *metrics.Metrics
	opts     Options

	// sleep waits between contact lookups; replaced in tests.
	sleep func(ctx context.Context, d time.Duration)
}

func New(d Deps) (*Engine, error) {
	switch {
	case d.Store == nil:
		return nil, fmt.Errorf("workflow: store is required")
	case d.Tracker == nil:
		return nil, fmt.Errorf("workflow: task tracker is required")
	case d.Gate == nil:
		return nil, fmt.Errorf("workflow: quota gate is required")
	case d.Enricher == nil:
		return nil, fmt.Errorf("workflow: enricher is required")
	case d.Dispatcher == nil:
		return nil, fmt.Errorf("workflow: dispatcher is required")
	}
	if d.Policy == nil {
		d.Policy = retry.OnTouch{MaxAutoAttempts: retry.DefaultMaxAutoAttempts}
	}
	if d.Ranker == nil {
		d.Ranker = &rank.Ranker{}
	}
	if d.Notifier == nil {
		d.Notifier = notify.Multi{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop()
	}
	if d.Options.AutoSelectPerCompany <= 0 {
		d.Options.AutoSelectPerCompany = 3
	}
	if d.Options.CallDelay < 0 {
		d.Options.CallDelay = 0
	}

	return &Engine{
		store:    d.Store,
		tracker:  d.Tracker,
		gate:     d.Gate,
		policy:   d.Policy,
		ranker:   d.Ranker,
		enricher: d.Enricher,
		lookuper: d.Lookuper,
		domains:  d.Domains,
		notifier: d.Notifier,
		pub:      d.Publisher,
		dispatch: d.Dispatcher,
		log:      logging.OrNop(d.Log).Named("workflow"),
		metrics:  d.Metrics,
		opts:     d.Options,
		sleep:    sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// advance moves the campaign forward by compare-and-set and sends exactly one
// notification when the write applied.
func (e *Engine) advance(ctx context.Context, c domain.Campaign, to domain.CampaignStatus, title, msg string) bool {
	ok, err := e.store.AdvanceCampaign(ctx, c.ID, c.Status, to)
	if err != nil {
		e.log.Error("campaign advance failed", zap.Int64("campaign_id", c.ID), zap.String("to", string(to)), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	e.metrics.Transitions.WithLabelValues(string(to)).Inc()
	e.log.Info("campaign advanced",
		zap.Int64("campaign_id", c.ID),
		zap.String("from", string(c.Status)),
		zap.String("to", string(to)))

	n := notify.Notification{
		Type:       events.TypeCampaignAdvanced,
		CampaignID: c.ID,
		Title:      title,
		Message:    msg,
		Link:       notify.CampaignLink(e.opts.BaseURL, c.ID),
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.log.Warn("notification failed", zap.Int64("campaign_id", c.ID), zap.Error(err))
	}
	return true
}

func (e *Engine) publish(typ string, data any) {
	if e.pub != nil {
		e.pub.Publish(events.MakeEvent("", typ, 1, data))
	}
}

func (e *Engine) taskFinished(id string, typ domain.TaskType, campaignID int64, result any) {
	e.publish(events.TypeTaskFinished, map[string]any{
		"task_id":     id,
		"task_type":   typ,
		"campaign_id": campaignID,
		"result":      result,
	})
}

// guard turns a panic inside background work into a failed task.
func (e *Engine) guard(ctx context.Context, taskID string, onPanic func(msg string)) {
	if r := recover(); r != nil {
		msg := fmt.Sprintf("panic: %v", r)
		e.log.Error("background task panicked", zap.String("task_id", taskID), zap.String("panic", msg))
		e.tracker.Fail(ctx, taskID, msg)
		if onPanic != nil {
			onPanic(msg)
		}
	}
}

func ref(c domain.Campaign) campaignRef { return campaignRef{id: c.ID, status: string(c.Status)} }
