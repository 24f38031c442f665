package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"outreach-engine/internal/directory"
	"outreach-engine/internal/domain"
	"outreach-engine/internal/enrich"
	"outreach-engine/internal/metrics"
	"outreach-engine/internal/notify"
	"outreach-engine/internal/quota"
	"outreach-engine/internal/store"
	"outreach-engine/internal/tasks"
	"outreach-engine/internal/worker"
)

// queue holds dispatched work until flush, so tests control when background
// operations run.
type queue struct {
	mu   sync.Mutex
	jobs []worker.Job
}

func (q *queue) Dispatch(_ string, job worker.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *queue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *queue) flush() {
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()
		job(context.Background())
	}
}

type stubEnricher struct {
	mu       sync.Mutex
	profiles map[string]*domain.CompanyProfile
	fail     map[string]error
	calls    map[string]int
}

func (s *stubEnricher) Enrich(_ context.Context, dom, _ string) (enrich.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[dom]++
	if dom == "boom.dev" {
		panic("parser exploded")
	}
	if err := s.fail[dom]; err != nil {
		return enrich.Result{}, err
	}
	p, ok := s.profiles[dom]
	if !ok {
		return enrich.Result{Status: enrich.StatusPartial, Profile: &domain.CompanyProfile{}}, nil
	}
	return enrich.Result{Status: enrich.StatusSuccess, Profile: p}, nil
}

func (s *stubEnricher) callsFor(dom string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[dom]
}

type stubLookuper struct {
	mu       sync.Mutex
	contacts map[string]directory.Contact
	errs     map[string]error
	calls    []directory.LookupRequest
}

func (s *stubLookuper) Lookup(_ context.Context, req directory.LookupRequest) (directory.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if err := s.errs[req.Name]; err != nil {
		return directory.Contact{}, err
	}
	c, ok := s.contacts[req.Name]
	if !ok {
		return directory.Contact{}, directory.ErrNotFound
	}
	return c, nil
}

type stubDomains map[string]string

func (s stubDomains) Find(_ context.Context, company string) (string, error) {
	if d, ok := s[company]; ok {
		return d, nil
	}
	return "", errors.New("no results")
}

type fixture struct {
	eng    *Engine
	db     *store.DB
	q      *queue
	rec    *notify.Recorder
	enr    *stubEnricher
	look   *stubLookuper
	gate   *quota.Gate
	sleeps int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

// newFixtureWith lets a test put a wrapper between the engine and the store.
func newFixtureWith(t *testing.T, wrap func(*store.DB) Store) *fixture {
	t.Helper()
	db := store.OpenMemory(t)
	log := zaptest.NewLogger(t)
	m := metrics.Nop()
	var s Store = db
	if wrap != nil {
		s = wrap(db)
	}

	f := &fixture{
		db:   db,
		q:    &queue{},
		rec:  &notify.Recorder{},
		enr:  &stubEnricher{profiles: map[string]*domain.CompanyProfile{}, fail: map[string]error{}},
		look: &stubLookuper{contacts: map[string]directory.Contact{}, errs: map[string]error{}},
		gate: quota.NewGate(db, 150),
	}
	eng, err := New(Deps{
		Store:      s,
		Tracker:    tasks.NewTracker(db, log, m),
		Gate:       f.gate,
		Enricher:   f.enr,
		Lookuper:   f.look,
		Domains:    stubDomains{"Acme": "https://www.acme.com/careers"},
		Notifier:   f.rec,
		Dispatcher: f.q,
		Log:        log,
		Metrics:    m,
		Options:    Options{BaseURL: "http://localhost:8080", CallDelay: 200 * time.Millisecond},
	})
	require.NoError(t, err)
	eng.sleep = func(context.Context, time.Duration) { f.sleeps++ }
	f.eng = eng
	return f
}

func (f *fixture) campaign(t *testing.T, id int64) domain.Campaign {
	t.Helper()
	c, err := f.eng.GetCampaign(context.Background(), id)
	require.NoError(t, err)
	return c
}

func ptr(s string) *string { return &s }

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.enr.profiles["alpha.io"] = &domain.CompanyProfile{
		Name:          "Alpha",
		EmployeeCount: 30,
		Founders:      []domain.Person{{Name: "Ann Lee", Title: "Co-Founder & CEO"}},
		Leadership:    []domain.Person{{Name: "Bob Stone", Title: "Head of Sales"}},
	}
	f.enr.profiles["beta.com"] = &domain.CompanyProfile{
		Name:          "Beta",
		EmployeeCount: 300,
		Founders:      []domain.Person{{Name: "Zed Old", Title: "Founder"}},
		Leadership: []domain.Person{
			{Name: "Vera Quinn", Title: "VP Sales"},
			{Name: "Carl Diaz", Title: "CRO"},
			{Name: "Dan Moss", Title: "Director of Marketing"},
			{Name: "Eve Hart", Title: "Office Manager"},
		},
	}

	c, err := f.eng.CreateCampaign(ctx, "  Q3 outbound ")
	require.NoError(t, err)
	assert.Equal(t, "Q3 outbound", c.Name)
	assert.Equal(t, domain.CampaignJobsAdded, c.Status)

	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "Account Executive", CompanyName: "Alpha", CompanyDomain: "alpha.io", Description: "<p>Close <b>deals</b></p>"})
	require.NoError(t, err)
	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "Account Executive", CompanyName: "Beta", CompanyDomain: "https://beta.com/jobs"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.q.pending())
	assert.Equal(t, domain.CampaignJobsAdded, f.campaign(t, c.ID).Status)

	f.q.flush()
	assert.Equal(t, domain.CampaignCompanyEnriched, f.campaign(t, c.ID).Status)
	require.Len(t, f.rec.Sent(), 1)
	assert.Equal(t, "http://localhost:8080/campaigns/1", f.rec.Sent()[0].Link)

	jobs, err := f.eng.ListJobs(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Close deals", jobs[0].Description)

	companies, err := f.eng.CampaignCompanies(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, companies, 2)
	assert.Equal(t, 30, companies[0].EmployeeCount)
	assert.Equal(t, 300, companies[1].EmployeeCount)

	taskID, err := f.eng.CollectProspects(ctx, c.ID)
	require.NoError(t, err)
	f.q.flush()
	assert.Equal(t, domain.CampaignProspectsCollected, f.campaign(t, c.ID).Status)

	task, err := f.eng.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, task.Status)
	var collected CollectionResult
	require.NoError(t, json.Unmarshal(task.Result, &collected))
	assert.Equal(t, CollectionResult{CompaniesProcessed: 2, ProspectsCreated: 6}, collected)

	prospects, err := f.eng.ListProspects(ctx, c.ID, store.ProspectFilter{})
	require.NoError(t, err)
	byName := map[string]domain.Prospect{}
	for _, p := range prospects {
		byName[p.Name] = p
	}
	require.Contains(t, byName, "Ann Lee")
	assert.Equal(t, domain.PriorityHigh, byName["Ann Lee"].Priority)
	assert.Equal(t, companies[0].ID, byName["Ann Lee"].CompanyID)
	assert.NotContains(t, byName, "Zed Old", "founders of large companies are not candidates")
	require.Contains(t, byName, "Vera Quinn")
	assert.Equal(t, domain.PriorityHigh, byName["Vera Quinn"].Priority)

	n, err := f.eng.AutoSelect(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, domain.CampaignProspectsSelected, f.campaign(t, c.ID).Status)

	selected, err := f.eng.ListProspects(ctx, c.ID, store.ProspectFilter{SelectedOnly: true})
	require.NoError(t, err)
	var names []string
	for _, p := range selected {
		assert.True(t, p.AutoSelected)
		names = append(names, p.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"Ann Lee", "Bob Stone", "Carl Diaz", "Dan Moss", "Vera Quinn"}, names)

	f.look.contacts["Ann Lee"] = directory.Contact{Email: ptr("ann@alpha.io")}
	f.look.contacts["Bob Stone"] = directory.Contact{Email: ptr("bob@alpha.io"), Phone: ptr("+1 555 0100")}
	f.look.contacts["Carl Diaz"] = directory.Contact{Email: ptr("carl@beta.com")}
	f.look.contacts["Vera Quinn"] = directory.Contact{Email: ptr("vera@beta.com")}

	contactTask, err := f.eng.EnrichContacts(ctx, c.ID)
	require.NoError(t, err)
	f.q.flush()

	task, err = f.eng.GetTask(ctx, contactTask)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, task.Status)
	assert.Equal(t, 5, task.Progress)
	var contacts ContactResult
	require.NoError(t, json.Unmarshal(task.Result, &contacts))
	assert.Equal(t, ContactResult{Enriched: 4, NotFound: 1, QuotaConsumed: 4}, contacts)

	assert.Len(t, f.look.calls, 5)
	assert.Equal(t, 4, f.sleeps)
	for _, call := range f.look.calls {
		assert.NotEmpty(t, call.Domain)
	}

	usage, err := f.eng.QuotaUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, usage.Count)
	assert.Equal(t, 146, usage.Remaining)

	assert.Equal(t, domain.CampaignReadyForOutreach, f.campaign(t, c.ID).Status)
	sent := f.rec.Sent()
	require.Len(t, sent, 4)
	assert.Equal(t, "Ready for outreach", sent[3].Title)

	// a second run only retries the prospect that was not found
	_, err = f.eng.EnrichContacts(ctx, c.ID)
	require.NoError(t, err)
	f.q.flush()
	require.Len(t, f.look.calls, 6)
	assert.Equal(t, "Dan Moss", f.look.calls[5].Name)
	assert.Equal(t, domain.CampaignReadyForOutreach, f.campaign(t, c.ID).Status)
	assert.Len(t, f.rec.Sent(), 4)
}

func TestQuotaRejectsWholeBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.db.CreateCampaign(ctx, "c")
	require.NoError(t, err)
	ok, err := f.db.AdvanceCampaign(ctx, c.ID, domain.CampaignJobsAdded, domain.CampaignProspectsSelected)
	require.NoError(t, err)
	require.True(t, ok)
	co, _, err := f.db.GetOrCreateCompany(ctx, "acme.com", "Acme")
	require.NoError(t, err)
	for _, name := range []string{"A One", "B Two", "C Three", "D Four", "E Five"} {
		p, err := f.db.InsertProspect(ctx, domain.Prospect{CampaignID: c.ID, CompanyID: co.ID, Name: name, NameKey: name, Priority: domain.PriorityLow, Source: "directory"})
		require.NoError(t, err)
		require.NoError(t, f.db.SetProspectSelected(ctx, p.ID, true, false))
	}
	_, err = f.db.Add(ctx, f.gate.Day(), 149)
	require.NoError(t, err)

	_, err = f.eng.EnrichContacts(ctx, c.ID)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 149, qe.Current)
	assert.Equal(t, 5, qe.Requested)
	assert.Equal(t, 150, qe.Limit)

	assert.Zero(t, f.q.pending())
	assert.Empty(t, f.look.calls)
	list, err := f.eng.ListTasks(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRetryCeilingAndManualRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enr.fail["flaky.io"] = errors.New("connection reset")

	c, err := f.eng.CreateCampaign(ctx, "retry")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.eng.AddJob(ctx, c.ID, JobInput{Title: "SDR", CompanyDomain: "flaky.io"})
		require.NoError(t, err)
		f.q.flush()
	}

	co, err := f.db.GetCompanyByDomain(ctx, "flaky.io")
	require.NoError(t, err)
	assert.Equal(t, domain.EnrichmentFailed, co.EnrichmentStatus)
	assert.Equal(t, 3, co.EnrichmentAttempts)
	assert.Equal(t, "connection reset", co.LastError)
	assert.Equal(t, 3, f.enr.callsFor("flaky.io"))

	n, err := f.eng.RetryFailedCompanies(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, f.q.pending())

	delete(f.enr.fail, "flaky.io")
	co, err = f.eng.RetryCompany(ctx, co.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrichmentProcessing, co.EnrichmentStatus)
	assert.Empty(t, co.LastError)
	f.q.flush()

	co, err = f.eng.GetCompany(ctx, co.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrichmentCompleted, co.EnrichmentStatus)
	assert.Equal(t, 3, co.EnrichmentAttempts)
	assert.Equal(t, domain.CampaignCompanyEnriched, f.campaign(t, c.ID).Status)
}

func TestRetryFailedCompaniesSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enr.fail["once.io"] = errors.New("timeout")

	c, err := f.eng.CreateCampaign(ctx, "sweep")
	require.NoError(t, err)
	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "SDR", CompanyDomain: "once.io"})
	require.NoError(t, err)
	f.q.flush()
	assert.Equal(t, domain.CampaignJobsAdded, f.campaign(t, c.ID).Status)

	delete(f.enr.fail, "once.io")
	n, err := f.eng.RetryFailedCompanies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.q.flush()
	assert.Equal(t, domain.CampaignCompanyEnriched, f.campaign(t, c.ID).Status)
}

func TestRetryCompanyBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.eng.CreateCampaign(ctx, "busy")
	require.NoError(t, err)
	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "SDR", CompanyDomain: "slow.io"})
	require.NoError(t, err)

	co, err := f.db.GetCompanyByDomain(ctx, "slow.io")
	require.NoError(t, err)
	_, err = f.eng.RetryCompany(ctx, co.ID)
	require.ErrorIs(t, err, ErrCompanyBusy)

	_, err = f.eng.RetryCompany(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEnrichmentCheckIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.eng.CreateCampaign(ctx, "idem")
	require.NoError(t, err)
	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "SDR", CompanyDomain: "one.io"})
	require.NoError(t, err)
	f.q.flush()
	require.Len(t, f.rec.Sent(), 1)

	for i := 0; i < 3; i++ {
		advanced, err := f.eng.CheckCampaignEnrichment(ctx, c.ID)
		require.NoError(t, err)
		assert.False(t, advanced)
	}
	assert.Len(t, f.rec.Sent(), 1)
	assert.Equal(t, domain.CampaignCompanyEnriched, f.campaign(t, c.ID).Status)

	// a later job at an enriched company leaves the stage where it is
	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "AE", CompanyDomain: "one.io"})
	require.NoError(t, err)
	assert.Zero(t, f.q.pending())
	assert.Equal(t, domain.CampaignCompanyEnriched, f.campaign(t, c.ID).Status)
	assert.Len(t, f.rec.Sent(), 1)
}

func TestCheckWaitsForEveryCompany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enr.fail["down.io"] = errors.New("503")

	c, err := f.eng.CreateCampaign(ctx, "partial")
	require.NoError(t, err)
	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "SDR", CompanyDomain: "up.io"})
	require.NoError(t, err)
	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "SDR", CompanyDomain: "down.io"})
	require.NoError(t, err)
	f.q.flush()

	assert.Equal(t, domain.CampaignJobsAdded, f.campaign(t, c.ID).Status)
	assert.Empty(t, f.rec.Sent())

	list, err := f.eng.ListTasks(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	statuses := map[domain.TaskStatus]int{}
	for _, task := range list {
		statuses[task.Status]++
	}
	assert.Equal(t, map[domain.TaskStatus]int{domain.TaskCompleted: 1, domain.TaskFailed: 1}, statuses)
}

func TestSharedCompanyEnrichedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c1, err := f.eng.CreateCampaign(ctx, "one")
	require.NoError(t, err)
	c2, err := f.eng.CreateCampaign(ctx, "two")
	require.NoError(t, err)

	_, err = f.eng.AddJob(ctx, c1.ID, JobInput{Title: "SDR", CompanyDomain: "shared.io"})
	require.NoError(t, err)
	_, err = f.eng.AddJob(ctx, c2.ID, JobInput{Title: "AE", CompanyDomain: "www.shared.io"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.q.pending(), "second job sees the company processing")

	f.q.flush()
	assert.Equal(t, 1, f.enr.callsFor("shared.io"))
	assert.Equal(t, domain.CampaignCompanyEnriched, f.campaign(t, c1.ID).Status)
	assert.Equal(t, domain.CampaignCompanyEnriched, f.campaign(t, c2.ID).Status)

	c3, err := f.eng.CreateCampaign(ctx, "three")
	require.NoError(t, err)
	_, err = f.eng.AddJob(ctx, c3.ID, JobInput{Title: "AE", CompanyDomain: "shared.io"})
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignCompanyEnriched, f.campaign(t, c3.ID).Status, "completed company advances immediately")
	assert.Len(t, f.rec.Sent(), 3)
}

func TestEnrichmentPanicFailsTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.eng.CreateCampaign(ctx, "panic")
	require.NoError(t, err)
	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "SDR", CompanyDomain: "boom.dev"})
	require.NoError(t, err)
	f.q.flush()

	co, err := f.db.GetCompanyByDomain(ctx, "boom.dev")
	require.NoError(t, err)
	assert.Equal(t, domain.EnrichmentFailed, co.EnrichmentStatus)

	list, err := f.eng.ListTasks(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.TaskFailed, list[0].Status)
	assert.Contains(t, list[0].Error, "parser exploded")
}

func TestStageGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.eng.CreateCampaign(ctx, "early")
	require.NoError(t, err)

	_, err = f.eng.CollectProspects(ctx, c.ID)
	require.ErrorIs(t, err, ErrInvalidStage)
	_, err = f.eng.AutoSelect(ctx, c.ID)
	require.ErrorIs(t, err, ErrInvalidStage)
	_, err = f.eng.EnrichContacts(ctx, c.ID)
	require.ErrorIs(t, err, ErrInvalidStage)

	_, err = f.eng.CollectProspects(ctx, 404)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCollectionTaskInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.eng.CreateCampaign(ctx, "twice")
	require.NoError(t, err)
	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "SDR", CompanyDomain: "x.io"})
	require.NoError(t, err)
	f.q.flush()

	first, err := f.eng.CollectProspects(ctx, c.ID)
	require.NoError(t, err)
	_, err = f.eng.CollectProspects(ctx, c.ID)
	require.ErrorIs(t, err, ErrTaskInProgress)

	f.q.flush()
	task, err := f.eng.GetTask(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, task.Status)
	assert.Equal(t, domain.CampaignProspectsCollected, f.campaign(t, c.ID).Status, "an empty collection still advances")

	// re-collection is allowed once the stage has moved on and does not regress it
	_, err = f.eng.CollectProspects(ctx, c.ID)
	require.NoError(t, err)
	f.q.flush()
	assert.Equal(t, domain.CampaignProspectsCollected, f.campaign(t, c.ID).Status)
}

func TestRecollectionSkipsKnownProspects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enr.profiles["small.io"] = &domain.CompanyProfile{
		EmployeeCount: 10,
		Founders:      []domain.Person{{Name: "Solo Founder"}},
	}

	c, err := f.eng.CreateCampaign(ctx, "again")
	require.NoError(t, err)
	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "SDR", CompanyDomain: "small.io"})
	require.NoError(t, err)
	f.q.flush()

	for i := 0; i < 2; i++ {
		_, err = f.eng.CollectProspects(ctx, c.ID)
		require.NoError(t, err)
		f.q.flush()
	}
	prospects, err := f.eng.ListProspects(ctx, c.ID, store.ProspectFilter{})
	require.NoError(t, err)
	require.Len(t, prospects, 1)
	assert.Equal(t, "Solo Founder", prospects[0].Name)
	assert.Equal(t, "Founder", prospects[0].Title)
}

func TestManualSelectionDoesNotAdvance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.db.CreateCampaign(ctx, "manual")
	require.NoError(t, err)
	_, err = f.db.AdvanceCampaign(ctx, c.ID, domain.CampaignJobsAdded, domain.CampaignProspectsCollected)
	require.NoError(t, err)
	co, _, err := f.db.GetOrCreateCompany(ctx, "m.io", "M")
	require.NoError(t, err)
	p, err := f.db.InsertProspect(ctx, domain.Prospect{CampaignID: c.ID, CompanyID: co.ID, Name: "Pat", NameKey: "pat", Priority: domain.PriorityMedium, Source: "directory"})
	require.NoError(t, err)

	got, err := f.eng.SetProspectSelected(ctx, p.ID, true)
	require.NoError(t, err)
	assert.True(t, got.Selected)
	assert.False(t, got.AutoSelected)
	assert.Equal(t, domain.CampaignProspectsCollected, f.campaign(t, c.ID).Status)
	assert.Empty(t, f.rec.Sent())

	_, err = f.eng.SetProspectSelected(ctx, 999, true)
	require.ErrorIs(t, err, ErrNotFound)

	// the manual pick counts towards the per-company limit
	n, err := f.eng.AutoSelect(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, domain.CampaignProspectsSelected, f.campaign(t, c.ID).Status)
}

func TestEnrichContactsCountsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.db.CreateCampaign(ctx, "lookups")
	require.NoError(t, err)
	_, err = f.db.AdvanceCampaign(ctx, c.ID, domain.CampaignJobsAdded, domain.CampaignProspectsSelected)
	require.NoError(t, err)
	co, _, err := f.db.GetOrCreateCompany(ctx, "l.io", "L")
	require.NoError(t, err)
	for _, name := range []string{"Has Phone", "Broken", "Missing"} {
		p, err := f.db.InsertProspect(ctx, domain.Prospect{CampaignID: c.ID, CompanyID: co.ID, Name: name, NameKey: name, Priority: domain.PriorityLow, Source: "directory"})
		require.NoError(t, err)
		require.NoError(t, f.db.SetProspectSelected(ctx, p.ID, true, false))
	}
	f.look.contacts["Has Phone"] = directory.Contact{Phone: ptr("+44 20 7946 0000")}
	f.look.errs["Broken"] = errors.New("upstream 500")

	id, err := f.eng.EnrichContacts(ctx, c.ID)
	require.NoError(t, err)
	_, err = f.eng.EnrichContacts(ctx, c.ID)
	require.ErrorIs(t, err, ErrTaskInProgress)
	f.q.flush()

	task, err := f.eng.GetTask(ctx, id)
	require.NoError(t, err)
	var res ContactResult
	require.NoError(t, json.Unmarshal(task.Result, &res))
	assert.Equal(t, ContactResult{Enriched: 1, NotFound: 1, Failed: 1}, res)

	usage, err := f.eng.QuotaUsage(ctx)
	require.NoError(t, err)
	assert.Zero(t, usage.Count, "only found emails consume quota")
	assert.Equal(t, domain.CampaignReadyForOutreach, f.campaign(t, c.ID).Status)
	for _, call := range f.look.calls {
		assert.Equal(t, "l.io", call.Domain)
	}
}

func TestEnrichContactsWithoutDirectory(t *testing.T) {
	f := newFixture(t)
	f.eng.lookuper = nil
	c, err := f.eng.CreateCampaign(context.Background(), "nodir")
	require.NoError(t, err)
	_, err = f.eng.EnrichContacts(context.Background(), c.ID)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.CreateCampaign(ctx, "   ")
	require.ErrorIs(t, err, ErrValidation)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)

	c, err := f.eng.CreateCampaign(ctx, "v")
	require.NoError(t, err)

	_, err = f.eng.AddJob(ctx, c.ID, JobInput{CompanyDomain: "a.io"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "SDR"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "SDR", CompanyName: "Nobody Knows"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.eng.AddJob(ctx, 404, JobInput{Title: "SDR", CompanyDomain: "a.io"})
	require.ErrorIs(t, err, ErrNotFound)

	job, err := f.eng.AddJob(ctx, c.ID, JobInput{Title: "SDR", CompanyName: "Acme"})
	require.NoError(t, err)
	co, err := f.eng.GetCompany(ctx, job.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, "acme.com", co.Domain)
	assert.Equal(t, "Acme", co.Name)
}

func TestDeleteCampaign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.eng.CreateCampaign(ctx, "gone")
	require.NoError(t, err)
	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "SDR", CompanyDomain: "keep.io"})
	require.NoError(t, err)
	f.q.flush()

	require.NoError(t, f.eng.DeleteCampaign(ctx, c.ID))
	_, err = f.eng.GetCampaign(ctx, c.ID)
	assert.True(t, IsNotFound(err))
	require.ErrorIs(t, f.eng.DeleteCampaign(ctx, c.ID), ErrNotFound)

	co, err := f.db.GetCompanyByDomain(ctx, "keep.io")
	require.NoError(t, err)
	assert.Equal(t, domain.EnrichmentCompleted, co.EnrichmentStatus)
}

// hookedStore runs a callback right before the next job insert.
type hookedStore struct {
	*store.DB
	beforeInsertJob func()
}

func (h *hookedStore) InsertJob(ctx context.Context, j domain.JobPosting) (domain.JobPosting, error) {
	if hook := h.beforeInsertJob; hook != nil {
		h.beforeInsertJob = nil
		hook()
	}
	return h.DB.InsertJob(ctx, j)
}

func TestAddJobSeesEnrichmentFinishedBeforeInsert(t *testing.T) {
	hs := &hookedStore{}
	f := newFixtureWith(t, func(db *store.DB) Store {
		hs.DB = db
		return hs
	})
	ctx := context.Background()
	f.enr.profiles["acme.com"] = &domain.CompanyProfile{Name: "Acme", EmployeeCount: 40}

	c1, err := f.eng.CreateCampaign(ctx, "one")
	require.NoError(t, err)
	_, err = f.eng.AddJob(ctx, c1.ID, JobInput{Title: "Account Executive", CompanyDomain: "acme.com"})
	require.NoError(t, err)
	require.Equal(t, 1, f.q.pending())

	// the company is processing when the second job arrives and finishes
	// before that job is stored
	c2, err := f.eng.CreateCampaign(ctx, "two")
	require.NoError(t, err)
	hs.beforeInsertJob = f.q.flush
	_, err = f.eng.AddJob(ctx, c2.ID, JobInput{Title: "SDR", CompanyDomain: "acme.com"})
	require.NoError(t, err)

	companies, err := f.eng.CampaignCompanies(ctx, c2.ID)
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, domain.EnrichmentCompleted, companies[0].EnrichmentStatus)
	assert.Equal(t, domain.CampaignCompanyEnriched, f.campaign(t, c1.ID).Status)
	assert.Equal(t, domain.CampaignCompanyEnriched, f.campaign(t, c2.ID).Status)
	assert.Equal(t, 1, f.enr.callsFor("acme.com"))
	assert.Len(t, f.rec.Sent(), 2)
	assert.Zero(t, f.q.pending())
}

func TestEnrichContactsLooksUpOnlyApprovedProspects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.db.CreateCampaign(ctx, "c")
	require.NoError(t, err)
	ok, err := f.db.AdvanceCampaign(ctx, c.ID, domain.CampaignJobsAdded, domain.CampaignProspectsSelected)
	require.NoError(t, err)
	require.True(t, ok)
	co, _, err := f.db.GetOrCreateCompany(ctx, "acme.com", "Acme")
	require.NoError(t, err)

	var ids []int64
	for _, name := range []string{"A One", "B Two", "C Three", "D Four", "E Five"} {
		p, err := f.db.InsertProspect(ctx, domain.Prospect{CampaignID: c.ID, CompanyID: co.ID, Name: name, NameKey: name, Priority: domain.PriorityLow, Source: "directory"})
		require.NoError(t, err)
		ids = append(ids, p.ID)
		f.look.contacts[name] = directory.Contact{Email: ptr(name + "@acme.com")}
	}
	for _, id := range ids[:2] {
		_, err := f.eng.SetProspectSelected(ctx, id, true)
		require.NoError(t, err)
	}
	_, err = f.db.Add(ctx, f.gate.Day(), 148)
	require.NoError(t, err)

	taskID, err := f.eng.EnrichContacts(ctx, c.ID)
	require.NoError(t, err)

	// selected after the quota check; must wait for a run of its own
	for _, id := range ids[2:] {
		_, err := f.eng.SetProspectSelected(ctx, id, true)
		require.NoError(t, err)
	}
	f.q.flush()

	assert.Len(t, f.look.calls, 2)
	usage, err := f.eng.QuotaUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 150, usage.Count)

	task, err := f.eng.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, task.Status)
	var res ContactResult
	require.NoError(t, json.Unmarshal(task.Result, &res))
	assert.Equal(t, ContactResult{Enriched: 2, QuotaConsumed: 2}, res)

	waiting, err := f.eng.ListProspects(ctx, c.ID, store.ProspectFilter{SelectedOnly: true, PendingContacts: true})
	require.NoError(t, err)
	assert.Len(t, waiting, 3)

	_, err = f.eng.EnrichContacts(ctx, c.ID)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Len(t, f.look.calls, 2)
}

func TestAutoSelectCountsManualSelections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.db.CreateCampaign(ctx, "c")
	require.NoError(t, err)
	ok, err := f.db.AdvanceCampaign(ctx, c.ID, domain.CampaignJobsAdded, domain.CampaignProspectsCollected)
	require.NoError(t, err)
	require.True(t, ok)
	co, _, err := f.db.GetOrCreateCompany(ctx, "acme.com", "Acme")
	require.NoError(t, err)

	scores := map[string]float64{"A One": 0.9, "B Two": 0.8, "C Three": 0.7, "D Four": 0.6, "E Five": 0.5}
	var lowest int64
	for _, name := range []string{"A One", "B Two", "C Three", "D Four", "E Five"} {
		p, err := f.db.InsertProspect(ctx, domain.Prospect{CampaignID: c.ID, CompanyID: co.ID, Name: name, NameKey: name, Priority: domain.PriorityMedium, Source: "team_page", AIScore: scores[name]})
		require.NoError(t, err)
		lowest = p.ID
	}
	_, err = f.eng.SetProspectSelected(ctx, lowest, true)
	require.NoError(t, err)

	n, err := f.eng.AutoSelect(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	selected, err := f.eng.ListProspects(ctx, c.ID, store.ProspectFilter{SelectedOnly: true})
	require.NoError(t, err)
	var names []string
	for _, p := range selected {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"A One", "B Two", "E Five"}, names)
	assert.Equal(t, domain.CampaignProspectsSelected, f.campaign(t, c.ID).Status)

	n, err = f.eng.AutoSelect(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueuedEnrichmentFailedBySupervisorDoesNotRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enr.profiles["acme.com"] = &domain.CompanyProfile{Name: "Acme", EmployeeCount: 40}

	c, err := f.eng.CreateCampaign(ctx, "c")
	require.NoError(t, err)
	_, err = f.eng.AddJob(ctx, c.ID, JobInput{Title: "SDR", CompanyDomain: "acme.com"})
	require.NoError(t, err)
	require.Equal(t, 1, f.q.pending())

	sup := &tasks.Supervisor{
		Tracker:    f.eng.tracker,
		Companies:  f.db,
		StaleAfter: 30 * time.Minute,
		Now:        func() time.Time { return time.Now().Add(time.Hour) },
	}
	n, err := sup.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	f.q.flush()
	assert.Zero(t, f.enr.callsFor("acme.com"))

	list, err := f.eng.ListTasks(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.TaskFailed, list[0].Status)
	assert.Contains(t, list[0].Error, "orphaned")

	companies, err := f.eng.CampaignCompanies(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, domain.EnrichmentFailed, companies[0].EnrichmentStatus)
	assert.Equal(t, 1, companies[0].EnrichmentAttempts)
	assert.Equal(t, domain.CampaignJobsAdded, f.campaign(t, c.ID).Status)

	_, err = f.eng.RetryCompany(ctx, companies[0].ID)
	require.NoError(t, err)
	f.q.flush()
	assert.Equal(t, 1, f.enr.callsFor("acme.com"))
	assert.Equal(t, domain.CampaignCompanyEnriched, f.campaign(t, c.ID).Status)
}
