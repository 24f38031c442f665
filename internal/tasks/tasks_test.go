package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/metrics"
	"outreach-engine/internal/store"
)

func newTracker(t *testing.T) (*Tracker, *store.DB, *metrics.Metrics, int64) {
	t.Helper()
	db := store.OpenMemory(t)
	c, err := db.CreateCampaign(context.Background(), "c")
	require.NoError(t, err)
	m := metrics.Nop()
	return NewTracker(db, zaptest.NewLogger(t), m), db, m, c.ID
}

func TestTrackerLifecycle(t *testing.T) {
	tr, _, m, campaignID := newTracker(t)
	ctx := context.Background()

	id, err := tr.Create(ctx, domain.TaskContactEnrichment, campaignID, nil, 3)
	require.NoError(t, err)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	active, err := tr.ActiveFor(ctx, campaignID, domain.TaskContactEnrichment)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, id, active.ID)

	assert.True(t, tr.SetProgress(ctx, id, 0))
	assert.True(t, tr.SetProgress(ctx, id, 1))
	tr.Complete(ctx, id, map[string]int{"enriched": 3})
	tr.Fail(ctx, id, "too late")
	assert.False(t, tr.SetProgress(ctx, id, 2), "finished task takes no progress")

	got, err := tr.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, got.Status)
	assert.Empty(t, got.Error)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.JSONEq(t, `{"enriched":3}`, string(got.Result))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Tasks.WithLabelValues("contact_enrichment", "completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Tasks.WithLabelValues("contact_enrichment", "failed")))

	active, err = tr.ActiveFor(ctx, campaignID, domain.TaskContactEnrichment)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestFailRecordsMessage(t *testing.T) {
	tr, _, _, campaignID := newTracker(t)
	ctx := context.Background()

	id, err := tr.Create(ctx, domain.TaskProspectCollection, campaignID, nil, 0)
	require.NoError(t, err)
	tr.Fail(ctx, id, "boom")

	got, err := tr.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.Nil(t, got.StartedAt)
}

func TestSupervisorFailsOrphans(t *testing.T) {
	tr, db, _, campaignID := newTracker(t)
	ctx := context.Background()

	co, _, err := db.GetOrCreateCompany(ctx, "acme.io", "Acme")
	require.NoError(t, err)
	ok, err := db.ClaimCompanyForEnrichment(ctx, co.ID)
	require.NoError(t, err)
	require.True(t, ok)

	start := time.Now().UTC()
	db.Now = func() time.Time { return start }
	orphan, err := tr.Create(ctx, domain.TaskCompanyEnrichment, campaignID, &co.ID, 1)
	require.NoError(t, err)
	tr.SetProgress(ctx, orphan, 0)

	db.Now = func() time.Time { return start.Add(50 * time.Minute) }
	fresh, err := tr.Create(ctx, domain.TaskProspectCollection, campaignID, nil, 0)
	require.NoError(t, err)

	sup := &Supervisor{
		Tracker:    tr,
		Companies:  db,
		StaleAfter: 30 * time.Minute,
		Now:        func() time.Time { return start.Add(60 * time.Minute) },
	}
	n, err := sup.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := tr.Get(ctx, orphan)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskFailed, got.Status)
	assert.Contains(t, got.Error, "orphaned")

	got, err = tr.Get(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, got.Status)

	company, err := db.GetCompany(ctx, co.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrichmentFailed, company.EnrichmentStatus)
	assert.Equal(t, 1, company.EnrichmentAttempts)

	n, err = sup.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
