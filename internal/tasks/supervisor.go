package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"outreach-engine/internal/domain"
)

// CompanyFailer marks an orphaned company enrichment as failed.
type CompanyFailer interface {
	MarkCompanyFailed(ctx context.Context, id int64, msg string) error
}

// Supervisor fails tasks that stopped reporting progress, typically because
// the process restarted while they were in flight.
type Supervisor struct {
	Tracker    *Tracker
	Companies  CompanyFailer
	StaleAfter time.Duration
	Now        func() time.Time
}

func (s *Supervisor) Sweep(ctx context.Context) (int, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	stale := s.StaleAfter
	if stale <= 0 {
		stale = 30 * time.Minute
	}

	orphans, err := s.Tracker.store.StaleTasks(ctx, now().Add(-stale))
	if err != nil {
		return 0, fmt.Errorf("list stale tasks: %w", err)
	}

	msg := fmt.Sprintf("orphaned: no progress for %s", stale)
	for _, t := range orphans {
		s.Tracker.Fail(ctx, t.ID, msg)
		if t.Type == domain.TaskCompanyEnrichment && t.CompanyID != nil && s.Companies != nil {
			if err := s.Companies.MarkCompanyFailed(ctx, *t.CompanyID, msg); err != nil {
				s.Tracker.log.Warn("orphaned company not marked failed",
					zap.Int64("company_id", *t.CompanyID), zap.Error(err))
			}
		}
	}
	if len(orphans) > 0 {
		s.Tracker.log.Info("supervisor sweep", zap.Int("orphaned", len(orphans)))
	}
	return len(orphans), nil
}
