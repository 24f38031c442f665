// Package retry decides when a failed company enrichment runs again.
package retry

import "outreach-engine/internal/domain"

// DefaultMaxAutoAttempts bounds the bulk sweep. Manual retries ignore it.
const DefaultMaxAutoAttempts = 3

// Policy is consulted by the workflow engine before any automatic retry.
type Policy interface {
	// ShouldRetryNow is asked when new work touches an existing company.
	ShouldRetryNow(c domain.Company) bool
	// EligibleForSweep is asked by the periodic bulk retry.
	EligibleForSweep(c domain.Company) bool
}

// OnTouch retries a failed company immediately when a job is added for it,
// once per touch, and lets the bulk sweep pick up companies that have not
// used up MaxAutoAttempts.
type OnTouch struct {
	MaxAutoAttempts int
}

func (p OnTouch) ShouldRetryNow(c domain.Company) bool {
	return c.EnrichmentStatus == domain.EnrichmentFailed
}

func (p OnTouch) EligibleForSweep(c domain.Company) bool {
	max := p.MaxAutoAttempts
	if max <= 0 {
		max = DefaultMaxAutoAttempts
	}
	return c.EnrichmentStatus == domain.EnrichmentFailed && c.EnrichmentAttempts < max
}
