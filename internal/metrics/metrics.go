// Package metrics holds the prometheus collectors the engine updates.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Tasks          *prometheus.CounterVec
	Lookups        *prometheus.CounterVec
	QuotaConsumed  prometheus.Counter
	Transitions    *prometheus.CounterVec
	ScorerFallback prometheus.Counter
}

// New registers the engine collectors on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outreach",
			Name:      "tasks_total",
			Help:      "Background tasks that reached a terminal status.",
		}, []string{"type", "status"}),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outreach",
			Name:      "contact_lookups_total",
			Help:      "Directory contact lookups by result (found, not_found, error).",
		}, []string{"result"}),
		QuotaConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outreach",
			Name:      "quota_consumed_total",
			Help:      "Units charged to the daily contact lookup ledger.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outreach",
			Name:      "campaign_transitions_total",
			Help:      "Campaign stage transitions by target status.",
		}, []string{"to"}),
		ScorerFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outreach",
			Name:      "scorer_fallbacks_total",
			Help:      "Ranking runs that fell back to the deterministic scorer.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Tasks, m.Lookups, m.QuotaConsumed, m.Transitions, m.ScorerFallback)
	}
	return m
}

// Nop returns unregistered collectors, useful when metrics are not exported.
func Nop() *Metrics { return New(nil) }
