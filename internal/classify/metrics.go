package classify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tally-dev/tally/internal/model"
)

// Metrics counts classification outcomes. A nil *Metrics records nothing.
type Metrics struct {
	transactions *prometheus.CounterVec
	ruleMatches  *prometheus.CounterVec
	notes        prometheus.Counter
	runs         prometheus.Counter
	duration     prometheus.Histogram
}

// NewMetrics registers the classification collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		transactions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_classified_transactions_total",
				Help: "Transactions classified, by outcome (matched or uncategorized)",
			},
			[]string{"outcome"},
		),
		ruleMatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_rule_matches_total",
				Help: "Transactions assigned a category, by matching rule",
			},
			[]string{"rule_id"},
		),
		notes: f.NewCounter(prometheus.CounterOpts{
			Name: "tally_evaluation_notes_total",
			Help: "Conditions that could not be evaluated because a transaction lacked the field",
		}),
		runs: f.NewCounter(prometheus.CounterOpts{
			Name: "tally_classification_runs_total",
			Help: "Classification runs",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tally_classification_duration_seconds",
			Help:    "Wall time of a classification run",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
}

func (m *Metrics) observe(results []model.Result, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.Inc()
	m.duration.Observe(d.Seconds())
	for _, r := range results {
		if r.Matched() {
			m.transactions.WithLabelValues("matched").Inc()
			m.ruleMatches.WithLabelValues(r.MatchedRuleID).Inc()
		} else {
			m.transactions.WithLabelValues("uncategorized").Inc()
		}
		m.notes.Add(float64(len(r.Notes)))
	}
}
