package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the approval module. Tracks vote and
// decision throughput plus the hot-path durations and lost CAS races.
type Metrics struct {
	VotesCast           *prometheus.CounterVec
	WorkflowsDecided    *prometheus.CounterVec
	TransitionConflicts prometheus.Counter
	EvaluationDuration  prometheus.Histogram
	CastVoteDuration    prometheus.Histogram
}

// New creates a Metrics instance with all approval module metrics registered.
func New() *Metrics {
	return &Metrics{
		VotesCast: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_votes_cast_total",
			Help: "Total number of votes cast, by vote type",
		}, []string{"type"}),
		WorkflowsDecided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_workflows_decided_total",
			Help: "Total number of workflow status transitions, by resulting status",
		}, []string{"status"}),
		TransitionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quorum_transition_conflicts_total",
			Help: "Version-guarded status writes that lost a concurrent race",
		}),
		EvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "quorum_rule_evaluation_duration_seconds",
			Help:    "Duration of consolidate+evaluate over a workflow's vote history",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		CastVoteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "quorum_cast_vote_duration_seconds",
			Help:    "End-to-end duration of the cast-vote pipeline",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveEvaluation records the duration of one consolidate+evaluate pass.
// Call with time.Now() at the start of the pass.
func (m *Metrics) ObserveEvaluation(start time.Time) {
	m.EvaluationDuration.Observe(time.Since(start).Seconds())
}

// ObserveCastVote records the end-to-end cast-vote duration.
func (m *Metrics) ObserveCastVote(start time.Time) {
	m.CastVoteDuration.Observe(time.Since(start).Seconds())
}

// IncrementVoteCast records an accepted vote by type.
func (m *Metrics) IncrementVoteCast(voteType string) {
	m.VotesCast.WithLabelValues(voteType).Inc()
}

// IncrementDecided records a committed status transition.
func (m *Metrics) IncrementDecided(status string) {
	m.WorkflowsDecided.WithLabelValues(status).Inc()
}

// IncrementConflict records a lost version-guarded write.
func (m *Metrics) IncrementConflict() {
	m.TransitionConflicts.Inc()
}
