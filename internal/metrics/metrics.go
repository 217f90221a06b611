package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus instruments for the service.
type Metrics struct {
	// Lifecycle
	SubmissionsTotal *prometheus.CounterVec // by kind
	SubmissionsBusy  prometheus.Counter
	TransitionsTotal *prometheus.CounterVec // by target status
	ExecutionSeconds prometheus.Histogram
	NotifyErrors     prometheus.Counter

	// Bandit
	PicksTotal          *prometheus.CounterVec // by policy
	RewardsTotal        prometheus.Counter
	ExplanationFailures prometheus.Counter
	ExplanationLatency  prometheus.Histogram
}

// New creates and registers all metrics.
func New() *Metrics {
	return &Metrics{
		SubmissionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ailab_submissions_total",
				Help: "Work item submissions accepted, by kind",
			},
			[]string{"kind"},
		),
		SubmissionsBusy: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ailab_submissions_busy",
			Help: "Work item submissions rejected because the worker queue was full",
		}),
		TransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ailab_transitions_total",
				Help: "Work item status transitions, by target status",
			},
			[]string{"status"},
		),
		ExecutionSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ailab_execution_seconds",
			Help:    "Wall-clock duration of work item execution",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		NotifyErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ailab_notify_errors",
			Help: "Observer notification failures (non-fatal)",
		}),
		PicksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ailab_bandit_picks_total",
				Help: "Bandit arm picks, by policy",
			},
			[]string{"policy"},
		),
		RewardsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ailab_bandit_rewards_total",
			Help: "Reward events logged",
		}),
		ExplanationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ailab_explanation_failures",
			Help: "Pick explanations that failed after retries (pick unaffected)",
		}),
		ExplanationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ailab_explanation_latency_seconds",
			Help:    "Latency of successful explanation calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}
