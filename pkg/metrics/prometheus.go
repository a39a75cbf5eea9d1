package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job run outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	JobRuns        *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	OverlapSkips   *prometheus.CounterVec
	RecordsCreated *prometheus.CounterVec
	ItemsProcessed *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec
	TokenRefreshes *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics on the given registerer.
// A nil registerer uses the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		JobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "The total number of job firings by outcome",
		}, []string{"job", "outcome"}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time taken by a job firing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		OverlapSkips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_overlap_skips_total",
			Help:      "Triggers skipped because the job was still running",
		}, []string{"job"}),
		RecordsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_created_total",
			Help:      "The total number of trips, flights and check-ins created",
		}, []string{"job"}),
		ItemsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "The total number of provider items processed",
		}, []string{"job"}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider failures by provider and kind",
		}, []string{"provider", "kind"}),
		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Token refresh attempts by provider and result",
		}, []string{"provider", "result"}),
	}
}

// ObserveJob records the outcome and duration of a job firing
func (m *Metrics) ObserveJob(job, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.JobDuration.WithLabelValues(job).Observe(seconds)
	}
}

// ObserveOverlap counts a trigger skipped because the job was running
func (m *Metrics) ObserveOverlap(job string) {
	if m == nil {
		return
	}
	m.OverlapSkips.WithLabelValues(job).Inc()
}

// ObserveItems counts processed items and created records of a job
func (m *Metrics) ObserveItems(job string, processed, created int) {
	if m == nil {
		return
	}
	m.ItemsProcessed.WithLabelValues(job).Add(float64(processed))
	m.RecordsCreated.WithLabelValues(job).Add(float64(created))
}

// ObserveProviderError counts a provider failure by kind
func (m *Metrics) ObserveProviderError(provider, kind string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider, kind).Inc()
}

// ObserveTokenRefresh counts a refresh attempt by result
func (m *Metrics) ObserveTokenRefresh(provider, result string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(provider, result).Inc()
}
