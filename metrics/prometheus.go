// Package metrics provides Prometheus metrics for the site analyzer service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

var latencyBuckets = []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Manager owns every metric the service records. A nil *Manager is valid and
// records nothing.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	analyses         *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	overallScore     prometheus.Histogram
	categoryScore    *prometheus.HistogramVec
	recommendations  *prometheus.CounterVec
	critiqueErrors   prometheus.Counter
	creditsConsumed  prometheus.Counter
	cacheLookups     *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace sets the metric namespace.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry registers metrics on registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager creates a manager on its own registry, so Go runtime metrics are
// not exported unless the caller registers them.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "siteanalyzer",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.analyses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "analyses_total",
		Help:      "Analyses run, by mode (full, trial, api) and outcome",
	}, []string{"mode", "outcome"})

	m.analysisDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "analysis_duration_milliseconds",
		Help:      "End-to-end analysis time in milliseconds",
		Buckets:   latencyBuckets,
	})

	m.overallScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "overall_score",
		Help:      "Distribution of overall scores",
		Buckets:   scoreBuckets,
	})

	m.categoryScore = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "category_score",
		Help:      "Distribution of category scores",
		Buckets:   scoreBuckets,
	}, []string{"category"})

	m.recommendations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "recommendations_total",
		Help:      "Recommendations produced, by priority",
	}, []string{"priority"})

	m.critiqueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "critique_errors_total",
		Help:      "LLM critiques that failed",
	})

	m.creditsConsumed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "credits_consumed_total",
		Help:      "Analysis credits consumed",
	})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by cache and result (hit, miss)",
	}, []string{"cache", "result"})

	m.rateLimited = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a rate limiter",
	}, []string{"limiter"})
}

// Registry returns the registry backing this manager.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the manager's registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordAnalysis records one analysis. outcome is "success", "cached" or "error".
func (m *Manager) RecordAnalysis(mode, outcome string, durationMs float64) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(mode, outcome).Inc()
	m.analysisDuration.Observe(durationMs)
}

func (m *Manager) RecordOverallScore(score int) {
	if m == nil {
		return
	}
	m.overallScore.Observe(float64(score))
}

func (m *Manager) RecordCategoryScore(category string, score int) {
	if m == nil {
		return
	}
	m.categoryScore.WithLabelValues(category).Observe(float64(score))
}

func (m *Manager) RecordRecommendation(priority string) {
	if m == nil {
		return
	}
	m.recommendations.WithLabelValues(priority).Inc()
}

func (m *Manager) RecordCritiqueError() {
	if m == nil {
		return
	}
	m.critiqueErrors.Inc()
}

func (m *Manager) RecordCreditConsumed() {
	if m == nil {
		return
	}
	m.creditsConsumed.Inc()
}

// RecordCacheLookup records a hit or miss on the named cache.
func (m *Manager) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Manager) RecordRateLimited(limiter string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(limiter).Inc()
}
