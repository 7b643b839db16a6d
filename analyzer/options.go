package analyzer

import (
	"net/http"
	"time"

	"github.com/siteanalyzer/backend/logging"
	"github.com/siteanalyzer/backend/metrics"
	"github.com/siteanalyzer/backend/stats"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultUserAgent       = "SiteAnalyzer/1.0"
	defaultMaxPageBytes    = 10 << 20
	defaultCacheTTL        = 24 * time.Hour
	defaultProbeCacheTTL   = time.Hour
	defaultMaxCacheSize    = 1000
	defaultMaxProbeEntries = 10000
	defaultCleanupInterval = 5 * time.Minute
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithHTTPClient replaces the fetch client. Its transport is used as is.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Analyzer) {
		if client != nil {
			a.client = client
		}
	}
}

// WithTimeout bounds each page fetch and probe.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(a *Analyzer) {
		if ua != "" {
			a.userAgent = ua
		}
	}
}

// WithMaxPageBytes caps how much of a page body is read.
func WithMaxPageBytes(n int64) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxPageBytes = n
		}
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(a *Analyzer) {
		if ttl > 0 {
			a.cacheTTL = ttl
		}
	}
}

func WithProbeCacheTTL(ttl time.Duration) Option {
	return func(a *Analyzer) {
		if ttl > 0 {
			a.probeCacheTTL = ttl
		}
	}
}

// WithMaxCacheSize sets the maximum number of cached reports.
func WithMaxCacheSize(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxCacheSize = n
		}
	}
}

func WithCleanupInterval(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.cleanupInterval = d
		}
	}
}

// WithCritic enables the model critique for calls that request it.
func WithCritic(c Critic) Option {
	return func(a *Analyzer) {
		a.critic = c
	}
}

// WithStats records cache and analysis counters into s.
func WithStats(s *stats.Storage) Option {
	return func(a *Analyzer) {
		a.stats = s
	}
}

func WithMetrics(m *metrics.Manager) Option {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

func WithLogger(l logging.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}
