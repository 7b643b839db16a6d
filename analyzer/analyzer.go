// Package analyzer fetches a page, extracts its signals and turns them into a
// scored report with recommendations and, optionally, a model critique.
package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/siteanalyzer/backend/logging"
	"github.com/siteanalyzer/backend/metrics"
	"github.com/siteanalyzer/backend/scoring"
	"github.com/siteanalyzer/backend/stats"
)

const (
	tracerName  = "github.com/siteanalyzer/backend/analyzer"
	defaultMode = "full"

	cacheAnalysis = "analysis"
	cacheProbe    = "probe"
)

// Analyzer performs site analysis on a given URL
type Analyzer struct {
	client          *http.Client
	timeout         time.Duration
	userAgent       string
	maxPageBytes    int64
	cacheTTL        time.Duration
	probeCacheTTL   time.Duration
	maxCacheSize    int
	cleanupInterval time.Duration

	cache  *ttlCache[*Report]
	probes *ttlCache[probeResult]

	critic  Critic
	stats   *stats.Storage
	metrics *metrics.Manager
	logger  logging.Logger
	tracer  trace.Tracer

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates an Analyzer and starts its cache cleanup goroutine. Call
// Shutdown to stop it.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		timeout:         defaultTimeout,
		userAgent:       defaultUserAgent,
		maxPageBytes:    defaultMaxPageBytes,
		cacheTTL:        defaultCacheTTL,
		probeCacheTTL:   defaultProbeCacheTTL,
		maxCacheSize:    defaultMaxCacheSize,
		cleanupInterval: defaultCleanupInterval,
		logger:          logging.Named("analyzer"),
		tracer:          otel.Tracer(tracerName),
		stop:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		a.client = newHTTPClient()
	}

	a.cache = newTTLCache[*Report](a.cacheTTL, a.maxCacheSize)
	a.probes = newTTLCache[probeResult](a.probeCacheTTL, defaultMaxProbeEntries)

	go a.periodicCleanup()
	return a
}

// periodicCleanup removes expired entries from both caches periodically
func (a *Analyzer) periodicCleanup() {
	ticker := time.NewTicker(a.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.cache.cleanup()
			a.probes.cleanup()
		case <-a.stop:
			return
		}
	}
}

// Shutdown stops the cleanup goroutine and drops cached reports. The stats
// storage, if any, belongs to the caller.
func (a *Analyzer) Shutdown() {
	if a == nil {
		return
	}
	a.stopOnce.Do(func() {
		close(a.stop)
	})
	a.cache.clear()
	a.probes.clear()
}

// SetCacheTTL sets the cache TTL
func (a *Analyzer) SetCacheTTL(ttl time.Duration) {
	a.cache.setTTL(ttl)
}

// ClearCache clears the analysis cache
func (a *Analyzer) ClearCache() {
	a.cache.clear()
}

// IsCached checks if a URL is in the cache and not expired
func (a *Analyzer) IsCached(rawURL string) bool {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	_, found := a.cache.get(target)
	return found
}

// CacheStats returns statistics about the caches. Hit and miss counts are
// for the current month and need stats storage.
func (a *Analyzer) CacheStats() CacheStats {
	cs := CacheStats{
		AnalysisEntries:  a.cache.len(),
		ProbeEntries:     a.probes.len(),
		AnalysisCacheTTL: a.cache.getTTL(),
		ProbeCacheTTL:    a.probes.getTTL(),
	}
	if a.stats != nil {
		current := a.stats.CurrentStats()
		cs.AnalysisCacheHits = current.AnalysisCacheHits
		cs.AnalysisCacheMisses = current.AnalysisCacheMisses
		cs.ProbeCacheHits = current.ProbeCacheHits
		cs.ProbeCacheMisses = current.ProbeCacheMisses
	}
	return cs
}

// Analyze performs a complete analysis of the given URL. Reports are cached
// per normalized URL; a cache hit is returned with a fresh report ID and
// timestamp. Failed critiques are never cached.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string, opts Options) (*Report, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	mode := opts.Mode
	if mode == "" {
		mode = defaultMode
	}

	ctx, span := a.tracer.Start(ctx, "analyzer.Analyze", trace.WithAttributes(
		attribute.String("url", target),
		attribute.String("mode", mode),
		attribute.Bool("critique", opts.Critique),
	))
	defer span.End()

	start := time.Now()
	if cached, found := a.cache.get(target); found {
		a.record(stats.Delta{AnalysisCacheHits: 1})
		a.metrics.RecordCacheLookup(cacheAnalysis, true)
		span.SetAttributes(attribute.Bool("cache_hit", true))

		report := cached.clone()
		report.ID = uuid.NewString()
		report.Timestamp = time.Now().UTC()
		if opts.Critique && report.AIAnalysis == nil && a.critiqueEnabled() {
			report.AIAnalysis = a.runCritique(ctx, target, report)
			if report.AIAnalysis.Error == "" {
				a.cache.set(target, report.clone())
			}
		}
		span.SetAttributes(attribute.Int("overall_score", report.OverallScore))
		a.metrics.RecordAnalysis(mode, "cached", msSince(start))
		return report, nil
	}
	a.record(stats.Delta{AnalysisCacheMisses: 1})
	a.metrics.RecordCacheLookup(cacheAnalysis, false)

	report, err := a.analyze(ctx, target, opts)
	if err != nil {
		a.record(stats.Delta{Failures: 1})
		a.metrics.RecordAnalysis(mode, "error", msSince(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Warn(ctx, "analysis failed", logging.String("url", target), logging.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.Int("overall_score", report.OverallScore))
	a.metrics.RecordAnalysis(mode, "success", msSince(start))
	cached := report.clone()
	if cached.AIAnalysis != nil && cached.AIAnalysis.Error != "" {
		cached.AIAnalysis = nil
	}
	a.cache.set(target, cached)

	a.logger.Info(ctx, "analysis complete",
		logging.String("url", target),
		logging.Int("overall_score", report.OverallScore),
		logging.Int("recommendations", len(report.Recommendations)),
		logging.Float64("duration_ms", msSince(start)),
	)
	return report, nil
}

func (a *Analyzer) analyze(ctx context.Context, target string, opts Options) (*Report, error) {
	p, err := a.fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	probeDone := make(chan probeResult, 1)
	go func() {
		res, hit := a.probe(ctx, p.url)
		a.metrics.RecordCacheLookup(cacheProbe, hit)
		if hit {
			a.record(stats.Delta{ProbeCacheHits: 1})
		} else {
			a.record(stats.Delta{ProbeCacheMisses: 1})
		}
		probeDone <- res
	}()

	parseStart := time.Now()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.body))
	if err != nil {
		<-probeDone
		return nil, fmt.Errorf("parse page: %w", err)
	}
	domReady := p.loadTime + time.Since(parseStart)

	signals := extractSignals(doc, p)
	signals.Performance = scoring.PerformanceSignals{
		LoadTimeMs:         p.loadTime.Milliseconds(),
		DOMContentLoadedMs: domReady.Milliseconds(),
	}

	probes := <-probeDone
	signals.Technical.HasSitemap = probes.hasSitemap
	signals.Technical.HasRobots = probes.hasRobots
	if probes.robots != nil && !probes.robots.TestAgent(pathOf(p), a.userAgent) {
		a.logger.Debug(ctx, "page is disallowed by robots.txt", logging.String("url", p.url.String()))
	}

	scores, overall := scoring.Overall(signals)
	recs := scoring.Recommend(signals, scores)

	report := &Report{
		ID:              uuid.NewString(),
		Success:         true,
		URL:             target,
		Timestamp:       time.Now().UTC(),
		OverallScore:    overall,
		Scores:          scores,
		Signals:         signals,
		Recommendations: recs,
		Copy:            extractCopy(doc),
	}
	if opts.Critique && a.critiqueEnabled() {
		report.AIAnalysis = a.runCritique(ctx, target, report)
	}

	a.record(stats.Delta{Analyses: 1, OverallScore: overall})
	a.metrics.RecordOverallScore(overall)
	for _, c := range scoring.Categories {
		a.metrics.RecordCategoryScore(string(c), scores.Get(c))
	}
	for _, r := range recs {
		a.metrics.RecordRecommendation(string(r.Priority))
	}
	return report, nil
}

func (a *Analyzer) critiqueEnabled() bool {
	return a.critic != nil && a.critic.Enabled()
}

// runCritique never fails the analysis: errors are carried in the result.
func (a *Analyzer) runCritique(ctx context.Context, target string, r *Report) *CritiqueResult {
	analysis, err := a.critic.Critique(ctx, target, r.Copy)
	if err != nil {
		a.metrics.RecordCritiqueError()
		a.logger.Warn(ctx, "critique failed", logging.String("url", target), logging.Error(err))
		return &CritiqueResult{Error: err.Error()}
	}
	a.record(stats.Delta{Critiques: 1})
	return &CritiqueResult{Analysis: analysis}
}

func (a *Analyzer) record(d stats.Delta) {
	if a.stats != nil {
		a.stats.Add(d)
	}
}

func pathOf(p *page) string {
	if path := p.url.EscapedPath(); path != "" {
		return path
	}
	return "/"
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
