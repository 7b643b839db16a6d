package analyzer

import (
	"context"
	"time"

	"github.com/siteanalyzer/backend/critique"
	"github.com/siteanalyzer/backend/scoring"
)

// Report is the complete result of analyzing one page.
type Report struct {
	ID           string         `json:"id"`
	Success      bool           `json:"success"`
	URL          string         `json:"url"`
	Timestamp    time.Time      `json:"timestamp"`
	OverallScore int            `json:"overallScore"`
	Scores       scoring.Scores `json:"scores"`
	scoring.Signals
	Recommendations []scoring.Recommendation `json:"recommendations"`
	AIAnalysis      *CritiqueResult          `json:"aiAnalysis"`

	LimitedTrial     bool `json:"limitedTrial,omitempty"`
	CreditsRemaining *int `json:"credits_remaining,omitempty"`

	// Copy is the page copy the critique was (or would be) based on.
	Copy critique.Input `json:"-"`
}

// CritiqueResult is either a completed critique or the reason it failed.
type CritiqueResult struct {
	*critique.Analysis
	Error string `json:"error,omitempty"`
}

// Options control a single Analyze call.
type Options struct {
	// Critique requests the model critique when a critic is configured.
	Critique bool
	// Mode labels the analysis in metrics, e.g. "full", "trial" or "api".
	Mode string
}

// CacheStats provides statistics about the analyzer's caches.
type CacheStats struct {
	AnalysisEntries     int           `json:"analysisEntries"`
	ProbeEntries        int           `json:"probeEntries"`
	AnalysisCacheHits   int           `json:"analysisCacheHits"`
	ProbeCacheHits      int           `json:"probeCacheHits"`
	AnalysisCacheMisses int           `json:"analysisCacheMisses"`
	ProbeCacheMisses    int           `json:"probeCacheMisses"`
	AnalysisCacheTTL    time.Duration `json:"analysisCacheTTL"`
	ProbeCacheTTL       time.Duration `json:"probeCacheTTL"`
}

// Critic produces a conversion critique of page copy.
type Critic interface {
	Enabled() bool
	Critique(ctx context.Context, url string, in critique.Input) (*critique.Analysis, error)
}

// clone returns a copy that can be modified without touching r. Signals and
// recommendations are deep enough copies for per-response fields.
func (r *Report) clone() *Report {
	c := *r
	c.Recommendations = append([]scoring.Recommendation(nil), r.Recommendations...)
	if r.Security.Headers != nil {
		c.Security.Headers = make(map[string]bool, len(r.Security.Headers))
		for k, v := range r.Security.Headers {
			c.Security.Headers[k] = v
		}
	}
	if r.AIAnalysis != nil {
		ai := *r.AIAnalysis
		c.AIAnalysis = &ai
	}
	c.CreditsRemaining = nil
	c.LimitedTrial = false
	return &c
}
