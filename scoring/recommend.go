package scoring

import (
	"fmt"
	"sort"
)

// Level is a priority, impact or effort grade.
type Level string

const (
	LevelCritical Level = "Critical"
	LevelHigh     Level = "High"
	LevelMedium   Level = "Medium"
	LevelLow      Level = "Low"
)

// Rank orders levels for sorting; lower ranks sort first. Unknown levels sort last.
func (l Level) Rank() int {
	switch l {
	case LevelCritical:
		return 1
	case LevelHigh:
		return 2
	case LevelMedium:
		return 3
	case LevelLow:
		return 4
	}
	return 5
}

// TrialRecommendationLimit is how many recommendations trial callers receive.
const TrialRecommendationLimit = 3

const slowLoadThresholdMs = 3000

type Recommendation struct {
	Category       Category `json:"category"`
	Priority       Level    `json:"priority"`
	Issue          string   `json:"issue"`
	Recommendation string   `json:"recommendation"`
	Impact         Level    `json:"impact"`
	Effort         Level    `json:"effort"`
}

// Recommend evaluates the recommendation rules against the signals and returns
// the findings sorted by priority. Findings of equal priority keep rule order.
// The scores argument is accepted for callers that already hold them; the
// rules themselves only look at signals.
func Recommend(s Signals, _ Scores) []Recommendation {
	recs := make([]Recommendation, 0, 6)

	if !s.SEO.Title.Optimal {
		recs = append(recs, Recommendation{
			Category:       CategorySEO,
			Priority:       LevelHigh,
			Issue:          "Page title is not optimal length",
			Recommendation: fmt.Sprintf("Adjust your page title to be between 30-60 characters. Current: %d characters.", nonNegative(s.SEO.Title.Length)),
			Impact:         LevelHigh,
			Effort:         LevelLow,
		})
	}

	if !s.SEO.MetaDescription.Optimal {
		recs = append(recs, Recommendation{
			Category:       CategorySEO,
			Priority:       LevelHigh,
			Issue:          "Meta description is not optimal length",
			Recommendation: fmt.Sprintf("Write a meta description between 120-160 characters. Current: %d characters.", nonNegative(s.SEO.MetaDescription.Length)),
			Impact:         LevelHigh,
			Effort:         LevelLow,
		})
	}

	if missing := nonNegative(s.SEO.ImagesWithoutAlt); missing > 0 {
		recs = append(recs, Recommendation{
			Category:       CategorySEO,
			Priority:       LevelMedium,
			Issue:          fmt.Sprintf("%d images missing alt text", missing),
			Recommendation: "Add descriptive alt text to all images for better SEO and accessibility.",
			Impact:         LevelMedium,
			Effort:         LevelLow,
		})
	}

	if load := nonNegative64(s.Performance.LoadTimeMs); load > slowLoadThresholdMs {
		recs = append(recs, Recommendation{
			Category:       CategoryPerformance,
			Priority:       LevelHigh,
			Issue:          "Slow page load time",
			Recommendation: fmt.Sprintf("Your page takes %.1f seconds to load. Optimize images, minimize CSS/JS, and enable caching.", float64(load)/1000),
			Impact:         LevelHigh,
			Effort:         LevelMedium,
		})
	}

	if !s.Mobile.HasViewport {
		recs = append(recs, Recommendation{
			Category:       CategoryMobile,
			Priority:       LevelCritical,
			Issue:          "Missing viewport meta tag",
			Recommendation: "Add viewport meta tag to ensure proper mobile rendering.",
			Impact:         LevelCritical,
			Effort:         LevelLow,
		})
	}

	if !s.Security.IsHTTPS {
		recs = append(recs, Recommendation{
			Category:       CategorySecurity,
			Priority:       LevelCritical,
			Issue:          "Not using HTTPS",
			Recommendation: "Enable SSL/HTTPS to secure your website and improve SEO rankings.",
			Impact:         LevelCritical,
			Effort:         LevelMedium,
		})
	}

	SortRecommendations(recs)
	return recs
}

// SortRecommendations stable-sorts recs by priority rank in place.
func SortRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority.Rank() < recs[j].Priority.Rank()
	})
}

// Truncate returns at most the first n recommendations. The input must already
// be sorted. n <= 0 yields an empty slice.
func Truncate(recs []Recommendation, n int) []Recommendation {
	if n <= 0 {
		return []Recommendation{}
	}
	if len(recs) <= n {
		return recs
	}
	out := make([]Recommendation, n)
	copy(out, recs[:n])
	return out
}
