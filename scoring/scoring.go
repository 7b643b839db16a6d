package scoring

import "math"

// Category names one of the six scored dimensions.
type Category string

const (
	CategorySEO         Category = "SEO"
	CategoryPerformance Category = "Performance"
	CategoryMobile      Category = "Mobile"
	CategorySecurity    Category = "Security"
	CategoryContent     Category = "Content"
	CategoryTechnical   Category = "Technical"
)

// Categories lists every category in report order.
var Categories = []Category{
	CategorySEO,
	CategoryPerformance,
	CategoryMobile,
	CategorySecurity,
	CategoryContent,
	CategoryTechnical,
}

const (
	maxScore = 100

	pageSizeLimitBytes = 3 * 1024 * 1024
	minTextSizePx      = 14.0
)

// Weights used by Aggregate. They sum to 1.
const (
	WeightSEO         = 0.25
	WeightPerformance = 0.20
	WeightMobile      = 0.20
	WeightSecurity    = 0.15
	WeightContent     = 0.10
	WeightTechnical   = 0.10
)

// Scores holds one integer score per category.
type Scores struct {
	SEO         int `json:"seo"`
	Performance int `json:"performance"`
	Mobile      int `json:"mobile"`
	Security    int `json:"security"`
	Content     int `json:"content"`
	Technical   int `json:"technical"`
}

// Get returns the score for c, or 0 for an unknown category.
func (s Scores) Get(c Category) int {
	switch c {
	case CategorySEO:
		return s.SEO
	case CategoryPerformance:
		return s.Performance
	case CategoryMobile:
		return s.Mobile
	case CategorySecurity:
		return s.Security
	case CategoryContent:
		return s.Content
	case CategoryTechnical:
		return s.Technical
	}
	return 0
}

// Score computes all six category scores.
func Score(s Signals) Scores {
	return Scores{
		SEO:         ScoreSEO(s.SEO),
		Performance: ScorePerformance(s.Performance),
		Mobile:      ScoreMobile(s.Mobile),
		Security:    ScoreSecurity(s.Security),
		Content:     ScoreContent(s.Content),
		Technical:   ScoreTechnical(s.Technical),
	}
}

// ScoreCategory scores a single category. Unknown categories score 0.
func ScoreCategory(c Category, s Signals) int {
	switch c {
	case CategorySEO:
		return ScoreSEO(s.SEO)
	case CategoryPerformance:
		return ScorePerformance(s.Performance)
	case CategoryMobile:
		return ScoreMobile(s.Mobile)
	case CategorySecurity:
		return ScoreSecurity(s.Security)
	case CategoryContent:
		return ScoreContent(s.Content)
	case CategoryTechnical:
		return ScoreTechnical(s.Technical)
	}
	return 0
}

func ScoreSEO(s SEOSignals) int {
	score := maxScore
	if !s.Title.Optimal {
		score -= 15
	}
	if !s.MetaDescription.Optimal {
		score -= 15
	}
	h1 := nonNegative(s.H1Count)
	if h1 == 0 {
		score -= 20
	}
	if h1 > 1 {
		score -= 10
	}
	score -= capped(2*nonNegative(s.ImagesWithoutAlt), 20)
	if !s.StructuredData {
		score -= 10
	}
	return clamp(score)
}

// ScorePerformance is PerformanceScore rounded to an integer.
func ScorePerformance(s PerformanceSignals) int {
	return int(math.Round(PerformanceScore(s.LoadTimeMs)))
}

// PerformanceScore derives the performance component from load time: every
// 100ms costs one point, floored at 0. The result is fractional.
func PerformanceScore(loadTimeMs int64) float64 {
	return math.Max(0, maxScore-float64(nonNegative64(loadTimeMs))/100)
}

func ScoreMobile(s MobileSignals) int {
	score := maxScore
	if !s.HasViewport {
		score -= 25
	}
	if s.HasHorizontalScroll {
		score -= 20
	}
	if s.AverageTextSize < minTextSizePx {
		score -= 15
	}
	score -= capped(nonNegative(s.InadequateTouchTargets), 25)
	return clamp(score)
}

func ScoreSecurity(s SecuritySignals) int {
	score := maxScore
	if !s.IsHTTPS {
		score -= 40
	}
	present := min(nonNegative(s.SecureHeaderCount), len(SecurityHeaders))
	score -= 12 * (len(SecurityHeaders) - present)
	return clamp(score)
}

func ScoreContent(s ContentSignals) int {
	score := maxScore
	if nonNegative(s.WordCount) < 300 {
		score -= 20
	}
	if !s.HasEmail && !s.HasPhone {
		score -= 15
	}
	if nonNegative(s.SocialLinks) == 0 {
		score -= 10
	}
	if nonNegative(s.CTAButtons) == 0 {
		score -= 15
	}
	return clamp(score)
}

func ScoreTechnical(s TechnicalSignals) int {
	score := maxScore
	score -= capped(5*nonNegative(s.BrokenLinks), 20)
	if !s.HasSitemap {
		score -= 15
	}
	if !s.HasRobots {
		score -= 10
	}
	if nonNegative64(s.PageSizeBytes) > pageSizeLimitBytes {
		score -= 15
	}
	return clamp(score)
}

// Aggregate combines the category scores into the overall score. The
// performance component is derived from loadTimeMs rather than taken from
// scores.Performance so that sub-point load times are not rounded twice.
func Aggregate(scores Scores, loadTimeMs int64) int {
	weighted := float64(scores.SEO)*WeightSEO +
		PerformanceScore(loadTimeMs)*WeightPerformance +
		float64(scores.Mobile)*WeightMobile +
		float64(scores.Security)*WeightSecurity +
		float64(scores.Content)*WeightContent +
		float64(scores.Technical)*WeightTechnical
	return clamp(int(math.Round(weighted)))
}

// Overall scores every category and aggregates them.
func Overall(s Signals) (Scores, int) {
	scores := Score(s)
	return scores, Aggregate(scores, s.Performance.LoadTimeMs)
}

func capped(penalty, limit int) int {
	return min(penalty, limit)
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
