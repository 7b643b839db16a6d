// Package scoring turns page signals into category scores, an overall score
// and a prioritized list of recommendations. Everything here is pure: no I/O,
// no shared state, safe to call from any number of goroutines.
package scoring

import "unicode/utf16"

// Optimal length windows for the title and meta description, in characters.
const (
	titleMinLength = 30
	titleMaxLength = 60
	metaMinLength  = 120
	metaMaxLength  = 160
)

// SecurityHeaders is the fixed set of response headers the security score checks.
var SecurityHeaders = []string{
	"strict-transport-security",
	"x-frame-options",
	"x-content-type-options",
	"x-xss-protection",
	"content-security-policy",
}

// Signals is everything extracted from a single page fetch.
type Signals struct {
	SEO         SEOSignals         `json:"seo"`
	Performance PerformanceSignals `json:"performance"`
	Mobile      MobileSignals      `json:"mobile"`
	Security    SecuritySignals    `json:"security"`
	Content     ContentSignals     `json:"content"`
	Technical   TechnicalSignals   `json:"technical"`
}

// TextSignal is a piece of page text with its length and whether that length
// falls in the optimal window.
type TextSignal struct {
	Content string `json:"content"`
	Length  int    `json:"length"`
	Optimal bool   `json:"optimal"`
}

// NewTitleSignal builds the title signal. Optimal means 30-60 characters.
func NewTitleSignal(title string) TextSignal {
	return newTextSignal(title, titleMinLength, titleMaxLength)
}

// NewMetaDescriptionSignal builds the meta description signal. Optimal means
// 120-160 characters.
func NewMetaDescriptionSignal(description string) TextSignal {
	return newTextSignal(description, metaMinLength, metaMaxLength)
}

// newTextSignal measures length in UTF-16 code units, so a character outside
// the Basic Multilingual Plane counts as two.
func newTextSignal(s string, lo, hi int) TextSignal {
	n := len(utf16.Encode([]rune(s)))
	return TextSignal{
		Content: s,
		Length:  n,
		Optimal: n >= lo && n <= hi,
	}
}

type SEOSignals struct {
	Title            TextSignal `json:"title"`
	MetaDescription  TextSignal `json:"metaDescription"`
	H1Count          int        `json:"h1Count"`
	H2Count          int        `json:"h2Count"`
	ImageCount       int        `json:"imageCount"`
	ImagesWithoutAlt int        `json:"imagesWithoutAlt"`
	StructuredData   bool       `json:"structuredData"`
}

// AltCoverage returns the percentage of images carrying alt text. A page
// without images is fully covered.
func (s SEOSignals) AltCoverage() float64 {
	total := nonNegative(s.ImageCount)
	if total == 0 {
		return 100
	}
	missing := min(nonNegative(s.ImagesWithoutAlt), total)
	return float64(total-missing) / float64(total) * 100
}

type PerformanceSignals struct {
	LoadTimeMs         int64 `json:"loadTime"`
	DOMContentLoadedMs int64 `json:"domContentLoaded"`
}

type MobileSignals struct {
	HasViewport            bool    `json:"hasViewport"`
	HasHorizontalScroll    bool    `json:"hasHorizontalScroll"`
	AverageTextSize        float64 `json:"averageTextSize"`
	TouchTargets           int     `json:"touchTargets"`
	InadequateTouchTargets int     `json:"inadequateTouchTargets"`
}

type SecuritySignals struct {
	IsHTTPS bool            `json:"isHTTPS"`
	Headers map[string]bool `json:"headers"`
	// SecureHeaderCount is how many of SecurityHeaders were present.
	SecureHeaderCount int `json:"secureHeadersCount"`
}

type ContentSignals struct {
	WordCount   int  `json:"wordCount"`
	HasEmail    bool `json:"hasEmail"`
	HasPhone    bool `json:"hasPhone"`
	SocialLinks int  `json:"socialLinks"`
	CTAButtons  int  `json:"ctaButtons"`
}

type TechnicalSignals struct {
	BrokenLinks   int   `json:"brokenLinks"`
	Forms         int   `json:"forms"`
	HasSitemap    bool  `json:"hasSitemap"`
	HasRobots     bool  `json:"hasRobots"`
	PageSizeBytes int64 `json:"pageSize"`
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func nonNegative64(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
