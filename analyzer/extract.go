package analyzer

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/siteanalyzer/backend/critique"
	"github.com/siteanalyzer/backend/scoring"
	"github.com/siteanalyzer/backend/textscan"
)

const (
	mobileViewportPx = 375
	minTouchTargetPx = 44
	defaultFontPx    = 16.0
	maxCritiqueCTAs  = 5
	maxCritiqueParas = 5
)

var socialDomains = []string{
	"facebook.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"linkedin.com",
	"youtube.com",
	"pinterest.com",
}

// extractSignals reads every static signal out of a parsed page. Timing
// fields are filled in by the caller.
func extractSignals(doc *goquery.Document, p *page) scoring.Signals {
	text := ""
	if len(doc.Nodes) > 0 {
		text = visibleText(doc.Nodes[0])
	}

	return scoring.Signals{
		SEO:      extractSEO(doc),
		Mobile:   extractMobile(doc),
		Security: extractSecurity(p),
		Content: scoring.ContentSignals{
			WordCount:   wordCount(text),
			HasEmail:    textscan.HasEmail(text),
			HasPhone:    textscan.HasPhone(text),
			SocialLinks: countSocialLinks(doc),
			CTAButtons:  doc.Find("button, a.button, a.btn, .cta").Length(),
		},
		Technical: scoring.TechnicalSignals{
			BrokenLinks:   countBrokenLinks(doc),
			Forms:         doc.Find("form").Length(),
			PageSizeBytes: int64(len(p.body)),
		},
	}
}

func extractSEO(doc *goquery.Document) scoring.SEOSignals {
	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	description, _ := metaContent(doc, "description")

	images := doc.Find("img")
	withoutAlt := 0
	images.Each(func(_ int, s *goquery.Selection) {
		alt, exists := s.Attr("alt")
		if !exists || strings.TrimSpace(alt) == "" {
			withoutAlt++
		}
	})

	return scoring.SEOSignals{
		Title:            scoring.NewTitleSignal(title),
		MetaDescription:  scoring.NewMetaDescriptionSignal(strings.TrimSpace(description)),
		H1Count:          doc.Find("h1").Length(),
		H2Count:          doc.Find("h2").Length(),
		ImageCount:       images.Length(),
		ImagesWithoutAlt: withoutAlt,
		StructuredData:   doc.Find(`script[type="application/ld+json"]`).Length() > 0,
	}
}

// metaContent returns the content of the first <meta name=...> matching name,
// compared case-insensitively.
func metaContent(doc *goquery.Document, name string) (string, bool) {
	var (
		content string
		found   bool
	)
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(s.AttrOr("name", "")), name) {
			return true
		}
		content, found = s.Attr("content")
		return false
	})
	return content, found
}

func extractMobile(doc *goquery.Document) scoring.MobileSignals {
	viewport, _ := metaContent(doc, "viewport")

	m := scoring.MobileSignals{
		HasViewport:         strings.TrimSpace(viewport) != "",
		HasHorizontalScroll: hasHorizontalOverflow(doc),
		AverageTextSize:     averageTextSize(doc),
	}

	doc.Find("a, button, input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "input" && strings.EqualFold(s.AttrOr("type", ""), "hidden") {
			return
		}
		m.TouchTargets++
		if tooSmallToTouch(s) {
			m.InadequateTouchTargets++
		}
	})
	return m
}

// hasHorizontalOverflow reports whether any element declares a fixed width
// wider than a small phone screen.
func hasHorizontalOverflow(doc *goquery.Document) bool {
	wide := false
	doc.Find("[style]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		style := s.AttrOr("style", "")
		for _, prop := range []string{"width", "min-width"} {
			if v, ok := styleProperty(style, prop); ok {
				if px, ok := parsePx(v); ok && px > mobileViewportPx {
					wide = true
					return false
				}
			}
		}
		return true
	})
	if wide {
		return true
	}

	doc.Find("table[width], img[width], iframe[width], div[width]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if px, ok := parsePx(s.AttrOr("width", "")); ok && px > mobileViewportPx {
			wide = true
			return false
		}
		return true
	})
	return wide
}

func averageTextSize(doc *goquery.Document) float64 {
	elements := doc.Find("p, span, div")
	if elements.Length() == 0 {
		return defaultFontPx
	}

	total := 0.0
	elements.Each(func(_ int, s *goquery.Selection) {
		size := defaultFontPx
		if v, ok := styleProperty(s.AttrOr("style", ""), "font-size"); ok {
			if px, ok := fontSizePx(v); ok {
				size = px
			}
		}
		total += size
	})
	return total / float64(elements.Length())
}

func tooSmallToTouch(s *goquery.Selection) bool {
	style := s.AttrOr("style", "")
	for _, dim := range []string{"width", "height"} {
		v, ok := styleProperty(style, dim)
		if !ok {
			v, ok = s.Attr(dim)
		}
		if !ok {
			continue
		}
		if px, ok := parsePx(v); ok && px < minTouchTargetPx {
			return true
		}
	}
	return false
}

func extractSecurity(p *page) scoring.SecuritySignals {
	sec := scoring.SecuritySignals{
		IsHTTPS: p.url != nil && p.url.Scheme == "https",
		Headers: make(map[string]bool, len(scoring.SecurityHeaders)),
	}
	for _, h := range scoring.SecurityHeaders {
		present := p.header.Get(h) != ""
		sec.Headers[h] = present
		if present {
			sec.SecureHeaderCount++
		}
	}
	return sec
}

func countSocialLinks(doc *goquery.Document) int {
	n := 0
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if isSocialLink(s.AttrOr("href", "")) {
			n++
		}
	})
	return n
}

func isSocialLink(href string) bool {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range socialDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// countBrokenLinks counts anchors that lead nowhere: no href, an empty one,
// or a bare fragment marker.
func countBrokenLinks(doc *goquery.Document) int {
	n := 0
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		href = strings.TrimSpace(href)
		if !exists || href == "" || href == "#" || strings.HasSuffix(href, "#") {
			n++
		}
	})
	return n
}

// extractCopy collects the page copy the critique works from.
func extractCopy(doc *goquery.Document) critique.Input {
	in := critique.Input{
		Headline:        firstText(doc, "h1", "h2"),
		Subheadline:     firstText(doc, "h2", "h3"),
		HasTestimonials: doc.Find(`[class*="testimonial"], [class*="review"]`).Length() > 0,
		HasTrustBadges:  doc.Find(`[class*="trust"], [class*="secure"], [class*="guarantee"]`).Length() > 0,
		HasVideo:        doc.Find(`video, iframe[src*="youtube"], iframe[src*="vimeo"]`).Length() > 0,
	}

	doc.Find(`button, a.btn, a.button, [class*="cta"], [class*="button"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := collapse(s.Text()); t != "" {
			in.CTAs = append(in.CTAs, t)
		}
		return len(in.CTAs) < maxCritiqueCTAs
	})

	var paras []string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := collapse(s.Text()); t != "" {
			paras = append(paras, t)
		}
		return len(paras) < maxCritiqueParas
	})
	in.BodyText = strings.Join(paras, " ")
	return in
}

// firstText returns the text of the first element matching one of the
// selectors, tried in order.
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return collapse(s.Text())
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// styleProperty returns the value of prop from an inline style attribute.
func styleProperty(style, prop string) (string, bool) {
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), prop) {
			value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important"))
			return value, value != ""
		}
	}
	return "", false
}

// parsePx reads a pixel length: "480px" or a bare number. Other units are
// not lengths we can compare against a screen width.
func parsePx(v string) (float64, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.TrimSuffix(v, "px")
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// fontSizePx converts a CSS font-size to pixels against a 16px root.
func fontSizePx(v string) (float64, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	units := []struct {
		suffix string
		factor float64
	}{
		{"rem", defaultFontPx},
		{"em", defaultFontPx},
		{"px", 1},
		{"pt", 4.0 / 3.0},
		{"%", defaultFontPx / 100},
	}
	for _, u := range units {
		if !strings.HasSuffix(v, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(v, u.suffix)), 64)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n * u.factor, true
	}
	return 0, false
}
