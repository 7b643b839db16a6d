package analyzer

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestVisibleText(t *testing.T) {
	doc := mustDoc(t, `<html><head><title>Ignored title</title></head><body>
		<p>One two</p>
		<script>var three = 3;</script>
		<style>p { color: red }</style>
		<noscript>enable js</noscript>
		<div hidden>secret</div>
		<div style="display: none">gone</div>
		<span aria-hidden="true">icon</span>
		<p>three <b>four</b></p>
	</body></html>`)

	text := visibleText(doc.Nodes[0])
	if got := strings.Fields(text); strings.Join(got, " ") != "One two three four" {
		t.Errorf("visibleText() = %q", got)
	}
	if n := wordCount(text); n != 4 {
		t.Errorf("wordCount() = %d, want 4", n)
	}
}

func TestMobileSignals(t *testing.T) {
	tests := []struct {
		name       string
		html       string
		viewport   bool
		overflow   bool
		targets    int
		inadequate int
		avgText    float64
	}{
		{
			name:    "empty page",
			html:    `<html><body></body></html>`,
			avgText: 16,
		},
		{
			name:     "viewport name is case-insensitive",
			html:     `<html><head><meta name="Viewport" content="width=device-width"></head><body></body></html>`,
			viewport: true,
			avgText:  16,
		},
		{
			name:    "empty viewport content does not count",
			html:    `<html><head><meta name="viewport" content=" "></head><body></body></html>`,
			avgText: 16,
		},
		{
			name:     "wide table attribute overflows",
			html:     `<html><body><table width="960"></table></body></html>`,
			overflow: true,
			avgText:  16,
		},
		{
			name:     "min-width in style overflows",
			html:     `<html><body><section style="min-width:400px !important"></section></body></html>`,
			overflow: true,
			avgText:  16,
		},
		{
			name:    "percent widths do not overflow",
			html:    `<html><body><div style="width: 100%" width="50%"></div></body></html>`,
			avgText: 16,
		},
		{
			name: "font sizes are converted to pixels",
			html: `<html><body>
				<p style="font-size: 12px">a</p>
				<p style="font-size: 0.75rem">b</p>
				<span style="font-size: 9pt">c</span>
				<div style="font-size: 150%">d</div>
			</body></html>`,
			avgText: (12 + 12 + 12 + 24) / 4.0,
		},
		{
			name: "small explicit touch targets",
			html: `<html><body>
				<a href="/a" style="height: 20px">a</a>
				<button width="30">b</button>
				<input type="text" style="width: 200px; height: 48px">
				<input type="hidden" name="csrf">
				<select></select>
			</body></html>`,
			targets:    4,
			inadequate: 2,
			avgText:    16,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := extractMobile(mustDoc(t, tt.html))
			if m.HasViewport != tt.viewport {
				t.Errorf("HasViewport = %v, want %v", m.HasViewport, tt.viewport)
			}
			if m.HasHorizontalScroll != tt.overflow {
				t.Errorf("HasHorizontalScroll = %v, want %v", m.HasHorizontalScroll, tt.overflow)
			}
			if m.TouchTargets != tt.targets || m.InadequateTouchTargets != tt.inadequate {
				t.Errorf("touch targets = %d/%d, want %d/%d", m.InadequateTouchTargets, m.TouchTargets, tt.inadequate, tt.targets)
			}
			if diff := m.AverageTextSize - tt.avgText; diff > 0.001 || diff < -0.001 {
				t.Errorf("AverageTextSize = %v, want %v", m.AverageTextSize, tt.avgText)
			}
		})
	}
}

func TestCountBrokenLinks(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<a>no href</a>
		<a href="">empty</a>
		<a href=" # ">hash</a>
		<a href="/page#">trailing hash</a>
		<a href="/page#section">fragment</a>
		<a href="/ok">ok</a>
	</body></html>`)
	if n := countBrokenLinks(doc); n != 4 {
		t.Errorf("countBrokenLinks() = %d, want 4", n)
	}
}

func TestIsSocialLink(t *testing.T) {
	tests := []struct {
		href string
		want bool
	}{
		{"https://facebook.com/acme", true},
		{"https://www.instagram.com/acme", true},
		{"https://x.com/acme", true},
		{"https://m.youtube.com/@acme", true},
		{"//pinterest.com/acme", true},
		{"https://box.com/files", false},
		{"https://example.com/?share=facebook.com", false},
		{"/local/page", false},
	}
	for _, tt := range tests {
		if got := isSocialLink(tt.href); got != tt.want {
			t.Errorf("isSocialLink(%q) = %v, want %v", tt.href, got, tt.want)
		}
	}
}

func TestExtractCopy(t *testing.T) {
	t.Run("falls back to lower headings", func(t *testing.T) {
		in := extractCopy(mustDoc(t, `<html><body>
			<h2>Main pitch</h2>
			<h3>Supporting line</h3>
			<iframe src="https://www.youtube.com/embed/xyz"></iframe>
			<div class="secure-checkout">Secure</div>
		</body></html>`))
		if in.Headline != "Main pitch" || in.Subheadline != "Main pitch" {
			t.Errorf("headline = %q / %q", in.Headline, in.Subheadline)
		}
		if !in.HasVideo || !in.HasTrustBadges || in.HasTestimonials {
			t.Errorf("flags = %+v", in)
		}
	})

	t.Run("limits calls to action and paragraphs", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString("<html><body>")
		for i := 0; i < 8; i++ {
			sb.WriteString(`<button> Go  now </button><p>Paragraph.</p><p>  </p>`)
		}
		sb.WriteString("</body></html>")

		in := extractCopy(mustDoc(t, sb.String()))
		if len(in.CTAs) != 5 || in.CTAs[0] != "Go now" {
			t.Errorf("CTAs = %q", in.CTAs)
		}
		if n := strings.Count(in.BodyText, "Paragraph."); n != 5 {
			t.Errorf("BodyText has %d paragraphs, want 5", n)
		}
	})
}

func TestStyleHelpers(t *testing.T) {
	if v, ok := styleProperty("color: red; Width : 420px ;", "width"); !ok || v != "420px" {
		t.Errorf("styleProperty() = %q, %v", v, ok)
	}
	if _, ok := styleProperty("max-width: 420px", "width"); ok {
		t.Error("styleProperty matched max-width for width")
	}
	if px, ok := parsePx("44"); !ok || px != 44 {
		t.Errorf("parsePx(44) = %v, %v", px, ok)
	}
	if _, ok := parsePx("auto"); ok {
		t.Error("parsePx(auto) parsed")
	}
	if _, ok := fontSizePx("large"); ok {
		t.Error("fontSizePx(large) parsed")
	}
}
