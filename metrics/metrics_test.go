package metrics

import (
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func scrape(m *Manager) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetricsManager(t *testing.T) {
	Convey("Given a metrics manager", t, func() {
		m := NewManager()

		Convey("When recording analysis results", func() {
			m.RecordAnalysis("full", "success", 1200)
			m.RecordOverallScore(61)
			m.RecordCategoryScore("SEO", 85)
			m.RecordRecommendation("Critical")
			m.RecordCreditConsumed()
			m.RecordCacheLookup("analysis", true)
			m.RecordCacheLookup("analysis", false)
			m.RecordRateLimited("analysis")
			m.RecordCritiqueError()
			m.RecordHTTPRequest("/api/analyze", "POST", "200", 1250)

			Convey("Then they are exported under the namespace", func() {
				body := scrape(m)
				So(body, ShouldContainSubstring, `siteanalyzer_analyses_total{mode="full",outcome="success"} 1`)
				So(body, ShouldContainSubstring, `siteanalyzer_overall_score_count 1`)
				So(body, ShouldContainSubstring, `siteanalyzer_category_score_count{category="SEO"} 1`)
				So(body, ShouldContainSubstring, `siteanalyzer_recommendations_total{priority="Critical"} 1`)
				So(body, ShouldContainSubstring, `siteanalyzer_credits_consumed_total 1`)
				So(body, ShouldContainSubstring, `siteanalyzer_cache_lookups_total{cache="analysis",result="hit"} 1`)
				So(body, ShouldContainSubstring, `siteanalyzer_cache_lookups_total{cache="analysis",result="miss"} 1`)
				So(body, ShouldContainSubstring, `siteanalyzer_rate_limited_total{limiter="analysis"} 1`)
				So(body, ShouldContainSubstring, `siteanalyzer_critique_errors_total 1`)
				So(body, ShouldContainSubstring, `siteanalyzer_http_requests_total{endpoint="/api/analyze",method="POST",status_code="200"} 1`)
			})

			Convey("Then Go runtime metrics are not exported", func() {
				So(scrape(m), ShouldNotContainSubstring, "go_goroutines")
			})
		})

		Convey("When two managers exist", func() {
			other := NewManager(WithNamespace("other"))
			other.RecordCritiqueError()

			Convey("Then their registries are independent", func() {
				So(scrape(m), ShouldNotContainSubstring, "other_critique_errors_total")
				So(scrape(other), ShouldContainSubstring, "other_critique_errors_total 1")
			})
		})

		Convey("When recording concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					m.RecordCreditConsumed()
				}()
			}
			wg.Wait()

			So(scrape(m), ShouldContainSubstring, "siteanalyzer_credits_consumed_total 20")
		})
	})

	Convey("Given a nil manager", t, func() {
		var m *Manager

		Convey("Recording is a no-op", func() {
			So(func() {
				m.RecordAnalysis("trial", "error", 1)
				m.RecordCacheLookup("probe", true)
				m.RecordHTTPRequest("/", "GET", "200", 1)
			}, ShouldNotPanic)
		})
	})
}
