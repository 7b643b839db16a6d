package scoring_test

import (
	"testing"

	"github.com/siteanalyzer/backend/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRecommend(t *testing.T) {
	Convey("Given a page with no problems", t, func() {
		s := cleanSignals()

		Convey("There are no recommendations", func() {
			recs := scoring.Recommend(s, scoring.Score(s))
			So(recs, ShouldNotBeNil)
			So(recs, ShouldBeEmpty)
		})
	})

	Convey("Given a page missing only the viewport tag", t, func() {
		s := cleanSignals()
		s.Mobile.HasViewport = false

		Convey("Exactly one critical mobile recommendation is returned", func() {
			recs := scoring.Recommend(s, scoring.Score(s))
			So(recs, ShouldHaveLength, 1)
			So(recs[0].Priority, ShouldEqual, scoring.LevelCritical)
			So(recs[0].Category, ShouldEqual, scoring.CategoryMobile)
			So(recs[0].Issue, ShouldEqual, "Missing viewport meta tag")
			So(recs[0].Effort, ShouldEqual, scoring.LevelLow)
		})
	})

	Convey("Given a page that trips every rule", t, func() {
		s := cleanSignals()
		s.SEO.Title = scoring.NewTitleSignal("Home")
		s.SEO.MetaDescription = scoring.NewMetaDescriptionSignal("")
		s.SEO.ImagesWithoutAlt = 3
		s.Performance.LoadTimeMs = 4300
		s.Mobile.HasViewport = false
		s.Security.IsHTTPS = false

		recs := scoring.Recommend(s, scoring.Score(s))

		Convey("Six recommendations come back sorted by priority", func() {
			So(recs, ShouldHaveLength, 6)
			for i := 1; i < len(recs); i++ {
				So(recs[i-1].Priority.Rank(), ShouldBeLessThanOrEqualTo, recs[i].Priority.Rank())
			}
		})

		Convey("Equal priorities keep rule order", func() {
			So(recs[0].Issue, ShouldEqual, "Missing viewport meta tag")
			So(recs[1].Issue, ShouldEqual, "Not using HTTPS")
			So(recs[2].Issue, ShouldEqual, "Page title is not optimal length")
			So(recs[3].Issue, ShouldEqual, "Meta description is not optimal length")
			So(recs[4].Issue, ShouldEqual, "Slow page load time")
			So(recs[5].Issue, ShouldEqual, "3 images missing alt text")
		})

		Convey("Messages carry the measured values", func() {
			So(recs[2].Recommendation, ShouldContainSubstring, "Current: 4 characters.")
			So(recs[3].Recommendation, ShouldContainSubstring, "Current: 0 characters.")
			So(recs[4].Recommendation, ShouldContainSubstring, "4.3 seconds")
		})

		Convey("Truncation keeps the highest priorities", func() {
			top := scoring.Truncate(recs, scoring.TrialRecommendationLimit)
			So(top, ShouldHaveLength, 3)
			So(top[0].Priority, ShouldEqual, scoring.LevelCritical)
			So(top[1].Priority, ShouldEqual, scoring.LevelCritical)
			So(top[2].Priority, ShouldEqual, scoring.LevelHigh)
		})

		Convey("Truncation does not alias the input", func() {
			top := scoring.Truncate(recs, 2)
			top[0].Issue = "changed"
			So(recs[0].Issue, ShouldEqual, "Missing viewport meta tag")
		})
	})

	Convey("Given the load time threshold", t, func() {
		s := cleanSignals()

		Convey("Exactly 3000ms is not slow", func() {
			s.Performance.LoadTimeMs = 3000
			So(scoring.Recommend(s, scoring.Scores{}), ShouldBeEmpty)
		})
	})

	Convey("Given score-only problems", t, func() {
		s := cleanSignals()
		s.SEO.H1Count = 0
		s.Content.WordCount = 10
		s.Technical.HasSitemap = false

		Convey("They lower scores without adding recommendations", func() {
			So(scoring.ScoreSEO(s.SEO), ShouldBeLessThan, 100)
			So(scoring.Recommend(s, scoring.Score(s)), ShouldBeEmpty)
		})
	})
}

func TestTruncate(t *testing.T) {
	Convey("Given a short list", t, func() {
		recs := []scoring.Recommendation{{Priority: scoring.LevelLow}}

		Convey("Truncating above its length returns it whole", func() {
			So(scoring.Truncate(recs, 3), ShouldHaveLength, 1)
		})

		Convey("Truncating to zero returns an empty list", func() {
			So(scoring.Truncate(recs, 0), ShouldBeEmpty)
		})
	})

	Convey("Given unknown priorities", t, func() {
		recs := []scoring.Recommendation{
			{Priority: scoring.Level("Someday"), Issue: "a"},
			{Priority: scoring.LevelLow, Issue: "b"},
		}

		Convey("They sort after Low", func() {
			scoring.SortRecommendations(recs)
			So(recs[0].Issue, ShouldEqual, "b")
			So(recs[1].Issue, ShouldEqual, "a")
		})
	})
}
