package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/siteanalyzer/backend/logging"
)

// AnalyzedURLKey is where analysis handlers leave the URL they are about to
// analyze. Requests rejected before that point are not counted as analyses.
const AnalyzedURLKey = "analyzed_url"

const statisticsSaveEvery = 100

// VisitorTracking records visitors and analysis requests in the process
// statistics.
func VisitorTracking(stats *logging.Statistics, logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		stats.TrackVisitor(c.ClientIP())

		c.Next()

		analyzed := c.GetString(AnalyzedURLKey)
		if analyzed == "" {
			return
		}

		loadTime := float64(time.Since(start).Milliseconds())
		stats.TrackAnalysis(analyzed, loadTime, c.Writer.Status() >= 400)

		// Periodically save statistics
		if stats.Snapshot()["totalRequests"].(int)%statisticsSaveEvery == 0 {
			go func() {
				if err := stats.Save(); err != nil {
					logger.Warn(context.Background(), "could not save statistics", logging.Error(err))
				}
			}()
		}
	}
}
