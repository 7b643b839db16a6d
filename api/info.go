package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/siteanalyzer/backend/logging"
)

func (s *Server) plans(c *gin.Context) {
	plans, err := s.Store.Plans(c.Request.Context())
	if err != nil {
		s.Logger.Error(c.Request.Context(), "load plans", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch plans"})
		return
	}
	c.JSON(http.StatusOK, plans)
}

// statistics reports process statistics together with the analyzer cache
// counters and the current month.
func (s *Server) statistics(c *gin.Context) {
	out := gin.H{}
	if s.Statistics != nil {
		for k, v := range s.Statistics.Snapshot() {
			out[k] = v
		}
	}
	out["cache"] = s.Analyzer.CacheStats()
	if s.MonthlyStats != nil {
		month := s.MonthlyStats.CurrentStats()
		out["month"] = gin.H{
			"analyses":            month.Analyses,
			"failures":            month.Failures,
			"critiques":           month.Critiques,
			"averageOverallScore": month.AverageOverallScore(),
		}
	}
	c.JSON(http.StatusOK, out)
}
