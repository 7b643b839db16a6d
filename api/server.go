// Package api registers the HTTP routes of the analysis service.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/siteanalyzer/backend/analyzer"
	"github.com/siteanalyzer/backend/auth"
	"github.com/siteanalyzer/backend/logging"
	"github.com/siteanalyzer/backend/metrics"
	"github.com/siteanalyzer/backend/middleware"
	"github.com/siteanalyzer/backend/scoring"
	"github.com/siteanalyzer/backend/stats"
	"github.com/siteanalyzer/backend/store"
)

const archiveTimeout = 30 * time.Second

// Archiver stores a copy of a finished report.
type Archiver interface {
	Archive(ctx context.Context, id string, at time.Time, report any) (string, error)
}

// Deps are the services the handlers use. Archiver, Statistics, MonthlyStats
// and Metrics are optional.
type Deps struct {
	Analyzer     *analyzer.Analyzer
	Store        *store.Store
	Tokens       *auth.TokenIssuer
	Archiver     Archiver
	Statistics   *logging.Statistics
	MonthlyStats *stats.Storage
	Metrics      *metrics.Manager
	Logger       logging.Logger

	APILimiter      *middleware.RateLimiter
	AnalysisLimiter *middleware.RateLimiter
	Trial           *middleware.TrialGate

	CORSOrigin string
	// TrialRecommendations is how many recommendations a trial report keeps.
	TrialRecommendations int
}

// Server holds the route handlers.
type Server struct {
	Deps
	archives sync.WaitGroup
}

// New fills in defaults for missing limiters and returns a Server.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logging.Named("api")
	}
	if d.APILimiter == nil {
		d.APILimiter = middleware.NewRateLimiter("api", 100.0/15, 100, d.Metrics)
	}
	if d.AnalysisLimiter == nil {
		d.AnalysisLimiter = middleware.NewRateLimiter("analysis", 5, 5, d.Metrics)
	}
	if d.Trial == nil {
		d.Trial = middleware.NewTrialGate(1, false)
	}
	if d.TrialRecommendations <= 0 {
		d.TrialRecommendations = scoring.TrialRecommendationLimit
	}
	return &Server{Deps: d}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler(s.Logger))
	r.Use(middleware.RequestLogger(s.Logger))
	r.Use(middleware.Metrics(s.Metrics))
	r.Use(middleware.CORS(s.CORSOrigin))
	if s.Statistics != nil {
		r.Use(middleware.VisitorTracking(s.Statistics, s.Logger))
	}

	apiLimit := s.APILimiter.RateLimit()
	analysisLimit := s.AnalysisLimiter.RateLimit()
	requireToken := middleware.RequireToken(s.Tokens)
	requireCredits := middleware.RequireCredits(s.Store)

	api := r.Group("/api")
	{
		api.GET("/health", s.health)

		api.POST("/auth/register", apiLimit, s.register)
		api.POST("/auth/login", apiLimit, s.login)

		user := api.Group("/user", requireToken)
		user.GET("/profile", s.profile)
		user.GET("/history", s.history)
		user.GET("/stats", s.userStats)

		api.POST("/analyze", requireToken, requireCredits, analysisLimit, s.analyze)
		api.POST("/analyze/trial", analysisLimit, s.Trial.Gate(), s.analyzeTrial)
		api.POST("/v1/analyze", middleware.RequireAPIKey(s.Store), requireCredits, apiLimit, s.analyzeAPI)

		api.GET("/plans", s.plans)
		api.GET("/statistics", s.statistics)
	}

	if s.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	return r
}

// Wait blocks until pending report uploads finish.
func (s *Server) Wait() {
	s.archives.Wait()
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
