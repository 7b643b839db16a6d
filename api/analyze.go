package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/siteanalyzer/backend/analyzer"
	"github.com/siteanalyzer/backend/logging"
	"github.com/siteanalyzer/backend/middleware"
	"github.com/siteanalyzer/backend/scoring"
	"github.com/siteanalyzer/backend/store"
)

const (
	modeFull  = "full"
	modeTrial = "trial"
	modeAPI   = "api"

	v1AnalyzeEndpoint = "/api/v1/analyze"
)

type analyzeRequest struct {
	URL string `json:"url"`
}

// bindURL reads the url field and marks the request as an analysis for the
// process statistics.
func bindURL(c *gin.Context) (string, bool) {
	var req analyzeRequest
	_ = c.ShouldBindJSON(&req)
	url := strings.TrimSpace(req.URL)
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return "", false
	}
	c.Set(middleware.AnalyzedURLKey, url)
	return url, true
}

func (s *Server) analysisFailed(c *gin.Context, err error) {
	if errors.Is(err, analyzer.ErrInvalidURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid URL", "message": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis failed", "message": err.Error()})
}

// analyze is the account analysis: critique included, report stored and
// one credit spent.
func (s *Server) analyze(c *gin.Context) {
	user, _ := middleware.UserFromContext(c)
	url, ok := bindURL(c)
	if !ok {
		return
	}

	report, err := s.Analyzer.Analyze(c.Request.Context(), url, analyzer.Options{Critique: true, Mode: modeFull})
	if err != nil {
		s.analysisFailed(c, err)
		return
	}
	if !s.charge(c, user, report) {
		return
	}
	c.JSON(http.StatusOK, report)
}

// analyzeTrial serves anonymous visitors: nothing is stored and only the top
// recommendations are returned.
func (s *Server) analyzeTrial(c *gin.Context) {
	url, ok := bindURL(c)
	if !ok {
		return
	}

	report, err := s.Analyzer.Analyze(c.Request.Context(), url, analyzer.Options{Mode: modeTrial})
	if err != nil {
		s.analysisFailed(c, err)
		return
	}

	report.Recommendations = scoring.Truncate(report.Recommendations, s.TrialRecommendations)
	report.LimitedTrial = true
	report.AIAnalysis = nil
	c.JSON(http.StatusOK, report)
}

// analyzeAPI is the developer endpoint authenticated by API key. Every call
// is written to the API log with its status and response time.
func (s *Server) analyzeAPI(c *gin.Context) {
	start := time.Now()
	user, _ := middleware.UserFromContext(c)
	defer func() {
		call := store.APICall{
			UserID:         user.ID,
			Endpoint:       v1AnalyzeEndpoint,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: time.Since(start).Milliseconds(),
		}
		if err := s.Store.LogAPICall(context.WithoutCancel(c.Request.Context()), call); err != nil {
			s.Logger.Warn(c.Request.Context(), "could not log api call", logging.Error(err))
		}
	}()

	url, ok := bindURL(c)
	if !ok {
		return
	}

	report, err := s.Analyzer.Analyze(c.Request.Context(), url, analyzer.Options{Critique: true, Mode: modeAPI})
	if err != nil {
		s.analysisFailed(c, err)
		return
	}
	if !s.charge(c, user, report) {
		return
	}
	c.JSON(http.StatusOK, report)
}

// charge spends the user's credit, stores the report and schedules its
// upload. It writes the error response itself and reports whether the
// caller should continue.
func (s *Server) charge(c *gin.Context, user *store.User, report *analyzer.Report) bool {
	ctx := c.Request.Context()

	remaining, err := s.Store.ConsumeCredit(ctx, user.ID)
	switch {
	case errors.Is(err, store.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":             "Insufficient credits",
			"message":           "Please upgrade your plan to continue analyzing websites.",
			"credits_remaining": 0,
		})
		return false
	case err != nil:
		s.Logger.Error(ctx, "consume credit", logging.String("user_id", user.ID), logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis failed", "message": "could not update credits"})
		return false
	}
	s.Metrics.RecordCreditConsumed()

	body, err := json.Marshal(report)
	if err != nil {
		s.Logger.Error(ctx, "encode report", logging.Error(err))
	} else {
		rec := &store.AnalysisRecord{
			ID:           report.ID,
			UserID:       user.ID,
			URL:          report.URL,
			OverallScore: report.OverallScore,
			Report:       body,
			CreatedAt:    report.Timestamp,
		}
		if err := s.Store.SaveAnalysis(ctx, rec); err != nil {
			s.Logger.Error(ctx, "save analysis", logging.String("id", report.ID), logging.Error(err))
		}
		s.archive(report.ID, report.Timestamp, body)
	}

	report.CreditsRemaining = &remaining
	return true
}

func (s *Server) archive(id string, at time.Time, body json.RawMessage) {
	if s.Archiver == nil {
		return
	}
	s.archives.Add(1)
	go func() {
		defer s.archives.Done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		key, err := s.Archiver.Archive(ctx, id, at, body)
		if err != nil {
			s.Logger.Warn(ctx, "could not archive report", logging.String("id", id), logging.Error(err))
			return
		}
		s.Logger.Debug(ctx, "report archived", logging.String("key", key))
	}()
}
