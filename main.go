package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/siteanalyzer/backend/analyzer"
	"github.com/siteanalyzer/backend/api"
	"github.com/siteanalyzer/backend/archive"
	"github.com/siteanalyzer/backend/auth"
	"github.com/siteanalyzer/backend/config"
	"github.com/siteanalyzer/backend/credits"
	"github.com/siteanalyzer/backend/critique"
	"github.com/siteanalyzer/backend/logging"
	"github.com/siteanalyzer/backend/metrics"
	"github.com/siteanalyzer/backend/middleware"
	"github.com/siteanalyzer/backend/stats"
	"github.com/siteanalyzer/backend/store"
)

const shutdownTimeout = 30 * time.Second

func setupGinMode(mode string) {
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
}

func main() {
	envFile := config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		logging.Get().Error(context.Background(), "failed to load configuration", logging.Error(err))
		os.Exit(1)
	}
	if err := logging.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		logging.Get().Error(context.Background(), "invalid log level", logging.Error(err))
		os.Exit(1)
	}
	logger := logging.Named("main")
	if envFile == "" {
		logger.Info(context.Background(), "no .env file found, using environment variables")
	}

	setupGinMode(cfg.GinMode)

	if err := run(cfg, logger); err != nil {
		logger.Error(context.Background(), "server stopped with error", logging.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	db, err := store.Open(ctx, store.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
	if err != nil {
		return err
	}
	defer db.Close()

	monthly, err := stats.NewStorage(cfg.DataDir)
	if err != nil {
		return err
	}
	defer monthly.Close()

	m := metrics.NewManager()

	critic, err := critique.New(critique.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	if err != nil {
		return err
	}
	if !critic.Enabled() {
		logger.Info(ctx, "no OpenAI key configured, critiques are disabled")
	}

	siteAnalyzer := analyzer.New(
		analyzer.WithTimeout(cfg.FetchTimeout),
		analyzer.WithUserAgent(cfg.UserAgent),
		analyzer.WithMaxPageBytes(cfg.MaxPageBytes),
		analyzer.WithCacheTTL(cfg.CacheTTL),
		analyzer.WithProbeCacheTTL(cfg.ProbeCacheTTL),
		analyzer.WithCritic(critic),
		analyzer.WithStats(monthly),
		analyzer.WithMetrics(m),
		analyzer.WithLogger(logging.Named("analyzer")),
	)
	defer siteAnalyzer.Shutdown()

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	var archiver api.Archiver
	if cfg.ArchiveEnabled() {
		s3Archiver, err := archive.NewS3Archiver(ctx, archive.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
		})
		if err != nil {
			return err
		}
		archiver = s3Archiver
		logger.Info(ctx, "archiving reports to S3", logging.String("bucket", cfg.S3Bucket))
	}

	var scheduler *credits.Scheduler
	if cfg.CreditResetSchedule != "" {
		scheduler, err = credits.NewScheduler(db, cfg.CreditResetSchedule)
		if err != nil {
			return err
		}
		scheduler.Start()
	}

	statistics := logging.NewStatistics(cfg.DataDir, cfg.DevMode)

	server := api.New(api.Deps{
		Analyzer:             siteAnalyzer,
		Store:                db,
		Tokens:               tokens,
		Archiver:             archiver,
		Statistics:           statistics,
		MonthlyStats:         monthly,
		Metrics:              m,
		Logger:               logging.Named("api"),
		APILimiter:           middleware.NewRateLimiter("api", cfg.APIRatePerMinute, cfg.APIBurst, m),
		AnalysisLimiter:      middleware.NewRateLimiter("analysis", cfg.AnalysisRatePerMinute, cfg.AnalysisBurst, m),
		Trial:                middleware.NewTrialGate(cfg.TrialLimit, gin.Mode() == gin.ReleaseMode),
		CORSOrigin:           cfg.CORSOrigin,
		TrialRecommendations: cfg.TrialRecommendations,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Analyses with a critique can take over a minute.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server starting", logging.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info(context.Background(), "shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http shutdown", logging.Error(err))
	}
	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "credit scheduler did not stop cleanly", logging.Error(err))
		}
	}
	server.Wait()
	if err := statistics.Save(); err != nil {
		logger.Warn(shutdownCtx, "could not save statistics", logging.Error(err))
	}
	return nil
}
