// Package config defines the service configuration and how it is loaded.
package config

import "time"

// Config contains process configuration.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8082".
	Addr     string `koanf:"addr"`
	GinMode  string `koanf:"gin_mode"`
	DevMode  bool   `koanf:"dev_mode"`
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// DataDir holds statistics.json and the monthly cache stats files.
	DataDir string `koanf:"data_dir"`

	// DBDriver is "sqlite3" or "postgres".
	DBDriver string `koanf:"db_driver"`
	DBDSN    string `koanf:"db_dsn"`

	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`

	FetchTimeout  time.Duration `koanf:"fetch_timeout"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`
	ProbeCacheTTL time.Duration `koanf:"probe_cache_ttl"`
	MaxPageBytes  int64         `koanf:"max_page_bytes"`
	UserAgent     string        `koanf:"user_agent"`

	// General API limiter: 100 requests per 15 minutes.
	APIRatePerMinute float64 `koanf:"api_rate_per_minute"`
	APIBurst         int     `koanf:"api_burst"`
	// Analysis limiter: 5 requests per minute.
	AnalysisRatePerMinute float64 `koanf:"analysis_rate_per_minute"`
	AnalysisBurst         int     `koanf:"analysis_burst"`

	// TrialLimit is how many anonymous analyses a trial cookie gets.
	TrialLimit           int `koanf:"trial_limit"`
	TrialRecommendations int `koanf:"trial_recommendations"`

	CORSOrigin string `koanf:"cors_origin"`

	OpenAIAPIKey  string `koanf:"openai_api_key"`
	OpenAIBaseURL string `koanf:"openai_base_url"`
	OpenAIModel   string `koanf:"openai_model"`

	// CreditResetSchedule is a cron expression; empty disables the reset job.
	CreditResetSchedule string `koanf:"credit_reset_schedule"`

	S3Bucket    string `koanf:"s3_bucket"`
	S3Region    string `koanf:"s3_region"`
	S3Endpoint  string `koanf:"s3_endpoint"`
	S3AccessKey string `koanf:"s3_access_key"`
	S3SecretKey string `koanf:"s3_secret_key"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Addr:      ":8082",
		GinMode:   "release",
		LogLevel:  "info",
		LogFormat: "text",
		DataDir:   "data",

		DBDriver: "sqlite3",
		DBDSN:    "file:siteanalyzer.db?_foreign_keys=on&_busy_timeout=5000",

		TokenTTL: 24 * time.Hour,

		FetchTimeout:  30 * time.Second,
		CacheTTL:      24 * time.Hour,
		ProbeCacheTTL: time.Hour,
		MaxPageBytes:  10 << 20,
		UserAgent:     "SiteAnalyzerBot/1.0 (+https://siteanalyzer.app)",

		APIRatePerMinute:      100.0 / 15,
		APIBurst:              100,
		AnalysisRatePerMinute: 5,
		AnalysisBurst:         5,

		TrialLimit:           1,
		TrialRecommendations: 3,

		CORSOrigin: "*",

		OpenAIModel: "gpt-4-turbo-preview",

		CreditResetSchedule: "0 0 1 * *",

		S3Region: "us-east-1",
	}
}

// ArchiveEnabled reports whether analysis reports should be uploaded to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

// CritiqueEnabled reports whether an LLM key is configured.
func (c *Config) CritiqueEnabled() bool {
	return c.OpenAIAPIKey != ""
}
