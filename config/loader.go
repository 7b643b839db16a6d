package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "SITEANALYZER_"
	envFileVar = "SITEANALYZER_CONFIG"
)

// LoadEnv loads .env.development, falling back to .env. Values already in
// the environment win. It reports which file was loaded, if any.
func LoadEnv() string {
	if err := godotenv.Load(".env.development"); err == nil {
		return ".env.development"
	}
	if err := godotenv.Load(); err == nil {
		return ".env"
	}
	return ""
}

// Load builds a Config by layering defaults, an optional YAML file and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SITEANALYZER_CONFIG is set
//  3. PORT / GIN_MODE / DEV_MODE / OPENAI_API_KEY / JWT_SECRET / DATABASE_URL
//  4. env (prefix SITEANALYZER_)
func Load() (*Config, error) {
	cfg := New()
	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	if err := k.Load(plainEnv{}, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// SITEANALYZER_DB_DSN -> db_dsn (flat keys, matching the koanf tags)
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the process cannot start without.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: jwt_secret must not be empty", ErrInvalidConfig)
	}
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("%w: unknown db_driver %q", ErrInvalidConfig, c.DBDriver)
	}
	if c.APIRatePerMinute <= 0 || c.AnalysisRatePerMinute <= 0 {
		return fmt.Errorf("%w: rate limits must be positive", ErrInvalidConfig)
	}
	if c.TrialLimit < 0 || c.TrialRecommendations < 0 {
		return fmt.Errorf("%w: trial limits must not be negative", ErrInvalidConfig)
	}
	return nil
}

// plainEnv is a koanf provider for the unprefixed variables common on
// hosting platforms.
type plainEnv struct{}

var plainEnvKeys = map[string]string{
	"GIN_MODE":       "gin_mode",
	"DEV_MODE":       "dev_mode",
	"JWT_SECRET":     "jwt_secret",
	"DATABASE_URL":   "db_dsn",
	"OPENAI_API_KEY": "openai_api_key",
	"LOG_LEVEL":      "log_level",
	"LOG_FORMAT":     "log_format",
}

func (plainEnv) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("plain env provider does not support ReadBytes")
}

func (plainEnv) Read() (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if port := os.Getenv("PORT"); port != "" {
		out["addr"] = ":" + port
	}
	for name, key := range plainEnvKeys {
		if v := os.Getenv(name); v != "" {
			out[key] = v
		}
	}
	if strings.HasPrefix(os.Getenv("DATABASE_URL"), "postgres") {
		out["db_driver"] = "postgres"
	}
	return out, nil
}
