package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreFHIR     = "fhir"
	StorePostgres = "postgres"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	AuthMode         string        `mapstructure:"AUTH_MODE"`
	AuthIssuer       string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL      string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience     string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey   string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS     float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int           `mapstructure:"RATE_LIMIT_BURST"`
	FHIRBaseURL      string        `mapstructure:"FHIR_BASE_URL"`
	FHIRTokenURL     string        `mapstructure:"FHIR_TOKEN_URL"`
	FHIRClientID     string        `mapstructure:"FHIR_CLIENT_ID"`
	FHIRClientSecret string        `mapstructure:"FHIR_CLIENT_SECRET"`
	FHIRScope        string        `mapstructure:"FHIR_SCOPE"`
	FHIRStaticToken  string        `mapstructure:"FHIR_STATIC_TOKEN"`
	FHIRTimeout      time.Duration `mapstructure:"FHIR_TIMEOUT"`
	SubmissionStore  string        `mapstructure:"SUBMISSION_STORE"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	ActiveTitle      string        `mapstructure:"ACTIVE_QUESTIONNAIRE_TITLE"`
	ChartInitial     int           `mapstructure:"CARE_CHART_INITIAL_VAL"`
	ChartMin         int           `mapstructure:"CARE_CHART_MIN_VAL"`
	ChartMax         int           `mapstructure:"CARE_CHART_MAX_VAL"`
	MaxSubmissions   int           `mapstructure:"CARE_CHART_MAX_SUBMISSIONS"`
	PublishOnStart   bool          `mapstructure:"PUBLISH_ON_START"`
}

var keys = []string{
	"PORT", "ENV", "AUTH_MODE",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"FHIR_BASE_URL", "FHIR_TOKEN_URL", "FHIR_CLIENT_ID", "FHIR_CLIENT_SECRET",
	"FHIR_SCOPE", "FHIR_STATIC_TOKEN", "FHIR_TIMEOUT",
	"SUBMISSION_STORE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"ACTIVE_QUESTIONNAIRE_TITLE",
	"CARE_CHART_INITIAL_VAL", "CARE_CHART_MIN_VAL", "CARE_CHART_MAX_VAL",
	"CARE_CHART_MAX_SUBMISSIONS", "PUBLISH_ON_START",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // auto-detect from ENV
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("FHIR_TIMEOUT", "15s")
	v.SetDefault("SUBMISSION_STORE", StoreFHIR)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("ACTIVE_QUESTIONNAIRE_TITLE", "skincare-checkup-v.1.0")
	v.SetDefault("CARE_CHART_INITIAL_VAL", 5)
	v.SetDefault("CARE_CHART_MIN_VAL", 1)
	v.SetDefault("CARE_CHART_MAX_VAL", 10)
	v.SetDefault("CARE_CHART_MAX_SUBMISSIONS", 45)
	v.SetDefault("PUBLISH_ON_START", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.ResolvedAuthMode() == "development" {
		log.Println("WARNING: development auth is active; requests without a token get admin access.")
		log.Println("WARNING: set ENV=production and AUTH_ISSUER or AUTH_SIGNING_KEY before deploying.")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns AUTH_MODE when set. Otherwise ENV=development
// resolves to "development" and everything else to "jwt".
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "jwt"
}

// UsesPostgres reports whether checkups are stored in Postgres.
func (c *Config) UsesPostgres() bool {
	return c.SubmissionStore == StorePostgres
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.FHIRBaseURL == "" {
		return fmt.Errorf("FHIR_BASE_URL is required")
	}

	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "jwt" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"jwt\", got %q", mode)
	}
	if mode == "jwt" && c.AuthIssuer == "" && c.AuthSigningKey == "" {
		return fmt.Errorf(
			"AUTH_ISSUER or AUTH_SIGNING_KEY must be set when AUTH_MODE is \"jwt\" (current ENV=%q)", c.Env)
	}
	if c.IsProduction() && mode == "development" {
		return fmt.Errorf("development auth is not allowed in production")
	}

	switch c.SubmissionStore {
	case StoreFHIR:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when SUBMISSION_STORE is %q", StorePostgres)
		}
	default:
		return fmt.Errorf("SUBMISSION_STORE must be %q or %q, got %q", StoreFHIR, StorePostgres, c.SubmissionStore)
	}

	if c.ChartMin > c.ChartInitial || c.ChartInitial > c.ChartMax {
		return fmt.Errorf("care chart bounds must satisfy MIN_VAL <= INITIAL_VAL <= MAX_VAL, got %d <= %d <= %d",
			c.ChartMin, c.ChartInitial, c.ChartMax)
	}
	if c.MaxSubmissions < 1 {
		return fmt.Errorf("CARE_CHART_MAX_SUBMISSIONS must be positive, got %d", c.MaxSubmissions)
	}

	if (c.FHIRTokenURL == "") != (c.FHIRClientID == "") {
		return fmt.Errorf("FHIR_TOKEN_URL and FHIR_CLIENT_ID must be set together")
	}

	return nil
}
