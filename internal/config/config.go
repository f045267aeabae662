package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	AuthModeDevelopment = "development"
	AuthModeJWT         = "jwt"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	AuthMode          string        `mapstructure:"AUTH_MODE"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	DBConnectAttempts uint          `mapstructure:"DB_CONNECT_ATTEMPTS"`
	DBRetryDelay      time.Duration `mapstructure:"DB_RETRY_DELAY"`
	AuthIssuer        string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL       string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience      string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey    string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit         string        `mapstructure:"BODY_LIMIT"`
	BatchBodyLimit    string        `mapstructure:"BATCH_BODY_LIMIT"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MaxTextBytes      int           `mapstructure:"MAX_TEXT_BYTES"`
	ExtractWorkers    int           `mapstructure:"EXTRACT_WORKERS"`
	MaxBatch          int           `mapstructure:"MAX_BATCH"`
}

var defaults = map[string]interface{}{
	"PORT":                "8000",
	"ENV":                 "development",
	"LOG_LEVEL":           "info",
	"AUTH_MODE":           "", // inferred from ENV
	"DB_MAX_CONNS":        20,
	"DB_MIN_CONNS":        5,
	"DB_CONNECT_ATTEMPTS": 5,
	"DB_RETRY_DELAY":      "2s",
	"CORS_ORIGINS":        "http://localhost:3000",
	"RATE_LIMIT_RPS":      100,
	"RATE_LIMIT_BURST":    200,
	"BODY_LIMIT":          "2M",
	"BATCH_BODY_LIMIT":    "16M",
	"REQUEST_TIMEOUT":     "30s",
	"MAX_TEXT_BYTES":      262144,
	"EXTRACT_WORKERS":     4,
	"MAX_BATCH":           50,
}

var optional = []string{
	"DATABASE_URL", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
}

// Load reads the environment, then an optional .env file. DATABASE_URL may be
// empty, in which case records are kept in memory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	// Bind env vars explicitly so Unmarshal picks them up
	for key := range defaults {
		_ = v.BindEnv(key)
	}
	for _, key := range optional {
		_ = v.BindEnv(key)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns AUTH_MODE when set. Otherwise development
// environments run without mandatory tokens and everything else verifies JWTs.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return AuthModeDevelopment
	}
	return AuthModeJWT
}

// Level parses LOG_LEVEL, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

const minSigningKeyLen = 32

// Validate refuses configurations that would run unauthenticated outside
// development or with unusable limits.
func (c *Config) Validate() error {
	switch mode := c.ResolvedAuthMode(); mode {
	case AuthModeDevelopment:
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=development is not allowed when ENV=production")
		}
	case AuthModeJWT:
		if c.AuthIssuer == "" {
			return fmt.Errorf("AUTH_ISSUER must be set when AUTH_MODE is %q (current ENV=%q)", mode, c.Env)
		}
		if c.AuthJWKSURL == "" && c.AuthSigningKey == "" {
			return fmt.Errorf("one of AUTH_JWKS_URL or AUTH_SIGNING_KEY is required when AUTH_MODE is %q", mode)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeDevelopment, AuthModeJWT, mode)
	}

	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < minSigningKeyLen {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least %d bytes, got %d", minSigningKeyLen, len(c.AuthSigningKey))
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	if c.DBMinConns < 0 || c.DBMaxConns < 1 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must be between 0 and DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.ExtractWorkers < 1 || c.ExtractWorkers > 64 {
		return fmt.Errorf("EXTRACT_WORKERS must be between 1 and 64, got %d", c.ExtractWorkers)
	}
	if c.MaxTextBytes < 1 {
		return fmt.Errorf("MAX_TEXT_BYTES must be positive, got %d", c.MaxTextBytes)
	}
	if c.MaxBatch < 1 {
		return fmt.Errorf("MAX_BATCH must be positive, got %d", c.MaxBatch)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}
