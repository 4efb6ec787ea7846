// Package config reads the server settings from the environment, after
// loading any .env files present in the working directory.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Production is the ENV value that turns on production checks.
const Production = "production"

// Prefix is prepended to every variable name.
const Prefix = "TERRITORIOS_"

// DefaultEnvFiles are loaded, when present, before parsing.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Config errors
var (
	ErrCSRFKey      = errors.New("CSRF_KEY must be 64 hex characters (32 bytes)")
	ErrCSRFRequired = errors.New("CSRF_KEY is required in production")
	ErrAPIURL       = errors.New("API_URL must be an absolute http(s) URL")
	ErrRateLimit    = errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
)

// Config holds every setting the server reads.
type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// APIURL is the spreadsheet endpoint. Empty selects the local fixture store.
	APIURL      string        `env:"API_URL"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`
	DemoDSN     string        `env:"DEMO_DSN" envDefault:":memory:"`

	CSRFKeyHex     string   `env:"CSRF_KEY"`
	TrustedOrigins []string `env:"TRUSTED_ORIGINS" envSeparator:"," envDefault:"localhost:8080,127.0.0.1:8080"`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"20"`

	SlowRequest time.Duration `env:"SLOW_REQUEST" envDefault:"200ms"`
	SlowQuery   time.Duration `env:"SLOW_QUERY" envDefault:"50ms"`
	PrintDelay  time.Duration `env:"PRINT_DELAY" envDefault:"500ms"`

	ResendKey  string   `env:"RESEND_KEY"`
	ReportFrom string   `env:"REPORT_FROM" envDefault:"Territorios <noreply@example.org>"`
	ReportTo   []string `env:"REPORT_TO" envSeparator:","`

	StaticDir string `env:"STATIC_DIR"`

	csrfKey []byte
}

// LoadEnv loads the files in envFiles that exist and reports how many did.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads .env files then parses the environment.
// PRE: none
// POST: returned Config is validated; a CSRF key is always available
func Load(envFiles []string) (*Config, error) {
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return Parse(env.Options{Prefix: Prefix})
}

// Parse parses the environment with opts and validates the result.
func Parse(opts env.Options) (*Config, error) {
	c := &Config{}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	c.APIURL = strings.TrimSpace(c.APIURL)
	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrAPIURL
		}
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return ErrRateLimit
	}

	if c.CSRFKeyHex != "" {
		key, err := hex.DecodeString(c.CSRFKeyHex)
		if err != nil || len(key) != 32 {
			return ErrCSRFKey
		}
		c.csrfKey = key
		return nil
	}
	if c.IsProduction() {
		return ErrCSRFRequired
	}
	c.csrfKey = make([]byte, 32)
	if _, err := rand.Read(c.csrfKey); err != nil {
		return fmt.Errorf("generate CSRF key: %w", err)
	}
	slog.Warn("config_event", "event", "random_csrf_key", "hint", "set "+Prefix+"CSRF_KEY so forms survive restarts")
	return nil
}

// IsProduction reports whether production checks apply.
func (c *Config) IsProduction() bool {
	return c.Env == Production
}

// DemoMode reports whether the fixture store replaces the remote endpoint.
func (c *Config) DemoMode() bool {
	return c.APIURL == ""
}

// CSRFKey returns the 32-byte form protection key.
func (c *Config) CSRFKey() []byte {
	return c.csrfKey
}

// SlogLevel maps LogLevel onto slog levels; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
