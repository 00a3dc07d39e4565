// Package config provides centralized configuration management for the
// yanote application. It loads configuration from CLI flags and environment
// variables, validates required fields, and provides sensible defaults.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr   string
	BaseURL      string
	TemplatesDir string

	// Database
	DatabasePath string // Path to the SQLite file (e.g., /data/yanote.db)
	DatabaseKey  string // Optional SQLCipher key, 64 hex characters (32 bytes)

	// Sessions
	SessionDuration time.Duration
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses CLI flags and returns them. Call before LoadConfig.
func ParseFlags() (addr, dbPath string) {
	flag.StringVar(&addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	flag.StringVar(&dbPath, "db", "", "SQLite database path (overrides DATABASE_PATH env var)")
	flag.Parse()
	return addr, dbPath
}

// LoadConfig loads configuration from a .env file (if present), environment
// variables, and CLI flag values. Flags override env vars if non-empty.
func LoadConfig(addr, dbPath string) (*Config, error) {
	// .env is optional; real environments set vars directly.
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":8080")
	if addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.BaseURL = strings.TrimSpace(os.Getenv("BASE_URL"))
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}
	cfg.TemplatesDir = getEnvOrDefault("TEMPLATES_DIR", "./web/templates")

	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", "./data/yanote.db")
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	cfg.DatabaseKey = strings.TrimSpace(os.Getenv("DATABASE_KEY"))

	cfg.SessionDuration = parseDurationOrDefault("SESSION_DURATION", 30*24*time.Hour)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.ListenAddr == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}
	if c.DatabasePath == "" {
		errs = append(errs, "DATABASE_PATH must not be empty")
	}
	if c.DatabaseKey != "" && len(c.DatabaseKey) != 64 {
		errs = append(errs, "DATABASE_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
	}
	if c.SessionDuration <= 0 {
		errs = append(errs, "SESSION_DURATION must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// RequireSecureCookies returns true if secure cookies should be required.
// Returns false for localhost development URLs.
func (c *Config) RequireSecureCookies() bool {
	return !strings.HasPrefix(c.BaseURL, "http://localhost") &&
		!strings.HasPrefix(c.BaseURL, "http://127.0.0.1")
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "yanote server starting...")
	fmt.Fprintf(os.Stderr, "  Listen:    %s\n", c.ListenAddr)
	fmt.Fprintf(os.Stderr, "  Base URL:  %s\n", c.BaseURL)
	fmt.Fprintf(os.Stderr, "  Database:  %s\n", c.DatabasePath)
	if c.DatabaseKey != "" {
		fmt.Fprintln(os.Stderr, "  Cipher:    enabled")
	} else {
		fmt.Fprintln(os.Stderr, "  Cipher:    disabled (set DATABASE_KEY to encrypt)")
	}
	fmt.Fprintf(os.Stderr, "  Sessions:  %s\n", c.SessionDuration)
	fmt.Fprintln(os.Stderr, "")
}

func getEnvOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func parseDurationOrDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
