package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dkoetsier/eanharvest/models"
)

// Config holds harvester configuration.
type Config struct {
	Targets []models.CategoryTarget

	StartPage int // default first page for targets that do not set one
	MaxPages  int // default per-category page ceiling, 0 = unlimited

	ProductPath  string // URL path fragment identifying product detail pages
	CategoryPath string // URL path fragment identifying category listings

	PageDelay   time.Duration // pacing between fetches
	RetryDelay  time.Duration // fixed delay before the single product retry
	Timeout     time.Duration
	MaxAttempts int // attempts per product; the policy is retry-once

	DedupeMaxSize int // capacity of the run-level seen-reference cache

	OutputFile       string
	OutputFormat     string // csv, json, or dual
	SplitPerCategory bool   // one output file per category
	UserAgent        string
	Verbose          bool
	RespectRobotsTxt bool
	MetricsAddr      string
}

// DefaultConfig returns conservative defaults tuned for the retail target.
// The category target list has no safe default and must be supplied.
func DefaultConfig() *Config {
	return &Config{
		StartPage:        1,
		MaxPages:         2,
		ProductPath:      "/nl/nl/p/",
		CategoryPath:     "/nl/nl/l/",
		PageDelay:        time.Second,
		RetryDelay:       2 * time.Second,
		Timeout:          30 * time.Second,
		MaxAttempts:      2,
		DedupeMaxSize:    100000,
		OutputFile:       "output/products.csv",
		OutputFormat:     "csv",
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:          false,
		RespectRobotsTxt: false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one category target is required")
	}
	for i, target := range c.Targets {
		parsed, err := url.Parse(target.URL)
		if err != nil {
			return fmt.Errorf("invalid category URL %q: %w", target.URL, err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("category URL must include a host: %q", target.URL)
		}
		if target.StartPage < 0 {
			return fmt.Errorf("target %d: start page cannot be negative", i+1)
		}
		if target.MaxPages < 0 {
			return fmt.Errorf("target %d: max pages cannot be negative", i+1)
		}
	}
	if c.StartPage < 1 {
		return fmt.Errorf("start page must be positive")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.ProductPath == "" {
		return fmt.Errorf("product path cannot be empty")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}

// Normalize fills per-target defaults from the run-wide settings.
func (c *Config) Normalize() {
	for i := range c.Targets {
		if c.Targets[i].StartPage == 0 {
			c.Targets[i].StartPage = c.StartPage
		}
		if c.Targets[i].MaxPages == 0 {
			c.Targets[i].MaxPages = c.MaxPages
		}
	}
}

// EnvInt reads an integer environment variable. The second return reports
// whether the variable was set.
func EnvInt(name string) (int, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", name, err)
	}
	return value, true, nil
}

// EnvString reads a string environment variable.
func EnvString(name string) (string, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return "", false
	}
	return strings.TrimSpace(raw), true
}

// EnvStrings reads a comma-separated list environment variable.
func EnvStrings(name string) ([]string, bool) {
	raw, ok := EnvString(name)
	if !ok {
		return nil, false
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
