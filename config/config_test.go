package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkoetsier/eanharvest/models"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Targets = []models.CategoryTarget{
		{URL: "https://shop.test/nl/nl/l/cameras/100/"},
	}
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "no targets",
			mutate:  func(cfg *Config) { cfg.Targets = nil },
			wantErr: "category target",
		},
		{
			name: "target without host",
			mutate: func(cfg *Config) {
				cfg.Targets = []models.CategoryTarget{{URL: "/nl/nl/l/cameras/100/"}}
			},
			wantErr: "host",
		},
		{
			name:    "zero start page",
			mutate:  func(cfg *Config) { cfg.StartPage = 0 },
			wantErr: "start page",
		},
		{
			name:    "negative max pages",
			mutate:  func(cfg *Config) { cfg.MaxPages = -1 },
			wantErr: "max pages",
		},
		{
			name:    "empty product path",
			mutate:  func(cfg *Config) { cfg.ProductPath = "" },
			wantErr: "product path",
		},
		{
			name:    "negative retry delay",
			mutate:  func(cfg *Config) { cfg.RetryDelay = -time.Second },
			wantErr: "retry delay",
		},
		{
			name:    "zero timeout",
			mutate:  func(cfg *Config) { cfg.Timeout = 0 },
			wantErr: "timeout",
		},
		{
			name:    "zero attempts",
			mutate:  func(cfg *Config) { cfg.MaxAttempts = 0 },
			wantErr: "attempts",
		},
		{
			name:    "bad format",
			mutate:  func(cfg *Config) { cfg.OutputFormat = "xlsx" },
			wantErr: "output format",
		},
		{
			name:    "empty output",
			mutate:  func(cfg *Config) { cfg.OutputFile = "" },
			wantErr: "output file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigNeedsTargets(t *testing.T) {
	if err := DefaultConfig().Validate(); err == nil {
		t.Fatalf("config without targets should not validate")
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("config with a target should validate, got %v", err)
	}
}

func TestNormalizeFillsTargetDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.StartPage = 3
	cfg.MaxPages = 7
	cfg.Targets = append(cfg.Targets, models.CategoryTarget{
		URL:       "https://shop.test/nl/nl/l/cleaners/200/",
		StartPage: 2,
		MaxPages:  1,
	})

	cfg.Normalize()

	if got := cfg.Targets[0]; got.StartPage != 3 || got.MaxPages != 7 {
		t.Fatalf("target 0 = %+v, want defaults filled", got)
	}
	if got := cfg.Targets[1]; got.StartPage != 2 || got.MaxPages != 1 {
		t.Fatalf("target 1 = %+v, want explicit values kept", got)
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("HARVEST_TEST_INT", "12")
	value, ok, err := EnvInt("HARVEST_TEST_INT")
	if err != nil || !ok || value != 12 {
		t.Fatalf("EnvInt = (%d, %v, %v), want (12, true, nil)", value, ok, err)
	}

	t.Setenv("HARVEST_TEST_INT", "twelve")
	if _, _, err := EnvInt("HARVEST_TEST_INT"); err == nil {
		t.Fatalf("expected error for non-numeric value")
	}

	if _, ok, _ := EnvInt("HARVEST_TEST_UNSET"); ok {
		t.Fatalf("unset variable should report ok=false")
	}
}

func TestEnvStrings(t *testing.T) {
	t.Setenv("HARVEST_TEST_LIST", " https://a.test/l/1/, https://a.test/l/2/ ,")
	values, ok := EnvStrings("HARVEST_TEST_LIST")
	if !ok || len(values) != 2 {
		t.Fatalf("EnvStrings = (%v, %v), want two entries", values, ok)
	}
	if values[0] != "https://a.test/l/1/" || values[1] != "https://a.test/l/2/" {
		t.Fatalf("unexpected values: %v", values)
	}
}

func TestLoadTargets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.yaml")
	content := `targets:
  - url: https://shop.test/nl/nl/l/cameras/100/
    max_pages: 3
  - url: https://shop.test/nl/nl/l/cleaners/200/
    start_page: 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write targets file: %v", err)
	}

	targets, err := LoadTargets(path)
	if err != nil {
		t.Fatalf("load targets: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("targets=%d, want 2", len(targets))
	}
	if targets[0].MaxPages != 3 || targets[0].StartPage != 0 {
		t.Fatalf("target 0 = %+v", targets[0])
	}
	if targets[1].StartPage != 2 {
		t.Fatalf("target 1 = %+v", targets[1])
	}
}

func TestLoadTargetsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.yaml")
	if err := os.WriteFile(path, []byte("targets: []\n"), 0o644); err != nil {
		t.Fatalf("write targets file: %v", err)
	}
	if _, err := LoadTargets(path); err == nil {
		t.Fatalf("expected error for empty target list")
	}
}
