package config

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_EnvSubstitution(t *testing.T) {
	// Setup env var
	os.Setenv("TEST_BACKEND_TOKEN", "s3cret")
	defer os.Unsetenv("TEST_BACKEND_TOKEN")

	// Create temp config file
	configContent := `
backend:
  base_url: http://localhost:3000
  token: ${TEST_BACKEND_TOKEN}
`
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write([]byte(configContent)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()

	// Load config
	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Backend.Token != "s3cret" {
		t.Errorf("Expected token s3cret, got %s", cfg.Backend.Token)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/opswatch.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("backend:\n  base_url: https://crm.example.com\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Polling.Interval != 10*time.Second {
		t.Errorf("expected 10s interval, got %v", cfg.Polling.Interval)
	}
	if cfg.Polling.MaxRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.Polling.MaxRetries)
	}
	if cfg.Polling.StaleAfter != time.Minute {
		t.Errorf("expected 60s stale budget, got %v", cfg.Polling.StaleAfter)
	}
	if cfg.Pacing.Window != 20 || cfg.Pacing.SaturationRun != 5 {
		t.Errorf("unexpected pacing defaults: %+v", cfg.Pacing)
	}
	if cfg.Alerts.Cooldown != 5*time.Minute || cfg.Alerts.FailureDelta != 5 {
		t.Errorf("unexpected alert defaults: %+v", cfg.Alerts)
	}
}

func TestParse_Durations(t *testing.T) {
	content := `
backend:
  base_url: http://localhost:3000
polling:
  interval: 15s
  intervals:
    pacing: 5s
alerts:
  cooldown: 2m
`
	cfg, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := cfg.Polling.IntervalFor("pacing"); got != 5*time.Second {
		t.Errorf("expected pacing override 5s, got %v", got)
	}
	if got := cfg.Polling.IntervalFor("metrics"); got != 15*time.Second {
		t.Errorf("expected shared interval 15s, got %v", got)
	}
	if cfg.Alerts.Cooldown != 2*time.Minute {
		t.Errorf("expected 2m cooldown, got %v", cfg.Alerts.Cooldown)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"missing base url", "server:\n  port: 9000\n", "base_url is required"},
		{"bad scheme", "backend:\n  base_url: ftp://x\n", "http(s) url"},
		{"unknown endpoint", "backend:\n  base_url: http://x\npolling:\n  intervals:\n    nope: 1s\n", "unknown endpoint"},
		{"drop percent", "backend:\n  base_url: http://x\nalerts:\n  drop_percent: 150\n", "drop_percent"},
		{"port clash", "backend:\n  base_url: http://x\nserver:\n  port: 9000\n  grpc_port: 9000\n", "must differ"},
		{"log format", "backend:\n  base_url: http://x\nlogging:\n  format: xml\n", "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPSWATCH_BACKEND_URL", "")
			_, err := Parse([]byte(tt.content))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q in %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestParse_BackendFromEnv(t *testing.T) {
	t.Setenv("OPSWATCH_BACKEND_URL", "http://backend:3000")
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Backend.BaseURL != "http://backend:3000" {
		t.Errorf("expected url from env, got %q", cfg.Backend.BaseURL)
	}
}
