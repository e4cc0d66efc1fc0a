package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "console.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Addr != ":8082" {
		t.Fatalf("expected default addr, got %q", cfg.HTTP.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
upstream:
  url: https://nzyme.example.org/api
  timeout: 3s
session:
  idle_ttl: 30m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug, got %q", cfg.LogLevel)
	}
	if cfg.Upstream.URL != "https://nzyme.example.org/api" || cfg.Upstream.Timeout != 3*time.Second {
		t.Fatalf("unexpected upstream config: %+v", cfg.Upstream)
	}
	if cfg.Session.IdleTTL != 30*time.Minute {
		t.Fatalf("expected idle ttl 30m, got %s", cfg.Session.IdleTTL)
	}
	// Untouched keys keep their defaults.
	if cfg.Session.CookieName != "console_session" {
		t.Fatalf("expected default cookie name, got %q", cfg.Session.CookieName)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "http: [not a map")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"HTTP_ADDR":        ":9000",
		"UPSTREAM_TIMEOUT": "250ms",
		"LOG_LEVEL":        "  ",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Fatalf("expected addr override, got %q", cfg.HTTP.Addr)
	}
	if cfg.Upstream.Timeout != 250*time.Millisecond {
		t.Fatalf("expected timeout override, got %s", cfg.Upstream.Timeout)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("blank env must not override, got %q", cfg.LogLevel)
	}

	env["SESSION_IDLE_TTL"] = "forever"
	if err := cfg.ApplyEnv(lookup); err == nil || !strings.Contains(err.Error(), "SESSION_IDLE_TTL") {
		t.Fatalf("expected duration parse error, got %v", err)
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Upstream.URL = "ftp://nope"
	cfg.Session.IdleTTL = 0
	cfg.RoutePrefix = "console"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"upstream.url", "session.idle_ttl", "route_prefix"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
