package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudcrafter/console/internal/console/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ORACLE_BASE_URL", "http://oracle.local")
	t.Setenv("ORACLE_BOT_ID", "bot-1")
	t.Setenv("ORACLE_BOT_ALIAS_ID", "alias-1")
	t.Setenv("JOBS_BASE_URL", "http://jobs.local")
}

func TestLoadFromEnvWithDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr: %q", cfg.HTTP.Addr)
	}
	if cfg.Oracle.LocaleID != "en_US" {
		t.Errorf("LocaleID: %q", cfg.Oracle.LocaleID)
	}
	if !cfg.IsDev() {
		t.Error("default env should be dev")
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("ORACLE_BASE_URL", "")
	t.Setenv("ORACLE_BOT_ID", "")
	t.Setenv("ORACLE_BOT_ALIAS_ID", "")
	t.Setenv("JOBS_BASE_URL", "")

	_, err := config.Load("")
	if err == nil {
		t.Fatal("expected error for missing settings")
	}
	if !strings.Contains(err.Error(), "ORACLE_BASE_URL") || !strings.Contains(err.Error(), "JOBS_BASE_URL") {
		t.Errorf("error should name the missing settings: %v", err)
	}
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOG_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "console.yaml")
	doc := `
env: prod
http:
  addr: ":9000"
log:
  level: warn
  format: json
jobs:
  plan_interval: 2s
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Errorf("HTTP.Addr: %q", cfg.HTTP.Addr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("env must override the file, Log.Level: %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format: %q", cfg.Log.Format)
	}
	if cfg.Jobs.PlanInterval.Std() != 2*time.Second {
		t.Errorf("PlanInterval: %v", cfg.Jobs.PlanInterval)
	}
	if cfg.IsDev() {
		t.Error("file set env: prod")
	}
}

func TestLoadRejectsUnknownEnvName(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONSOLE_ENV", "staging")

	if _, err := config.Load(""); err == nil {
		t.Fatal("expected error for unknown env name")
	}
}
