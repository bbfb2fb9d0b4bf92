package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/jobradar/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("TEST_SLACK_HOOK", "https://hooks.slack.com/services/T000/B000/XXX")
	path := writeConfig(t, `
log_level: debug
sources:
  - name: indeed
  - name: linkedin
  - name: stepstone
    enabled: false
  - name: xing
    rate_interval: 3s
    burst: 1
proxies:
  endpoints:
    - http://solver-1:8191
    - http://solver-2:8191
  cooldown_base: 1m
orchestrator:
  max_pages: 5
filters:
  red_flags: [zeitarbeit, unpaid]
cache:
  backend: redis
  redis_url: redis://localhost:6379/0
  ttl: 10m
scoring:
  enabled: true
  profile: Senior Go engineer in Berlin
storage:
  driver: postgres
  dsn: postgres://jobradar@localhost/jobradar
  retention: 720h
schedule:
  - name: berlin-go
    cron: "*/30 * * * *"
    keywords: golang, backend
    location: Berlin
    language: en
    sources: [indeed, xing]
    title_keywords: [go, golang]
notification:
  type: slack
  webhook_url: ${TEST_SLACK_HOOK}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if got := cfg.EnabledSources(); strings.Join(got, ",") != "indeed,linkedin,xing" {
		t.Errorf("EnabledSources = %v", got)
	}
	if cfg.Sources[0].RateInterval != 1500*time.Millisecond || cfg.Sources[0].Burst != 3 {
		t.Errorf("indeed rate = %+v", cfg.Sources[0])
	}
	if cfg.Sources[1].RateInterval != 5*time.Second {
		t.Errorf("linkedin default interval = %v, want 5s", cfg.Sources[1].RateInterval)
	}
	if cfg.Sources[3].RateInterval != 3*time.Second || cfg.Sources[3].Burst != 1 {
		t.Errorf("xing rate = %+v", cfg.Sources[3])
	}
	if len(cfg.Proxies.Endpoints) != 2 || cfg.Proxies.CooldownBase != time.Minute || cfg.Proxies.CooldownMax != 10*time.Minute {
		t.Errorf("Proxies = %+v", cfg.Proxies)
	}
	if cfg.Orchestrator.MaxPages != 5 || cfg.Orchestrator.GlobalConcurrency != 6 {
		t.Errorf("Orchestrator = %+v", cfg.Orchestrator)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.TTL != 10*time.Minute || cfg.Cache.Prefix != "jobradar:" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if !cfg.Scoring.Enabled || cfg.Scoring.Host != defaultOllamaHost || cfg.Scoring.Timeout != 30*time.Second {
		t.Errorf("Scoring = %+v", cfg.Scoring)
	}
	if cfg.Storage.Retention != 720*time.Hour {
		t.Errorf("Retention = %v", cfg.Storage.Retention)
	}
	if cfg.Notification.WebhookURL != "https://hooks.slack.com/services/T000/B000/XXX" {
		t.Errorf("WebhookURL not expanded from env: %q", cfg.Notification.WebhookURL)
	}
	if len(cfg.Schedule) != 1 {
		t.Fatalf("Schedule = %+v", cfg.Schedule)
	}
	s := cfg.Schedule[0]
	if s.Query.Language != model.LanguageOnlyEN || s.Query.Keywords != "golang, backend" || len(s.Titles) != 2 {
		t.Errorf("saved search = %+v", s)
	}
}

func TestLoad_MinimalConfigTakesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log_level: info\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.EnabledSources()) != 8 {
		t.Errorf("expected all 8 sources enabled, got %v", cfg.EnabledSources())
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != defaultSQLitePath {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Cache.Backend != "memory" || cfg.Notification.Type != "log" {
		t.Errorf("cache=%q notification=%q", cfg.Cache.Backend, cfg.Notification.Type)
	}
	if cfg.Fetch.Attempts != 3 || cfg.Fetch.BackoffCap != 8*time.Second {
		t.Errorf("Fetch = %+v", cfg.Fetch)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadOrDefault(DefaultPath)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if len(cfg.EnabledSources()) != 8 {
		t.Errorf("default config should enable every source")
	}

	if _, err := LoadOrDefault("explicit.yaml"); err == nil {
		t.Error("an explicitly named missing file must be an error")
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	if got := ResolvePath(""); got != DefaultPath {
		t.Errorf("ResolvePath() = %q, want %q", got, DefaultPath)
	}
	t.Setenv(EnvConfigPath, "/etc/jobradar.yaml")
	if got := ResolvePath(""); got != "/etc/jobradar.yaml" {
		t.Errorf("env path ignored: %q", got)
	}
	if got := ResolvePath("flag.yaml"); got != "flag.yaml" {
		t.Errorf("flag must win: %q", got)
	}
}

func TestLoad_InvalidConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"invalid yaml", "sources: [broken", "parse config"},
		{"unknown source", "sources:\n  - name: myspace\n", "unknown source"},
		{"duplicate source", "sources:\n  - name: xing\n  - name: xing\n", "listed twice"},
		{"no enabled source", "sources:\n  - name: xing\n    enabled: false\n", "at least one source"},
		{"bad duration", "fetch:\n  backoff_base: soon\n", "fetch.backoff_base"},
		{"negative rate", "sources:\n  - name: xing\n    rate_interval: -1s\n", "rate_interval"},
		{"redis without url", "cache:\n  backend: redis\n", "redis_url"},
		{"unknown cache", "cache:\n  backend: memcached\n", "cache.backend"},
		{"postgres without dsn", "storage:\n  driver: postgres\n", "storage.dsn"},
		{"unknown driver", "storage:\n  driver: mongodb\n", "storage.driver"},
		{"scoring without profile", "scoring:\n  enabled: true\n", "scoring.profile"},
		{"slack without webhook", "notification:\n  type: slack\n", "webhook_url is required"},
		{"slack wrong host", "notification:\n  type: slack\n  webhook_url: https://example.com/hook\n", "must start with"},
		{"bad log level", "log_level: loud\n", "log_level"},
		{"cooldown base above max", "proxies:\n  cooldown_base: 20m\n", "cooldown_base"},
		{"bad cron", "schedule:\n  - name: a\n    cron: every hour\n    keywords: go\n", "cron"},
		{"schedule without keywords", "schedule:\n  - name: a\n    cron: \"@hourly\"\n", "keywords"},
		{"schedule bad language", "schedule:\n  - name: a\n    cron: \"@hourly\"\n    keywords: go\n    language: fr\n", "language"},
		{"schedule disabled source", "sources:\n  - name: xing\n  - name: indeed\n    enabled: false\nschedule:\n  - name: a\n    cron: \"@hourly\"\n    keywords: go\n    sources: [indeed]\n", "not enabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load: expected validation error")
			}
			if !errors.Is(err, model.ErrConfigInvalid) {
				t.Errorf("error should wrap ErrConfigInvalid: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should mention %q", err, tt.wantMsg)
			}
		})
	}
}
