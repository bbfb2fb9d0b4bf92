package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobradar/internal/adapter"
	"github.com/amishk599/jobradar/internal/model"
)

// EnvConfigPath names the environment variable consulted when no --config flag is given.
const EnvConfigPath = "JOBRADAR_CONFIG"

// DefaultPath is used when neither the flag nor the environment names a file.
const DefaultPath = "config.yaml"

// Config is the root configuration for jobradar.
type Config struct {
	LogLevel     slog.Level
	Sources      []SourceConfig
	Proxies      ProxyConfig
	Fetch        FetchConfig
	Orchestrator OrchestratorConfig
	Filters      FilterConfig
	Cache        CacheConfig
	Scoring      ScoringConfig
	Storage      StorageConfig
	Schedule     []SavedSearch
	Notification NotificationConfig
}

// SourceConfig enables one job board and sets its request rate.
type SourceConfig struct {
	Name         string
	Enabled      bool
	RateInterval time.Duration // one token per interval
	Burst        int
}

// ProxyConfig lists the bypass endpoints and tunes the balancer. An empty
// endpoint list means requests go directly to the boards.
type ProxyConfig struct {
	Endpoints        []string
	FailureThreshold int
	CooldownBase     time.Duration
	CooldownMax      time.Duration
	AcquireTimeout   time.Duration
	MaxTimeout       time.Duration // passed to the bypass service per request
}

// FetchConfig tunes retries.
type FetchConfig struct {
	Attempts       int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	RequestTimeout time.Duration
}

// OrchestratorConfig bounds a search run.
type OrchestratorConfig struct {
	GlobalConcurrency    int
	PerSourceConcurrency int
	MaxPages             int
	RunTimeout           time.Duration
}

// FilterConfig holds the red-flag terms applied to every run.
type FilterConfig struct {
	RedFlags []string `yaml:"red_flags"`
}

// CacheConfig selects the query cache backend.
type CacheConfig struct {
	Backend  string // "memory" or "redis"
	TTL      time.Duration
	RedisURL string
	Prefix   string
}

// ScoringConfig controls the optional Ollama scoring step.
type ScoringConfig struct {
	Enabled     bool
	Host        string
	Model       string
	Timeout     time.Duration // per record
	Concurrency int
	Profile     string // candidate profile the postings are rated against
}

// StorageConfig selects the storage collaborator.
type StorageConfig struct {
	Driver    string // "sqlite", "postgres" or "none"
	DSN       string
	Retention time.Duration // 0 keeps records forever
}

// SavedSearch is a query run on a cron schedule by `jobradar start`.
type SavedSearch struct {
	Name     string
	Cron     string
	Query    model.SearchQuery
	Titles   []string // optional title keywords the results must contain
	Location []string // optional location keywords the results must contain
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

const (
	defaultRateInterval   = 1500 * time.Millisecond
	defaultOllamaHost     = "http://localhost:11434"
	defaultOllamaModel    = "llama3.1:8b"
	defaultSQLitePath     = "jobradar.db"
	slackWebhookURLPrefix = "https://hooks.slack.com/"
)

// defaultRates are the per-source intervals that differ from defaultRateInterval.
var defaultRates = map[string]time.Duration{
	"linkedin":  5 * time.Second,
	"jobrapido": 2 * time.Second,
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	LogLevel     string                `yaml:"log_level"`
	Sources      []rawSourceConfig     `yaml:"sources"`
	Proxies      rawProxyConfig        `yaml:"proxies"`
	Fetch        rawFetchConfig        `yaml:"fetch"`
	Orchestrator rawOrchestratorConfig `yaml:"orchestrator"`
	Filters      FilterConfig          `yaml:"filters"`
	Cache        rawCacheConfig        `yaml:"cache"`
	Scoring      rawScoringConfig      `yaml:"scoring"`
	Storage      rawStorageConfig      `yaml:"storage"`
	Schedule     []rawSavedSearch      `yaml:"schedule"`
	Notification NotificationConfig    `yaml:"notification"`
}

type rawSourceConfig struct {
	Name         string `yaml:"name"`
	Enabled      *bool  `yaml:"enabled"`
	RateInterval string `yaml:"rate_interval"`
	Burst        int    `yaml:"burst"`
}

type rawProxyConfig struct {
	Endpoints        []string `yaml:"endpoints"`
	FailureThreshold int      `yaml:"failure_threshold"`
	CooldownBase     string   `yaml:"cooldown_base"`
	CooldownMax      string   `yaml:"cooldown_max"`
	AcquireTimeout   string   `yaml:"acquire_timeout"`
	MaxTimeout       string   `yaml:"max_timeout"`
}

type rawFetchConfig struct {
	Attempts       int    `yaml:"attempts"`
	BackoffBase    string `yaml:"backoff_base"`
	BackoffCap     string `yaml:"backoff_cap"`
	RequestTimeout string `yaml:"request_timeout"`
}

type rawOrchestratorConfig struct {
	GlobalConcurrency    int    `yaml:"global_concurrency"`
	PerSourceConcurrency int    `yaml:"per_source_concurrency"`
	MaxPages             int    `yaml:"max_pages"`
	RunTimeout           string `yaml:"run_timeout"`
}

type rawCacheConfig struct {
	Backend  string `yaml:"backend"`
	TTL      string `yaml:"ttl"`
	RedisURL string `yaml:"redis_url"`
	Prefix   string `yaml:"prefix"`
}

type rawScoringConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Model       string `yaml:"model"`
	Timeout     string `yaml:"timeout"`
	Concurrency int    `yaml:"concurrency"`
	Profile     string `yaml:"profile"`
}

type rawStorageConfig struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	Retention string `yaml:"retention"`
}

type rawSavedSearch struct {
	Name      string   `yaml:"name"`
	Cron      string   `yaml:"cron"`
	Keywords  string   `yaml:"keywords"`
	Location  string   `yaml:"location"`
	Language  string   `yaml:"language"`
	MaxPages  int      `yaml:"max_pages"`
	Sources   []string `yaml:"sources"`
	Titles    []string `yaml:"title_keywords"`
	Locations []string `yaml:"location_keywords"`
}

// ResolvePath picks the config file: the flag value, then $JOBRADAR_CONFIG,
// then ./config.yaml.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return DefaultPath
}

// LoadOrDefault loads path, falling back to Default when path is the default
// location and no such file exists.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil && path == DefaultPath && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Default returns the configuration used without a config file: every source
// enabled, direct fetching, in-memory cache, SQLite storage, no scoring.
func Default() *Config {
	cfg, err := parse(rawConfig{})
	if err != nil {
		// The zero raw config only takes defaults.
		panic(err)
	}
	return cfg
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("%w: parse config: %w", model.ErrConfigInvalid, err)
	}
	return parse(raw)
}

func parse(raw rawConfig) (*Config, error) {
	p := durationParser{}

	cfg := &Config{
		Proxies: ProxyConfig{
			Endpoints:        raw.Proxies.Endpoints,
			FailureThreshold: intOr(raw.Proxies.FailureThreshold, 3),
			CooldownBase:     p.parse("proxies.cooldown_base", raw.Proxies.CooldownBase, 30*time.Second),
			CooldownMax:      p.parse("proxies.cooldown_max", raw.Proxies.CooldownMax, 10*time.Minute),
			AcquireTimeout:   p.parse("proxies.acquire_timeout", raw.Proxies.AcquireTimeout, 30*time.Second),
			MaxTimeout:       p.parse("proxies.max_timeout", raw.Proxies.MaxTimeout, 60*time.Second),
		},
		Fetch: FetchConfig{
			Attempts:       intOr(raw.Fetch.Attempts, 3),
			BackoffBase:    p.parse("fetch.backoff_base", raw.Fetch.BackoffBase, time.Second),
			BackoffCap:     p.parse("fetch.backoff_cap", raw.Fetch.BackoffCap, 8*time.Second),
			RequestTimeout: p.parse("fetch.request_timeout", raw.Fetch.RequestTimeout, 60*time.Second),
		},
		Orchestrator: OrchestratorConfig{
			GlobalConcurrency:    intOr(raw.Orchestrator.GlobalConcurrency, 6),
			PerSourceConcurrency: intOr(raw.Orchestrator.PerSourceConcurrency, 2),
			MaxPages:             intOr(raw.Orchestrator.MaxPages, 3),
			RunTimeout:           p.parse("orchestrator.run_timeout", raw.Orchestrator.RunTimeout, 5*time.Minute),
		},
		Filters: raw.Filters,
		Cache: CacheConfig{
			Backend:  strOr(raw.Cache.Backend, "memory"),
			TTL:      p.parse("cache.ttl", raw.Cache.TTL, 5*time.Minute),
			RedisURL: raw.Cache.RedisURL,
			Prefix:   strOr(raw.Cache.Prefix, "jobradar:"),
		},
		Scoring: ScoringConfig{
			Enabled:     raw.Scoring.Enabled,
			Host:        strOr(raw.Scoring.Host, defaultOllamaHost),
			Model:       strOr(raw.Scoring.Model, defaultOllamaModel),
			Timeout:     p.parse("scoring.timeout", raw.Scoring.Timeout, 30*time.Second),
			Concurrency: intOr(raw.Scoring.Concurrency, 3),
			Profile:     strings.TrimSpace(raw.Scoring.Profile),
		},
		Storage: StorageConfig{
			Driver:    strOr(raw.Storage.Driver, "sqlite"),
			DSN:       raw.Storage.DSN,
			Retention: p.parse("storage.retention", raw.Storage.Retention, 0),
		},
		Notification: raw.Notification,
	}
	if cfg.Storage.Driver == "sqlite" && cfg.Storage.DSN == "" {
		cfg.Storage.DSN = defaultSQLitePath
	}
	if cfg.Notification.Type == "" {
		cfg.Notification.Type = "log"
	}

	level, err := parseLevel(raw.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	cfg.Sources = parseSources(raw.Sources, &p)

	for _, s := range raw.Schedule {
		lang, err := model.ParseLanguageFilter(s.Language)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: %w", s.Name, err)
		}
		cfg.Schedule = append(cfg.Schedule, SavedSearch{
			Name: s.Name,
			Cron: s.Cron,
			Query: model.SearchQuery{
				Keywords: s.Keywords,
				Location: s.Location,
				Language: lang,
				MaxPages: s.MaxPages,
				Sources:  s.Sources,
			},
			Titles:   s.Titles,
			Location: s.Locations,
		})
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseSources applies rate defaults. Without a sources section every known
// board is enabled.
func parseSources(raw []rawSourceConfig, p *durationParser) []SourceConfig {
	if len(raw) == 0 {
		for _, name := range adapter.Names() {
			raw = append(raw, rawSourceConfig{Name: name})
		}
	}
	out := make([]SourceConfig, 0, len(raw))
	for _, s := range raw {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		def := defaultRateInterval
		if d, ok := defaultRates[name]; ok {
			def = d
		}
		out = append(out, SourceConfig{
			Name:         name,
			Enabled:      s.Enabled == nil || *s.Enabled,
			RateInterval: p.parse("sources["+name+"].rate_interval", s.RateInterval, def),
			Burst:        intOr(s.Burst, 3),
		})
	}
	return out
}

// EnabledSources returns the names of enabled sources in configured order.
func (c *Config) EnabledSources() []string {
	var names []string
	for _, s := range c.Sources {
		if s.Enabled {
			names = append(names, s.Name)
		}
	}
	return names
}

func validate(cfg *Config) error {
	if err := validateSources(cfg.Sources); err != nil {
		return err
	}
	if len(cfg.EnabledSources()) == 0 {
		return invalid("at least one source must be enabled")
	}

	if cfg.Proxies.FailureThreshold < 1 {
		return invalid("proxies.failure_threshold must be at least 1, got %d", cfg.Proxies.FailureThreshold)
	}
	if cfg.Proxies.CooldownBase > cfg.Proxies.CooldownMax {
		return invalid("proxies.cooldown_base %v exceeds proxies.cooldown_max %v", cfg.Proxies.CooldownBase, cfg.Proxies.CooldownMax)
	}
	if cfg.Fetch.Attempts < 1 {
		return invalid("fetch.attempts must be at least 1, got %d", cfg.Fetch.Attempts)
	}
	if cfg.Orchestrator.GlobalConcurrency < 1 || cfg.Orchestrator.PerSourceConcurrency < 1 {
		return invalid("orchestrator concurrency must be positive")
	}
	if cfg.Orchestrator.MaxPages < 1 {
		return invalid("orchestrator.max_pages must be at least 1, got %d", cfg.Orchestrator.MaxPages)
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Cache.RedisURL == "" {
			return invalid("cache.redis_url is required when cache.backend is \"redis\"")
		}
	default:
		return invalid("cache.backend must be \"memory\" or \"redis\", got %q", cfg.Cache.Backend)
	}

	switch cfg.Storage.Driver {
	case "sqlite", "none":
	case "postgres":
		if cfg.Storage.DSN == "" {
			return invalid("storage.dsn is required when storage.driver is \"postgres\"")
		}
	default:
		return invalid("storage.driver must be sqlite, postgres or none, got %q", cfg.Storage.Driver)
	}

	if cfg.Scoring.Enabled {
		if cfg.Scoring.Profile == "" {
			return invalid("scoring.profile is required when scoring.enabled is true")
		}
		if cfg.Scoring.Concurrency < 1 {
			return invalid("scoring.concurrency must be positive, got %d", cfg.Scoring.Concurrency)
		}
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return invalid("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, slackWebhookURLPrefix) {
			return invalid("notification.webhook_url must start with %s", slackWebhookURLPrefix)
		}
	default:
		return invalid("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}

	enabled := make(map[string]bool)
	for _, name := range cfg.EnabledSources() {
		enabled[name] = true
	}
	names := make(map[string]bool)
	for _, s := range cfg.Schedule {
		if s.Name == "" {
			return invalid("every schedule entry needs a name")
		}
		if names[s.Name] {
			return invalid("schedule %q is defined twice", s.Name)
		}
		names[s.Name] = true
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			return invalid("schedule %q: cron %q: %v", s.Name, s.Cron, err)
		}
		if err := s.Query.Validate(); err != nil {
			return fmt.Errorf("schedule %q: %w", s.Name, err)
		}
		for _, src := range s.Query.Sources {
			if !enabled[strings.ToLower(src)] {
				return invalid("schedule %q uses source %q which is not enabled", s.Name, src)
			}
		}
	}
	return nil
}

func validateSources(sources []SourceConfig) error {
	known := make(map[string]bool)
	for _, name := range adapter.Names() {
		known[name] = true
	}
	seen := make(map[string]bool)
	for _, s := range sources {
		if !known[s.Name] {
			return invalid("unknown source %q (known: %s)", s.Name, strings.Join(adapter.Names(), ", "))
		}
		if seen[s.Name] {
			return invalid("source %q is listed twice", s.Name)
		}
		seen[s.Name] = true
		if s.RateInterval <= 0 {
			return invalid("sources[%s].rate_interval must be positive, got %v", s.Name, s.RateInterval)
		}
		if s.Burst < 1 {
			return invalid("sources[%s].burst must be at least 1, got %d", s.Name, s.Burst)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrConfigInvalid, fmt.Sprintf(format, args...))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, invalid("log_level %q: %v", s, err)
	}
	return level, nil
}

// durationParser parses optional duration fields, keeping the first error.
type durationParser struct {
	err error
}

func (p *durationParser) parse(field, raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%w: parse %s %q: %w", model.ErrConfigInvalid, field, raw, err)
		}
		return def
	}
	return d
}

func intOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func strOr(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
