package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nodecanvas/askgate/internal/dispatch"
	"github.com/nodecanvas/askgate/internal/integration"
	"github.com/nodecanvas/askgate/internal/logging"
	"github.com/nodecanvas/askgate/internal/orchestrator"
	"github.com/nodecanvas/askgate/internal/provider"
	"github.com/nodecanvas/askgate/internal/state/store"
)

type Config struct {
	Server       ServerConfig                 `yaml:"server"`
	Providers    map[string]ProviderConfig    `yaml:"providers"`
	Integrations map[string]IntegrationConfig `yaml:"integrations"`
	Orchestrator OrchestratorConfig           `yaml:"orchestrator"`
	State        store.Config                 `yaml:"state"`
	Cache        CacheConfig                  `yaml:"cache"`
	Scheduler    SchedulerConfig              `yaml:"scheduler"`
	Log          logging.Config               `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken string `yaml:"api_token"`
}

// ProviderConfig points at one of the web app's chat routes.
type ProviderConfig struct {
	BaseURL string        `yaml:"base_url"`
	Path    string        `yaml:"path"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

const (
	ExecutorHTTP   = "http"
	ExecutorDryRun = "dry_run"
)

// IntegrationConfig selects how a family's tool calls run. Families that
// are not listed have no executor and their calls are dropped.
type IntegrationConfig struct {
	Mode    string        `yaml:"mode"`
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type OrchestratorConfig struct {
	MaxIterations    int                       `yaml:"max_iterations"`
	AttachmentPolicy dispatch.AttachmentPolicy `yaml:"attachment_policy"`
	ShortcutPolicy   dispatch.ShortcutPolicy   `yaml:"shortcut_policy"`
	GmailWidening    *bool                     `yaml:"gmail_widening"`
	ToolTimeout      time.Duration             `yaml:"tool_timeout"`

	// MaxResultBytes caps each tool result handed to the model; negative disables the cap.
	MaxResultBytes int      `yaml:"max_result_bytes"`
	Rules          []string `yaml:"rules"`
	PrepareScript  string   `yaml:"prepare_script"`
}

// WidenGmail reports the effective gmail_widening setting (default on).
func (o OrchestratorConfig) WidenGmail() bool {
	return o.GmailWidening == nil || *o.GmailWidening
}

type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

type SchedulerConfig struct {
	Enabled       bool   `yaml:"enabled"`
	PruneSchedule string `yaml:"prune_schedule"`
	RetentionDays int    `yaml:"retention_days"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)}`)

func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandOptional expands s and drops it entirely when a referenced
// variable is unset, so the setting falls back to its unset behaviour.
func expandOptional(s string) string {
	s = expandEnv(s)
	if envPattern.MatchString(s) {
		return ""
	}
	return s
}

func expandEnvInConfig(cfg *Config) {
	cfg.Server.APIToken = expandEnv(cfg.Server.APIToken)
	for name, p := range cfg.Providers {
		p.BaseURL = expandEnv(p.BaseURL)
		p.APIKey = expandEnv(p.APIKey)
		cfg.Providers[name] = p
	}
	for name, i := range cfg.Integrations {
		i.URL = expandEnv(i.URL)
		i.Token = expandEnv(i.Token)
		cfg.Integrations[name] = i
	}
	cfg.State.DSN = expandEnv(cfg.State.DSN)
	cfg.State.DataDir = expandEnv(cfg.State.DataDir)
	cfg.Cache.RedisAddr = expandOptional(cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = expandOptional(cfg.Cache.RedisPassword)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Orchestrator.MaxIterations == 0 {
		cfg.Orchestrator.MaxIterations = orchestrator.DefaultMaxIterations
	}
	if cfg.Orchestrator.AttachmentPolicy == "" {
		cfg.Orchestrator.AttachmentPolicy = dispatch.AttachWhenUnset
	}
	if cfg.Orchestrator.ShortcutPolicy == "" {
		cfg.Orchestrator.ShortcutPolicy = dispatch.ShortcutAll
	}
	if cfg.Orchestrator.MaxResultBytes == 0 {
		cfg.Orchestrator.MaxResultBytes = dispatch.DefaultMaxResultBytes
	}
	for name, i := range cfg.Integrations {
		if i.Mode == "" {
			i.Mode = ExecutorHTTP
		}
		cfg.Integrations[name] = i
	}
	if cfg.State.Driver == "" {
		cfg.State.Driver = store.DriverSQLite
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 5 * time.Minute
	}
	if cfg.Scheduler.PruneSchedule == "" {
		cfg.Scheduler.PruneSchedule = "0 3 * * *"
	}
	if cfg.Scheduler.RetentionDays == 0 {
		cfg.Scheduler.RetentionDays = 30
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references and fills defaults. It does
// not validate; call Validate before use.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	expandEnvInConfig(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Providers) == 0 {
		add("providers: at least one provider is required")
	}
	for id, p := range c.Providers {
		if !provider.Known(id) && p.Path == "" {
			add("providers.%s: unknown provider needs an explicit path", id)
		}
		if p.BaseURL == "" {
			add("providers.%s: base_url is required", id)
		}
	}

	registry := integration.DefaultRegistry()
	for name, i := range c.Integrations {
		if _, ok := registry.Get(name); !ok {
			add("integrations.%s: unknown integration family", name)
		}
		switch i.Mode {
		case ExecutorHTTP:
			if i.URL == "" {
				add("integrations.%s: url is required for mode http", name)
			}
		case ExecutorDryRun:
		default:
			add("integrations.%s: unknown mode %q", name, i.Mode)
		}
	}

	o := c.Orchestrator
	if o.MaxIterations < 1 {
		add("orchestrator.max_iterations must be at least 1")
	}
	if !o.AttachmentPolicy.Valid() {
		add("orchestrator.attachment_policy %q must be one of when_unset, always", o.AttachmentPolicy)
	}
	if !o.ShortcutPolicy.Valid() {
		add("orchestrator.shortcut_policy %q must be one of first, all, off", o.ShortcutPolicy)
	}
	if o.ToolTimeout < 0 {
		add("orchestrator.tool_timeout must not be negative")
	}

	switch c.State.Driver {
	case store.DriverSQLite:
		if c.State.DataDir == "" {
			add("state.data_dir is required for sqlite")
		}
	case store.DriverPostgres:
		if c.State.DSN == "" {
			add("state.dsn is required for postgres")
		}
	default:
		add("state.driver %q must be sqlite or postgres", c.State.Driver)
	}

	if c.Scheduler.RetentionDays < 1 {
		add("scheduler.retention_days must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
