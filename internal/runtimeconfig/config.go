package runtimeconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	homedir "github.com/mitchellh/go-homedir"
)

var (
	ErrStorageDriverUnknown       = errors.New("docsync config: storage driver must be sqlite or postgres")
	ErrStorageDSNRequired         = errors.New("docsync config: storage dsn is required")
	ErrRunCacheTTLInvalid         = errors.New("docsync config: run cache ttl must be positive when caching is enabled")
	ErrDocsRootRequired           = errors.New("docsync config: sync docs root is required")
	ErrRetainRunsInvalid          = errors.New("docsync config: retained sync runs must be positive")
	ErrDescriptorConcurrency      = errors.New("docsync config: descriptor concurrency must be positive")
	ErrGitHubAPIBaseURLRequired   = errors.New("docsync config: github api base url is required")
	ErrRecorderCassetteRequired   = errors.New("docsync config: recorder cassette is required when recording is enabled")
	ErrLoggingProviderRequired    = errors.New("docsync config: logging provider is required")
	ErrLoggingProviderUnknown     = errors.New("docsync config: logging provider is invalid")
	ErrLoggingLevelInvalid        = errors.New("docsync config: logging level is invalid")
	ErrLoggingFormatInvalid       = errors.New("docsync config: logging format is invalid")
	ErrCommandTimeoutInvalid      = errors.New("docsync config: command timeout must be zero or positive")
	ErrWebhookAddressRequired     = errors.New("docsync config: webhook listen address is required when the webhook is enabled")
	ErrSchedulerTickIntervalRange = errors.New("docsync config: scheduler tick interval must be at least one second")
)

// Environment variables that override file based settings.
const (
	EnvGitToken = "DOCSYNC_GIT_TOKEN"
	EnvDSN      = "DOCSYNC_DSN"
	EnvLogLevel = "DOCSYNC_LOG_LEVEL"
)

// Config aggregates the runtime settings of the sync engine. Repository
// coordinates are not part of it; they live in the persisted repository
// configuration and are read once per sync.
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Sync      SyncConfig      `toml:"sync"`
	GitHub    GitHubConfig    `toml:"github"`
	Commands  CommandsConfig  `toml:"commands"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Webhook   WebhookConfig   `toml:"webhook"`
	Logging   LoggingConfig   `toml:"logging"`

	// GitToken overrides the stored access token when set, usually from the environment.
	GitToken string `toml:"-"`
}

// StorageConfig selects the database backing pages and sync runs.
type StorageConfig struct {
	Driver   string `toml:"driver"`
	DSN      string `toml:"dsn"`
	DebugSQL bool   `toml:"debug_sql"`
	// CacheRuns serves sync run reads through an in-process cache.
	CacheRuns bool     `toml:"cache_runs"`
	CacheTTL  Duration `toml:"cache_ttl"`
}

// SyncConfig tunes repository layout conventions.
type SyncConfig struct {
	DocsRoot              string `toml:"docs_root"`
	RootDescriptor        string `toml:"root_descriptor"`
	DescriptorName        string `toml:"descriptor_name"`
	RetainRuns            int    `toml:"retain_runs"`
	DescriptorConcurrency int    `toml:"descriptor_concurrency"`
}

// GitHubConfig configures the hosting API client.
type GitHubConfig struct {
	APIBaseURL string         `toml:"api_base_url"`
	Timeout    Duration       `toml:"timeout"`
	Recorder   RecorderConfig `toml:"recorder"`
}

// RecorderConfig toggles HTTP interaction recording for the API client.
type RecorderConfig struct {
	Enabled  bool   `toml:"enabled"`
	Cassette string `toml:"cassette"`
}

// CommandsConfig captures command layer behaviour.
type CommandsConfig struct {
	Timeout     Duration `toml:"timeout"`
	SyncCron    string   `toml:"sync_cron"`
	CleanupCron string   `toml:"cleanup_cron"`
}

// SchedulerConfig controls the in-process job loop used by `serve`.
type SchedulerConfig struct {
	TickInterval Duration `toml:"tick_interval"`
	BatchSize    int      `toml:"batch_size"`
}

// WebhookConfig controls the push webhook listener.
type WebhookConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string   `toml:"provider"`
	Level     string   `toml:"level"`
	Format    string   `toml:"format"`
	AddSource bool     `toml:"add_source"`
	Focus     []string `toml:"focus"`
}

// Duration decodes TOML strings such as "30s" into a time.Duration.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns defaults suitable for a local sqlite deployment.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			Driver:   "sqlite",
			DSN:      "file:docsync.db?cache=shared&_fk=1",
			CacheTTL: Duration{5 * time.Minute},
		},
		Sync: SyncConfig{
			DocsRoot:              "docs",
			RootDescriptor:        "docs-config.json",
			DescriptorName:        "_meta.json",
			RetainRuns:            100,
			DescriptorConcurrency: 4,
		},
		GitHub: GitHubConfig{
			APIBaseURL: "https://api.github.com",
			Timeout:    Duration{30 * time.Second},
			Recorder: RecorderConfig{
				Cassette: "fixtures/github",
			},
		},
		Commands: CommandsConfig{
			Timeout:     Duration{5 * time.Minute},
			SyncCron:    "* * * * *",
			CleanupCron: "0 3 * * 0",
		},
		Scheduler: SchedulerConfig{
			TickInterval: Duration{time.Minute},
			BatchSize:    10,
		},
		Webhook: WebhookConfig{
			Address: ":8080",
			Path:    "/webhook/github",
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
	}
}

// Load decodes the TOML file at path over DefaultConfig and applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		expanded, err := homedir.Expand(trimmed)
		if err != nil {
			return cfg, fmt.Errorf("docsync config: expand %q: %w", trimmed, err)
		}
		if _, err := toml.DecodeFile(expanded, &cfg); err != nil {
			return cfg, fmt.Errorf("docsync config: decode %q: %w", expanded, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, cfg.Validate()
}

// ApplyEnv overrides settings from the environment lookup function.
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	if value, ok := lookup(EnvGitToken); ok && strings.TrimSpace(value) != "" {
		cfg.GitToken = strings.TrimSpace(value)
	}
	if value, ok := lookup(EnvDSN); ok && strings.TrimSpace(value) != "" {
		cfg.Storage.DSN = strings.TrimSpace(value)
	}
	if value, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(value) != "" {
		cfg.Logging.Level = strings.TrimSpace(value)
	}
}

// Validate performs high-level consistency checks.
func (cfg Config) Validate() error {
	switch normalize(cfg.Storage.Driver) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: %s", ErrStorageDriverUnknown, cfg.Storage.Driver)
	}
	if strings.TrimSpace(cfg.Storage.DSN) == "" {
		return ErrStorageDSNRequired
	}
	if cfg.Storage.CacheRuns && cfg.Storage.CacheTTL.Duration <= 0 {
		return ErrRunCacheTTLInvalid
	}
	if strings.Trim(strings.TrimSpace(cfg.Sync.DocsRoot), "/") == "" {
		return ErrDocsRootRequired
	}
	if cfg.Sync.RetainRuns <= 0 {
		return ErrRetainRunsInvalid
	}
	if cfg.Sync.DescriptorConcurrency <= 0 {
		return ErrDescriptorConcurrency
	}
	if strings.TrimSpace(cfg.GitHub.APIBaseURL) == "" {
		return ErrGitHubAPIBaseURLRequired
	}
	if cfg.GitHub.Recorder.Enabled && strings.TrimSpace(cfg.GitHub.Recorder.Cassette) == "" {
		return ErrRecorderCassetteRequired
	}
	if cfg.Commands.Timeout.Duration < 0 {
		return ErrCommandTimeoutInvalid
	}
	if cfg.Webhook.Enabled && strings.TrimSpace(cfg.Webhook.Address) == "" {
		return ErrWebhookAddressRequired
	}
	if cfg.Scheduler.TickInterval.Duration < time.Second {
		return ErrSchedulerTickIntervalRange
	}

	provider := normalize(cfg.Logging.Provider)
	if provider == "" {
		return ErrLoggingProviderRequired
	}
	if !isSupportedProvider(provider) {
		return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
	}
	if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
		return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
	}
	if provider == "gologger" {
		if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(format) {
			return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
		}
	}
	return nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isSupportedProvider(provider string) bool {
	switch provider {
	case "console", "gologger":
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch normalize(level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(format string) bool {
	switch normalize(format) {
	case "json", "console", "pretty":
		return true
	default:
		return false
	}
}
