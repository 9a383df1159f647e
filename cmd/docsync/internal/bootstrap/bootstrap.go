// Package bootstrap assembles the docsync runtime for the CLI: configuration,
// database, stores, the sync service and the command handlers.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/extra/bundebug"
	"gopkg.in/dnaeon/go-vcr.v3/recorder"

	docsynccmd "github.com/goliatone/go-docsync/internal/commands/docsync"
	"github.com/goliatone/go-docsync/internal/github"
	"github.com/goliatone/go-docsync/internal/gitsync"
	"github.com/goliatone/go-docsync/internal/localdocs"
	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/internal/logging/console"
	"github.com/goliatone/go-docsync/internal/logging/gologger"
	"github.com/goliatone/go-docsync/internal/migrations"
	"github.com/goliatone/go-docsync/internal/pages"
	"github.com/goliatone/go-docsync/internal/repoconfig"
	"github.com/goliatone/go-docsync/internal/runtimeconfig"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

// DefaultEnvFiles are loaded before the configuration is read. Missing files are ignored.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Options captures configuration for CLI bootstraps.
type Options struct {
	ConfigPath     string
	EnvFiles       []string
	LogOutput      io.Writer
	LoggerProvider interfaces.LoggerProvider
	// ClientFactory replaces the GitHub client factory, mainly in tests.
	ClientFactory gitsync.ClientFactory
	// SkipMigrations leaves the schema untouched; the migrate command applies it itself.
	SkipMigrations bool
	// Config bypasses file loading when set.
	Config *runtimeconfig.Config
}

// App holds the wired runtime.
type App struct {
	Config     runtimeconfig.Config
	DB         *bun.DB
	Dialect    string
	Provider   interfaces.LoggerProvider
	Logger     interfaces.Logger
	RepoConfig repoconfig.Store
	Runs       *gitsync.BunRunRepository
	Pages      pages.Store
	Sync       *gitsync.Service
	Local      *localdocs.Importer
	Commands   *docsynccmd.HandlerSet

	recorder *recorder.Recorder
}

// LoadEnv loads dotenv files into the process environment. Existing
// variables win and missing files are skipped.
func LoadEnv(files ...string) {
	for _, file := range files {
		if strings.TrimSpace(file) == "" {
			continue
		}
		_ = godotenv.Load(file)
	}
}

// Build wires the runtime. Callers must Close the returned App.
func Build(ctx context.Context, opts Options, cmdOpts ...docsynccmd.Option) (*App, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = DefaultEnvFiles
	}
	LoadEnv(envFiles...)

	var cfg runtimeconfig.Config
	if opts.Config != nil {
		cfg = *opts.Config
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		loaded, err := runtimeconfig.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	provider := opts.LoggerProvider
	if provider == nil {
		built, err := NewLoggerProvider(cfg.Logging, opts.LogOutput)
		if err != nil {
			return nil, err
		}
		provider = built
	}

	db, dialect, err := OpenDB(cfg.Storage)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       db,
		Dialect:  dialect,
		Provider: provider,
		Logger:   logging.For(provider, logging.ModuleCLI),
	}

	if !opts.SkipMigrations {
		if err := migrations.MigrateUp(db.DB, dialect); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	clients := opts.ClientFactory
	if clients == nil {
		if cfg.GitHub.Recorder.Enabled {
			rec, err := github.NewRecorder(cfg.GitHub.Recorder.Cassette, recorder.ModeRecordOnce, nil)
			if err != nil {
				_ = app.Close()
				return nil, err
			}
			app.recorder = rec
		}
		clients = ClientFactory(cfg.GitHub, provider, app.recorder)
	}

	app.RepoConfig = repoconfig.NewBunStore(db)
	runs, err := NewRunRepository(db, cfg.Storage)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Runs = runs
	app.Pages = pages.NewBunStore(db)

	app.Sync = gitsync.NewService(app.RepoConfig, app.Runs, app.Pages, clients,
		gitsync.WithLogger(logging.For(provider, logging.ModuleSync)),
		gitsync.WithTokenOverride(cfg.GitToken),
		gitsync.WithDocsRoot(cfg.Sync.DocsRoot),
		gitsync.WithDescriptorNames(cfg.Sync.DescriptorName, cfg.Sync.RootDescriptor),
		gitsync.WithDescriptorConcurrency(cfg.Sync.DescriptorConcurrency),
		gitsync.WithRetainRuns(cfg.Sync.RetainRuns),
	)
	app.Local = localdocs.New(app.Pages,
		localdocs.WithDescriptorName(cfg.Sync.DescriptorName),
		localdocs.WithLogger(logging.For(provider, logging.ModuleImporter)),
	)

	registration := []docsynccmd.Option{
		docsynccmd.WithTimeout(cfg.Commands.Timeout.Duration),
		docsynccmd.WithRetainRuns(cfg.Sync.RetainRuns),
	}
	registration = append(registration, cmdOpts...)

	set, err := docsynccmd.RegisterDocsyncCommands(nil, app.Sync, app.Local, provider, registration...)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Commands = set

	if ctx != nil && ctx.Err() != nil {
		_ = app.Close()
		return nil, ctx.Err()
	}
	return app, nil
}

// Close stops the recorder and closes the database.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.recorder != nil {
		errs = append(errs, a.recorder.Stop())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// OpenDB opens the configured database and returns it with its migration dialect.
func OpenDB(cfg runtimeconfig.StorageConfig) (*bun.DB, string, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var db *bun.DB
	switch driver {
	case "sqlite", "sqlite3":
		sqldb, err := sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
		driver = migrations.DialectSQLite
	case "postgres", "postgresql", "pg":
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, "", fmt.Errorf("open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
		driver = migrations.DialectPostgres
	default:
		return nil, "", fmt.Errorf("%w: %s", runtimeconfig.ErrStorageDriverUnknown, cfg.Driver)
	}

	if cfg.DebugSQL {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, driver, nil
}

// NewRunRepository builds the sync run repository, cached when configured.
func NewRunRepository(db *bun.DB, cfg runtimeconfig.StorageConfig) (*gitsync.BunRunRepository, error) {
	if !cfg.CacheRuns {
		return gitsync.NewBunRunRepository(db), nil
	}
	cacheCfg := repocache.DefaultConfig()
	cacheCfg.TTL = cfg.CacheTTL.Duration
	cacheService, err := repocache.NewCacheService(cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("run cache: %w", err)
	}
	return gitsync.NewBunRunRepositoryWithCache(db, cacheService, repocache.NewDefaultKeySerializer()), nil
}

// NewLoggerProvider builds the console or go-logger provider.
func NewLoggerProvider(cfg runtimeconfig.LoggingConfig, w io.Writer) (interfaces.LoggerProvider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gologger":
		return gologger.NewProvider(gologger.Config{
			Level:     cfg.Level,
			Format:    cfg.Format,
			AddSource: cfg.AddSource,
			Focus:     cfg.Focus,
		})
	case "", "console":
		level, err := console.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		if w == nil {
			w = os.Stderr
		}
		return console.NewProvider(console.Options{Writer: w, MinLevel: &level}), nil
	default:
		return nil, fmt.Errorf("%w: %s", runtimeconfig.ErrLoggingProviderUnknown, cfg.Provider)
	}
}

// ClientFactory builds GitHub clients for the sync service. rec may be nil.
func ClientFactory(cfg runtimeconfig.GitHubConfig, provider interfaces.LoggerProvider, rec *recorder.Recorder) gitsync.ClientFactory {
	logger := logging.For(provider, logging.ModuleGitHub)
	return func(params gitsync.ConnectionParams) (interfaces.GitClient, error) {
		opts := []github.Option{
			github.WithBaseURL(cfg.APIBaseURL),
			github.WithBranch(params.Branch),
			github.WithToken(params.Token),
			github.WithLogger(logger),
		}
		if cfg.Timeout.Duration > 0 {
			opts = append(opts, github.WithTimeout(cfg.Timeout.Duration))
		}
		if rec != nil {
			opts = append(opts, github.WithRecorder(rec))
		}
		return github.New(params.URL, opts...)
	}
}
