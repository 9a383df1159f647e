package docsynccmd

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	command "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/goliatone/go-docsync/internal/commands"
	"github.com/goliatone/go-docsync/internal/gitsync"
	"github.com/goliatone/go-docsync/internal/localdocs"
	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

const (
	syncOperation        = "docsync.repository.sync"
	rollbackOperation    = "docsync.repository.rollback"
	cleanupOperation     = "docsync.runs.cleanup"
	importLocalOperation = "docsync.local.import"

	// Syncs slower than this are flagged in the logs.
	slowSyncThreshold = 2 * time.Minute
)

var (
	// ErrSyncInProgress is returned when a sync or rollback is already running.
	ErrSyncInProgress = errors.New("docsync command: a sync is already in progress")
	// ErrNoLocalDocs is returned when the import directory holds no top-level folders.
	ErrNoLocalDocs = errors.New("docsync command: no documentation folders found")
)

var (
	_ command.Commander[SyncRepositoryCommand]  = (*SyncRepositoryHandler)(nil)
	_ command.Commander[RollbackSyncCommand]    = (*RollbackSyncHandler)(nil)
	_ command.Commander[CleanupRunsCommand]     = (*CleanupRunsHandler)(nil)
	_ command.Commander[ImportLocalDocsCommand] = (*ImportLocalDocsHandler)(nil)
)

// SyncService is the slice of gitsync.Service the handlers drive.
type SyncService interface {
	Sync(ctx context.Context, opts gitsync.SyncOptions) (*gitsync.SyncRun, error)
	RollbackByID(ctx context.Context, id uuid.UUID) (*gitsync.SyncRun, int, error)
	PurgeRuns(ctx context.Context, keep int) (int, error)
	Due(ctx context.Context, now time.Time) (bool, error)
}

// LocalImporter imports a docs tree as cms pages.
type LocalImporter interface {
	Import(ctx context.Context, fsys fs.FS) localdocs.Stats
}

// SyncObserver receives the run produced by a sync, including failed runs.
type SyncObserver func(run *gitsync.SyncRun, err error)

// RollbackObserver receives the rolled back run and the number of deleted pages.
type RollbackObserver func(run *gitsync.SyncRun, deleted int)

// ImportObserver receives the statistics of a local import.
type ImportObserver func(stats localdocs.Stats)

// Lock serialises syncs and rollbacks. A second caller is turned away rather
// than queued.
type Lock struct {
	mu sync.Mutex
}

func (l *Lock) acquire() (func(), error) {
	if !l.mu.TryLock() {
		return nil, goerrors.Wrap(ErrSyncInProgress, goerrors.CategoryCommand, "sync already running").
			WithTextCode("DOCSYNC_SYNC_IN_PROGRESS")
	}
	return l.mu.Unlock, nil
}

// SyncRepositoryHandler runs gitsync.Service.Sync under the shared lock.
type SyncRepositoryHandler struct {
	inner      *commands.Handler[SyncRepositoryCommand]
	cronConfig command.HandlerConfig
}

// NewSyncRepositoryHandler creates a sync handler.
func NewSyncRepositoryHandler(service SyncService, lock *Lock, logger interfaces.Logger, observer SyncObserver, now func() time.Time, opts ...commands.HandlerOption[SyncRepositoryCommand]) *SyncRepositoryHandler {
	logger = ensureLogger(logger)
	if lock == nil {
		lock = &Lock{}
	}
	if now == nil {
		now = time.Now
	}

	exec := func(ctx context.Context, msg SyncRepositoryCommand) error {
		if msg.Trigger == TriggerScheduled {
			due, err := service.Due(ctx, now())
			if err != nil {
				return err
			}
			if !due {
				logger.Debug("docsync.command.sync.not_due")
				return nil
			}
		}

		release, err := lock.acquire()
		if err != nil {
			logger.Warn("docsync.command.sync.skipped", "reason", "in_progress", "trigger", string(msg.Trigger))
			return err
		}
		defer release()

		run, err := service.Sync(ctx, gitsync.SyncOptions{Force: msg.Force})
		if observer != nil {
			observer(run, err)
		}
		if err != nil {
			return err
		}
		if run != nil {
			logging.WithFields(logger, map[string]any{
				"run_id":        run.ID.String(),
				"commit":        run.ShortHash(),
				"sync_type":     run.SyncTypeName(),
				"files_changed": run.FilesChanged,
			}).Info("docsync.command.sync.completed")
		}
		return nil
	}

	handlerOpts := []commands.HandlerOption[SyncRepositoryCommand]{
		commands.WithLogger[SyncRepositoryCommand](logger),
		commands.WithOperation[SyncRepositoryCommand](syncOperation),
		commands.WithMessageFields(func(msg SyncRepositoryCommand) map[string]any {
			fields := map[string]any{"trigger": string(triggerOrDefault(msg.Trigger))}
			if msg.Force {
				fields["force"] = true
			}
			return fields
		}),
		commands.WithTelemetry(commands.SlowTelemetry[SyncRepositoryCommand](slowSyncThreshold)),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &SyncRepositoryHandler{
		inner:      commands.NewHandler(exec, handlerOpts...),
		cronConfig: command.HandlerConfig{Expression: "* * * * *"},
	}
}

// Execute satisfies command.Commander[SyncRepositoryCommand].
func (h *SyncRepositoryHandler) Execute(ctx context.Context, msg SyncRepositoryCommand) error {
	return h.inner.Execute(ctx, msg)
}

// CronHandler runs a scheduled sync, which is skipped unless due.
func (h *SyncRepositoryHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), SyncRepositoryCommand{Trigger: TriggerScheduled})
	}
}

// CronOptions returns the cron metadata.
func (h *SyncRepositoryHandler) CronOptions() command.HandlerConfig {
	return h.cronConfig
}

// RollbackSyncHandler rolls pages back to a successful run under the shared lock.
type RollbackSyncHandler struct {
	inner *commands.Handler[RollbackSyncCommand]
}

// NewRollbackSyncHandler creates a rollback handler.
func NewRollbackSyncHandler(service SyncService, lock *Lock, logger interfaces.Logger, observer RollbackObserver, opts ...commands.HandlerOption[RollbackSyncCommand]) *RollbackSyncHandler {
	logger = ensureLogger(logger)
	if lock == nil {
		lock = &Lock{}
	}

	exec := func(ctx context.Context, msg RollbackSyncCommand) error {
		release, err := lock.acquire()
		if err != nil {
			return err
		}
		defer release()

		run, deleted, err := service.RollbackByID(ctx, msg.RunID)
		if err != nil {
			return err
		}
		if observer != nil {
			observer(run, deleted)
		}
		logging.WithFields(logger, map[string]any{
			"commit":  run.ShortHash(),
			"deleted": deleted,
		}).Info("docsync.command.rollback.completed")
		return nil
	}

	handlerOpts := []commands.HandlerOption[RollbackSyncCommand]{
		commands.WithLogger[RollbackSyncCommand](logger),
		commands.WithOperation[RollbackSyncCommand](rollbackOperation),
		commands.WithMessageFields(func(msg RollbackSyncCommand) map[string]any {
			return map[string]any{"run_id": msg.RunID.String()}
		}),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &RollbackSyncHandler{inner: commands.NewHandler(exec, handlerOpts...)}
}

// Execute satisfies command.Commander[RollbackSyncCommand].
func (h *RollbackSyncHandler) Execute(ctx context.Context, msg RollbackSyncCommand) error {
	return h.inner.Execute(ctx, msg)
}

// CleanupRunsHandler prunes old sync runs.
type CleanupRunsHandler struct {
	inner      *commands.Handler[CleanupRunsCommand]
	cronConfig command.HandlerConfig
	keep       int
}

// NewCleanupRunsHandler creates a cleanup handler. keep applies to cron
// executions and to messages without a Keep value.
func NewCleanupRunsHandler(service SyncService, logger interfaces.Logger, keep int, opts ...commands.HandlerOption[CleanupRunsCommand]) *CleanupRunsHandler {
	logger = ensureLogger(logger)
	if keep <= 0 {
		keep = gitsync.DefaultRetainRuns
	}

	exec := func(ctx context.Context, msg CleanupRunsCommand) error {
		retain := msg.Keep
		if retain == 0 {
			retain = keep
		}
		removed, err := service.PurgeRuns(ctx, retain)
		if err != nil {
			return err
		}
		logging.WithFields(logger, map[string]any{
			"kept":    retain,
			"removed": removed,
		}).Info("docsync.command.cleanup.completed")
		return nil
	}

	handlerOpts := []commands.HandlerOption[CleanupRunsCommand]{
		commands.WithLogger[CleanupRunsCommand](logger),
		commands.WithOperation[CleanupRunsCommand](cleanupOperation),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &CleanupRunsHandler{
		inner:      commands.NewHandler(exec, handlerOpts...),
		cronConfig: command.HandlerConfig{Expression: "0 3 * * 0"},
		keep:       keep,
	}
}

// Execute satisfies command.Commander[CleanupRunsCommand].
func (h *CleanupRunsHandler) Execute(ctx context.Context, msg CleanupRunsCommand) error {
	return h.inner.Execute(ctx, msg)
}

// CronHandler runs a cleanup with the configured retention.
func (h *CleanupRunsHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), CleanupRunsCommand{Keep: h.keep})
	}
}

// CronOptions returns the cron metadata.
func (h *CleanupRunsHandler) CronOptions() command.HandlerConfig {
	return h.cronConfig
}

// ImportLocalDocsHandler imports a directory from the local filesystem.
type ImportLocalDocsHandler struct {
	inner *commands.Handler[ImportLocalDocsCommand]
}

// NewImportLocalDocsHandler creates an import handler. open maps a directory
// to a filesystem and defaults to os.DirFS.
func NewImportLocalDocsHandler(importer LocalImporter, logger interfaces.Logger, observer ImportObserver, open func(dir string) fs.FS, opts ...commands.HandlerOption[ImportLocalDocsCommand]) *ImportLocalDocsHandler {
	logger = ensureLogger(logger)
	if open == nil {
		open = os.DirFS
	}

	exec := func(ctx context.Context, msg ImportLocalDocsCommand) error {
		fsys := open(strings.TrimSpace(msg.Directory))
		if !localdocs.HasDocumentation(fsys) {
			return goerrors.Wrap(ErrNoLocalDocs, goerrors.CategoryValidation, "nothing to import").
				WithTextCode("DOCSYNC_LOCAL_DOCS_EMPTY")
		}

		stats := importer.Import(ctx, fsys)
		if observer != nil {
			observer(stats)
		}
		entry := logging.WithFields(logger, map[string]any{
			"navigation": stats.Navigation,
			"groups":     stats.Groups,
			"documents":  stats.Documents,
			"errors":     len(stats.Errors),
		})
		if len(stats.Errors) > 0 {
			entry.Warn("docsync.command.import_local.partial", "first_error", stats.Errors[0])
			return nil
		}
		entry.Info("docsync.command.import_local.completed")
		return nil
	}

	handlerOpts := []commands.HandlerOption[ImportLocalDocsCommand]{
		commands.WithLogger[ImportLocalDocsCommand](logger),
		commands.WithOperation[ImportLocalDocsCommand](importLocalOperation),
		commands.WithMessageFields(func(msg ImportLocalDocsCommand) map[string]any {
			return map[string]any{"directory": msg.Directory}
		}),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &ImportLocalDocsHandler{inner: commands.NewHandler(exec, handlerOpts...)}
}

// Execute satisfies command.Commander[ImportLocalDocsCommand].
func (h *ImportLocalDocsHandler) Execute(ctx context.Context, msg ImportLocalDocsCommand) error {
	return h.inner.Execute(ctx, msg)
}

func triggerOrDefault(trigger Trigger) Trigger {
	if trigger == "" {
		return TriggerManual
	}
	return trigger
}

func ensureLogger(logger interfaces.Logger) interfaces.Logger {
	if logger == nil {
		return logging.NoOp()
	}
	return logger
}
