package docsynccmd

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"time"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-docsync/internal/commands"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

// CommandRegistry is the minimal registration contract expected when wiring command handlers.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// CronRegistrar matches the function signature used by go-command registries.
type CronRegistrar func(command.HandlerConfig, any) error

// HandlerSet groups the handlers produced by RegisterDocsyncCommands.
type HandlerSet struct {
	Sync     *SyncRepositoryHandler
	Rollback *RollbackSyncHandler
	Cleanup  *CleanupRunsHandler
	Import   *ImportLocalDocsHandler
}

// Option customises handler wiring during registration.
type Option func(*options)

type options struct {
	timeout          time.Duration
	keep             int
	now              func() time.Time
	openDir          func(string) fs.FS
	syncObserver     SyncObserver
	rollbackObserver RollbackObserver
	importObserver   ImportObserver
}

// WithTimeout bounds every handler. Zero disables the timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithRetainRuns sets the default number of runs kept by cleanup.
func WithRetainRuns(keep int) Option {
	return func(o *options) {
		o.keep = keep
	}
}

// WithClock overrides the clock used for due checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithDirOpener overrides how import directories are opened.
func WithDirOpener(open func(string) fs.FS) Option {
	return func(o *options) {
		o.openDir = open
	}
}

// WithSyncObserver receives every sync outcome.
func WithSyncObserver(fn SyncObserver) Option {
	return func(o *options) {
		o.syncObserver = fn
	}
}

// WithRollbackObserver receives every rollback outcome.
func WithRollbackObserver(fn RollbackObserver) Option {
	return func(o *options) {
		o.rollbackObserver = fn
	}
}

// WithImportObserver receives local import statistics.
func WithImportObserver(fn ImportObserver) Option {
	return func(o *options) {
		o.importObserver = fn
	}
}

// RegisterDocsyncCommands builds the docsync handlers and registers them with
// reg when it is not nil. importer may be nil, in which case no import
// handler is built.
func RegisterDocsyncCommands(reg CommandRegistry, service SyncService, importer LocalImporter, provider interfaces.LoggerProvider, opts ...Option) (*HandlerSet, error) {
	if service == nil {
		return nil, errors.New("docsync command registration: sync service is nil")
	}
	cfg := options{timeout: commands.DefaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	logger := commands.CommandLogger(provider, "docsync")
	lock := &Lock{}

	set := &HandlerSet{
		Sync: NewSyncRepositoryHandler(service, lock, logger, cfg.syncObserver, cfg.now,
			commands.WithTimeout[SyncRepositoryCommand](cfg.timeout)),
		Rollback: NewRollbackSyncHandler(service, lock, logger, cfg.rollbackObserver,
			commands.WithTimeout[RollbackSyncCommand](cfg.timeout)),
		Cleanup: NewCleanupRunsHandler(service, logger, cfg.keep,
			commands.WithTimeout[CleanupRunsCommand](cfg.timeout)),
	}
	if importer != nil {
		set.Import = NewImportLocalDocsHandler(importer, logger, cfg.importObserver, cfg.openDir,
			commands.WithTimeout[ImportLocalDocsCommand](cfg.timeout))
	}

	if reg != nil {
		for _, handler := range set.handlers() {
			if err := reg.RegisterCommand(handler); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

func (s *HandlerSet) handlers() []any {
	out := []any{s.Sync, s.Rollback, s.Cleanup}
	if s.Import != nil {
		out = append(out, s.Import)
	}
	return out
}

// RegisterSyncCron schedules sync checks. Each tick only syncs when the
// repository is due. An empty expression keeps the handler default.
func RegisterSyncCron(reg CronRegistrar, handler *SyncRepositoryHandler, expression string) error {
	if reg == nil || handler == nil {
		return nil
	}
	if trimmed := strings.TrimSpace(expression); trimmed != "" {
		handler.cronConfig.Expression = trimmed
	}
	return reg(handler.CronOptions(), handler.CronHandler())
}

// RegisterCleanupCron schedules sync run cleanup.
func RegisterCleanupCron(reg CronRegistrar, handler *CleanupRunsHandler, expression string) error {
	if reg == nil || handler == nil {
		return nil
	}
	if trimmed := strings.TrimSpace(expression); trimmed != "" {
		handler.cronConfig.Expression = trimmed
	}
	return reg(handler.CronOptions(), handler.CronHandler())
}

// Dispatch executes msg on the matching handler of the set. It lets job
// workers route by message type without a global dispatcher.
func (s *HandlerSet) Dispatch(ctx context.Context, msg command.Message) error {
	switch m := msg.(type) {
	case SyncRepositoryCommand:
		return s.Sync.Execute(ctx, m)
	case RollbackSyncCommand:
		return s.Rollback.Execute(ctx, m)
	case CleanupRunsCommand:
		return s.Cleanup.Execute(ctx, m)
	case ImportLocalDocsCommand:
		if s.Import == nil {
			return errors.New("docsync command: local import is not configured")
		}
		return s.Import.Execute(ctx, m)
	default:
		return errors.New("docsync command: unsupported message " + command.GetMessageType(msg))
	}
}
