package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-docsync/cmd/docsync/internal/bootstrap"
	"github.com/goliatone/go-docsync/internal/jobs"
	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/internal/scheduler"
	"github.com/goliatone/go-docsync/internal/webhook"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

const cleanupInterval = 24 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled syncs and the push webhook until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		loop := newServeLoop(app, time.Now)
		if app.Config.Webhook.Enabled {
			srv := &http.Server{
				Addr:              app.Config.Webhook.Address,
				Handler:           loop.routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				app.Logger.Info("docsync.serve.webhook.listening", "address", srv.Addr, "path", app.Config.Webhook.Path)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					app.Logger.Error("docsync.serve.webhook.failed", "error", err)
					stop()
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		return loop.run(ctx, app.Config.Scheduler.TickInterval.Duration)
	},
}

// serveLoop feeds scheduled jobs into the in-memory scheduler and drains
// them with a worker on every tick.
type serveLoop struct {
	app         *bootstrap.App
	scheduler   *scheduler.Memory
	worker      *jobs.Worker
	logger      interfaces.Logger
	now         func() time.Time
	lastCleanup time.Time
}

func newServeLoop(app *bootstrap.App, now func() time.Time) *serveLoop {
	sched := scheduler.NewInMemory(
		scheduler.WithClock(now),
		scheduler.WithRetryBackoff(app.Config.Scheduler.TickInterval.Duration),
	)
	logger := logging.For(app.Provider, logging.ModuleJobs)
	worker := jobs.NewWorker(sched, app.Commands,
		jobs.WithAuditRecorder(jobs.NewLogAuditRecorder(logger)),
		jobs.WithLogger(logger),
		jobs.WithClock(now),
		jobs.WithBatchSize(app.Config.Scheduler.BatchSize),
	)
	return &serveLoop{
		app:       app,
		scheduler: sched,
		worker:    worker,
		logger:    logger,
		now:       now,
	}
}

func (l *serveLoop) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(l.app.Config.Webhook.Path, webhook.NewHandler(l.scheduler, l.app.RepoConfig,
		webhook.WithLogger(logging.For(l.app.Provider, logging.ModuleWebhook)),
		webhook.WithClock(l.now),
	))
	return mux
}

func (l *serveLoop) run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := l.tick(ctx); err != nil && ctx.Err() == nil {
			l.logger.Error("docsync.serve.tick.failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// tick queues a scheduled sync unless one is already pending, queues a
// cleanup once a day and then processes every due job.
func (l *serveLoop) tick(ctx context.Context) error {
	now := l.now()
	if !l.syncPending(ctx) {
		if _, err := l.scheduler.Enqueue(ctx, scheduler.SyncJob("scheduled", false, now)); err != nil {
			return err
		}
	}
	if l.lastCleanup.IsZero() || now.Sub(l.lastCleanup) >= cleanupInterval {
		if _, err := l.scheduler.Enqueue(ctx, scheduler.CleanupJob(l.app.Config.Sync.RetainRuns, now)); err != nil {
			return err
		}
		l.lastCleanup = now
	}

	summary, err := l.worker.Process(ctx)
	if err != nil {
		return err
	}
	if summary.Done+summary.Retried+summary.Skipped > 0 {
		l.logger.Debug("docsync.serve.tick.processed",
			"done", summary.Done,
			"retried", summary.Retried,
			"skipped", summary.Skipped,
		)
	}
	return nil
}

// syncPending keeps a webhook request from being downgraded to a scheduled
// one, which would only run when due.
func (l *serveLoop) syncPending(ctx context.Context) bool {
	job, err := l.scheduler.GetByKey(ctx, scheduler.SyncJobKey)
	if err != nil {
		return false
	}
	return job.Status == interfaces.JobStatusPending
}
