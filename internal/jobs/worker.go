// Package jobs drains scheduled docsync jobs and routes them to the command handlers.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	command "github.com/goliatone/go-command"
	"github.com/google/uuid"

	docsynccmd "github.com/goliatone/go-docsync/internal/commands/docsync"
	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/internal/scheduler"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

// ErrUnknownJobType is recorded for jobs the worker cannot route.
var ErrUnknownJobType = errors.New("jobs: unknown job type")

// Dispatcher executes a command message. docsynccmd.HandlerSet satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg command.Message) error
}

// Summary counts the outcome of one Process call.
type Summary struct {
	Done    int
	Retried int
	Skipped int
}

// Worker processes due jobs one at a time.
type Worker struct {
	scheduler  interfaces.Scheduler
	dispatcher Dispatcher
	audit      AuditRecorder
	logger     interfaces.Logger
	now        func() time.Time
	batchSize  int
}

type Option func(*Worker)

func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(w *Worker) {
		w.audit = recorder
	}
}

func WithLogger(logger interfaces.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(w *Worker) {
		if clock != nil {
			w.now = clock
		}
	}
}

func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

func NewWorker(scheduler interfaces.Scheduler, dispatcher Dispatcher, opts ...Option) *Worker {
	w := &Worker{
		scheduler:  scheduler,
		dispatcher: dispatcher,
		logger:     logging.NoOp(),
		now:        time.Now,
		batchSize:  10,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Process executes every job due now, in run order. A failed job is handed
// back to the scheduler, which retries it until its attempts run out.
func (w *Worker) Process(ctx context.Context) (Summary, error) {
	var summary Summary
	if w.scheduler == nil {
		return summary, errors.New("jobs: scheduler is nil")
	}
	if w.dispatcher == nil {
		return summary, errors.New("jobs: dispatcher is nil")
	}
	due, err := w.scheduler.ListDue(ctx, w.now(), w.batchSize)
	if err != nil {
		return summary, err
	}
	for _, job := range due {
		if job == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		jobCtx := logging.ContextWithJob(ctx, job.ID, job.Type, job.Attempt+1)
		logger := logging.WithFields(w.logger, logging.ContextFields(jobCtx))
		msg, err := decode(job)
		if err == nil {
			err = w.dispatcher.Dispatch(jobCtx, msg)
		}

		switch {
		case err == nil:
			summary.Done++
			_ = w.scheduler.MarkDone(ctx, job.ID)
			w.record(ctx, job, OutcomeDone, nil)
			logger.Debug("jobs.job.done")
		case errors.Is(err, ErrUnknownJobType):
			summary.Skipped++
			_ = w.scheduler.MarkDone(ctx, job.ID)
			w.record(ctx, job, OutcomeSkipped, err)
			logger.Warn("jobs.job.skipped", "error", err)
		default:
			summary.Retried++
			_ = w.scheduler.MarkFailed(ctx, job.ID, err)
			w.record(ctx, job, OutcomeRetry, err)
			logger.Error("jobs.job.failed", "error", err)
		}
	}
	return summary, nil
}

func (w *Worker) record(ctx context.Context, job *interfaces.Job, outcome string, err error) {
	if w.audit == nil {
		return
	}
	event := AuditEvent{
		JobID:      job.ID,
		JobType:    job.Type,
		Attempt:    job.Attempt + 1,
		Outcome:    outcome,
		OccurredAt: w.now(),
	}
	if trigger, ok := job.Payload["trigger"].(string); ok && trigger != "" {
		event.Metadata = map[string]any{"trigger": trigger}
	}
	if err != nil {
		event.Error = err.Error()
	}
	_ = w.audit.Record(ctx, event)
}

func decode(job *interfaces.Job) (command.Message, error) {
	switch job.Type {
	case scheduler.JobTypeSync:
		msg := docsynccmd.SyncRepositoryCommand{Trigger: docsynccmd.TriggerManual}
		if trigger, ok := job.Payload["trigger"].(string); ok && strings.TrimSpace(trigger) != "" {
			msg.Trigger = docsynccmd.Trigger(strings.TrimSpace(trigger))
		}
		if force, ok := job.Payload["force"].(bool); ok {
			msg.Force = force
		}
		return msg, nil
	case scheduler.JobTypeRollback:
		raw, _ := job.Payload["run_id"].(string)
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("jobs: invalid run_id payload %q: %w", raw, err)
		}
		return docsynccmd.RollbackSyncCommand{RunID: id}, nil
	case scheduler.JobTypeCleanup:
		keep, err := intPayload(job.Payload, "keep")
		if err != nil {
			return nil, err
		}
		return docsynccmd.CleanupRunsCommand{Keep: keep}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
	}
}

// intPayload accepts the numeric shapes a payload takes in memory or after
// a JSON round trip.
func intPayload(payload map[string]any, key string) (int, error) {
	switch v := payload[key].(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("jobs: invalid %s payload %v", key, v)
	}
}
