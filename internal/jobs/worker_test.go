package jobs_test

import (
	"context"
	"testing"
	"time"

	command "github.com/goliatone/go-command"
	"github.com/google/uuid"

	docsynccmd "github.com/goliatone/go-docsync/internal/commands/docsync"
	"github.com/goliatone/go-docsync/internal/jobs"
	"github.com/goliatone/go-docsync/internal/scheduler"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

type recordingDispatcher struct {
	messages []command.Message
	err      error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg command.Message) error {
	d.messages = append(d.messages, msg)
	return d.err
}

func TestWorkerRoutesJobsToCommands(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	sched := scheduler.NewInMemory(scheduler.WithClock(func() time.Time { return now }))
	dispatcher := &recordingDispatcher{}
	audit := jobs.NewInMemoryAuditRecorder(0)
	worker := jobs.NewWorker(sched, dispatcher, jobs.WithAuditRecorder(audit), jobs.WithClock(func() time.Time { return now }))

	runID := uuid.New()
	specs := []interfaces.JobSpec{
		scheduler.SyncJob("webhook", true, now.Add(-2*time.Minute)),
		scheduler.RollbackJob(runID, now.Add(-time.Minute)),
		scheduler.CleanupJob(20, now),
		scheduler.SyncJob("manual", false, now.Add(time.Hour)),
	}
	// the last spec replaces the first, keeping its earlier slot
	for _, spec := range specs {
		if _, err := sched.Enqueue(ctx, spec); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	summary, err := worker.Process(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if summary.Done != 3 || summary.Retried != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(dispatcher.messages) != 3 {
		t.Fatalf("expected three dispatched messages, got %d", len(dispatcher.messages))
	}

	syncMsg, ok := dispatcher.messages[0].(docsynccmd.SyncRepositoryCommand)
	if !ok || syncMsg.Force || syncMsg.Trigger != docsynccmd.TriggerManual {
		t.Fatalf("unexpected sync message %#v", dispatcher.messages[0])
	}
	rollbackMsg, ok := dispatcher.messages[1].(docsynccmd.RollbackSyncCommand)
	if !ok || rollbackMsg.RunID != runID {
		t.Fatalf("unexpected rollback message %#v", dispatcher.messages[1])
	}
	cleanupMsg, ok := dispatcher.messages[2].(docsynccmd.CleanupRunsCommand)
	if !ok || cleanupMsg.Keep != 20 {
		t.Fatalf("unexpected cleanup message %#v", dispatcher.messages[2])
	}

	events := audit.Events()
	if len(events) != 3 || events[0].Outcome != jobs.OutcomeDone {
		t.Fatalf("unexpected audit events %+v", events)
	}
	if events[0].Metadata["trigger"] != "manual" {
		t.Fatalf("expected trigger in audit metadata, got %+v", events[0].Metadata)
	}
	if sched.Pending() != 0 {
		t.Fatalf("expected no pending jobs, got %d", sched.Pending())
	}
}

func TestWorkerRetriesFailedJobs(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	sched := scheduler.NewInMemory(scheduler.WithClock(func() time.Time { return now }))
	dispatcher := &recordingDispatcher{err: docsynccmd.ErrSyncInProgress}
	worker := jobs.NewWorker(sched, dispatcher, jobs.WithClock(func() time.Time { return now }))

	if _, err := sched.Enqueue(ctx, scheduler.SyncJob("webhook", false, now)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	summary, err := worker.Process(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if summary.Retried != 1 {
		t.Fatalf("expected one retry, got %+v", summary)
	}
	job, err := sched.GetByKey(ctx, scheduler.SyncJobKey)
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if job.Status != interfaces.JobStatusPending || job.Attempt != 1 {
		t.Fatalf("expected job pending for retry, got %+v", job)
	}

	dispatcher.err = nil
	if _, err := worker.Process(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(dispatcher.messages) != 2 {
		t.Fatalf("expected second attempt, got %d dispatches", len(dispatcher.messages))
	}
	if sched.Pending() != 0 {
		t.Fatalf("expected job completed, got %d pending", sched.Pending())
	}
}

func TestWorkerSkipsUnknownAndMalformedJobs(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	sched := scheduler.NewInMemory(scheduler.WithClock(func() time.Time { return now }))
	dispatcher := &recordingDispatcher{}
	audit := jobs.NewInMemoryAuditRecorder(0)
	worker := jobs.NewWorker(sched, dispatcher, jobs.WithAuditRecorder(audit), jobs.WithClock(func() time.Time { return now }))

	if _, err := sched.Enqueue(ctx, interfaces.JobSpec{Type: "docsync.unknown", RunAt: now}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := sched.Enqueue(ctx, interfaces.JobSpec{
		Type:        scheduler.JobTypeRollback,
		RunAt:       now,
		Payload:     map[string]any{"run_id": "not-a-uuid"},
		MaxAttempts: 1,
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	summary, err := worker.Process(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if summary.Skipped != 1 || summary.Retried != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(dispatcher.messages) != 0 {
		t.Fatalf("expected nothing dispatched, got %d", len(dispatcher.messages))
	}
	for _, event := range audit.Events() {
		if event.Error == "" {
			t.Fatalf("expected errors recorded, got %+v", event)
		}
	}
}

func TestWorkerRequiresCollaborators(t *testing.T) {
	if _, err := jobs.NewWorker(nil, &recordingDispatcher{}).Process(context.Background()); err == nil {
		t.Fatal("expected error without scheduler")
	}
	if _, err := jobs.NewWorker(scheduler.NewInMemory(), nil).Process(context.Background()); err == nil {
		t.Fatal("expected error without dispatcher")
	}
}

func TestAuditRecorderKeepsNewest(t *testing.T) {
	recorder := jobs.NewInMemoryAuditRecorder(2)
	for _, id := range []string{"a", "b", "c"} {
		_ = recorder.Record(context.Background(), jobs.AuditEvent{JobID: id})
	}
	events := recorder.Events()
	if len(events) != 2 || events[0].JobID != "b" || events[1].JobID != "c" {
		t.Fatalf("unexpected events %+v", events)
	}
	if err := jobs.NewLogAuditRecorder(nil).Record(context.Background(), jobs.AuditEvent{JobID: "d", Error: "boom"}); err != nil {
		t.Fatalf("log recorder: %v", err)
	}
}
