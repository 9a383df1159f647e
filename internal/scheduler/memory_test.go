package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-docsync/pkg/interfaces"
)

func newTestScheduler(now *time.Time) *Memory {
	seq := 0
	return NewInMemory(
		WithClock(func() time.Time { return *now }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("job-%d", seq)
		}),
	)
}

func TestEnqueueCollapsesJobsWithTheSameKey(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	s := newTestScheduler(&now)

	if _, err := s.Enqueue(ctx, SyncJob("webhook", false, now)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	later := now.Add(time.Minute)
	job, err := s.Enqueue(ctx, SyncJob("webhook", true, later))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if s.Pending() != 1 {
		t.Fatalf("expected one pending job, got %d", s.Pending())
	}
	if !job.RunAt.Equal(now) {
		t.Fatalf("expected the earlier run time to be kept, got %s", job.RunAt)
	}
	if force, _ := job.Payload["force"].(bool); !force {
		t.Fatalf("expected latest payload to win, got %v", job.Payload)
	}

	stored, err := s.GetByKey(ctx, SyncJobKey)
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if stored.ID != job.ID {
		t.Fatalf("expected key to point at %s, got %s", job.ID, stored.ID)
	}
}

func TestListDueOrdersByRunAt(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	s := newTestScheduler(&now)

	runID := uuid.New()
	if _, err := s.Enqueue(ctx, CleanupJob(10, now.Add(2*time.Minute))); err != nil {
		t.Fatalf("enqueue cleanup: %v", err)
	}
	if _, err := s.Enqueue(ctx, RollbackJob(runID, now)); err != nil {
		t.Fatalf("enqueue rollback: %v", err)
	}
	if _, err := s.Enqueue(ctx, SyncJob("manual", false, now.Add(time.Hour))); err != nil {
		t.Fatalf("enqueue sync: %v", err)
	}

	due, err := s.ListDue(ctx, now.Add(5*time.Minute), 0)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected two due jobs, got %d", len(due))
	}
	if due[0].Type != JobTypeRollback || due[1].Type != JobTypeCleanup {
		t.Fatalf("unexpected order %s, %s", due[0].Type, due[1].Type)
	}
	if due[0].Key != RollbackJobKey(runID) || due[0].MaxAttempts != 1 {
		t.Fatalf("unexpected rollback job %+v", due[0])
	}

	limited, err := s.ListDue(ctx, now.Add(5*time.Minute), 1)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestMarkFailedRetriesUntilMaxAttempts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	s := newTestScheduler(&now)

	job, err := s.Enqueue(ctx, SyncJob("scheduled", false, now))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	for attempt := 1; attempt <= DefaultMaxAttempts; attempt++ {
		if err := s.MarkFailed(ctx, job.ID, errors.New("rate limited")); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
	}
	stored, err := s.GetByKey(ctx, SyncJobKey)
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if stored.Status != interfaces.JobStatusFailed || stored.Attempt != DefaultMaxAttempts {
		t.Fatalf("expected failed after %d attempts, got %+v", DefaultMaxAttempts, stored)
	}
	if stored.LastError != "rate limited" {
		t.Fatalf("expected last error recorded, got %q", stored.LastError)
	}
}

func TestMarkDoneReleasesKey(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	s := newTestScheduler(&now)

	job, err := s.Enqueue(ctx, CleanupJob(5, now))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := s.MarkDone(ctx, job.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if _, err := s.GetByKey(ctx, CleanupJobKey); !errors.Is(err, interfaces.ErrJobNotFound) {
		t.Fatalf("expected key released, got %v", err)
	}
	if err := s.MarkDone(ctx, "missing"); !errors.Is(err, interfaces.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestCancelByKey(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	s := newTestScheduler(&now)

	if _, err := s.Enqueue(ctx, SyncJob("manual", false, now)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := s.CancelByKey(ctx, SyncJobKey); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	due, err := s.ListDue(ctx, now, 0)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected no due jobs after cancel, got %d", len(due))
	}
	if err := s.CancelByKey(ctx, SyncJobKey); !errors.Is(err, interfaces.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound on second cancel, got %v", err)
	}
}

func TestEnqueueRequiresRunAt(t *testing.T) {
	now := time.Now()
	s := newTestScheduler(&now)
	if _, err := s.Enqueue(context.Background(), interfaces.JobSpec{Type: JobTypeSync}); !errors.Is(err, ErrRunAtRequired) {
		t.Fatalf("expected ErrRunAtRequired, got %v", err)
	}
}

func TestListDueKeepsEnqueueOrderForTies(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	s := newTestScheduler(&now)

	first, _ := s.Enqueue(ctx, CleanupJob(10, now))
	second, _ := s.Enqueue(ctx, SyncJob("manual", false, now))
	third, _ := s.Enqueue(ctx, RollbackJob(uuid.New(), now))

	due, err := s.ListDue(ctx, now, 0)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	got := []string{due[0].ID, due[1].ID, due[2].ID}
	want := []string{first.ID, second.ID, third.ID}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected enqueue order %v, got %v", want, got)
		}
	}
}

func TestMarkFailedAppliesRetryBackoff(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	s := NewInMemory(WithClock(func() time.Time { return now }), WithRetryBackoff(time.Minute))

	job, err := s.Enqueue(ctx, SyncJob("webhook", false, now))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	_ = s.MarkFailed(ctx, job.ID, errors.New("timeout"))
	_ = s.MarkFailed(ctx, job.ID, errors.New("timeout"))

	if due, _ := s.ListDue(ctx, now.Add(time.Minute), 0); len(due) != 0 {
		t.Fatalf("expected job to wait out the backoff, got %d due", len(due))
	}
	due, _ := s.ListDue(ctx, now.Add(2*time.Minute), 0)
	if len(due) != 1 || due[0].Attempt != 2 {
		t.Fatalf("expected job due after two minutes, got %+v", due)
	}
}

func TestEnqueueReplacesFailedJob(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	s := NewInMemory(WithClock(func() time.Time { return now }), WithDefaultMaxAttempts(1))

	failed, _ := s.Enqueue(ctx, SyncJob("scheduled", false, now))
	_ = s.MarkFailed(ctx, failed.ID, errors.New("unreachable"))

	later := now.Add(time.Hour)
	fresh, err := s.Enqueue(ctx, SyncJob("webhook", false, later))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !fresh.RunAt.Equal(later) {
		t.Fatalf("expected failed job's run time to be ignored, got %s", fresh.RunAt)
	}
	if fresh.Attempt != 0 || s.Pending() != 1 {
		t.Fatalf("expected a fresh pending job, got %+v", fresh)
	}
}
