package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned when no live job matches an id or key.
var ErrJobNotFound = errors.New("scheduler: job not found")

// Scheduler holds deferred docsync work: webhook and timer syncs, rollbacks
// and run cleanup. Keys deduplicate requests; ids address a single attempt.
type Scheduler interface {
	Enqueue(ctx context.Context, spec JobSpec) (*Job, error)
	CancelByKey(ctx context.Context, key string) error
	GetByKey(ctx context.Context, key string) (*Job, error)
	// ListDue returns pending jobs whose RunAt is not after until.
	ListDue(ctx context.Context, until time.Time, limit int) ([]*Job, error)
	MarkDone(ctx context.Context, id string) error
	// MarkFailed records one failed attempt; the scheduler decides whether
	// the job is retried.
	MarkFailed(ctx context.Context, id string, err error) error
}

// JobStatus is the state of a job still held by a scheduler.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusFailed  JobStatus = "failed"
)

// JobSpec is what callers hand to Enqueue.
type JobSpec struct {
	Key     string
	Type    string
	RunAt   time.Time
	Payload map[string]any
	// MaxAttempts of zero falls back to the scheduler default.
	MaxAttempts int
}

// Job is a JobSpec plus the bookkeeping the scheduler owns.
type Job struct {
	JobSpec
	ID        string
	Status    JobStatus
	Attempt   int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}
