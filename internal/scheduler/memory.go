package scheduler

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-docsync/pkg/interfaces"
)

// DefaultMaxAttempts applies to specs that leave MaxAttempts unset.
const DefaultMaxAttempts = 3

// ErrRunAtRequired rejects specs without a run time.
var ErrRunAtRequired = errors.New("scheduler: run_at is required")

// Memory is a process-local interfaces.Scheduler. Each key maps to at most
// one live job, so a burst of webhook deliveries yields a single sync. Jobs
// leave memory once completed or canceled; failed jobs stay visible under
// their key until replaced. Nothing survives a restart; the periodic due
// check enqueues a fresh sync after one.
type Memory struct {
	mu          sync.Mutex
	now         func() time.Time
	newID       func() string
	maxAttempts int
	backoff     time.Duration

	jobs  map[string]*interfaces.Job
	byKey map[string]string
	seq   map[string]uint64
	next  uint64
}

var _ interfaces.Scheduler = (*Memory)(nil)

// Option configures a Memory scheduler.
type Option func(*Memory)

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Memory) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithIDGenerator overrides the job ID generator.
func WithIDGenerator(generator func() string) Option {
	return func(s *Memory) {
		if generator != nil {
			s.newID = generator
		}
	}
}

// WithDefaultMaxAttempts changes the attempt limit for specs without one.
func WithDefaultMaxAttempts(limit int) Option {
	return func(s *Memory) {
		if limit > 0 {
			s.maxAttempts = limit
		}
	}
}

// WithRetryBackoff delays a failed job by backoff times its attempt count.
// Zero retries on the next poll.
func WithRetryBackoff(backoff time.Duration) Option {
	return func(s *Memory) {
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

// NewInMemory builds an empty scheduler.
func NewInMemory(opts ...Option) *Memory {
	s := &Memory{
		now:         time.Now,
		newID:       uuid.NewString,
		maxAttempts: DefaultMaxAttempts,
		jobs:        map[string]*interfaces.Job{},
		byKey:       map[string]string{},
		seq:         map[string]uint64{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Enqueue stores spec as a pending job. When the key already has a job the
// new spec replaces it: the latest payload wins, the earliest run time is
// kept so repeated triggers never postpone work.
func (s *Memory) Enqueue(_ context.Context, spec interfaces.JobSpec) (*interfaces.Job, error) {
	if spec.RunAt.IsZero() {
		return nil, ErrRunAtRequired
	}
	if spec.MaxAttempts <= 0 {
		spec.MaxAttempts = s.maxAttempts
	}
	spec.Payload = maps.Clone(spec.Payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	if previous := s.keyed(spec.Key); previous != nil {
		if previous.Status == interfaces.JobStatusPending && previous.RunAt.Before(spec.RunAt) {
			spec.RunAt = previous.RunAt
		}
		s.release(previous)
	}

	now := s.now()
	job := &interfaces.Job{
		JobSpec:   spec,
		ID:        s.newID(),
		Status:    interfaces.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.next++
	s.jobs[job.ID] = job
	s.seq[job.ID] = s.next
	if job.Key != "" {
		s.byKey[job.Key] = job.ID
	}
	return snapshot(job), nil
}

// CancelByKey drops the job held under key.
func (s *Memory) CancelByKey(_ context.Context, key string) error {
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.keyed(key)
	if job == nil {
		return interfaces.ErrJobNotFound
	}
	s.release(job)
	return nil
}

// GetByKey returns the job held under key.
func (s *Memory) GetByKey(_ context.Context, key string) (*interfaces.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.keyed(key)
	if job == nil {
		return nil, interfaces.ErrJobNotFound
	}
	return snapshot(job), nil
}

// ListDue returns pending jobs with RunAt at or before until, earliest
// first. Ties keep enqueue order. A limit below one returns all of them.
func (s *Memory) ListDue(_ context.Context, until time.Time, limit int) ([]*interfaces.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*interfaces.Job
	for _, job := range s.jobs {
		if job.Status == interfaces.JobStatusPending && !job.RunAt.After(until) {
			due = append(due, snapshot(job))
		}
	}
	slices.SortFunc(due, func(a, b *interfaces.Job) int {
		if c := a.RunAt.Compare(b.RunAt); c != 0 {
			return c
		}
		return cmp.Compare(s.seq[a.ID], s.seq[b.ID])
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// MarkDone completes the job and frees its key.
func (s *Memory) MarkDone(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return interfaces.ErrJobNotFound
	}
	s.release(job)
	return nil
}

// MarkFailed records a failed attempt. The job stays pending, pushed back by
// the retry backoff, until it reaches MaxAttempts.
func (s *Memory) MarkFailed(_ context.Context, id string, failure error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return interfaces.ErrJobNotFound
	}
	now := s.now()
	job.Attempt++
	job.UpdatedAt = now
	job.LastError = ""
	if failure != nil {
		job.LastError = failure.Error()
	}
	if job.Attempt >= job.MaxAttempts {
		job.Status = interfaces.JobStatusFailed
		return nil
	}
	job.Status = interfaces.JobStatusPending
	if s.backoff > 0 {
		job.RunAt = now.Add(time.Duration(job.Attempt) * s.backoff)
	}
	return nil
}

// Pending counts jobs waiting to run.
func (s *Memory) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, job := range s.jobs {
		if job.Status == interfaces.JobStatusPending {
			n++
		}
	}
	return n
}

func (s *Memory) keyed(key string) *interfaces.Job {
	if key == "" {
		return nil
	}
	id, ok := s.byKey[key]
	if !ok {
		return nil
	}
	return s.jobs[id]
}

func (s *Memory) release(job *interfaces.Job) {
	delete(s.jobs, job.ID)
	delete(s.seq, job.ID)
	if job.Key != "" && s.byKey[job.Key] == job.ID {
		delete(s.byKey, job.Key)
	}
}

func snapshot(job *interfaces.Job) *interfaces.Job {
	out := *job
	out.Payload = maps.Clone(job.Payload)
	return &out
}
