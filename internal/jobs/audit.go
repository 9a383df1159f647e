package jobs

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

// Outcome values recorded for processed jobs.
const (
	OutcomeDone    = "done"
	OutcomeRetry   = "retry"
	OutcomeSkipped = "skipped"
)

// AuditEvent captures one job execution.
type AuditEvent struct {
	JobID      string
	JobType    string
	Attempt    int
	Outcome    string
	Error      string
	OccurredAt time.Time
	Metadata   map[string]any
}

// AuditRecorder persists audit events.
type AuditRecorder interface {
	Record(ctx context.Context, event AuditEvent) error
}

// InMemoryAuditRecorder keeps the most recent events in memory.
type InMemoryAuditRecorder struct {
	mu     sync.Mutex
	events []AuditEvent
	limit  int
}

// NewInMemoryAuditRecorder constructs a recorder holding at most limit
// events. Zero keeps everything.
func NewInMemoryAuditRecorder(limit int) *InMemoryAuditRecorder {
	return &InMemoryAuditRecorder{limit: limit}
}

// Record stores the supplied event.
func (r *InMemoryAuditRecorder) Record(_ context.Context, event AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	r.events = append(r.events, event)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = r.events[len(r.events)-r.limit:]
	}
	return nil
}

// Events returns a snapshot of recorded audit entries, oldest first.
func (r *InMemoryAuditRecorder) Events() []AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}

// LogAuditRecorder writes audit events to a logger.
type LogAuditRecorder struct {
	logger interfaces.Logger
}

// NewLogAuditRecorder wraps logger, defaulting to a no-op logger.
func NewLogAuditRecorder(logger interfaces.Logger) *LogAuditRecorder {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &LogAuditRecorder{logger: logger}
}

// Record logs the event at info level, or warn when the job failed.
func (r *LogAuditRecorder) Record(_ context.Context, event AuditEvent) error {
	fields := map[string]any{
		"job_id":   event.JobID,
		"job_type": event.JobType,
		"attempt":  event.Attempt,
		"outcome":  event.Outcome,
	}
	maps.Copy(fields, event.Metadata)
	entry := logging.WithFields(r.logger, fields)
	if event.Error != "" {
		entry.Warn("jobs.audit", "error", event.Error)
		return nil
	}
	entry.Info("jobs.audit")
	return nil
}
