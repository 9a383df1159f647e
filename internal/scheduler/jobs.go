package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-docsync/pkg/interfaces"
)

// Job types understood by the docsync worker.
const (
	JobTypeSync     = "docsync.repository.sync"
	JobTypeRollback = "docsync.repository.rollback"
	JobTypeCleanup  = "docsync.runs.cleanup"
)

// SyncJobKey is shared by every sync request so a burst of triggers
// collapses into one pending job.
const SyncJobKey = "docsync:sync"

// CleanupJobKey identifies the pending run cleanup.
const CleanupJobKey = "docsync:cleanup"

// RollbackJobKey identifies a rollback to run id.
func RollbackJobKey(id uuid.UUID) string {
	return "docsync:rollback:" + id.String()
}

// SyncJob builds the spec of a sync request.
func SyncJob(trigger string, force bool, runAt time.Time) interfaces.JobSpec {
	return interfaces.JobSpec{
		Key:   SyncJobKey,
		Type:  JobTypeSync,
		RunAt: runAt,
		Payload: map[string]any{
			"trigger": trigger,
			"force":   force,
		},
	}
}

// RollbackJob builds the spec of a rollback request. Rollbacks are not retried.
func RollbackJob(id uuid.UUID, runAt time.Time) interfaces.JobSpec {
	return interfaces.JobSpec{
		Key:         RollbackJobKey(id),
		Type:        JobTypeRollback,
		RunAt:       runAt,
		Payload:     map[string]any{"run_id": id.String()},
		MaxAttempts: 1,
	}
}

// CleanupJob builds the spec of a run cleanup keeping the newest keep runs.
func CleanupJob(keep int, runAt time.Time) interfaces.JobSpec {
	return interfaces.JobSpec{
		Key:     CleanupJobKey,
		Type:    JobTypeCleanup,
		RunAt:   runAt,
		Payload: map[string]any{"keep": keep},
	}
}
