package gitsync

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RunStatus is the lifecycle state of a SyncRun.
type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunInProgress RunStatus = "in_progress"
	RunSuccess    RunStatus = "success"
	RunFailed     RunStatus = "failed"
)

// SyncType names the reconciliation algorithm a run used.
type SyncType string

const (
	SyncFull         SyncType = "full"
	SyncDifferential SyncType = "differential"
)

// SyncDetails is the structured summary stored with a successful run.
type SyncDetails struct {
	SyncType       SyncType `json:"sync_type"`
	ProcessedFiles int      `json:"processed_files"`
	DeletedFiles   int      `json:"deleted_files"`
	FromCommit     *string  `json:"from_commit"`
}

// SyncRun records one attempted reconciliation. It is created in progress
// and moves once to success or failed.
type SyncRun struct {
	bun.BaseModel `bun:"table:git_syncs,alias:gs"`

	ID            uuid.UUID    `bun:",pk,type:uuid" json:"id"`
	CommitHash    string       `bun:"commit_hash,notnull" json:"commit_hash"`
	CommitMessage *string      `bun:"commit_message" json:"commit_message,omitempty"`
	CommitAuthor  *string      `bun:"commit_author" json:"commit_author,omitempty"`
	CommitDate    *time.Time   `bun:"commit_date" json:"commit_date,omitempty"`
	Status        RunStatus    `bun:"sync_status,notnull" json:"sync_status"`
	FilesChanged  int          `bun:"files_changed,notnull" json:"files_changed"`
	Details       *SyncDetails `bun:"sync_details,type:jsonb" json:"sync_details,omitempty"`
	ErrorMessage  *string      `bun:"error_message" json:"error_message,omitempty"`
	CreatedAt     time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time    `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// IsSuccess reports whether the run completed.
func (r *SyncRun) IsSuccess() bool {
	return r != nil && r.Status == RunSuccess
}

// ShortHash returns the first seven characters of the commit hash.
func (r *SyncRun) ShortHash() string {
	if r == nil {
		return ""
	}
	if len(r.CommitHash) > 7 {
		return r.CommitHash[:7]
	}
	return r.CommitHash
}

// SyncTypeName returns the recorded sync type or "unknown".
func (r *SyncRun) SyncTypeName() string {
	if r == nil || r.Details == nil || r.Details.SyncType == "" {
		return "unknown"
	}
	return string(r.Details.SyncType)
}

func cloneRun(run *SyncRun) *SyncRun {
	if run == nil {
		return nil
	}
	cloned := *run
	if run.CommitMessage != nil {
		v := *run.CommitMessage
		cloned.CommitMessage = &v
	}
	if run.CommitAuthor != nil {
		v := *run.CommitAuthor
		cloned.CommitAuthor = &v
	}
	if run.CommitDate != nil {
		v := *run.CommitDate
		cloned.CommitDate = &v
	}
	if run.ErrorMessage != nil {
		v := *run.ErrorMessage
		cloned.ErrorMessage = &v
	}
	if run.Details != nil {
		details := *run.Details
		if run.Details.FromCommit != nil {
			v := *run.Details.FromCommit
			details.FromCommit = &v
		}
		cloned.Details = &details
	}
	return &cloned
}
