package docsynccmd

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const (
	syncRepositoryMessageType  = "docsync.repository.sync"
	rollbackSyncMessageType    = "docsync.repository.rollback"
	cleanupRunsMessageType     = "docsync.runs.cleanup"
	importLocalDocsMessageType = "docsync.local.import"
)

// Trigger names what asked for a sync.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerWebhook   Trigger = "webhook"
	TriggerScheduled Trigger = "scheduled"
)

// SyncRepositoryCommand reconciles pages with the head of the configured branch.
type SyncRepositoryCommand struct {
	// Force runs a full pass even when a previous successful sync exists.
	Force bool `json:"force,omitempty"`
	// Trigger records the origin of the request. Scheduled syncs only run when due.
	Trigger Trigger `json:"trigger,omitempty"`
}

// Type implements command.Message.
func (SyncRepositoryCommand) Type() string { return syncRepositoryMessageType }

// Validate ensures the trigger is known.
func (cmd SyncRepositoryCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.Trigger, validation.In(TriggerManual, TriggerWebhook, TriggerScheduled).
			Error("trigger must be manual, webhook or scheduled")),
	)
}

// RollbackSyncCommand removes git pages updated after the commit of RunID.
type RollbackSyncCommand struct {
	RunID uuid.UUID `json:"run_id"`
}

// Type implements command.Message.
func (RollbackSyncCommand) Type() string { return rollbackSyncMessageType }

// Validate requires a run identifier.
func (cmd RollbackSyncCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.RunID, validation.By(func(value any) error {
			if id, _ := value.(uuid.UUID); id == uuid.Nil {
				return validation.NewError("docsync.rollback.run_id_required", "run id is required")
			}
			return nil
		})),
	)
}

// CleanupRunsCommand deletes all but the newest Keep sync runs. Zero keeps
// the configured default.
type CleanupRunsCommand struct {
	Keep int `json:"keep,omitempty"`
}

// Type implements command.Message.
func (CleanupRunsCommand) Type() string { return cleanupRunsMessageType }

// Validate rejects negative retention.
func (cmd CleanupRunsCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.Keep, validation.Min(0)),
	)
}

// ImportLocalDocsCommand imports a local docs directory as cms pages.
type ImportLocalDocsCommand struct {
	Directory string `json:"directory"`
}

// Type implements command.Message.
func (ImportLocalDocsCommand) Type() string { return importLocalDocsMessageType }

// Validate ensures directory input is present before handlers execute.
func (cmd ImportLocalDocsCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.Directory, validation.Required, validation.By(func(value any) error {
			if strings.TrimSpace(value.(string)) == "" {
				return validation.NewError("docsync.local.import.directory_required", "directory is required")
			}
			return nil
		})),
	)
}
