package gitsync

import (
	"errors"
	"fmt"
)

var (
	ErrNotGitMode              = errors.New("Git sync is only available when content mode is set to git")
	ErrRepositoryNotConfigured = errors.New("Git repository not configured")
	ErrCommitUnavailable       = errors.New("Could not fetch latest commit")
	ErrRollbackRequiresSuccess = errors.New("Can only rollback to successful syncs")
	ErrRunCommitDateMissing    = errors.New("gitsync: run has no commit date")
	ErrClientFactoryRequired   = errors.New("gitsync: client factory is required")
	ErrRunNotFound             = errors.New("gitsync: sync run not found")
)

// SyncRunNotFoundError reports a missing run.
type SyncRunNotFoundError struct {
	Key string
}

func (e *SyncRunNotFoundError) Error() string {
	return fmt.Sprintf("gitsync: sync run %q not found", e.Key)
}

func (e *SyncRunNotFoundError) Unwrap() error {
	return ErrRunNotFound
}

// IsRunNotFound reports whether err signals a missing run.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}
