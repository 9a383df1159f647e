package interfaces

import (
	"context"
	"time"
)

// Commit describes the head commit of the tracked branch.
type Commit struct {
	Hash    string
	Message string
	Author  string
	Date    time.Time
}

// TreeEntry is a single file reported by a recursive tree listing.
type TreeEntry struct {
	Path string
}

// ChangeStatus enumerates the file statuses reported by a commit comparison.
type ChangeStatus string

const (
	ChangeAdded    ChangeStatus = "added"
	ChangeModified ChangeStatus = "modified"
	ChangeRemoved  ChangeStatus = "removed"
	ChangeRenamed  ChangeStatus = "renamed"
)

// ChangedFile describes one entry of a commit comparison. PreviousFilename is
// only set for renames.
type ChangedFile struct {
	Filename         string
	Status           ChangeStatus
	PreviousFilename string
}

// GitClient is the read-only view of a hosted repository consumed by the sync
// engine. Implementations own transport concerns such as timeouts and retries.
type GitClient interface {
	// LatestCommit returns the head commit of the configured branch, or nil
	// when the branch has no commits.
	LatestCommit(ctx context.Context) (*Commit, error)
	// DirectoryTree lists every file below root, recursively.
	DirectoryTree(ctx context.Context, root string) ([]TreeEntry, error)
	// FileContent returns the file body at the configured branch. The boolean
	// is false when the file does not exist.
	FileContent(ctx context.Context, path string) (string, bool, error)
	// ChangedFiles lists files that differ between two commits.
	ChangedFiles(ctx context.Context, from, to string) ([]ChangedFile, error)
	// TestConnection reports whether the repository and branch are reachable.
	TestConnection(ctx context.Context) bool
}
