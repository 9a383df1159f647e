// Package repoconfig persists the repository coordinates the sync engine
// reads once per run.
package repoconfig

import (
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/uptrace/bun"
)

// ContentMode selects where pages are authored.
type ContentMode string

const (
	ContentModeGit ContentMode = "git"
	ContentModeCMS ContentMode = "cms"
)

const (
	DefaultBranch        = "main"
	DefaultSyncFrequency = 15
	MinSyncFrequency     = 5
	MaxSyncFrequency     = 1440
)

var (
	repositoryURLPattern = regexp.MustCompile(`^https?://github\.com/[^/\s]+/[^/\s]+?(\.git)?(/\S*)?$`)
	branchPattern        = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)
)

// RepositoryConfig is the singleton row describing the tracked repository.
type RepositoryConfig struct {
	bun.BaseModel `bun:"table:system_config,alias:sc"`

	ID            int64       `bun:",pk,autoincrement" json:"id"`
	ContentMode   ContentMode `bun:"content_mode,notnull" json:"content_mode"`
	RepositoryURL string      `bun:"git_repository_url,nullzero" json:"git_repository_url,omitempty"`
	Branch        string      `bun:"git_branch,nullzero" json:"git_branch,omitempty"`
	AccessToken   string      `bun:"git_access_token,nullzero" json:"-"`
	WebhookSecret string      `bun:"git_webhook_secret,nullzero" json:"-"`
	SyncFrequency int         `bun:"git_sync_frequency,notnull" json:"git_sync_frequency"`
	LastSyncedAt  *time.Time  `bun:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt     time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time   `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Default returns the configuration used before anything is stored.
func Default() *RepositoryConfig {
	return &RepositoryConfig{
		ContentMode:   ContentModeCMS,
		Branch:        DefaultBranch,
		SyncFrequency: DefaultSyncFrequency,
	}
}

// IsGitMode reports whether pages are sourced from the repository.
func (c *RepositoryConfig) IsGitMode() bool {
	return c != nil && c.ContentMode == ContentModeGit
}

// HasRepository reports whether a repository URL is configured.
func (c *RepositoryConfig) HasRepository() bool {
	return c != nil && strings.TrimSpace(c.RepositoryURL) != ""
}

// BranchOrDefault returns the configured branch or main.
func (c *RepositoryConfig) BranchOrDefault() string {
	if c == nil || strings.TrimSpace(c.Branch) == "" {
		return DefaultBranch
	}
	return strings.TrimSpace(c.Branch)
}

// Frequency returns the sync interval in minutes. Values below one fall
// back to the default.
func (c *RepositoryConfig) Frequency() time.Duration {
	minutes := DefaultSyncFrequency
	if c != nil && c.SyncFrequency >= 1 {
		minutes = c.SyncFrequency
	}
	return time.Duration(minutes) * time.Minute
}

// Due reports whether a scheduled sync should run at now: never synced, or
// the frequency has elapsed since the last sync.
func (c *RepositoryConfig) Due(now time.Time) bool {
	if c == nil || c.LastSyncedAt == nil {
		return true
	}
	return now.Sub(*c.LastSyncedAt) >= c.Frequency()
}

// Validate checks operator supplied settings.
func (c *RepositoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ContentMode, validation.Required, validation.In(ContentModeGit, ContentModeCMS)),
		validation.Field(&c.RepositoryURL,
			validation.When(c.ContentMode == ContentModeGit, validation.Required),
			validation.Match(repositoryURLPattern).Error("must be a https://github.com/<owner>/<repo> url"),
		),
		validation.Field(&c.Branch, validation.Match(branchPattern).Error("contains invalid characters")),
		validation.Field(&c.SyncFrequency, validation.Min(MinSyncFrequency), validation.Max(MaxSyncFrequency)),
	)
}

func clone(c *RepositoryConfig) *RepositoryConfig {
	if c == nil {
		return nil
	}
	copied := *c
	if c.LastSyncedAt != nil {
		ts := *c.LastSyncedAt
		copied.LastSyncedAt = &ts
	}
	return &copied
}
