package pages

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Kind is the level of a page in the content tree.
type Kind string

const (
	KindNavigation Kind = "navigation"
	KindGroup      Kind = "group"
	KindDocument   Kind = "document"
)

// Status is the publication state of a page.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	default:
		return false
	}
}

// Origin tags where a page came from. It selects the identity rule and the
// cleanup scope.
type Origin string

const (
	OriginCMS Origin = "cms"
	OriginGit Origin = "git"
)

// Page is one node of the navigation → group → document tree.
type Page struct {
	bun.BaseModel `bun:"table:pages,alias:p"`

	ID             uuid.UUID  `bun:",pk,type:uuid" json:"id"`
	Title          string     `bun:"title,notnull" json:"title"`
	Slug           string     `bun:"slug,notnull" json:"slug"`
	Kind           Kind       `bun:"type,notnull" json:"type"`
	Icon           *string    `bun:"icon" json:"icon,omitempty"`
	Content        *string    `bun:"content" json:"content,omitempty"`
	Status         Status     `bun:"status,notnull" json:"status"`
	Order          int        `bun:"order,notnull" json:"order"`
	ParentID       *uuid.UUID `bun:"parent_id,type:uuid" json:"parent_id,omitempty"`
	IsDefault      bool       `bun:"is_default,notnull" json:"is_default"`
	IsExpanded     bool       `bun:"is_expanded,notnull" json:"is_expanded"`
	SEOTitle       *string    `bun:"seo_title" json:"seo_title,omitempty"`
	SEODescription *string    `bun:"seo_description" json:"seo_description,omitempty"`
	Origin         Origin     `bun:"source,notnull" json:"source"`
	GitPath        *string    `bun:"git_path" json:"git_path,omitempty"`
	GitLastCommit  *string    `bun:"git_last_commit" json:"git_last_commit,omitempty"`
	GitLastAuthor  *string    `bun:"git_last_author" json:"git_last_author,omitempty"`
	UpdatedAtGit   *time.Time `bun:"updated_at_git" json:"updated_at_git,omitempty"`
	CreatedBy      *uuid.UUID `bun:"created_by,type:uuid" json:"created_by,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// GitPathValue returns the git path or an empty string.
func (p *Page) GitPathValue() string {
	if p == nil || p.GitPath == nil {
		return ""
	}
	return *p.GitPath
}

func clonePage(p *Page) *Page {
	if p == nil {
		return nil
	}
	cloned := *p
	cloned.Icon = cloneString(p.Icon)
	cloned.Content = cloneString(p.Content)
	cloned.SEOTitle = cloneString(p.SEOTitle)
	cloned.SEODescription = cloneString(p.SEODescription)
	cloned.GitPath = cloneString(p.GitPath)
	cloned.GitLastCommit = cloneString(p.GitLastCommit)
	cloned.GitLastAuthor = cloneString(p.GitLastAuthor)
	if p.ParentID != nil {
		parent := *p.ParentID
		cloned.ParentID = &parent
	}
	if p.CreatedBy != nil {
		createdBy := *p.CreatedBy
		cloned.CreatedBy = &createdBy
	}
	if p.UpdatedAtGit != nil {
		ts := *p.UpdatedAtGit
		cloned.UpdatedAtGit = &ts
	}
	return &cloned
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
