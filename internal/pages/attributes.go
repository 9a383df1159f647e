package pages

import (
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-docsync/internal/markdown"
)

// ContainerAttributes are the optional fields shared by navigations and
// groups. Nil fields fall back to the defaults, never to the stored value,
// so a field dropped from the source is cleared on the next import.
type ContainerAttributes struct {
	Origin      Origin
	Title       *string
	Description *string
	Icon        *string
	Order       *int
	IsExpanded  *bool
	Status      *Status
	GitPath     *string
	CreatedBy   *uuid.UUID
}

// NavigationAttributes overlay a navigation upsert.
type NavigationAttributes struct {
	ContainerAttributes
	IsDefault *bool
}

// GroupAttributes overlay a group upsert.
type GroupAttributes struct {
	ContainerAttributes
}

// Commit identifies the revision a git document was imported from.
type Commit struct {
	Hash   string
	Author string
	Date   time.Time
}

// DocumentAttributes overlay a document upsert. Nil fields fall back to the
// defaults, except the git path, commit and author which are kept.
type DocumentAttributes struct {
	Origin         Origin
	Title          *string
	Content        *string
	Status         *Status
	Order          *int
	SEOTitle       *string
	SEODescription *string
	GitPath        *string
	Commit         *Commit
	CreatedBy      *uuid.UUID
}

func originOrDefault(origin Origin) Origin {
	if origin == "" {
		return OriginCMS
	}
	return origin
}

// containerDefaults are reapplied on every upsert before the overlay.
func containerDefaults(page *Page, kind Kind, slug string) {
	page.Kind = kind
	page.Title = markdown.Humanize(slug)
	page.Status = StatusPublished
	page.IsExpanded = true
	page.IsDefault = false
	page.Order = 0
	page.Icon = nil
	page.SEOTitle = nil
	page.SEODescription = nil
}

// documentDefaults are reapplied on every document upsert before the overlay.
func documentDefaults(page *Page, slug string) {
	page.Kind = KindDocument
	page.Title = slug
	page.Status = StatusPublished
	page.Order = 0
	page.SEOTitle = nil
	page.SEODescription = nil
}

func (a ContainerAttributes) apply(page *Page) {
	page.Origin = originOrDefault(a.Origin)
	if a.Title != nil {
		page.Title = *a.Title
	}
	if a.Description != nil {
		page.SEODescription = cloneString(a.Description)
	}
	if a.Icon != nil {
		page.Icon = cloneString(a.Icon)
	}
	if a.Order != nil {
		page.Order = *a.Order
	}
	if a.IsExpanded != nil {
		page.IsExpanded = *a.IsExpanded
	}
	if a.Status != nil {
		page.Status = *a.Status
	}
	if a.GitPath != nil {
		page.GitPath = cloneString(a.GitPath)
	}
	if a.CreatedBy != nil {
		createdBy := *a.CreatedBy
		page.CreatedBy = &createdBy
	}
}

func (a NavigationAttributes) apply(page *Page) {
	a.ContainerAttributes.apply(page)
	if a.IsDefault != nil {
		page.IsDefault = *a.IsDefault
	}
}

func (a DocumentAttributes) gitIdentity() (string, bool) {
	if originOrDefault(a.Origin) != OriginGit || a.GitPath == nil || *a.GitPath == "" {
		return "", false
	}
	return *a.GitPath, true
}

func (a DocumentAttributes) apply(page *Page) {
	page.Origin = originOrDefault(a.Origin)
	if a.Title != nil {
		page.Title = *a.Title
	}
	if a.Content != nil {
		page.Content = cloneString(a.Content)
	}
	if a.Status != nil {
		page.Status = *a.Status
	}
	if a.Order != nil {
		page.Order = *a.Order
	}
	if a.SEOTitle != nil {
		page.SEOTitle = cloneString(a.SEOTitle)
	}
	if a.SEODescription != nil {
		page.SEODescription = cloneString(a.SEODescription)
	}
	if a.GitPath != nil {
		page.GitPath = cloneString(a.GitPath)
	}
	if a.Commit != nil {
		hash, author := a.Commit.Hash, a.Commit.Author
		date := a.Commit.Date.UTC()
		page.GitLastCommit = &hash
		page.GitLastAuthor = &author
		page.UpdatedAtGit = &date
	}
	if a.CreatedBy != nil {
		createdBy := *a.CreatedBy
		page.CreatedBy = &createdBy
	}
}

func (a DocumentAttributes) validate() error {
	if a.Status != nil && !a.Status.Valid() {
		return ErrStatusInvalid
	}
	return nil
}
