package pages

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows page lookups. Zero fields do not constrain the query.
type Filter struct {
	Kind     Kind
	Origin   Origin
	Slug     *string
	ParentID *uuid.UUID
	// RootOnly matches pages without a parent and overrides ParentID.
	RootOnly bool
	GitPath  *string
	// UpdatedAfterGit matches pages whose commit timestamp is strictly later.
	UpdatedAfterGit *time.Time
	// Childless matches pages that no other page points to as parent.
	Childless bool
}

// Repository persists pages.
type Repository interface {
	// Find returns the first page matching filter or a *PageNotFoundError.
	Find(ctx context.Context, filter Filter) (*Page, error)
	List(ctx context.Context, filter Filter) ([]*Page, error)
	Create(ctx context.Context, page *Page) (*Page, error)
	Update(ctx context.Context, page *Page) (*Page, error)
	// Delete removes the pages by ID and returns how many existed.
	Delete(ctx context.Context, ids ...uuid.UUID) (int, error)
}

// Store is a Repository that can scope work to a transaction.
type Store interface {
	Repository
	// RunInTx runs fn against a repository bound to one transaction. Changes
	// are discarded when fn returns an error.
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

// Savepointer is implemented by repositories that can undo a slice of work
// without ending the surrounding transaction.
type Savepointer interface {
	Savepoint(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

func identityFilter(kind Kind, origin Origin, slug string, parentID *uuid.UUID) Filter {
	filter := Filter{Kind: kind, Origin: origin, Slug: &slug}
	if parentID == nil {
		filter.RootOnly = true
	} else {
		filter.ParentID = parentID
	}
	return filter
}
