package pages

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps pages in memory for tests and dry runs.
type MemoryStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	pages map[uuid.UUID]*Page
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pages: make(map[uuid.UUID]*Page)}
}

func (m *MemoryStore) Find(ctx context.Context, filter Filter) (*Page, error) {
	records, err := m.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &PageNotFoundError{Key: filterKey(filter)}
	}
	return records[0], nil
}

func (m *MemoryStore) List(_ context.Context, filter Filter) ([]*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var parents map[uuid.UUID]struct{}
	if filter.Childless {
		parents = make(map[uuid.UUID]struct{}, len(m.pages))
		for _, page := range m.pages {
			if page.ParentID != nil {
				parents[*page.ParentID] = struct{}{}
			}
		}
	}

	out := make([]*Page, 0)
	for _, page := range m.pages {
		if !matches(page, filter) {
			continue
		}
		if filter.Childless {
			if _, ok := parents[page.ID]; ok {
				continue
			}
		}
		out = append(out, clonePage(page))
	}
	sortPages(out)
	return out, nil
}

func (m *MemoryStore) Create(_ context.Context, page *Page) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := clonePage(page)
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	m.pages[copied.ID] = copied
	return clonePage(copied), nil
}

func (m *MemoryStore) Update(_ context.Context, page *Page) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[page.ID]; !ok {
		return nil, &PageNotFoundError{Key: page.ID.String()}
	}
	copied := clonePage(page)
	m.pages[copied.ID] = copied
	return clonePage(copied), nil
}

// Delete also clears the parent of orphaned children, matching the
// ON DELETE SET NULL constraint of the SQL schema.
func (m *MemoryStore) Delete(_ context.Context, ids ...uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := m.pages[id]; ok {
			delete(m.pages, id)
			removed[id] = struct{}{}
		}
	}
	for _, page := range m.pages {
		if page.ParentID == nil {
			continue
		}
		if _, ok := removed[*page.ParentID]; ok {
			page.ParentID = nil
		}
	}
	return len(removed), nil
}

// RunInTx serialises transactions and restores a snapshot when fn fails.
func (m *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snapshot := make(map[uuid.UUID]*Page, len(m.pages))
	for id, page := range m.pages {
		snapshot[id] = clonePage(page)
	}
	m.mu.RUnlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.pages = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// Savepoint restores the pages fn touched when it fails. It does not take
// the transaction lock, so it nests inside RunInTx.
func (m *MemoryStore) Savepoint(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	m.mu.RLock()
	snapshot := make(map[uuid.UUID]*Page, len(m.pages))
	for id, page := range m.pages {
		snapshot[id] = clonePage(page)
	}
	m.mu.RUnlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.pages = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// Len returns the number of stored pages.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pages)
}

func matches(page *Page, filter Filter) bool {
	if filter.Kind != "" && page.Kind != filter.Kind {
		return false
	}
	if filter.Origin != "" && page.Origin != filter.Origin {
		return false
	}
	if filter.Slug != nil && page.Slug != *filter.Slug {
		return false
	}
	if filter.RootOnly {
		if page.ParentID != nil {
			return false
		}
	} else if filter.ParentID != nil {
		if page.ParentID == nil || *page.ParentID != *filter.ParentID {
			return false
		}
	}
	if filter.GitPath != nil && (page.GitPath == nil || *page.GitPath != *filter.GitPath) {
		return false
	}
	if filter.UpdatedAfterGit != nil {
		if page.UpdatedAtGit == nil || !page.UpdatedAtGit.After(*filter.UpdatedAfterGit) {
			return false
		}
	}
	return true
}

func sortPages(records []*Page) {
	slices.SortFunc(records, func(a, b *Page) int {
		return cmp.Or(
			cmp.Compare(a.Order, b.Order),
			cmp.Compare(a.Slug, b.Slug),
			cmp.Compare(a.ID.String(), b.ID.String()),
		)
	})
}

func filterKey(filter Filter) string {
	switch {
	case filter.GitPath != nil:
		return *filter.GitPath
	case filter.Slug != nil:
		return *filter.Slug
	default:
		return string(filter.Kind)
	}
}
