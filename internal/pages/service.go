package pages

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-docsync/internal/identity"
	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

// IDGenerator derives the identifier of a new page from its identity key.
type IDGenerator func(kind Kind, origin Origin, key string) uuid.UUID

// CleanupCounts reports how many pages a cleanup removed per kind.
type CleanupCounts struct {
	Documents  int
	Groups     int
	Navigation int
}

// Total returns the number of removed pages.
func (c CleanupCounts) Total() int {
	return c.Documents + c.Groups + c.Navigation
}

// Service creates, updates and prunes pages keyed by their identity tuple.
type Service struct {
	repo   Repository
	now    func() time.Time
	ids    IDGenerator
	logger interfaces.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNow overrides the clock used for timestamps.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how new page IDs are derived.
func WithIDGenerator(ids IDGenerator) ServiceOption {
	return func(s *Service) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs a Service over repo.
func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
		ids: func(kind Kind, origin Origin, key string) uuid.UUID {
			return identity.PageUUID(string(kind), string(origin), key)
		},
		logger: logging.NoOp(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// WithRepository returns a copy of the service bound to repo, typically a
// transaction scoped repository.
func (s *Service) WithRepository(repo Repository) *Service {
	clone := *s
	clone.repo = repo
	return &clone
}

// Savepoint runs fn with a service whose writes are undone if fn fails,
// leaving any surrounding transaction usable. Repositories without
// savepoint support run fn directly.
func (s *Service) Savepoint(ctx context.Context, fn func(ctx context.Context, svc *Service) error) error {
	sp, ok := s.repo.(Savepointer)
	if !ok {
		return fn(ctx, s)
	}
	return sp.Savepoint(ctx, func(ctx context.Context, repo Repository) error {
		return fn(ctx, s.WithRepository(repo))
	})
}

// SyncNavigation upserts a top-level container identified by (slug, origin).
func (s *Service) SyncNavigation(ctx context.Context, slug string, attrs NavigationAttributes) (*Page, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrSlugRequired
	}
	origin := originOrDefault(attrs.Origin)
	return s.upsert(ctx, identityFilter(KindNavigation, origin, slug, nil), func(page *Page) {
		containerDefaults(page, KindNavigation, slug)
		attrs.apply(page)
		page.Slug = slug
		page.ParentID = nil
	})
}

// SyncGroup upserts a nested container identified by (slug, origin, parent).
func (s *Service) SyncGroup(ctx context.Context, slug string, parent *Page, attrs GroupAttributes) (*Page, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrSlugRequired
	}
	if parent == nil {
		return nil, ErrParentRequired
	}
	origin := originOrDefault(attrs.Origin)
	parentID := parent.ID
	return s.upsert(ctx, identityFilter(KindGroup, origin, slug, &parentID), func(page *Page) {
		containerDefaults(page, KindGroup, slug)
		attrs.apply(page)
		page.Slug = slug
		page.ParentID = &parentID
	})
}

// SyncDocument upserts a document. Git documents with a path are identified
// by (git_path, git) so they survive slug and parent changes; others by
// (slug, origin, parent). Slug and parent are rewritten either way.
func (s *Service) SyncDocument(ctx context.Context, slug string, parent *Page, attrs DocumentAttributes) (*Page, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrSlugRequired
	}
	if err := attrs.validate(); err != nil {
		return nil, err
	}
	var parentID *uuid.UUID
	if parent != nil {
		id := parent.ID
		parentID = &id
	}

	origin := originOrDefault(attrs.Origin)
	filter := identityFilter(KindDocument, origin, slug, parentID)
	if gitPath, ok := attrs.gitIdentity(); ok {
		filter = Filter{Kind: KindDocument, Origin: OriginGit, GitPath: &gitPath}
	}

	return s.upsert(ctx, filter, func(page *Page) {
		documentDefaults(page, slug)
		attrs.apply(page)
		page.Slug = slug
		page.ParentID = parentID
	})
}

// CleanupMissingPages deletes documents of origin whose git path is not in
// keptPaths, then prunes containers left without children.
func (s *Service) CleanupMissingPages(ctx context.Context, origin Origin, keptPaths []string) (CleanupCounts, error) {
	kept := make(map[string]struct{}, len(keptPaths))
	for _, path := range keptPaths {
		kept[path] = struct{}{}
	}

	documents, err := s.repo.List(ctx, Filter{Kind: KindDocument, Origin: origin})
	if err != nil {
		return CleanupCounts{}, err
	}
	stale := make([]uuid.UUID, 0)
	for _, doc := range documents {
		if doc.GitPath == nil {
			continue
		}
		if _, ok := kept[*doc.GitPath]; !ok {
			stale = append(stale, doc.ID)
		}
	}

	deleted, err := s.repo.Delete(ctx, stale...)
	if err != nil {
		return CleanupCounts{}, err
	}
	counts, err := s.CleanupOrphanedContainers(ctx, origin)
	if err != nil {
		return CleanupCounts{}, err
	}
	counts.Documents = deleted
	s.logger.Debug("pages.cleanup.missing", "origin", origin, "documents", counts.Documents, "groups", counts.Groups, "navigation", counts.Navigation)
	return counts, nil
}

// CleanupOrphanedContainers deletes childless groups of origin until a pass
// removes nothing, then deletes childless navigations.
func (s *Service) CleanupOrphanedContainers(ctx context.Context, origin Origin) (CleanupCounts, error) {
	var counts CleanupCounts
	for {
		deleted, err := s.deleteChildless(ctx, KindGroup, origin)
		if err != nil {
			return counts, err
		}
		if deleted == 0 {
			break
		}
		counts.Groups += deleted
	}

	deleted, err := s.deleteChildless(ctx, KindNavigation, origin)
	if err != nil {
		return counts, err
	}
	counts.Navigation = deleted
	return counts, nil
}

// DeleteByGitPath removes the document of origin stored under path.
func (s *Service) DeleteByGitPath(ctx context.Context, origin Origin, path string) (bool, error) {
	page, err := s.repo.Find(ctx, Filter{Kind: KindDocument, Origin: origin, GitPath: &path})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	deleted, err := s.repo.Delete(ctx, page.ID)
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

// DeleteGitPagesUpdatedAfter removes git pages whose commit timestamp is
// strictly later than cutoff.
func (s *Service) DeleteGitPagesUpdatedAfter(ctx context.Context, cutoff time.Time) (int, error) {
	cutoff = cutoff.UTC()
	records, err := s.repo.List(ctx, Filter{Origin: OriginGit, UpdatedAfterGit: &cutoff})
	if err != nil {
		return 0, err
	}
	return s.repo.Delete(ctx, pageIDs(records)...)
}

// List exposes the underlying repository listing.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Page, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) deleteChildless(ctx context.Context, kind Kind, origin Origin) (int, error) {
	records, err := s.repo.List(ctx, Filter{Kind: kind, Origin: origin, Childless: true})
	if err != nil {
		return 0, err
	}
	return s.repo.Delete(ctx, pageIDs(records)...)
}

func (s *Service) upsert(ctx context.Context, filter Filter, mutate func(*Page)) (*Page, error) {
	now := s.now()
	existing, err := s.repo.Find(ctx, filter)
	switch {
	case err == nil:
		mutate(existing)
		existing.UpdatedAt = now
		return s.repo.Update(ctx, existing)
	case IsNotFound(err):
		page := &Page{}
		mutate(page)
		page.ID = s.ids(page.Kind, page.Origin, identityKey(filter, page))
		page.CreatedAt = now
		page.UpdatedAt = now
		return s.repo.Create(ctx, page)
	default:
		return nil, err
	}
}

func identityKey(filter Filter, page *Page) string {
	if filter.GitPath != nil {
		return "path:" + *filter.GitPath
	}
	parent := ""
	if page.ParentID != nil {
		parent = page.ParentID.String()
	}
	return identity.ScopedKey("slug", page.Slug, parent)
}

func pageIDs(records []*Page) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	return ids
}
