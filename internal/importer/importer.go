// Package importer turns parsed repository documents into persisted pages,
// creating their navigation and group ancestors on demand.
package importer

import (
	"context"
	"fmt"
	"path"

	"github.com/goliatone/go-docsync/internal/assets"
	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/internal/markdown"
	"github.com/goliatone/go-docsync/internal/meta"
	"github.com/goliatone/go-docsync/internal/pages"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

// Importer imports git documents. One Importer serves one sync.
type Importer struct {
	pages    *pages.Service
	resolver *meta.Resolver
	rewriter *assets.Rewriter
	root     string
	logger   interfaces.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithRoot sets the docs root used for container git paths.
func WithRoot(root string) Option {
	return func(i *Importer) {
		if root != "" {
			i.root = root
		}
	}
}

// WithLogger sets the importer logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithPages returns a copy of the importer writing through svc.
func (i *Importer) WithPages(svc *pages.Service) *Importer {
	clone := *i
	clone.pages = svc
	return &clone
}

// New constructs an Importer. A nil resolver resolves defaults only and a nil
// rewriter leaves bodies untouched.
func New(svc *pages.Service, resolver *meta.Resolver, rewriter *assets.Rewriter, opts ...Option) *Importer {
	if resolver == nil {
		resolver = meta.NewResolver(nil)
	}
	i := &Importer{
		pages:    svc,
		resolver: resolver,
		rewriter: rewriter,
		root:     markdown.DefaultRoot,
		logger:   logging.NoOp(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// Import persists doc under its ancestor chain and stamps it with commit.
func (i *Importer) Import(ctx context.Context, doc markdown.ParsedDocument, commit pages.Commit) (*pages.Page, error) {
	ancestors := doc.Ancestors()

	var parent *pages.Page
	for depth := range ancestors {
		segments := ancestors[:depth+1]
		container, err := i.syncContainer(ctx, segments, parent)
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", doc.GitPath, err)
		}
		parent = container
	}

	content := doc.Content
	if i.rewriter != nil {
		content = i.rewriter.Rewrite(content, doc.GitPath)
	}
	resolved := i.resolver.Document(ctx, doc)
	status := pages.Status(doc.Status)
	gitPath := doc.GitPath

	page, err := i.pages.SyncDocument(ctx, doc.Slug, parent, pages.DocumentAttributes{
		Origin:         pages.OriginGit,
		Title:          resolved.Title,
		Content:        &content,
		Status:         &status,
		Order:          resolved.Order,
		SEOTitle:       doc.SEOTitle,
		SEODescription: doc.SEODescription,
		GitPath:        &gitPath,
		Commit:         &commit,
	})
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", doc.GitPath, err)
	}
	logging.WithSyncContext(i.logger, doc.GitPath, commit.Hash, "import").
		Debug("importer.document.synced", "page_id", page.ID, "slug", page.Slug)
	return page, nil
}

// DeleteRemovedPages deletes git documents missing from keptPaths and prunes
// the containers they leave empty.
func (i *Importer) DeleteRemovedPages(ctx context.Context, keptPaths []string) (pages.CleanupCounts, error) {
	return i.pages.CleanupMissingPages(ctx, pages.OriginGit, keptPaths)
}

// CleanupOrphanedPages prunes git containers without children.
func (i *Importer) CleanupOrphanedPages(ctx context.Context) (pages.CleanupCounts, error) {
	return i.pages.CleanupOrphanedContainers(ctx, pages.OriginGit)
}

func (i *Importer) syncContainer(ctx context.Context, segments []string, parent *pages.Page) (*pages.Page, error) {
	slug := segments[len(segments)-1]
	gitPath := path.Join(append([]string{i.root}, segments...)...)

	if parent == nil {
		entry := i.resolver.Navigation(ctx, slug)
		return i.pages.SyncNavigation(ctx, slug, pages.NavigationAttributes{
			ContainerAttributes: containerAttributes(entry, gitPath),
			IsDefault:           entry.IsDefault,
		})
	}

	entry := i.resolver.Group(ctx, segments)
	return i.pages.SyncGroup(ctx, slug, parent, pages.GroupAttributes{
		ContainerAttributes: containerAttributes(entry, gitPath),
	})
}

func containerAttributes(entry meta.Entry, gitPath string) pages.ContainerAttributes {
	return pages.ContainerAttributes{
		Origin:      pages.OriginGit,
		Title:       entry.Title,
		Description: entry.Description,
		Icon:        entry.Icon,
		Order:       entry.Order,
		IsExpanded:  entry.IsExpanded,
		GitPath:     &gitPath,
	}
}
