// Package localdocs imports a documentation folder from the local file
// system as CMS authored pages.
package localdocs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/internal/markdown"
	"github.com/goliatone/go-docsync/internal/meta"
	"github.com/goliatone/go-docsync/internal/pages"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

// DefaultNavigationIcon is applied to navigations without an icon.
const DefaultNavigationIcon = "file-text"

// Stats summarises one import.
type Stats struct {
	Navigation int      `json:"navigation"`
	Groups     int      `json:"groups"`
	Documents  int      `json:"documents"`
	Errors     []string `json:"errors"`
}

// Importer walks a docs folder: top-level directories become navigations,
// nested directories groups and markdown files documents.
type Importer struct {
	store          pages.Store
	pageOpts       []pages.ServiceOption
	descriptorName string
	logger         interfaces.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithDescriptorName overrides the per-directory descriptor file name.
func WithDescriptorName(name string) Option {
	return func(i *Importer) {
		if strings.TrimSpace(name) != "" {
			i.descriptorName = strings.TrimSpace(name)
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

// WithPageOptions forwards options to the page service.
func WithPageOptions(opts ...pages.ServiceOption) Option {
	return func(i *Importer) {
		i.pageOpts = append(i.pageOpts, opts...)
	}
}

// New constructs an Importer writing to store.
func New(store pages.Store, opts ...Option) *Importer {
	i := &Importer{
		store:          store,
		descriptorName: meta.DefaultDescriptorName,
		logger:         logging.NoOp(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// HasDocumentation reports whether fsys holds at least one navigation folder.
func HasDocumentation(fsys fs.FS) bool {
	if fsys == nil {
		return false
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return true
		}
	}
	return false
}

// Import imports every navigation folder of fsys. Each navigation is
// written in its own transaction; failures are collected in Stats.Errors
// and do not stop the remaining navigations.
func (i *Importer) Import(ctx context.Context, fsys fs.FS) Stats {
	stats := Stats{Errors: []string{}}
	if fsys == nil {
		stats.Errors = append(stats.Errors, "Documentation directory not found")
		return stats
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("Documentation directory not found: %v", err))
		return stats
	}

	descriptors := meta.NewLazyStore(fileLoader(fsys),
		meta.WithDescriptorName(i.descriptorName),
		meta.WithStoreLogger(i.logger),
	)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			stats.Errors = append(stats.Errors, err.Error())
			return stats
		}
		var navStats Stats
		err := i.store.RunInTx(ctx, func(ctx context.Context, repo pages.Repository) error {
			navStats = Stats{}
			w := &walker{
				fsys:        fsys,
				pages:       pages.NewService(repo, i.pageOpts...),
				descriptors: descriptors,
				stats:       &navStats,
			}
			return w.navigation(ctx, entry.Name())
		})
		if err != nil {
			msg := fmt.Sprintf("Failed to import %s: %v", entry.Name(), err)
			i.logger.Error("localdocs.navigation.failed", "navigation", entry.Name(), "error", err)
			stats.Errors = append(stats.Errors, msg)
			continue
		}
		stats.Navigation += navStats.Navigation
		stats.Groups += navStats.Groups
		stats.Documents += navStats.Documents
	}

	i.logger.Info("localdocs.import.completed",
		"navigation", stats.Navigation,
		"groups", stats.Groups,
		"documents", stats.Documents,
		"errors", len(stats.Errors),
	)
	return stats
}

type walker struct {
	fsys        fs.FS
	pages       *pages.Service
	descriptors *meta.LazyStore
	stats       *Stats
}

func (w *walker) navigation(ctx context.Context, slug string) error {
	descriptor := w.descriptors.Descriptor(ctx, slug)
	icon := DefaultNavigationIcon
	if descriptor.Icon != nil {
		icon = *descriptor.Icon
	}
	order := 0
	if descriptor.Order != nil {
		order = *descriptor.Order
	}
	isDefault := descriptor.IsDefault != nil && *descriptor.IsDefault

	nav, err := w.pages.SyncNavigation(ctx, slug, pages.NavigationAttributes{
		ContainerAttributes: pages.ContainerAttributes{
			Origin:      pages.OriginCMS,
			Title:       descriptor.Title,
			Description: descriptor.Description,
			Icon:        &icon,
			Order:       &order,
		},
		IsDefault: &isDefault,
	})
	if err != nil {
		return err
	}
	w.stats.Navigation++
	return w.children(ctx, slug, nav, descriptor)
}

func (w *walker) children(ctx context.Context, dir string, parent *pages.Page, descriptor meta.Descriptor) error {
	entries, err := fs.ReadDir(w.fsys, dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := w.group(ctx, path.Join(dir, entry.Name()), parent, descriptor); err != nil {
				return err
			}
		}
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == w.descriptors.DescriptorName() || !strings.HasSuffix(name, ".md") {
			continue
		}
		if err := w.document(ctx, path.Join(dir, name), parent, descriptor); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) group(ctx context.Context, dir string, parent *pages.Page, parentDescriptor meta.Descriptor) error {
	slug := path.Base(dir)
	descriptor := w.descriptors.Descriptor(ctx, dir)
	item, _ := parentDescriptor.Item(slug)

	order := 0
	switch {
	case item.Order != nil:
		order = *item.Order
	case descriptor.Order != nil:
		order = *descriptor.Order
	}
	title := item.Title
	if title == nil {
		title = descriptor.Title
	}
	expanded := true
	if descriptor.IsExpanded != nil {
		expanded = *descriptor.IsExpanded
	}

	group, err := w.pages.SyncGroup(ctx, slug, parent, pages.GroupAttributes{
		ContainerAttributes: pages.ContainerAttributes{
			Origin:      pages.OriginCMS,
			Title:       title,
			Description: descriptor.Description,
			Icon:        descriptor.Icon,
			Order:       &order,
			IsExpanded:  &expanded,
		},
	})
	if err != nil {
		return err
	}
	w.stats.Groups++
	return w.children(ctx, dir, group, descriptor)
}

func (w *walker) document(ctx context.Context, filePath string, parent *pages.Page, parentDescriptor meta.Descriptor) error {
	source, err := fs.ReadFile(w.fsys, filePath)
	if err != nil {
		return err
	}
	name := path.Base(filePath)
	slug := markdown.BaseName(name)
	doc := markdown.Parse(source, name)

	item, _ := parentDescriptor.Item(slug)
	title := doc.Title
	if item.Title != nil {
		title = *item.Title
	}
	order := doc.Order
	if item.Order != nil {
		order = *item.Order
	}
	status := pages.Status(doc.Status)
	content := doc.Content

	if _, err := w.pages.SyncDocument(ctx, slug, parent, pages.DocumentAttributes{
		Origin:         pages.OriginCMS,
		Title:          &title,
		Content:        &content,
		Status:         &status,
		Order:          &order,
		SEOTitle:       doc.SEOTitle,
		SEODescription: doc.SEODescription,
	}); err != nil {
		return err
	}
	w.stats.Documents++
	return nil
}

func fileLoader(fsys fs.FS) meta.Loader {
	return func(_ context.Context, filePath string) ([]byte, bool, error) {
		data, err := fs.ReadFile(fsys, filePath)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	}
}
