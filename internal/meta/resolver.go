package meta

import (
	"context"
	"path"
	"strings"

	"github.com/goliatone/go-docsync/internal/markdown"
)

// Provider yields one metadata source. Providers are consulted in order and
// the first one that sets a field wins.
type Provider func(ctx context.Context) Entry

// Chain merges providers by priority, stopping once every field is set.
func Chain(ctx context.Context, providers ...Provider) Entry {
	var merged Entry
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		merged.fill(provider(ctx))
		if merged.complete() {
			break
		}
	}
	return merged
}

// Static wraps a fixed entry as a Provider.
func Static(entry Entry) Provider {
	return func(context.Context) Entry { return entry }
}

// Resolver computes container and document metadata from descriptors.
type Resolver struct {
	store Store
	root  string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverRoot sets the docs root used to locate descriptors.
func WithResolverRoot(root string) ResolverOption {
	return func(r *Resolver) {
		if trimmed := cleanDir(root); trimmed != "" {
			r.root = trimmed
		}
	}
}

// NewResolver constructs a Resolver. A nil store resolves everything to defaults.
func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	if store == nil {
		store = NewMapStore(RootDescriptor{}, nil)
	}
	r := &Resolver{store: store, root: markdown.DefaultRoot}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Navigation resolves a top-level container: root descriptor entry, then the
// navigation's own descriptor, then defaults.
func (r *Resolver) Navigation(ctx context.Context, slug string) Entry {
	return Chain(ctx,
		func(ctx context.Context) Entry {
			entry, _ := r.store.Root(ctx).Lookup(slug)
			return entry
		},
		r.own([]string{slug}),
		Static(defaults(slug)),
	)
}

// Group resolves a nested container addressed by its full segment path,
// navigation first: the parent's items entry, then the group's own
// descriptor, then defaults.
func (r *Resolver) Group(ctx context.Context, segments []string) Entry {
	if len(segments) == 0 {
		return Entry{}
	}
	slug := segments[len(segments)-1]
	return Chain(ctx,
		r.item(segments[:len(segments)-1], slug),
		r.own(segments),
		Static(defaults(slug)),
	)
}

// Document resolves title and order for a parsed document: the parent's items
// entry, then front-matter, then parser defaults. Only title and order are
// taken from the descriptor.
func (r *Resolver) Document(ctx context.Context, doc markdown.ParsedDocument) Entry {
	parents := doc.Ancestors()
	keys := []string{doc.Slug}
	if n := len(doc.Hierarchy); n > 0 && doc.Hierarchy[n-1] != doc.Slug {
		keys = append(keys, doc.Hierarchy[n-1])
	}

	providers := make([]Provider, 0, len(keys)+2)
	for _, key := range keys {
		item := r.item(parents, key)
		providers = append(providers, func(ctx context.Context) Entry {
			entry := item(ctx)
			return Entry{Title: entry.Title, Order: entry.Order}
		})
	}

	frontMatter := Entry{}
	if doc.HasTitle {
		frontMatter.Title = &doc.Title
	}
	if doc.HasOrder {
		frontMatter.Order = &doc.Order
	}
	title, order := doc.Title, 0
	providers = append(providers,
		Static(frontMatter),
		Static(Entry{Title: &title, Order: &order}),
	)

	resolved := Chain(ctx, providers...)
	return Entry{Title: resolved.Title, Order: resolved.Order}
}

// Dir returns the repository directory of a segment path.
func (r *Resolver) Dir(segments []string) string {
	return path.Join(append([]string{r.root}, segments...)...)
}

func (r *Resolver) own(segments []string) Provider {
	return func(ctx context.Context) Entry {
		return r.store.Descriptor(ctx, r.Dir(segments)).Entry
	}
}

func (r *Resolver) item(parent []string, slug string) Provider {
	return func(ctx context.Context) Entry {
		if len(parent) == 0 {
			return Entry{}
		}
		entry, _ := r.store.Descriptor(ctx, r.Dir(parent)).Item(slug)
		return entry
	}
}

func defaults(slug string) Entry {
	title := markdown.Humanize(strings.TrimSpace(slug))
	order := 0
	isDefault := false
	return Entry{Title: &title, Order: &order, IsDefault: &isDefault}
}
