package localdocs_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-docsync/internal/localdocs"
	"github.com/goliatone/go-docsync/internal/pages"
)

func docsFS() fstest.MapFS {
	return fstest.MapFS{
		"README.md": {Data: []byte("top level files are ignored")},
		"guides/_meta.json": {Data: []byte(`{
			"title": "User Guides",
			"icon": "book",
			"order": 2,
			"items": {
				"basics": {"title": "The Basics", "order": 5},
				"install": {"title": "Installation", "order": 1}
			}
		}`)},
		"guides/install.md":          {Data: []byte("---\ntitle: Install\norder: 9\n---\nRun it.")},
		"guides/basics/_meta.json":   {Data: []byte(`{"order": 3, "is_expanded": false}`)},
		"guides/basics/first-run.md": {Data: []byte("First steps.")},
		"api/intro.md":               {Data: []byte("---\nstatus: draft\n---\nIntro.")},
		"api/notes.txt":              {Data: []byte("not markdown")},
	}
}

func find(t *testing.T, store pages.Store, kind pages.Kind, slug string) *pages.Page {
	t.Helper()
	records, err := store.List(context.Background(), pages.Filter{Kind: kind, Slug: &slug})
	if err != nil {
		t.Fatalf("list %s %s: %v", kind, slug, err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one %s %q, got %d", kind, slug, len(records))
	}
	return records[0]
}

func TestImportBuildsTreeFromFolders(t *testing.T) {
	store := pages.NewMemoryStore()
	imp := localdocs.New(store)

	stats := imp.Import(context.Background(), docsFS())
	if len(stats.Errors) != 0 {
		t.Fatalf("unexpected errors %v", stats.Errors)
	}
	if stats.Navigation != 2 || stats.Groups != 1 || stats.Documents != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	guides := find(t, store, pages.KindNavigation, "guides")
	if guides.Title != "User Guides" || guides.Order != 2 || guides.Icon == nil || *guides.Icon != "book" {
		t.Fatalf("unexpected guides navigation %+v", guides)
	}
	if guides.Origin != pages.OriginCMS {
		t.Fatalf("expected cms origin, got %q", guides.Origin)
	}

	api := find(t, store, pages.KindNavigation, "api")
	if api.Icon == nil || *api.Icon != localdocs.DefaultNavigationIcon || api.Title != "Api" {
		t.Fatalf("expected default icon and humanized title, got %+v", api)
	}

	basics := find(t, store, pages.KindGroup, "basics")
	if basics.Title != "The Basics" || basics.Order != 5 || basics.IsExpanded {
		t.Fatalf("expected parent item to win for the group, got %+v", basics)
	}

	install := find(t, store, pages.KindDocument, "install")
	if install.Title != "Installation" || install.Order != 1 {
		t.Fatalf("expected parent item to win for the document, got title=%q order=%d", install.Title, install.Order)
	}
	if install.ParentID == nil || *install.ParentID != guides.ID {
		t.Fatalf("expected install under guides")
	}

	first := find(t, store, pages.KindDocument, "first-run")
	if first.Title != "First Run" || first.ParentID == nil || *first.ParentID != basics.ID {
		t.Fatalf("unexpected nested document %+v", first)
	}

	intro := find(t, store, pages.KindDocument, "intro")
	if intro.Status != pages.StatusDraft {
		t.Fatalf("expected front-matter status, got %q", intro.Status)
	}
}

func TestImportIsIdempotent(t *testing.T) {
	store := pages.NewMemoryStore()
	imp := localdocs.New(store)
	ctx := context.Background()

	imp.Import(ctx, docsFS())
	before := store.Len()
	imp.Import(ctx, docsFS())
	if store.Len() != before {
		t.Fatalf("expected re-import to update in place, got %d then %d pages", before, store.Len())
	}
}

func TestImportCollectsNavigationErrors(t *testing.T) {
	store := pages.NewMemoryStore()
	imp := localdocs.New(store)
	fsys := fstest.MapFS{
		"broken/page.md": {Data: []byte("ok")},
		"broken/.md":     {Data: []byte("no slug")},
		"good/page.md":   {Data: []byte("ok")},
	}

	stats := imp.Import(context.Background(), fsys)
	if len(stats.Errors) != 1 {
		t.Fatalf("expected one collected error, got %v", stats.Errors)
	}
	if stats.Navigation != 1 || stats.Documents != 1 {
		t.Fatalf("expected only the good navigation to count, got %+v", stats)
	}
	find(t, store, pages.KindNavigation, "good")

	slug := "broken"
	records, _ := store.List(context.Background(), pages.Filter{Kind: pages.KindNavigation, Slug: &slug})
	if len(records) != 0 {
		t.Fatalf("expected the failed navigation to be rolled back")
	}
}

func TestHasDocumentation(t *testing.T) {
	if !localdocs.HasDocumentation(docsFS()) {
		t.Fatalf("expected docs folder with navigations")
	}
	if localdocs.HasDocumentation(fstest.MapFS{"README.md": {Data: []byte("x")}}) {
		t.Fatalf("expected folder without subdirectories to report false")
	}
	if localdocs.HasDocumentation(nil) {
		t.Fatalf("expected nil file system to report false")
	}
}
