package markdown

import (
	"os"
	"reflect"
	"strings"
	"testing"
)

func TestParseFrontMatterDocument(t *testing.T) {
	data := readFixture(t, "testdata/install.md")

	doc := Parse(data, "docs/guides/setup/install.md")

	if doc.Title != "Install" {
		t.Fatalf("expected title Install, got %q", doc.Title)
	}
	if doc.Slug != "install" {
		t.Fatalf("expected slug install, got %q", doc.Slug)
	}
	if doc.Order != 2 || !doc.HasOrder {
		t.Fatalf("expected order 2 from front-matter, got %d (has=%v)", doc.Order, doc.HasOrder)
	}
	if doc.Status != StatusPublished {
		t.Fatalf("expected published status, got %q", doc.Status)
	}
	if want := []string{"guides", "setup", "install"}; !reflect.DeepEqual(doc.Hierarchy, want) {
		t.Fatalf("expected hierarchy %v, got %v", want, doc.Hierarchy)
	}
	if doc.SEOTitle == nil || *doc.SEOTitle != "Install" {
		t.Fatalf("expected seo title from front-matter, got %v", doc.SEOTitle)
	}
	if doc.SEODescription == nil || *doc.SEODescription != "Set up the toolchain" {
		t.Fatalf("expected seo description from front-matter, got %v", doc.SEODescription)
	}
	if strings.Contains(doc.Content, "order: 2") {
		t.Fatalf("expected front-matter stripped from content, got %q", doc.Content)
	}
	if !strings.Contains(doc.Content, "# Install") {
		t.Fatalf("expected body to be preserved, got %q", doc.Content)
	}
	if doc.GitPath != "docs/guides/setup/install.md" {
		t.Fatalf("expected git path verbatim, got %q", doc.GitPath)
	}
}

func TestParseWithoutFrontMatterUsesDefaults(t *testing.T) {
	source := "# Getting started\n\nWelcome."

	doc := Parse([]byte(source), "docs/getting-started/installation.md")

	if doc.Title != "Installation" {
		t.Fatalf("expected title derived from file name, got %q", doc.Title)
	}
	if doc.Slug != "installation" {
		t.Fatalf("expected slug from file name, got %q", doc.Slug)
	}
	if doc.Order != 0 || doc.HasOrder {
		t.Fatalf("expected default order 0, got %d", doc.Order)
	}
	if doc.HasTitle || doc.SEOTitle != nil || doc.SEODescription != nil {
		t.Fatalf("expected no front-matter metadata, got %+v", doc)
	}
	if doc.Content != source {
		t.Fatalf("expected whole source as body, got %q", doc.Content)
	}
	if want := []string{"getting-started", "installation"}; !reflect.DeepEqual(doc.Hierarchy, want) {
		t.Fatalf("expected hierarchy %v, got %v", want, doc.Hierarchy)
	}
}

func TestParseMalformedFrontMatterKeepsSource(t *testing.T) {
	source := "---\ntitle: [unterminated\norder: two\n---\nBody text\n"

	doc := Parse([]byte(source), "docs/guides/broken_file.md")

	if doc.Title != "Broken File" {
		t.Fatalf("expected derived title, got %q", doc.Title)
	}
	if doc.Content != source {
		t.Fatalf("expected entire source retained as body, got %q", doc.Content)
	}
	if doc.Status != StatusPublished {
		t.Fatalf("expected default status, got %q", doc.Status)
	}
}

func TestParseStatusAndSlugOverrides(t *testing.T) {
	source := "---\nstatus: Draft\nslug: custom-slug\norder: \"7\"\n---\nBody"

	doc := Parse([]byte(source), "docs/api/reference.md")

	if doc.Status != StatusDraft {
		t.Fatalf("expected draft status, got %q", doc.Status)
	}
	if doc.Slug != "custom-slug" {
		t.Fatalf("expected custom slug, got %q", doc.Slug)
	}
	if doc.Order != 7 {
		t.Fatalf("expected numeric string order to be accepted, got %d", doc.Order)
	}
	if doc.Title != "Reference" {
		t.Fatalf("expected title derived from file name, got %q", doc.Title)
	}
}

func TestParseIgnoresUnknownStatus(t *testing.T) {
	doc := Parse([]byte("---\nstatus: hidden\n---\nBody"), "docs/api/reference.md")
	if doc.Status != StatusPublished {
		t.Fatalf("expected unknown status to fall back to published, got %q", doc.Status)
	}
}

func TestParserWithCustomRoot(t *testing.T) {
	parser := NewParser(WithRoot("/handbook/"))

	doc := parser.Parse([]byte("Body"), "handbook/team/onboarding.md")

	if want := []string{"team", "onboarding"}; !reflect.DeepEqual(doc.Hierarchy, want) {
		t.Fatalf("expected hierarchy %v, got %v", want, doc.Hierarchy)
	}
	if want := []string{"team"}; !reflect.DeepEqual(doc.Ancestors(), want) {
		t.Fatalf("expected ancestors %v, got %v", want, doc.Ancestors())
	}
}

func TestHumanize(t *testing.T) {
	cases := map[string]string{
		"getting-started": "Getting Started",
		"api_reference":   "Api Reference",
		"intro":           "Intro",
		"--":              "",
	}
	for input, want := range cases {
		if got := Humanize(input); got != want {
			t.Fatalf("Humanize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestParseFrontMatterCustomKeys(t *testing.T) {
	fm, body, err := ParseFrontMatter([]byte("---\ntitle: Guide\nicon: book\n---\nText"))
	if err != nil {
		t.Fatalf("ParseFrontMatter: %v", err)
	}
	if fm.Title != "Guide" {
		t.Fatalf("expected title Guide, got %q", fm.Title)
	}
	if fm.Custom["icon"] != "book" {
		t.Fatalf("expected custom icon key, got %#v", fm.Custom)
	}
	if strings.TrimSpace(string(body)) != "Text" {
		t.Fatalf("expected body Text, got %q", body)
	}
}

func readFixture(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return data
}
