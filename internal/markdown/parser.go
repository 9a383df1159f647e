package markdown

import (
	"path"
	"strings"

	"github.com/goliatone/go-slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultRoot is the repository folder that holds documentation.
const DefaultRoot = "docs"

// Document statuses accepted from front-matter.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// ParsedDocument is the structured view of one repository file.
type ParsedDocument struct {
	Title          string
	Slug           string
	Order          int
	Status         string
	SEOTitle       *string
	SEODescription *string
	// Hierarchy lists the segments between the docs root and the file,
	// ending with the file's own slug segment.
	Hierarchy []string
	Content   string
	GitPath   string

	// HasTitle and HasOrder report whether the values came from front-matter.
	HasTitle bool
	HasOrder bool
}

// Ancestors returns the hierarchy without the document's own segment.
func (d ParsedDocument) Ancestors() []string {
	if len(d.Hierarchy) == 0 {
		return nil
	}
	return d.Hierarchy[:len(d.Hierarchy)-1]
}

// Parser parses documents relative to a docs root.
type Parser struct {
	root string
}

// Option configures a Parser.
type Option func(*Parser)

// WithRoot overrides the docs root stripped from hierarchies.
func WithRoot(root string) Option {
	return func(p *Parser) {
		if trimmed := strings.Trim(strings.TrimSpace(root), "/"); trimmed != "" {
			p.root = trimmed
		}
	}
}

// NewParser constructs a Parser rooted at DefaultRoot unless overridden.
func NewParser(opts ...Option) *Parser {
	p := &Parser{root: DefaultRoot}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Root returns the configured docs root.
func (p *Parser) Root() string {
	return p.root
}

// Parse uses a parser rooted at DefaultRoot.
func Parse(source []byte, filePath string) ParsedDocument {
	return NewParser().Parse(source, filePath)
}

// Parse never fails. Missing or malformed front-matter leaves every field at
// its default and keeps the whole source as the body.
func (p *Parser) Parse(source []byte, filePath string) ParsedDocument {
	base := BaseName(filePath)
	doc := ParsedDocument{
		Title:     Humanize(base),
		Slug:      base,
		Status:    StatusPublished,
		Hierarchy: p.Hierarchy(filePath),
		Content:   string(source),
		GitPath:   filePath,
	}

	fm, body, err := ParseFrontMatter(source)
	if err != nil {
		return doc
	}
	doc.Content = string(body)

	if fm.Title != "" {
		title := fm.Title
		doc.Title = title
		doc.SEOTitle = &title
		doc.HasTitle = true
	}
	if fm.Description != "" {
		description := fm.Description
		doc.SEODescription = &description
	}
	if fm.Slug != "" {
		doc.Slug = normalizeSlug(fm.Slug)
	}
	if fm.Order != nil {
		doc.Order = *fm.Order
		doc.HasOrder = true
	}
	if ValidStatus(fm.Status) {
		doc.Status = fm.Status
	}
	return doc
}

// Hierarchy splits filePath into the segments below the docs root. The last
// segment loses its extension.
func (p *Parser) Hierarchy(filePath string) []string {
	segments := splitPath(filePath)
	if len(segments) > 0 && segments[0] == p.root {
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return nil
	}
	last := len(segments) - 1
	segments[last] = strings.TrimSuffix(segments[last], path.Ext(segments[last]))
	return segments
}

// ValidStatus reports whether status is one of the known document statuses.
func ValidStatus(status string) bool {
	switch status {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	default:
		return false
	}
}

// BaseName returns the file name without directory or extension.
func BaseName(filePath string) string {
	base := path.Base(strings.ReplaceAll(filePath, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// Humanize turns a slug into a display title: "getting-started" becomes
// "Getting Started".
func Humanize(value string) string {
	spaced := strings.NewReplacer("-", " ", "_", " ").Replace(value)
	spaced = strings.Join(strings.Fields(spaced), " ")
	if spaced == "" {
		return ""
	}
	// Casers carry state and are not shared.
	return cases.Title(language.English).String(spaced)
}

func splitPath(filePath string) []string {
	raw := strings.Split(strings.ReplaceAll(filePath, "\\", "/"), "/")
	segments := make([]string, 0, len(raw))
	for _, segment := range raw {
		if segment == "" || segment == "." {
			continue
		}
		segments = append(segments, segment)
	}
	return segments
}

func normalizeSlug(value string) string {
	normalized, err := slug.Normalize(value)
	if err != nil || normalized == "" {
		return value
	}
	return normalized
}
