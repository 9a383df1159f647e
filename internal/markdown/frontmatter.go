package markdown

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/adrg/frontmatter"
)

// FrontMatter holds the recognised front-matter keys. Unknown keys are kept in
// Custom so callers can inspect them without widening the struct.
type FrontMatter struct {
	Title       string
	Slug        string
	Description string
	Status      string
	Order       *int
	Custom      map[string]any
}

// ParseFrontMatter splits source into its front-matter block and body. A
// source without a block returns an empty FrontMatter and the source as body.
func ParseFrontMatter(source []byte) (FrontMatter, []byte, error) {
	var env frontMatterEnvelope

	body, err := frontmatter.Parse(bytes.NewReader(source), &env)
	if err != nil {
		return FrontMatter{}, nil, fmt.Errorf("parse frontmatter: %w", err)
	}

	fm, err := env.frontMatter()
	if err != nil {
		return FrontMatter{}, nil, err
	}
	return fm, body, nil
}

type frontMatterEnvelope struct {
	Title       string         `yaml:"title"`
	Slug        string         `yaml:"slug"`
	Description string         `yaml:"description"`
	Status      string         `yaml:"status"`
	Order       any            `yaml:"order"`
	Custom      map[string]any `yaml:",inline"`
}

func (env frontMatterEnvelope) frontMatter() (FrontMatter, error) {
	fm := FrontMatter{
		Title:       strings.TrimSpace(env.Title),
		Slug:        strings.TrimSpace(env.Slug),
		Description: strings.TrimSpace(env.Description),
		Status:      strings.ToLower(strings.TrimSpace(env.Status)),
		Custom:      env.Custom,
	}
	if fm.Custom == nil {
		fm.Custom = map[string]any{}
	}
	if env.Order != nil {
		order, err := coerceOrder(env.Order)
		if err != nil {
			return FrontMatter{}, err
		}
		fm.Order = &order
	}
	return fm, nil
}

func coerceOrder(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("parse frontmatter: order %v is not an integer", v)
		}
		return int(v), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("parse frontmatter: order %q: %w", v, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("parse frontmatter: unsupported order type %T", value)
	}
}
