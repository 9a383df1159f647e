// Package assets rewrites relative image references in markdown bodies into
// absolute raw-content URLs.
package assets

import (
	"path"
	"regexp"
	"strings"

	"github.com/goliatone/go-docsync/internal/markdown"
)

// RawContentHost serves raw repository files for GitHub repositories.
const RawContentHost = "https://raw.githubusercontent.com"

var (
	repositoryPattern = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+?)(?:\.git)?(?:/|$)`)
	markdownImage     = regexp.MustCompile(`(!\[[^\]]*\]\(\s*)([^)\s]+)`)
	htmlImage         = regexp.MustCompile(`(?i)(<img\b[^>]*?\bsrc\s*=\s*)(["'])([^"']*)(["'])`)
)

// Rewriter turns relative references into URLs under a fixed base.
type Rewriter struct {
	base string
	root string
}

// NewRewriter derives the raw-content base from repoURL and branch. When the
// URL is not a recognised repository URL the rewriter leaves content untouched.
func NewRewriter(repoURL, branch, docsRoot string) *Rewriter {
	root := strings.Trim(strings.TrimSpace(docsRoot), "/")
	if root == "" {
		root = markdown.DefaultRoot
	}
	r := &Rewriter{root: root}

	match := repositoryPattern.FindStringSubmatch(strings.TrimSpace(repoURL))
	if match == nil {
		return r
	}
	branch = strings.TrimSpace(branch)
	if branch == "" {
		branch = "main"
	}
	r.base = strings.Join([]string{RawContentHost, match[1], match[2], branch}, "/")
	return r
}

// BaseURL returns the raw-content base, empty when rewriting is disabled.
func (r *Rewriter) BaseURL() string {
	return r.base
}

// Rewrite resolves every relative image reference in content against the
// directory of filePath.
func (r *Rewriter) Rewrite(content, filePath string) string {
	if r == nil || r.base == "" || content == "" {
		return content
	}
	dir := path.Dir(strings.TrimPrefix(filePath, "/"))

	content = markdownImage.ReplaceAllStringFunc(content, func(match string) string {
		parts := markdownImage.FindStringSubmatch(match)
		return parts[1] + r.resolve(parts[2], dir)
	})
	return htmlImage.ReplaceAllStringFunc(content, func(match string) string {
		parts := htmlImage.FindStringSubmatch(match)
		return parts[1] + parts[2] + r.resolve(parts[3], dir) + parts[4]
	})
}

func (r *Rewriter) resolve(ref, dir string) string {
	if skip(ref) {
		return ref
	}
	var target string
	switch {
	case strings.HasPrefix(ref, "/"):
		target = r.root + "/" + strings.TrimLeft(ref, "/")
	default:
		target = join(dir, strings.TrimPrefix(ref, "./"))
	}
	return r.base + "/" + target
}

func skip(ref string) bool {
	lower := strings.ToLower(ref)
	return ref == "" ||
		strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(ref, "#")
}

// join resolves ref against dir: ".." pops the last segment, "." and empty
// segments are ignored. Popping past the repository root stops at the root.
func join(dir, ref string) string {
	resolved := []string{}
	if dir != "." && dir != "" {
		resolved = append(resolved, strings.Split(dir, "/")...)
	}
	for _, segment := range strings.Split(ref, "/") {
		switch segment {
		case "", ".":
		case "..":
			if len(resolved) > 0 {
				resolved = resolved[:len(resolved)-1]
			}
		default:
			resolved = append(resolved, segment)
		}
	}
	return strings.Join(resolved, "/")
}
