// Package github reads repository state from the GitHub REST v3 API.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

const (
	// DefaultAPIBaseURL is the public GitHub API endpoint.
	DefaultAPIBaseURL = "https://api.github.com"
	// DefaultBranch is used when no branch is configured.
	DefaultBranch = "main"

	apiVersion = "2022-11-28"
	userAgent  = "go-docsync"

	comparePageSize = 100
)

var (
	ErrInvalidRepositoryURL = errors.New("github: repository url must look like https://github.com/<owner>/<repo>")
	ErrUnexpectedEncoding   = errors.New("github: unexpected content encoding")
	ErrTreeTruncated        = errors.New("github: tree listing was truncated by the api")
)

var repositoryPattern = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+?)(?:\.git)?(?:/|$)`)

// APIError reports a non-success response.
type APIError struct {
	StatusCode int
	Status     string
	URL        string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("github: %s: %s (%s)", e.Status, e.Message, e.URL)
	}
	return fmt.Sprintf("github: %s (%s)", e.Status, e.URL)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// RepositoryFromURL extracts "owner/repo" from a repository URL.
func RepositoryFromURL(repoURL string) (string, error) {
	match := repositoryPattern.FindStringSubmatch(strings.TrimSpace(repoURL))
	if match == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRepositoryURL, repoURL)
	}
	return match[1] + "/" + match[2], nil
}

// Client implements interfaces.GitClient for one repository and branch.
type Client struct {
	baseURL *url.URL
	repo    string
	branch  string
	token   string
	timeout time.Duration
	// HTTP can be swapped, e.g. for a recorder backed client.
	HTTP   *http.Client
	logger interfaces.Logger
}

var _ interfaces.GitClient = (*Client)(nil)

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL points the client at another API host.
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		if strings.TrimSpace(raw) == "" {
			return nil
		}
		u, err := url.ParseRequestURI(strings.TrimRight(strings.TrimSpace(raw), "/"))
		if err != nil {
			return fmt.Errorf("github: couldn't parse api base url: %w", err)
		}
		c.baseURL = u
		return nil
	}
}

// WithBranch selects the tracked branch.
func WithBranch(branch string) Option {
	return func(c *Client) error {
		if trimmed := strings.TrimSpace(branch); trimmed != "" {
			c.branch = trimmed
		}
		return nil
	}
}

// WithToken authenticates requests with a bearer token.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = strings.TrimSpace(token)
		return nil
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		if client != nil {
			c.HTTP = client
		}
		return nil
	}
}

// WithTimeout bounds every request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout > 0 {
			c.timeout = timeout
		}
		return nil
	}
}

// WithLogger sets the client logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// New builds a client for repoURL.
func New(repoURL string, opts ...Option) (*Client, error) {
	repo, err := RepositoryFromURL(repoURL)
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(DefaultAPIBaseURL)
	c := &Client{
		baseURL: base,
		repo:    repo,
		branch:  DefaultBranch,
		timeout: 30 * time.Second,
		logger:  logging.NoOp(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// Repository returns "owner/repo".
func (c *Client) Repository() string {
	return c.repo
}

// Branch returns the tracked branch.
func (c *Client) Branch() string {
	return c.branch
}

// LatestCommit returns the head of the branch, or nil for an empty repository.
func (c *Client) LatestCommit(ctx context.Context) (*interfaces.Commit, error) {
	var payload commitResponse
	err := c.getJSON(ctx, c.endpoint(nil, "commits", c.branch), &payload)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusConflict) {
			return nil, nil
		}
		return nil, err
	}
	if payload.SHA == "" {
		return nil, nil
	}
	return payload.commit(), nil
}

// DirectoryTree lists every blob below root at the branch head.
func (c *Client) DirectoryTree(ctx context.Context, root string) ([]interfaces.TreeEntry, error) {
	ep, err := c.endpointWithQuery(treeQuery{Recursive: 1}, "git", "trees", c.branch)
	if err != nil {
		return nil, err
	}
	var payload treeResponse
	if err := c.getJSON(ctx, ep, &payload); err != nil {
		return nil, err
	}
	if payload.Truncated {
		c.logger.Warn("github.tree.truncated", "repository", c.repo, "branch", c.branch)
		return nil, fmt.Errorf("%w: %s@%s", ErrTreeTruncated, c.repo, c.branch)
	}

	prefix := strings.Trim(root, "/")
	if prefix != "" {
		prefix += "/"
	}
	entries := []interfaces.TreeEntry{}
	for _, node := range payload.Tree {
		if node.Type != "blob" || !strings.HasPrefix(node.Path, prefix) {
			continue
		}
		entries = append(entries, interfaces.TreeEntry{Path: node.Path})
	}
	return entries, nil
}

// FileContent returns the decoded file at the branch head.
func (c *Client) FileContent(ctx context.Context, filePath string) (string, bool, error) {
	segments := append([]string{"contents"}, strings.Split(strings.Trim(filePath, "/"), "/")...)
	ep, err := c.endpointWithQuery(contentsQuery{Ref: c.branch}, segments...)
	if err != nil {
		return "", false, err
	}
	var payload contentResponse
	if err := c.getJSON(ctx, ep, &payload); err != nil {
		if IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	content, err := payload.decode()
	if err != nil {
		return "", false, fmt.Errorf("github: decode %s: %w", filePath, err)
	}
	return content, true, nil
}

// ChangedFiles lists files that differ between two commits, following the
// Link header across result pages.
func (c *Client) ChangedFiles(ctx context.Context, from, to string) ([]interfaces.ChangedFile, error) {
	files := []interfaces.ChangedFile{}
	for page := 1; page > 0; {
		ep, err := c.endpointWithQuery(compareQuery{Page: page, PerPage: comparePageSize}, "compare", from+"..."+to)
		if err != nil {
			return nil, err
		}
		var payload compareResponse
		header, err := c.get(ctx, ep, &payload)
		if err != nil {
			return nil, err
		}
		for _, file := range payload.Files {
			files = append(files, interfaces.ChangedFile{
				Filename:         file.Filename,
				Status:           interfaces.ChangeStatus(file.Status),
				PreviousFilename: file.PreviousFilename,
			})
		}
		next := nextPage(header.Get("Link"))
		if next <= page {
			break
		}
		page = next
	}
	return files, nil
}

// nextPage returns the page number of the rel="next" link, or 0.
func nextPage(link string) int {
	for _, part := range strings.Split(link, ",") {
		target, params, ok := strings.Cut(strings.TrimSpace(part), ";")
		if !ok || !strings.Contains(params, `rel="next"`) {
			continue
		}
		u, err := url.Parse(strings.Trim(strings.TrimSpace(target), "<>"))
		if err != nil {
			return 0
		}
		page, err := strconv.Atoi(u.Query().Get("page"))
		if err != nil {
			return 0
		}
		return page
	}
	return 0
}

// TestConnection reports whether the branch can be read.
func (c *Client) TestConnection(ctx context.Context) bool {
	var payload branchResponse
	if err := c.getJSON(ctx, c.endpoint(nil, "branches", c.branch), &payload); err != nil {
		c.logger.Debug("github.connection.failed", "repository", c.repo, "branch", c.branch, "error", err)
		return false
	}
	return payload.Name != ""
}

func (c *Client) endpoint(values url.Values, segments ...string) *url.URL {
	owner, name, _ := strings.Cut(c.repo, "/")
	parts := append([]string{"repos", owner, name}, segments...)
	ep := c.baseURL.JoinPath(parts...)
	if len(values) > 0 {
		ep.RawQuery = values.Encode()
	}
	return ep
}

func (c *Client) endpointWithQuery(opts any, segments ...string) (*url.URL, error) {
	values, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("github: couldn't encode query params: %w", err)
	}
	return c.endpoint(values, segments...), nil
}

func (c *Client) getJSON(ctx context.Context, ep *url.URL, target any) error {
	_, err := c.get(ctx, ep, target)
	return err
}

// get decodes the JSON body into target and returns the response headers.
func (c *Client) get(ctx context.Context, ep *url.URL, target any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("github: couldn't build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github: couldn't perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("github: couldn't read response body: %w", err)
	}
	c.logger.Trace("github.request", "url", ep.Path, "status", resp.StatusCode, "duration", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status, URL: ep.String()}
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &msg) == nil {
			apiErr.Message = msg.Message
		}
		return nil, apiErr
	}
	if err := json.Unmarshal(body, target); err != nil {
		return nil, fmt.Errorf("github: couldn't parse json response: %w", err)
	}
	return resp.Header, nil
}

func (p contentResponse) decode() (string, error) {
	switch p.Encoding {
	case "base64":
		raw := strings.NewReplacer("\n", "", "\r", "").Replace(p.Content)
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	case "", "none":
		return p.Content, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnexpectedEncoding, p.Encoding)
	}
}
