// Package gitsync reconciles persisted pages with the markdown tree of a
// hosted git repository and records every attempt as a SyncRun.
package gitsync

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/goliatone/go-docsync/internal/assets"
	"github.com/goliatone/go-docsync/internal/importer"
	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/internal/markdown"
	"github.com/goliatone/go-docsync/internal/meta"
	"github.com/goliatone/go-docsync/internal/pages"
	"github.com/goliatone/go-docsync/internal/repoconfig"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

const (
	// DefaultRetainRuns is how many runs PurgeRuns keeps by default.
	DefaultRetainRuns = 100

	markdownExt = ".md"
)

const (
	textCodeNotGitMode        = "GITSYNC_NOT_GIT_MODE"
	textCodeNotConfigured     = "GITSYNC_REPOSITORY_NOT_CONFIGURED"
	textCodeCommitUnavailable = "GITSYNC_COMMIT_UNAVAILABLE"
	textCodeRollbackInvalid   = "GITSYNC_ROLLBACK_INVALID"
	textCodeSyncFailed        = "GITSYNC_SYNC_FAILED"
	textCodeRollbackFailed    = "GITSYNC_ROLLBACK_FAILED"
)

// ConnectionParams are the coordinates used to build a git client.
type ConnectionParams struct {
	URL    string
	Branch string
	Token  string
}

// ClientFactory builds a git client for the given coordinates.
type ClientFactory func(params ConnectionParams) (interfaces.GitClient, error)

// SyncOptions tunes a single Sync call.
type SyncOptions struct {
	// Force runs a full pass even when a successful baseline exists.
	Force bool
}

// Listener observes finished syncs. Calls happen after the run is persisted.
type Listener interface {
	SyncCompleted(ctx context.Context, run *SyncRun)
	SyncFailed(ctx context.Context, run *SyncRun, err error)
}

// Service orchestrates syncs against the configured repository.
type Service struct {
	config        repoconfig.Store
	runs          RunRepository
	pages         pages.Store
	clients       ClientFactory
	pageOpts      []pages.ServiceOption
	listener      Listener
	logger        interfaces.Logger
	now           func() time.Time
	tokenOverride string

	docsRoot       string
	descriptorName string
	rootDescriptor string
	concurrency    int
	retainRuns     int
}

// Option configures a Service.
type Option func(*Service)

// WithNow overrides the clock used for run timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithListener registers a listener for finished syncs.
func WithListener(listener Listener) Option {
	return func(s *Service) {
		s.listener = listener
	}
}

// WithDocsRoot sets the repository folder that holds documentation.
func WithDocsRoot(root string) Option {
	return func(s *Service) {
		if trimmed := strings.Trim(strings.TrimSpace(root), "/"); trimmed != "" {
			s.docsRoot = trimmed
		}
	}
}

// WithDescriptorNames overrides the per-directory and root descriptor file names.
func WithDescriptorNames(descriptor, root string) Option {
	return func(s *Service) {
		if strings.TrimSpace(descriptor) != "" {
			s.descriptorName = strings.TrimSpace(descriptor)
		}
		if strings.TrimSpace(root) != "" {
			s.rootDescriptor = strings.TrimSpace(root)
		}
	}
}

// WithDescriptorConcurrency bounds parallel descriptor fetches during a full pass.
func WithDescriptorConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithRetainRuns sets the default number of runs PurgeRuns keeps.
func WithRetainRuns(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retainRuns = n
		}
	}
}

// WithPageOptions forwards options to the page service built for each pass.
func WithPageOptions(opts ...pages.ServiceOption) Option {
	return func(s *Service) {
		s.pageOpts = append(s.pageOpts, opts...)
	}
}

// WithTokenOverride replaces the stored access token, usually with one read
// from the environment.
func WithTokenOverride(token string) Option {
	return func(s *Service) {
		s.tokenOverride = strings.TrimSpace(token)
	}
}

// NewService wires the orchestrator.
func NewService(config repoconfig.Store, runs RunRepository, store pages.Store, clients ClientFactory, opts ...Option) *Service {
	s := &Service{
		config:         config,
		runs:           runs,
		pages:          store,
		clients:        clients,
		logger:         logging.NoOp(),
		now:            func() time.Time { return time.Now().UTC() },
		docsRoot:       markdown.DefaultRoot,
		descriptorName: meta.DefaultDescriptorName,
		rootDescriptor: meta.DefaultRootDescriptorName,
		concurrency:    4,
		retainRuns:     DefaultRetainRuns,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Sync reconciles pages with the head of the configured branch. A commit
// that already has a successful run returns that run without touching pages.
// On failure the failed run is returned together with the error.
func (s *Service) Sync(ctx context.Context, opts SyncOptions) (*SyncRun, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("gitsync: load repository config: %w", err)
	}
	if !cfg.IsGitMode() {
		return nil, goerrors.Wrap(ErrNotGitMode, goerrors.CategoryValidation, ErrNotGitMode.Error()).
			WithTextCode(textCodeNotGitMode)
	}
	if !cfg.HasRepository() {
		return nil, goerrors.Wrap(ErrRepositoryNotConfigured, goerrors.CategoryValidation, ErrRepositoryNotConfigured.Error()).
			WithTextCode(textCodeNotConfigured)
	}

	client, err := s.client(s.params(cfg, ConnectionParams{}))
	if err != nil {
		return nil, err
	}

	head, err := client.LatestCommit(ctx)
	if err != nil || head == nil || strings.TrimSpace(head.Hash) == "" {
		if err != nil {
			s.logger.Error("gitsync.commit.unavailable", "error", err)
		}
		return nil, goerrors.Wrap(ErrCommitUnavailable, goerrors.CategoryCommand, ErrCommitUnavailable.Error()).
			WithTextCode(textCodeCommitUnavailable)
	}

	existing, err := s.runs.FindSuccessfulByCommit(ctx, head.Hash)
	if err != nil {
		return nil, fmt.Errorf("gitsync: lookup run for %s: %w", head.Hash, err)
	}
	if existing != nil {
		s.logger.Info("gitsync.sync.skipped", "commit", head.Hash, "run_id", existing.ID)
		return existing, nil
	}

	baseline, err := s.runs.LatestSuccessful(ctx)
	if err != nil {
		return nil, fmt.Errorf("gitsync: lookup baseline: %w", err)
	}

	run, err := s.runs.Create(ctx, s.newRun(head))
	if err != nil {
		return nil, fmt.Errorf("gitsync: create run: %w", err)
	}

	logger := logging.WithSyncContext(s.logger, "", head.Hash, "sync")
	full := opts.Force || baseline == nil
	var result passResult
	err = s.pages.RunInTx(ctx, func(ctx context.Context, repo pages.Repository) error {
		pass := s.newPass(cfg, client, repo, head, logger)
		var passErr error
		if full {
			result, passErr = pass.full(ctx)
		} else {
			result, passErr = pass.differential(ctx, baseline.CommitHash)
		}
		return passErr
	})
	if err != nil {
		return s.fail(ctx, run, err)
	}

	run.Status = RunSuccess
	run.FilesChanged = result.processed + result.deleted
	run.Details = &SyncDetails{
		SyncType:       result.syncType,
		ProcessedFiles: result.processed,
		DeletedFiles:   result.deleted,
	}
	if baseline != nil {
		from := baseline.CommitHash
		run.Details.FromCommit = &from
	}
	run.UpdatedAt = s.now()
	// A run only stays successful once last_synced_at is recorded too.
	updated, err := s.runs.Update(ctx, run)
	if err != nil {
		return s.fail(ctx, run, fmt.Errorf("gitsync: complete run: %w", err))
	}
	if err := s.config.TouchLastSynced(ctx, s.now()); err != nil {
		return s.fail(ctx, updated, fmt.Errorf("gitsync: record last sync: %w", err))
	}

	logger.Info("gitsync.sync.completed",
		"run_id", updated.ID,
		"sync_type", result.syncType,
		"processed_files", result.processed,
		"deleted_files", result.deleted,
	)
	if s.listener != nil {
		s.listener.SyncCompleted(ctx, updated)
	}
	return updated, nil
}

// Rollback deletes git pages whose commit timestamp is later than the commit
// of run. Pages modified by newer commits that also existed before are
// deleted rather than restored.
func (s *Service) Rollback(ctx context.Context, run *SyncRun) (int, error) {
	if !run.IsSuccess() {
		return 0, goerrors.Wrap(ErrRollbackRequiresSuccess, goerrors.CategoryValidation, ErrRollbackRequiresSuccess.Error()).
			WithTextCode(textCodeRollbackInvalid)
	}
	if run.CommitDate == nil {
		return 0, goerrors.Wrap(ErrRunCommitDateMissing, goerrors.CategoryValidation, "rollback target has no commit date").
			WithTextCode(textCodeRollbackInvalid)
	}

	cutoff := *run.CommitDate
	deleted := 0
	err := s.pages.RunInTx(ctx, func(ctx context.Context, repo pages.Repository) error {
		n, err := s.pageService(repo).DeleteGitPagesUpdatedAfter(ctx, cutoff)
		deleted = n
		return err
	})
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryCommand, "rollback failed").
			WithTextCode(textCodeRollbackFailed)
	}
	s.logger.Info("gitsync.rollback.completed", "run_id", run.ID, "commit", run.CommitHash, "deleted", deleted)
	return deleted, nil
}

// RollbackByID loads the run and rolls back to it.
func (s *Service) RollbackByID(ctx context.Context, id uuid.UUID) (*SyncRun, int, error) {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	deleted, err := s.Rollback(ctx, run)
	return run, deleted, err
}

// TestConnection reports whether the repository is reachable. Empty params
// fall back to the stored configuration. Every failure yields false.
func (s *Service) TestConnection(ctx context.Context, params ConnectionParams) bool {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		s.logger.Warn("gitsync.connection.config_failed", "error", err)
		cfg = repoconfig.Default()
	}
	resolved := s.params(cfg, params)
	if strings.TrimSpace(resolved.URL) == "" {
		return false
	}
	client, err := s.client(resolved)
	if err != nil {
		s.logger.Warn("gitsync.connection.client_failed", "error", err)
		return false
	}
	ok := client.TestConnection(ctx)
	s.logger.Debug("gitsync.connection.tested", "url", resolved.URL, "branch", resolved.Branch, "ok", ok)
	return ok
}

// PurgeRuns deletes all but the newest keep runs. A keep below one uses
// the configured retention.
func (s *Service) PurgeRuns(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = s.retainRuns
	}
	removed, err := s.runs.PurgeKeeping(ctx, keep)
	if err != nil {
		return 0, err
	}
	s.logger.Info("gitsync.runs.purged", "kept", keep, "removed", removed)
	return removed, nil
}

// LatestRuns returns up to limit runs, newest first.
func (s *Service) LatestRuns(ctx context.Context, limit int) ([]*SyncRun, error) {
	return s.runs.List(ctx, limit)
}

// Due reports whether a scheduled sync should run at now. It is false
// outside git mode or without a repository.
func (s *Service) Due(ctx context.Context, now time.Time) (bool, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return false, err
	}
	if !cfg.IsGitMode() || !cfg.HasRepository() {
		return false, nil
	}
	return cfg.Due(now), nil
}

func (s *Service) newRun(head *interfaces.Commit) *SyncRun {
	now := s.now()
	run := &SyncRun{
		ID:         uuid.New(),
		CommitHash: head.Hash,
		Status:     RunInProgress,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if head.Message != "" {
		msg := head.Message
		run.CommitMessage = &msg
	}
	if head.Author != "" {
		author := head.Author
		run.CommitAuthor = &author
	}
	if !head.Date.IsZero() {
		date := head.Date.UTC()
		run.CommitDate = &date
	}
	return run
}

func (s *Service) fail(ctx context.Context, run *SyncRun, cause error) (*SyncRun, error) {
	message := cause.Error()
	run.Status = RunFailed
	run.ErrorMessage = &message
	run.UpdatedAt = s.now()
	if updated, err := s.runs.Update(ctx, run); err != nil {
		s.logger.Error("gitsync.run.update_failed", "run_id", run.ID, "error", err)
	} else {
		run = updated
	}

	s.logger.Error("gitsync.sync.failed", "run_id", run.ID, "commit", run.CommitHash, "error", cause)
	if s.listener != nil {
		s.listener.SyncFailed(ctx, run, cause)
	}
	if goerrors.IsWrapped(cause) {
		return run, cause
	}
	return run, goerrors.Wrap(cause, goerrors.CategoryCommand, "git sync failed").
		WithTextCode(textCodeSyncFailed)
}

func (s *Service) params(cfg *repoconfig.RepositoryConfig, params ConnectionParams) ConnectionParams {
	if strings.TrimSpace(params.URL) == "" {
		params.URL = cfg.RepositoryURL
	}
	if strings.TrimSpace(params.Branch) == "" {
		params.Branch = cfg.BranchOrDefault()
	}
	if strings.TrimSpace(params.Token) == "" {
		params.Token = cfg.AccessToken
		if s.tokenOverride != "" {
			params.Token = s.tokenOverride
		}
	}
	return params
}

func (s *Service) client(params ConnectionParams) (interfaces.GitClient, error) {
	if s.clients == nil {
		return nil, ErrClientFactoryRequired
	}
	client, err := s.clients(params)
	if err != nil {
		return nil, fmt.Errorf("gitsync: build client: %w", err)
	}
	return client, nil
}

func (s *Service) pageService(repo pages.Repository) *pages.Service {
	return pages.NewService(repo, s.pageOpts...)
}

func (s *Service) newPass(cfg *repoconfig.RepositoryConfig, client interfaces.GitClient, repo pages.Repository, head *interfaces.Commit, logger interfaces.Logger) *pass {
	return &pass{
		service: s,
		client:  client,
		parser:  markdown.NewParser(markdown.WithRoot(s.docsRoot)),
		pages:   s.pageService(repo),
		cfg:     cfg,
		commit: pages.Commit{
			Hash:   head.Hash,
			Author: head.Author,
			Date:   head.Date.UTC(),
		},
		logger: logger,
	}
}

type passResult struct {
	syncType  SyncType
	processed int
	deleted   int
}

// pass holds the state of one reconciliation inside a page transaction.
type pass struct {
	service *Service
	client  interfaces.GitClient
	parser  *markdown.Parser
	pages   *pages.Service
	cfg     *repoconfig.RepositoryConfig
	commit  pages.Commit
	logger  interfaces.Logger
}

func (p *pass) importer(store *meta.LazyStore) *importer.Importer {
	s := p.service
	resolver := meta.NewResolver(store, meta.WithResolverRoot(s.docsRoot))
	rewriter := assets.NewRewriter(p.cfg.RepositoryURL, p.cfg.BranchOrDefault(), s.docsRoot)
	return importer.New(p.pages, resolver, rewriter,
		importer.WithRoot(s.docsRoot),
		importer.WithLogger(p.logger),
	)
}

func (p *pass) descriptorStore(opts ...meta.LazyOption) *meta.LazyStore {
	s := p.service
	load := func(ctx context.Context, filePath string) ([]byte, bool, error) {
		content, found, err := p.client.FileContent(ctx, filePath)
		if err != nil || !found {
			return nil, found, err
		}
		return []byte(content), true, nil
	}
	base := []meta.LazyOption{
		meta.WithDocsRoot(s.docsRoot),
		meta.WithDescriptorName(s.descriptorName),
		meta.WithRootDescriptorName(s.rootDescriptor),
		meta.WithConcurrency(s.concurrency),
		meta.WithStoreLogger(p.logger),
	}
	return meta.NewLazyStore(load, append(base, opts...)...)
}

func (p *pass) full(ctx context.Context) (passResult, error) {
	result := passResult{syncType: SyncFull}
	s := p.service

	tree, err := p.client.DirectoryTree(ctx, s.docsRoot)
	if err != nil {
		return result, fmt.Errorf("list %s: %w", s.docsRoot, err)
	}
	known := make([]string, 0, len(tree))
	for _, entry := range tree {
		known = append(known, entry.Path)
	}
	store := p.descriptorStore(meta.WithKnownPaths(known))
	if err := store.Prefetch(ctx, meta.DescriptorDirs(known, s.descriptorName)); err != nil {
		return result, err
	}
	imp := p.importer(store)

	processed := []string{}
	for _, entry := range tree {
		if !isMarkdown(entry.Path) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if p.importFile(ctx, imp, entry.Path) {
			processed = append(processed, entry.Path)
		}
	}

	counts, err := imp.DeleteRemovedPages(ctx, processed)
	if err != nil {
		return result, fmt.Errorf("delete removed pages: %w", err)
	}
	result.processed = len(processed)
	result.deleted = counts.Documents
	return result, nil
}

func (p *pass) differential(ctx context.Context, from string) (passResult, error) {
	result := passResult{syncType: SyncDifferential}

	changes, err := p.client.ChangedFiles(ctx, from, p.commit.Hash)
	if err != nil {
		return result, fmt.Errorf("compare %s...%s: %w", from, p.commit.Hash, err)
	}
	imp := p.importer(p.descriptorStore())

	for _, change := range changes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if change.Status == interfaces.ChangeRenamed && change.PreviousFilename != "" {
			if p.inScope(change.PreviousFilename) {
				deleted, err := p.deletePath(ctx, change.PreviousFilename)
				if err != nil {
					return result, err
				}
				if deleted {
					result.deleted++
				}
			}
		}
		if !p.inScope(change.Filename) {
			continue
		}
		if change.Status == interfaces.ChangeRemoved {
			deleted, err := p.deletePath(ctx, change.Filename)
			if err != nil {
				return result, err
			}
			if deleted {
				result.deleted++
			}
			continue
		}
		if p.importFile(ctx, imp, change.Filename) {
			result.processed++
		}
	}

	if result.deleted > 0 {
		if _, err := imp.CleanupOrphanedPages(ctx); err != nil {
			return result, fmt.Errorf("cleanup orphaned pages: %w", err)
		}
	}
	return result, nil
}

func (p *pass) deletePath(ctx context.Context, filePath string) (bool, error) {
	deleted, err := p.pages.DeleteByGitPath(ctx, pages.OriginGit, filePath)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", filePath, err)
	}
	logging.WithSyncContext(p.logger, filePath, "", "delete").Debug("gitsync.file.deleted", "found", deleted)
	return deleted, nil
}

// importFile fetches, parses and imports one document inside a savepoint.
// Failures are logged, their writes undone, and reported as not processed.
func (p *pass) importFile(ctx context.Context, imp *importer.Importer, filePath string) bool {
	logger := logging.WithSyncContext(p.logger, filePath, "", "import")
	content, found, err := p.client.FileContent(ctx, filePath)
	if err != nil {
		logger.Error("gitsync.file.failed", "error", err)
		return false
	}
	if !found || strings.TrimSpace(content) == "" {
		logger.Debug("gitsync.file.empty")
		return false
	}
	doc := p.parser.Parse([]byte(content), filePath)
	err = p.pages.Savepoint(ctx, func(ctx context.Context, svc *pages.Service) error {
		_, err := imp.WithPages(svc).Import(ctx, doc, p.commit)
		return err
	})
	if err != nil {
		logger.Error("gitsync.file.failed", "error", err)
		return false
	}
	return true
}

func (p *pass) inScope(filePath string) bool {
	prefix := p.service.docsRoot + "/"
	return strings.HasPrefix(filePath, prefix) && isMarkdown(filePath)
}

func isMarkdown(filePath string) bool {
	return strings.EqualFold(path.Ext(filePath), markdownExt)
}
