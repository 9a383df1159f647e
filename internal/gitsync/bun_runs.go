package gitsync

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	cache "github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewSyncRunRepository creates a generic repository for SyncRun records.
func NewSyncRunRepository(db *bun.DB) repository.Repository[*SyncRun] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*SyncRun]{
		NewRecord: func() *SyncRun { return &SyncRun{} },
		GetID: func(r *SyncRun) uuid.UUID {
			return r.ID
		},
		SetID: func(r *SyncRun, id uuid.UUID) {
			r.ID = id
		},
		GetIdentifier: func() string {
			return "commit_hash"
		},
		GetIdentifierValue: func(r *SyncRun) string {
			return r.CommitHash
		},
	})
}

// BunRunRepository implements RunRepository with optional caching.
type BunRunRepository struct {
	db     *bun.DB
	repo   repository.Repository[*SyncRun]
	cached bool
}

var _ RunRepository = (*BunRunRepository)(nil)

// NewBunRunRepository creates a run repository without caching.
func NewBunRunRepository(db *bun.DB) *BunRunRepository {
	return NewBunRunRepositoryWithCache(db, nil, nil)
}

// NewBunRunRepositoryWithCache creates a run repository backed by the cache
// service when both cache arguments are set.
func NewBunRunRepositoryWithCache(db *bun.DB, cacheService cache.CacheService, keySerializer cache.KeySerializer) *BunRunRepository {
	base := NewSyncRunRepository(db)
	return &BunRunRepository{
		db:     db,
		repo:   wrapWithCache(base, cacheService, keySerializer),
		cached: cacheService != nil && keySerializer != nil,
	}
}

// Cached reports whether reads go through the cache service.
func (r *BunRunRepository) Cached() bool {
	return r.cached
}

func (r *BunRunRepository) Create(ctx context.Context, run *SyncRun) (*SyncRun, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return r.repo.Create(ctx, run)
}

func (r *BunRunRepository) Update(ctx context.Context, run *SyncRun) (*SyncRun, error) {
	record, err := r.repo.Update(ctx, run,
		repository.UpdateByID(run.ID.String()),
		repository.UpdateColumns("sync_status", "files_changed", "sync_details", "error_message", "updated_at"),
	)
	if err != nil {
		return nil, mapRepositoryError(err, run.ID.String())
	}
	return record, nil
}

func (r *BunRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*SyncRun, error) {
	record, err := r.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, id.String())
	}
	return record, nil
}

func (r *BunRunRepository) FindSuccessfulByCommit(ctx context.Context, hash string) (*SyncRun, error) {
	return r.first(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.sync_status = ?", RunSuccess).
			Where("?TableAlias.commit_hash = ?", hash)
	})
}

func (r *BunRunRepository) LatestSuccessful(ctx context.Context) (*SyncRun, error) {
	return r.first(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.sync_status = ?", RunSuccess)
	})
}

func (r *BunRunRepository) List(ctx context.Context, limit int) ([]*SyncRun, error) {
	if limit <= 0 {
		records, _, err := r.repo.List(ctx, repository.SelectRawProcessor(newestFirst))
		return records, err
	}
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(newestFirst),
		repository.SelectPaginate(limit, 0),
	)
	return records, err
}

func (r *BunRunRepository) PurgeKeeping(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	kept := r.db.NewSelect().
		Model((*SyncRun)(nil)).
		Column("id").
		OrderExpr("created_at DESC, id DESC").
		Limit(keep)
	if keep == 0 {
		kept = kept.Where("1 = 0")
	}
	res, err := r.db.NewDelete().
		Model((*SyncRun)(nil)).
		Where("id NOT IN (?)", kept).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge sync runs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *BunRunRepository) first(ctx context.Context, where func(*bun.SelectQuery) *bun.SelectQuery) (*SyncRun, error) {
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return newestFirst(where(q))
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func newestFirst(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("?TableAlias.created_at DESC").OrderExpr("?TableAlias.id DESC")
}

func mapRepositoryError(err error, key string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &SyncRunNotFoundError{Key: key}
	}
	return fmt.Errorf("sync run repository error: %w", err)
}

func wrapWithCache[T any](base repository.Repository[T], cacheService cache.CacheService, keySerializer cache.KeySerializer) repository.Repository[T] {
	if cacheService == nil || keySerializer == nil {
		return base
	}
	return repositorycache.New(base, cacheService, keySerializer)
}
