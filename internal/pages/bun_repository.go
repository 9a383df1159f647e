package pages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunRepository stores pages through bun. It accepts any bun.IDB so the same
// code serves both the database handle and a transaction.
type BunRepository struct {
	db bun.IDB
}

var _ Repository = (*BunRepository)(nil)

// NewBunRepository constructs a repository over db.
func NewBunRepository(db bun.IDB) *BunRepository {
	return &BunRepository{db: db}
}

func (r *BunRepository) Find(ctx context.Context, filter Filter) (*Page, error) {
	page := new(Page)
	err := applyFilter(r.db.NewSelect().Model(page), filter).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &PageNotFoundError{Key: filterKey(filter)}
		}
		return nil, fmt.Errorf("page repository error: %w", err)
	}
	return page, nil
}

func (r *BunRepository) List(ctx context.Context, filter Filter) ([]*Page, error) {
	var records []*Page
	if err := applyFilter(r.db.NewSelect().Model(&records), filter).Scan(ctx); err != nil {
		return nil, fmt.Errorf("page repository error: %w", err)
	}
	return records, nil
}

func (r *BunRepository) Create(ctx context.Context, page *Page) (*Page, error) {
	if page.ID == uuid.Nil {
		page.ID = uuid.New()
	}
	if _, err := r.db.NewInsert().Model(page).Exec(ctx); err != nil {
		return nil, fmt.Errorf("create page %q: %w", page.Slug, err)
	}
	return page, nil
}

func (r *BunRepository) Update(ctx context.Context, page *Page) (*Page, error) {
	res, err := r.db.NewUpdate().Model(page).WherePK().Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update page %q: %w", page.Slug, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, &PageNotFoundError{Key: page.ID.String()}
	}
	return page, nil
}

func (r *BunRepository) Delete(ctx context.Context, ids ...uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.NewDelete().
		Model((*Page)(nil)).
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete pages: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete pages: %w", err)
	}
	return int(affected), nil
}

// BunStore adds transactions to BunRepository.
type BunStore struct {
	*BunRepository
	db *bun.DB
}

var _ Store = (*BunStore)(nil)

// NewBunStore constructs a Store over db.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{BunRepository: NewBunRepository(db), db: db}
}

func (s *BunStore) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, NewBunRepository(tx))
	})
}

// Savepoint runs fn in a nested transaction. Inside a bun.Tx that is a
// SAVEPOINT, so a failed statement is rolled back without poisoning the
// outer transaction.
func (r *BunRepository) Savepoint(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	run := func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, NewBunRepository(tx))
	}
	switch db := r.db.(type) {
	case bun.Tx:
		return db.RunInTx(ctx, nil, run)
	case *bun.Tx:
		return db.RunInTx(ctx, nil, run)
	case *bun.DB:
		return db.RunInTx(ctx, nil, run)
	default:
		return fn(ctx, r)
	}
}

func applyFilter(q *bun.SelectQuery, filter Filter) *bun.SelectQuery {
	if filter.Kind != "" {
		q = q.Where("?TableAlias.type = ?", filter.Kind)
	}
	if filter.Origin != "" {
		q = q.Where("?TableAlias.source = ?", filter.Origin)
	}
	if filter.Slug != nil {
		q = q.Where("?TableAlias.slug = ?", *filter.Slug)
	}
	if filter.RootOnly {
		q = q.Where("?TableAlias.parent_id IS NULL")
	} else if filter.ParentID != nil {
		q = q.Where("?TableAlias.parent_id = ?", *filter.ParentID)
	}
	if filter.GitPath != nil {
		q = q.Where("?TableAlias.git_path = ?", *filter.GitPath)
	}
	if filter.UpdatedAfterGit != nil {
		q = q.Where("?TableAlias.updated_at_git > ?", filter.UpdatedAfterGit.UTC())
	}
	if filter.Childless {
		q = q.Where("NOT EXISTS (SELECT 1 FROM pages AS child WHERE child.parent_id = ?TableAlias.id)")
	}
	return q.
		OrderExpr("?TableAlias.? ASC", bun.Ident("order")).
		OrderExpr("?TableAlias.slug ASC").
		OrderExpr("?TableAlias.id ASC")
}
