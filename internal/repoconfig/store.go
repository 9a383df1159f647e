package repoconfig

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

// Store loads and saves the singleton configuration. Get returns Default()
// when nothing is stored yet.
type Store interface {
	Get(ctx context.Context) (*RepositoryConfig, error)
	Save(ctx context.Context, cfg *RepositoryConfig) (*RepositoryConfig, error)
	TouchLastSynced(ctx context.Context, at time.Time) error
}

// MemoryStore keeps the configuration in memory.
type MemoryStore struct {
	mu  sync.RWMutex
	cfg *RepositoryConfig
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore seeds the store with cfg, which may be nil.
func NewMemoryStore(cfg *RepositoryConfig) *MemoryStore {
	return &MemoryStore{cfg: clone(cfg)}
}

func (m *MemoryStore) Get(context.Context) (*RepositoryConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg == nil {
		return Default(), nil
	}
	return clone(m.cfg), nil
}

func (m *MemoryStore) Save(_ context.Context, cfg *RepositoryConfig) (*RepositoryConfig, error) {
	if cfg == nil {
		return nil, errors.New("repoconfig: config is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := clone(cfg)
	if stored.ID == 0 {
		stored.ID = 1
	}
	m.cfg = stored
	return clone(stored), nil
}

func (m *MemoryStore) TouchLastSynced(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		m.cfg = Default()
		m.cfg.ID = 1
	}
	ts := at.UTC()
	m.cfg.LastSyncedAt = &ts
	return nil
}

// BunStore persists the configuration in the system_config table.
type BunStore struct {
	db bun.IDB
}

var _ Store = (*BunStore)(nil)

// NewBunStore constructs a store over db.
func NewBunStore(db bun.IDB) *BunStore {
	return &BunStore{db: db}
}

func (s *BunStore) Get(ctx context.Context) (*RepositoryConfig, error) {
	cfg := new(RepositoryConfig)
	err := s.db.NewSelect().Model(cfg).OrderExpr("?TableAlias.id ASC").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("repoconfig: load: %w", err)
	}
	return cfg, nil
}

func (s *BunStore) Save(ctx context.Context, cfg *RepositoryConfig) (*RepositoryConfig, error) {
	if cfg == nil {
		return nil, errors.New("repoconfig: config is required")
	}
	now := time.Now().UTC()
	cfg.UpdatedAt = now
	if cfg.ID == 0 {
		existing, err := s.Get(ctx)
		if err != nil {
			return nil, err
		}
		cfg.ID = existing.ID
	}
	if cfg.ID == 0 {
		cfg.CreatedAt = now
		if _, err := s.db.NewInsert().Model(cfg).Exec(ctx); err != nil {
			return nil, fmt.Errorf("repoconfig: insert: %w", err)
		}
		return cfg, nil
	}
	if _, err := s.db.NewUpdate().Model(cfg).WherePK().ExcludeColumn("created_at").Exec(ctx); err != nil {
		return nil, fmt.Errorf("repoconfig: update: %w", err)
	}
	return cfg, nil
}

func (s *BunStore) TouchLastSynced(ctx context.Context, at time.Time) error {
	cfg, err := s.Get(ctx)
	if err != nil {
		return err
	}
	ts := at.UTC()
	cfg.LastSyncedAt = &ts
	_, err = s.Save(ctx, cfg)
	return err
}
