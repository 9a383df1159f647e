package gitsync

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// RunRepository persists sync runs.
type RunRepository interface {
	Create(ctx context.Context, run *SyncRun) (*SyncRun, error)
	Update(ctx context.Context, run *SyncRun) (*SyncRun, error)
	GetByID(ctx context.Context, id uuid.UUID) (*SyncRun, error)
	// FindSuccessfulByCommit returns the successful run for hash, if any.
	FindSuccessfulByCommit(ctx context.Context, hash string) (*SyncRun, error)
	// LatestSuccessful returns the newest successful run, if any.
	LatestSuccessful(ctx context.Context) (*SyncRun, error)
	// List returns runs newest first. A limit of zero returns every run.
	List(ctx context.Context, limit int) ([]*SyncRun, error)
	// PurgeKeeping deletes every run except the newest keep runs.
	PurgeKeeping(ctx context.Context, keep int) (int, error)
}

// MemoryRunRepository keeps runs in memory.
type MemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*SyncRun
}

var _ RunRepository = (*MemoryRunRepository)(nil)

// NewMemoryRunRepository returns an empty repository.
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{runs: make(map[uuid.UUID]*SyncRun)}
}

func (m *MemoryRunRepository) Create(_ context.Context, run *SyncRun) (*SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	m.runs[run.ID] = cloneRun(run)
	return cloneRun(run), nil
}

func (m *MemoryRunRepository) Update(_ context.Context, run *SyncRun) (*SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return nil, &SyncRunNotFoundError{Key: run.ID.String()}
	}
	m.runs[run.ID] = cloneRun(run)
	return cloneRun(run), nil
}

func (m *MemoryRunRepository) GetByID(_ context.Context, id uuid.UUID) (*SyncRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, &SyncRunNotFoundError{Key: id.String()}
	}
	return cloneRun(run), nil
}

func (m *MemoryRunRepository) FindSuccessfulByCommit(_ context.Context, hash string) (*SyncRun, error) {
	for _, run := range m.sorted() {
		if run.Status == RunSuccess && run.CommitHash == hash {
			return run, nil
		}
	}
	return nil, nil
}

func (m *MemoryRunRepository) LatestSuccessful(_ context.Context) (*SyncRun, error) {
	for _, run := range m.sorted() {
		if run.Status == RunSuccess {
			return run, nil
		}
	}
	return nil, nil
}

func (m *MemoryRunRepository) List(_ context.Context, limit int) ([]*SyncRun, error) {
	runs := m.sorted()
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryRunRepository) PurgeKeeping(_ context.Context, keep int) (int, error) {
	runs := m.sorted()
	if keep < 0 {
		keep = 0
	}
	if len(runs) <= keep {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, run := range runs[keep:] {
		delete(m.runs, run.ID)
		removed++
	}
	return removed, nil
}

// sorted returns copies ordered by creation time, newest first.
func (m *MemoryRunRepository) sorted() []*SyncRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*SyncRun, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, cloneRun(run))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out
}
