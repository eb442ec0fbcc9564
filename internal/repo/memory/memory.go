package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avolkov/webtracker/internal/domain"
	"github.com/avolkov/webtracker/internal/repo"
)

var _ repo.ResourceStore = (*Store)(nil)
var _ repo.LogStore = (*Store)(nil)

// Store keeps everything in process memory. Used for tests and for
// running without a database configured.
type Store struct {
	mu        sync.RWMutex
	nextResID int64
	nextLogID int64
	resources map[int64]*domain.Resource
	logs      []*domain.Log
}

func New() *Store {
	return &Store{
		resources: make(map[int64]*domain.Resource),
		logs:      make([]*domain.Log, 0, 128),
	}
}

func (m *Store) Create(ctx context.Context, r *domain.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextResID++
	r.ID = m.nextResID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	cp := *r
	m.resources[r.ID] = &cp
	return nil
}

func (m *Store) GetByID(ctx context.Context, id int64) (*domain.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *Store) GetByName(ctx context.Context, name string) (*domain.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.resources {
		if r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Store) ListAll(ctx context.Context) ([]domain.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Resource, 0, len(m.resources))
	for _, r := range m.resources {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) ListByUser(ctx context.Context, userID string) ([]domain.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Resource
	for _, r := range m.resources {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) Update(ctx context.Context, r *domain.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[r.ID]; !ok {
		return nil
	}
	cp := *r
	m.resources[r.ID] = &cp
	return nil
}

func (m *Store) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resources, id)
	return nil
}

func (m *Store) Append(ctx context.Context, l *domain.Log) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLogID++
	l.ID = m.nextLogID
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	cp := *l
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *Store) ListByResource(ctx context.Context, resourceID int64, limit int) ([]domain.Log, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Log
	for _, l := range m.logs {
		if l.ResourceID == resourceID {
			out = append(out, *l)
		}
	}
	// newest first
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) DeleteByResource(ctx context.Context, resourceID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.logs[:0]
	for _, l := range m.logs {
		if l.ResourceID != resourceID {
			kept = append(kept, l)
		}
	}
	m.logs = kept
	return nil
}
