package task

import (
	"context"
	"sort"
	"sync"
)

// MemStore keeps tasks in process memory. It suits single-process
// deployments and tests; nothing survives a restart.
type MemStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{tasks: map[string]*Task{}}
}

func (s *MemStore) Insert(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return ErrDuplicateID
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *MemStore) FindByID(_ context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemStore) ConditionalUpdate(_ context.Context, id string, expected Status, p Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Status != expected {
		return false, nil
	}
	p.Apply(t)
	return true, nil
}

func (s *MemStore) ListByOwner(_ context.Context, walletAddress string, limit int) ([]*Task, error) {
	s.mu.RLock()
	var out []*Task
	for _, t := range s.tasks {
		if t.WalletAddress == walletAddress {
			out = append(out, t.Clone())
		}
	}
	s.mu.RUnlock()

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
