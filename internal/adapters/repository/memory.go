package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/rebooked/apsmatch/internal/domain/model"
	"github.com/rebooked/apsmatch/pkg/metrics"
)

const backendMemory = "memory"

// MemoryStore keeps evaluations in a map guarded by a RWMutex. Updates to an
// existing id keep its original insertion position.
type MemoryStore struct {
	mu         sync.RWMutex
	items      map[string]model.Evaluation
	order      []string
	maxEntries int
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{items: make(map[string]model.Evaluation)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Put(ctx context.Context, e model.Evaluation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if e.ID == "" {
		metrics.RecordStoreError(backendMemory, "put")
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[e.ID]; !exists {
		if s.maxEntries > 0 && len(s.items) >= s.maxEntries {
			s.evictOldest()
		}
		s.order = append(s.order, e.ID)
	}
	s.items[e.ID] = e

	metrics.RecordStoreOperation(backendMemory, "put")
	metrics.UpdateStoreEntries(len(s.items))
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (model.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return model.Evaluation{}, fmt.Errorf("context cancelled: %w", err)
	}

	s.mu.RLock()
	e, ok := s.items[id]
	s.mu.RUnlock()

	metrics.RecordStoreOperation(backendMemory, "get")
	if !ok {
		return model.Evaluation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return nil
	}
	delete(s.items, id)
	for i, kept := range s.order {
		if kept == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	metrics.RecordStoreOperation(backendMemory, "delete")
	metrics.UpdateStoreEntries(len(s.items))
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

func (s *MemoryStore) Close() error { return nil }

// evictOldest drops the earliest inserted evaluation. Must be called with s.mu held.
func (s *MemoryStore) evictOldest() {
	if len(s.order) == 0 {
		return
	}
	oldest := s.order[0]
	s.order[0] = ""
	s.order = s.order[1:]
	delete(s.items, oldest)
	metrics.RecordStoreOperation(backendMemory, "evict")
}
