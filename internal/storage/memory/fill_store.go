package memory

import (
	"context"
	"sync"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

// FillStore is an in-memory implementation of storage.FillStore. Fills are
// kept per run in resolution order.
type FillStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Fill // keyed by run_id
}

// NewFillStore creates a new in-memory fill store.
func NewFillStore() *FillStore {
	return &FillStore{
		data: make(map[string][]*domain.Fill),
	}
}

// InsertBulk adds the fills of a run. A run's fill log is written once.
func (s *FillStore) InsertBulk(_ context.Context, runID string, fills []*domain.Fill) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	for _, f := range fills {
		if f == nil {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}

	stored := make([]*domain.Fill, len(fills))
	for i, f := range fills {
		fillCopy := *f
		stored[i] = &fillCopy
	}
	s.data[runID] = stored
	return nil
}

// GetByRunID retrieves all fills for a run in resolution order.
func (s *FillStore) GetByRunID(_ context.Context, runID string) ([]*domain.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fills, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	result := make([]*domain.Fill, len(fills))
	for i, f := range fills {
		fillCopy := *f
		result[i] = &fillCopy
	}
	return result, nil
}

var _ storage.FillStore = (*FillStore)(nil)
