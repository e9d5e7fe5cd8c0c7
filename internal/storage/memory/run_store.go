package memory

import (
	"context"
	"sort"
	"sync"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunRecord // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunRecord),
	}
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.RunID] = copyRun(r)
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRun(r), nil
}

// GetByStrategy retrieves all runs for a strategy, ordered by window start ASC.
func (s *RunStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunRecord
	for _, r := range s.data {
		if r.StrategyID == strategyID {
			result = append(result, copyRun(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartMs != result[j].StartMs {
			return result[i].StartMs < result[j].StartMs
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

func copyRun(r *domain.RunRecord) *domain.RunRecord {
	runCopy := *r
	runCopy.Symbols = append([]string(nil), r.Symbols...)
	return &runCopy
}

var _ storage.RunStore = (*RunStore)(nil)
