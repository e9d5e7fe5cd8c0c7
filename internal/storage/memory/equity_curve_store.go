package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

// EquityCurveStore is an in-memory implementation of storage.EquityCurveStore.
type EquityCurveStore struct {
	mu   sync.RWMutex
	data map[string]*curvePoint // keyed by (run_id, timestamp_ms)
}

type curvePoint struct {
	runID string
	point domain.EquityPoint
}

// NewEquityCurveStore creates a new in-memory equity curve store.
func NewEquityCurveStore() *EquityCurveStore {
	return &EquityCurveStore{
		data: make(map[string]*curvePoint),
	}
}

func curveKey(runID string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", runID, timestampMs)
}

// InsertBulk adds equity samples. Fails entire batch on duplicate.
func (s *EquityCurveStore) InsertBulk(_ context.Context, runID string, points []*domain.EquityPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(points))
	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		key := curveKey(runID, p.TimestampMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		s.data[curveKey(runID, p.TimestampMs)] = &curvePoint{runID: runID, point: *p}
	}
	return nil
}

// GetByRunID retrieves all samples for a run, ordered by timestamp ASC.
func (s *EquityCurveStore) GetByRunID(_ context.Context, runID string) ([]*domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EquityPoint
	for _, cp := range s.data {
		if cp.runID == runID {
			pointCopy := cp.point
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)
