package postgres

import (
	"context"
	"fmt"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

// FillStore implements storage.FillStore using PostgreSQL. The seq column
// preserves resolution order within a run.
type FillStore struct {
	pool *Pool
}

// NewFillStore creates a new FillStore.
func NewFillStore(pool *Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

// InsertBulk adds the fills of a run atomically. A run's fill log is
// written once; any duplicate (run_id, seq) fails the entire batch.
func (s *FillStore) InsertBulk(ctx context.Context, runID string, fills []*domain.Fill) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO fills (
			run_id, seq, order_id, symbol, side,
			qty, price, commission, timestamp_ms
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
	`

	for i, f := range fills {
		if f == nil {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			runID, i, f.OrderID, f.Symbol, string(f.Side),
			f.Qty, f.Price, f.Commission, f.TimestampMs,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert fill in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all fills for a run in resolution order. Returns
// ErrNotFound when the run has no fills recorded.
func (s *FillStore) GetByRunID(ctx context.Context, runID string) ([]*domain.Fill, error) {
	query := `
		SELECT order_id, symbol, side, qty, price, commission, timestamp_ms
		FROM fills
		WHERE run_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get fills by run id: %w", err)
	}
	defer rows.Close()

	var fills []*domain.Fill
	for rows.Next() {
		var f domain.Fill
		var side string

		err := rows.Scan(&f.OrderID, &f.Symbol, &side, &f.Qty, &f.Price, &f.Commission, &f.TimestampMs)
		if err != nil {
			return nil, fmt.Errorf("scan fill row: %w", err)
		}
		f.Side = domain.OrderSide(side)

		fills = append(fills, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fill rows: %w", err)
	}

	if len(fills) == 0 {
		return nil, storage.ErrNotFound
	}

	return fills, nil
}
