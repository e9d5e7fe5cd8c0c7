package clickhouse

import (
	"context"
	"fmt"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

// EquityCurveStore implements storage.EquityCurveStore using ClickHouse.
type EquityCurveStore struct {
	conn *Conn
}

// NewEquityCurveStore creates a new EquityCurveStore.
func NewEquityCurveStore(conn *Conn) *EquityCurveStore {
	return &EquityCurveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)

// InsertBulk adds equity samples. Fails entire batch on duplicate (run_id, timestamp_ms).
func (s *EquityCurveStore) InsertBulk(ctx context.Context, runID string, points []*domain.EquityPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{})
	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[p.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		seen[p.TimestampMs] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	exists, err := s.runExists(ctx, runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_curve (
			run_id, timestamp_ms, equity, cash
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(runID, uint64(p.TimestampMs), p.Equity, p.Cash)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all samples for a run, ordered by timestamp ASC.
func (s *EquityCurveStore) GetByRunID(ctx context.Context, runID string) ([]*domain.EquityPoint, error) {
	query := `
		SELECT timestamp_ms, equity, cash
		FROM equity_curve
		WHERE run_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	var points []*domain.EquityPoint
	for rows.Next() {
		var p domain.EquityPoint
		var timestampMs uint64

		if err := rows.Scan(&timestampMs, &p.Equity, &p.Cash); err != nil {
			return nil, fmt.Errorf("scan equity point row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity point rows: %w", err)
	}

	return points, nil
}

// runExists checks if the run already has samples recorded.
func (s *EquityCurveStore) runExists(ctx context.Context, runID string) (bool, error) {
	query := `SELECT count(*) FROM equity_curve WHERE run_id = ?`

	var count uint64
	err := s.conn.QueryRow(ctx, query, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
