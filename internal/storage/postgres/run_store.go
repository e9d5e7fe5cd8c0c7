package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO backtest_runs (
			run_id, strategy_id, symbols,
			initial_cash, commission_per_share, slippage_bps,
			start_ms, end_ms,
			final_equity, total_return, max_drawdown, sharpe,
			realized_pnl, win_rate, round_trips, fill_count, bar_count
		) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, $16, $17
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.StrategyID, r.Symbols,
		r.InitialCash, r.CommissionPerShare, r.SlippageBps,
		r.StartMs, r.EndMs,
		r.FinalEquity, r.TotalReturn, r.MaxDrawdown, r.Sharpe,
		r.RealizedPnL, r.WinRate, r.RoundTrips, r.FillCount, r.BarCount,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	query := `
		SELECT
			run_id, strategy_id, symbols,
			initial_cash, commission_per_share, slippage_bps,
			start_ms, end_ms,
			final_equity, total_return, max_drawdown, sharpe,
			realized_pnl, win_rate, round_trips, fill_count, bar_count
		FROM backtest_runs
		WHERE run_id = $1
	`

	row := s.pool.QueryRow(ctx, query, runID)
	r, err := scanRunRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return r, nil
}

// GetByStrategy retrieves all runs for a strategy, ordered by window start.
func (s *RunStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.RunRecord, error) {
	query := `
		SELECT
			run_id, strategy_id, symbols,
			initial_cash, commission_per_share, slippage_bps,
			start_ms, end_ms,
			final_equity, total_return, max_drawdown, sharpe,
			realized_pnl, win_rate, round_trips, fill_count, bar_count
		FROM backtest_runs
		WHERE strategy_id = $1
		ORDER BY start_ms ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get backtest runs by strategy: %w", err)
	}
	defer rows.Close()

	var runs []*domain.RunRecord
	for rows.Next() {
		r, err := scanRunRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}

	return runs, nil
}

// scanRunRecord scans a single row into a RunRecord.
func scanRunRecord(row pgx.Row) (*domain.RunRecord, error) {
	var r domain.RunRecord

	err := row.Scan(
		&r.RunID, &r.StrategyID, &r.Symbols,
		&r.InitialCash, &r.CommissionPerShare, &r.SlippageBps,
		&r.StartMs, &r.EndMs,
		&r.FinalEquity, &r.TotalReturn, &r.MaxDrawdown, &r.Sharpe,
		&r.RealizedPnL, &r.WinRate, &r.RoundTrips, &r.FillCount, &r.BarCount,
	)
	if err != nil {
		return nil, err
	}

	return &r, nil
}
