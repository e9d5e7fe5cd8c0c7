// Package storage defines the persistence interfaces for bar data and
// backtest results, together with the sentinel errors shared by every
// implementation.
package storage

import (
	"context"

	"equity-backtest-lab/internal/domain"
)

// BarStore provides access to historical bar storage.
type BarStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on duplicate
	// (symbol, timestamp_ms).
	InsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetBySymbol retrieves all bars for a symbol, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.Bar, error)

	// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Bar, error)

	// Symbols returns the distinct symbols present, sorted ASC.
	Symbols(ctx context.Context) ([]string, error)
}

// RunStore provides access to backtest_runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetByStrategy retrieves all runs for a strategy, ordered by window start ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.RunRecord, error)
}

// FillStore provides access to the per-run fill log.
type FillStore interface {
	// InsertBulk adds the fills of a run in resolution order. Fails the
	// entire batch if the run already has fills recorded.
	InsertBulk(ctx context.Context, runID string, fills []*domain.Fill) error

	// GetByRunID retrieves all fills for a run in resolution order.
	GetByRunID(ctx context.Context, runID string) ([]*domain.Fill, error)
}

// EquityCurveStore provides access to the per-run equity curve.
type EquityCurveStore interface {
	// InsertBulk adds equity samples. Fails entire batch on duplicate
	// (run_id, timestamp_ms).
	InsertBulk(ctx context.Context, runID string, points []*domain.EquityPoint) error

	// GetByRunID retrieves all samples for a run, ordered by timestamp ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.EquityPoint, error)
}
