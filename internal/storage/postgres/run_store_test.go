package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

func createTestRun(runID, strategyID string, startMs int64) *domain.RunRecord {
	return &domain.RunRecord{
		RunID:              runID,
		StrategyID:         strategyID,
		Symbols:            []string{"AAPL", "MSFT"},
		InitialCash:        100000,
		CommissionPerShare: 0.005,
		SlippageBps:        10,
		StartMs:            startMs,
		EndMs:              startMs + 86400000,
		FinalEquity:        100399.50,
		TotalReturn:        0.003995,
		MaxDrawdown:        0.012,
		Sharpe:             1.3,
		RealizedPnL:        399.0,
		WinRate:            1.0,
		RoundTrips:         1,
		FillCount:          2,
		BarCount:           500,
	}
}

func TestRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	run := createTestRun("run-001", "sma_cross_10_30", 1000)

	err := store.Insert(ctx, run)
	require.NoError(t, err)

	got, err := store.GetByID(ctx, "run-001")
	require.NoError(t, err)
	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, run.StrategyID, got.StrategyID)
	assert.Equal(t, run.Symbols, got.Symbols)
	assert.Equal(t, run.FinalEquity, got.FinalEquity)
	assert.Equal(t, run.RealizedPnL, got.RealizedPnL)
	assert.Equal(t, run.RoundTrips, got.RoundTrips)
}

func TestRunStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	require.NoError(t, store.Insert(ctx, createTestRun("run-001", "buy_hold", 1000)))

	err := store.Insert(ctx, createTestRun("run-001", "buy_hold", 2000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRunStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_GetByStrategy(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	require.NoError(t, store.Insert(ctx, createTestRun("run-b", "sma_cross_10_30", 2000)))
	require.NoError(t, store.Insert(ctx, createTestRun("run-a", "sma_cross_10_30", 1000)))
	require.NoError(t, store.Insert(ctx, createTestRun("run-c", "buy_hold", 500)))

	got, err := store.GetByStrategy(ctx, "sma_cross_10_30")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-a", got[0].RunID)
	assert.Equal(t, "run-b", got[1].RunID)
}

func TestRunStore_InsertInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)

	err := store.Insert(context.Background(), &domain.RunRecord{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
