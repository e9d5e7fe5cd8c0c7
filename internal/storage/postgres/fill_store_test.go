package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

func createTestFills() []*domain.Fill {
	return []*domain.Fill{
		{OrderID: 1, Symbol: "AAPL", Side: domain.OrderSideBuy, Qty: 100, Price: 101.0, Commission: 0.5, TimestampMs: 1000},
		{OrderID: 2, Symbol: "AAPL", Side: domain.OrderSideSell, Qty: 100, Price: 105.0, Commission: 0.5, TimestampMs: 2000},
	}
}

func TestFillStore_InsertBulkAndGetByRunID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFillStore(pool)

	err := store.InsertBulk(ctx, "run-001", createTestFills())
	require.NoError(t, err)

	got, err := store.GetByRunID(ctx, "run-001")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Resolution order is preserved
	assert.Equal(t, int64(1), got[0].OrderID)
	assert.Equal(t, domain.OrderSideBuy, got[0].Side)
	assert.Equal(t, 101.0, got[0].Price)
	assert.Equal(t, int64(2), got[1].OrderID)
	assert.Equal(t, domain.OrderSideSell, got[1].Side)
}

func TestFillStore_InsertBulkDuplicateRun(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFillStore(pool)

	require.NoError(t, store.InsertBulk(ctx, "run-001", createTestFills()))

	err := store.InsertBulk(ctx, "run-001", createTestFills())
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Failed batch must not be partially applied
	got, err := store.GetByRunID(ctx, "run-001")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFillStore_GetByRunIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFillStore(pool)

	_, err := store.GetByRunID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFillStore_SeparateRuns(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFillStore(pool)

	require.NoError(t, store.InsertBulk(ctx, "run-001", createTestFills()))
	require.NoError(t, store.InsertBulk(ctx, "run-002", createTestFills()[:1]))

	got, err := store.GetByRunID(ctx, "run-002")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
