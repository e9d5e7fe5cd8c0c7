package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage/memory"
	"equity-backtest-lab/internal/strategy"
)

func testSeries() map[string][]domain.Bar {
	return map[string][]domain.Bar{
		"AAPL": {
			{Symbol: "AAPL", TimestampMs: 1000, Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 1000},
			{Symbol: "AAPL", TimestampMs: 2000, Open: 101, High: 102.5, Low: 100.5, Close: 102, Volume: 1000},
			{Symbol: "AAPL", TimestampMs: 3000, Open: 103, High: 104.5, Low: 102.5, Close: 104, Volume: 1000},
		},
	}
}

func testConfig() domain.EngineConfig {
	return domain.EngineConfig{
		InitialCash:        100000,
		CommissionPerShare: 0.005,
		SlippageBps:        0,
	}
}

func memStores() Stores {
	return Stores{
		Runs:        memory.NewRunStore(),
		Fills:       memory.NewFillStore(),
		EquityCurve: memory.NewEquityCurveStore(),
	}
}

func TestRunner_BuyHoldFullCycle(t *testing.T) {
	stores := memStores()
	runner := NewRunner(testConfig(), strategy.NewBuyHoldStrategy(100), stores, zap.NewNop())

	result, err := runner.Run(context.Background(), []string{"AAPL"}, testSeries())
	require.NoError(t, err)

	run := result.Run
	// Entry fills at bar 2 open (101) for 0.50 commission; the forced
	// close at the final price (104) charges another 0.50.
	assert.Equal(t, 100299.0, run.FinalEquity)
	assert.InDelta(t, 0.00299, run.TotalReturn, 1e-9)
	assert.Equal(t, 299.0, run.RealizedPnL)
	assert.Equal(t, 2, run.FillCount)
	assert.Equal(t, 1, run.RoundTrips)
	assert.Equal(t, 1.0, run.WinRate)
	assert.Equal(t, 3, run.BarCount)
	assert.Equal(t, int64(1000), run.StartMs)
	assert.Equal(t, int64(3000), run.EndMs)

	require.Len(t, result.Fills, 2)
	assert.Equal(t, 101.0, result.Fills[0].Price)
	assert.Equal(t, domain.OrderSideSell, result.Fills[1].Side)
	assert.Equal(t, 104.0, result.Fills[1].Price)

	// Curve ends flat after the forced close.
	require.NotEmpty(t, result.EquityCurve)
	last := result.EquityCurve[len(result.EquityCurve)-1]
	assert.Equal(t, int64(3000), last.TimestampMs)
	assert.Equal(t, 100299.0, last.Equity)
	assert.Equal(t, last.Equity, last.Cash)
}

func TestRunner_PersistsArtifacts(t *testing.T) {
	stores := memStores()
	runner := NewRunner(testConfig(), strategy.NewBuyHoldStrategy(100), stores, zap.NewNop())

	ctx := context.Background()
	result, err := runner.Run(ctx, []string{"AAPL"}, testSeries())
	require.NoError(t, err)

	stored, err := stores.Runs.GetByID(ctx, result.Run.RunID)
	require.NoError(t, err)
	assert.Equal(t, result.Run.FinalEquity, stored.FinalEquity)

	fills, err := stores.Fills.GetByRunID(ctx, result.Run.RunID)
	require.NoError(t, err)
	assert.Len(t, fills, 2)

	curve, err := stores.EquityCurve.GetByRunID(ctx, result.Run.RunID)
	require.NoError(t, err)
	assert.Len(t, curve, len(result.EquityCurve))
}

func TestRunner_Reproducible(t *testing.T) {
	stores := memStores()
	ctx := context.Background()

	first, err := NewRunner(testConfig(), strategy.NewBuyHoldStrategy(100), stores, zap.NewNop()).
		Run(ctx, []string{"AAPL"}, testSeries())
	require.NoError(t, err)

	// Identical inputs: same run identity, same artifacts; the duplicate
	// run record is tolerated, not treated as an error.
	second, err := NewRunner(testConfig(), strategy.NewBuyHoldStrategy(100), stores, zap.NewNop()).
		Run(ctx, []string{"AAPL"}, testSeries())
	require.NoError(t, err)

	assert.Equal(t, first.Run.RunID, second.Run.RunID)
	require.Equal(t, len(first.Fills), len(second.Fills))
	for i := range first.Fills {
		assert.Equal(t, *first.Fills[i], *second.Fills[i])
	}
}

func TestRunner_NoData(t *testing.T) {
	runner := NewRunner(testConfig(), strategy.NewBuyHoldStrategy(100), Stores{}, zap.NewNop())

	_, err := runner.Run(context.Background(), []string{"AAPL"}, map[string][]domain.Bar{"AAPL": {}})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRunner_NoStoresStaysInMemory(t *testing.T) {
	runner := NewRunner(testConfig(), strategy.NewBuyHoldStrategy(100), Stores{}, zap.NewNop())

	result, err := runner.Run(context.Background(), []string{"AAPL"}, testSeries())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Fills)
}
