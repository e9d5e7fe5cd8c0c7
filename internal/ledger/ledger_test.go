package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFill_OpenLong(t *testing.T) {
	l := New(100_000)

	err := l.ApplyFill("AAPL", 100, 101.0, 0.50)
	require.NoError(t, err)

	p := l.Position("AAPL")
	assert.Equal(t, int64(100), p.Qty)
	assert.Equal(t, 101.0, p.AvgCost)
	assert.Equal(t, -0.50, p.RealizedPnL)
	assert.Equal(t, 100_000.0-10_100.0-0.50, l.Cash())
}

func TestApplyFill_IncreaseBlendsAvgCost(t *testing.T) {
	l := New(100_000)

	require.NoError(t, l.ApplyFill("AAPL", 100, 100.0, 0))
	require.NoError(t, l.ApplyFill("AAPL", 100, 110.0, 0))

	p := l.Position("AAPL")
	assert.Equal(t, int64(200), p.Qty)
	assert.Equal(t, 105.0, p.AvgCost)
	assert.Equal(t, 0.0, p.RealizedPnL)
}

func TestApplyFill_FullCloseResetsCost(t *testing.T) {
	l := New(100_000)

	require.NoError(t, l.ApplyFill("AAPL", 100, 101.0, 0.50))
	require.NoError(t, l.ApplyFill("AAPL", -100, 105.0, 0.50))

	p := l.Position("AAPL")
	assert.Equal(t, int64(0), p.Qty)
	assert.Equal(t, 0.0, p.AvgCost)
	// 100*(105-101) - both commissions
	assert.InDelta(t, 400.0-1.0, p.RealizedPnL, 1e-9)
	// Cash conservation: initial - sum(signedQty*price + commission)
	assert.InDelta(t, 100_000-(100*101.0+0.50)-(-100*105.0+0.50), l.Cash(), 1e-9)
}

func TestApplyFill_PartialReduceKeepsCost(t *testing.T) {
	l := New(100_000)

	require.NoError(t, l.ApplyFill("AAPL", 100, 100.0, 0))
	require.NoError(t, l.ApplyFill("AAPL", -40, 110.0, 0))

	p := l.Position("AAPL")
	assert.Equal(t, int64(60), p.Qty)
	assert.Equal(t, 100.0, p.AvgCost)
	assert.InDelta(t, 40*10.0, p.RealizedPnL, 1e-9)
}

func TestApplyFill_FlipOpensFreshBasis(t *testing.T) {
	l := New(100_000)

	require.NoError(t, l.ApplyFill("AAPL", 100, 100.0, 0))
	require.NoError(t, l.ApplyFill("AAPL", -150, 120.0, 0))

	p := l.Position("AAPL")
	assert.Equal(t, int64(-50), p.Qty)
	assert.Equal(t, 120.0, p.AvgCost)
	// Overlap of 100 closed at +20 each.
	assert.InDelta(t, 2000.0, p.RealizedPnL, 1e-9)
}

func TestApplyFill_ShortRoundTrip(t *testing.T) {
	l := New(50_000)

	require.NoError(t, l.ApplyFill("TSLA", -10, 200.0, 0.05))
	p := l.Position("TSLA")
	assert.Equal(t, int64(-10), p.Qty)
	assert.Equal(t, 200.0, p.AvgCost)

	// Cover at a lower price: short profit.
	require.NoError(t, l.ApplyFill("TSLA", 10, 180.0, 0.05))
	p = l.Position("TSLA")
	assert.Equal(t, int64(0), p.Qty)
	assert.Equal(t, 0.0, p.AvgCost)
	assert.InDelta(t, 10*20.0-0.10, p.RealizedPnL, 1e-9)
	assert.InDelta(t, 50_000+10*200.0-0.05-10*180.0-0.05, l.Cash(), 1e-9)
}

func TestApplyFill_RejectsInvalidInput(t *testing.T) {
	l := New(1000)

	require.ErrorIs(t, l.ApplyFill("AAPL", 0, 100, 0), ErrZeroQuantity)
	require.ErrorIs(t, l.ApplyFill("AAPL", 10, -1, 0), ErrNegativePrice)
	require.ErrorIs(t, l.ApplyFill("AAPL", 10, 100, -0.5), ErrNegativeCommission)

	// Nothing mutated on rejection.
	assert.Equal(t, 1000.0, l.Cash())
	assert.Equal(t, Position{}, l.Position("AAPL"))
}

func TestEquity_MarksToLastPrice(t *testing.T) {
	l := New(100_000)
	require.NoError(t, l.ApplyFill("AAPL", 100, 101.0, 0.50))

	// Scenario from the engine contract: cash 89,899.50, close 105.
	require.InDelta(t, 89_899.50, l.Cash(), 1e-9)
	equity := l.Equity(map[string]float64{"AAPL": 105.0})
	assert.InDelta(t, 100_399.50, equity, 1e-9)
}

func TestEquity_FallsBackToAvgCost(t *testing.T) {
	l := New(10_000)
	require.NoError(t, l.ApplyFill("MSFT", 10, 300.0, 0))

	// No last price known yet: mark at basis, equity unchanged.
	assert.InDelta(t, 10_000.0, l.Equity(map[string]float64{}), 1e-9)
}

func TestSnapshots_SortedAndDerived(t *testing.T) {
	l := New(100_000)
	require.NoError(t, l.ApplyFill("MSFT", 10, 300.0, 0))
	require.NoError(t, l.ApplyFill("AAPL", 100, 101.0, 0.50))

	snaps := l.Snapshots(map[string]float64{"AAPL": 105.0, "MSFT": 290.0})
	require.Len(t, snaps, 2)

	assert.Equal(t, "AAPL", snaps[0].Symbol)
	assert.InDelta(t, 400.0, snaps[0].UnrealizedPnL, 1e-9)
	assert.InDelta(t, -0.50, snaps[0].RealizedPnL, 1e-9)

	assert.Equal(t, "MSFT", snaps[1].Symbol)
	assert.InDelta(t, -100.0, snaps[1].UnrealizedPnL, 1e-9)
}

func TestPosition_NeverDeletedAfterClose(t *testing.T) {
	l := New(100_000)
	require.NoError(t, l.ApplyFill("AAPL", 10, 100.0, 0))
	require.NoError(t, l.ApplyFill("AAPL", -10, 100.0, 0))

	assert.Equal(t, []string{"AAPL"}, l.Symbols())
	snaps := l.Snapshots(nil)
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(0), snaps[0].Qty)
}
