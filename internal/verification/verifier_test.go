package verification

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"equity-backtest-lab/internal/backtest"
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

func testCfg() domain.EngineConfig {
	return domain.EngineConfig{InitialCash: 100000, CommissionPerShare: 0.005}
}

func TestVerifyRun_Match(t *testing.T) {
	ctx := context.Background()
	stores := backtest.Stores{
		Runs:        memory.NewRunStore(),
		Fills:       memory.NewFillStore(),
		EquityCurve: memory.NewEquityCurveStore(),
	}

	original := backtest.NewRunner(testCfg(), strategy.NewBuyHoldStrategy(100), stores, zap.NewNop())
	result, err := original.Run(ctx, []string{"AAPL"}, testSeries())
	if err != nil {
		t.Fatalf("original run failed: %v", err)
	}

	verifier := NewVerifier(stores.Runs, stores.Fills)
	replayRunner := backtest.NewRunner(testCfg(), strategy.NewBuyHoldStrategy(100), backtest.Stores{}, zap.NewNop())

	vr, err := verifier.VerifyRun(ctx, result.Run.RunID, replayRunner, testSeries())
	if err != nil {
		t.Fatalf("VerifyRun failed: %v", err)
	}
	if !vr.Match {
		t.Errorf("expected match, got divergences: %+v", vr.Divergences)
	}
}

func TestVerifyRun_DetectsChangedInputs(t *testing.T) {
	ctx := context.Background()
	stores := backtest.Stores{
		Runs:        memory.NewRunStore(),
		Fills:       memory.NewFillStore(),
		EquityCurve: memory.NewEquityCurveStore(),
	}

	original := backtest.NewRunner(testCfg(), strategy.NewBuyHoldStrategy(100), stores, zap.NewNop())
	result, err := original.Run(ctx, []string{"AAPL"}, testSeries())
	if err != nil {
		t.Fatalf("original run failed: %v", err)
	}

	// Replay over altered bars: the fill price and final equity shift.
	altered := testSeries()
	altered["AAPL"][1].Open = 150
	altered["AAPL"][1].High = 151

	verifier := NewVerifier(stores.Runs, stores.Fills)
	replayRunner := backtest.NewRunner(testCfg(), strategy.NewBuyHoldStrategy(100), backtest.Stores{}, zap.NewNop())

	vr, err := verifier.VerifyRun(ctx, result.Run.RunID, replayRunner, altered)
	if err != nil {
		t.Fatalf("VerifyRun failed: %v", err)
	}
	if vr.Match {
		t.Fatal("expected divergences for altered bars")
	}
}

func TestCompareFills_LengthMismatchShortCircuits(t *testing.T) {
	stored := []*domain.Fill{{Symbol: "AAPL", Side: domain.OrderSideBuy, Qty: 100, Price: 101}}

	divs := CompareFills(stored, nil)
	if len(divs) != 1 {
		t.Fatalf("expected 1 divergence, got %d", len(divs))
	}
	if divs[0].Field != "len(fills)" {
		t.Errorf("unexpected field %q", divs[0].Field)
	}
}

func TestCompareRuns_ToleratesTinyFloatNoise(t *testing.T) {
	a := &domain.RunRecord{RunID: "r", StrategyID: "s", FinalEquity: 100299.0, RealizedPnL: 299.0, FillCount: 2}
	b := &domain.RunRecord{RunID: "r", StrategyID: "s", FinalEquity: 100299.0 + 1e-9, RealizedPnL: 299.0, FillCount: 2}

	if divs := CompareRuns(a, b); len(divs) != 0 {
		t.Errorf("expected no divergences, got %+v", divs)
	}
}
