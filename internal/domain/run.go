package domain

// RunRecord summarizes one completed backtest run.
// Corresponds to the backtest_runs table.
type RunRecord struct {
	RunID      string // deterministic hash of run inputs
	StrategyID string // strategy identifier with parameters
	Symbols    []string

	// Configuration
	InitialCash        float64
	CommissionPerShare float64
	SlippageBps        float64

	// Window
	StartMs int64 // first bar timestamp across symbols
	EndMs   int64 // last bar timestamp across symbols

	// Outcome
	FinalEquity float64
	TotalReturn float64 // (final - initial) / initial
	MaxDrawdown float64 // worst peak-to-trough equity fraction
	Sharpe      float64 // annualization left to the caller
	RealizedPnL float64 // summed across symbols
	WinRate     float64 // winning round trips / total round trips
	RoundTrips  int
	FillCount   int
	BarCount    int
}

// EquityPoint is one sample of the equity curve, taken after each engine step.
type EquityPoint struct {
	TimestampMs int64
	Equity      float64
	Cash        float64
}
