// Package decision evaluates a finished backtest run against promotion
// criteria and renders a GO/NO-GO verdict. GO means the strategy is worth
// moving to paper trading; NO-GO names every failed check.
package decision

// Decision represents the final GO/NO-GO result.
type Decision string

const (
	DecisionGO   Decision = "GO"
	DecisionNOGO Decision = "NO-GO"
)

// Criteria holds the promotion thresholds.
type Criteria struct {
	// MinTotalReturn is the minimum total return, as a fraction of
	// initial cash.
	MinTotalReturn float64

	// MinSharpe is the minimum per-step Sharpe ratio.
	MinSharpe float64

	// MaxDrawdown is the largest acceptable peak-to-trough drawdown,
	// as a fraction of the peak.
	MaxDrawdown float64

	// MinWinRate is the minimum fraction of winning round trips.
	MinWinRate float64

	// MinRoundTrips is the minimum sample size. A high win rate over
	// two trades means nothing.
	MinRoundTrips int
}

// DefaultCriteria returns the standard promotion thresholds.
func DefaultCriteria() Criteria {
	return Criteria{
		MinTotalReturn: 0,
		MinSharpe:      0.1,
		MaxDrawdown:    0.20,
		MinWinRate:     0.40,
		MinRoundTrips:  10,
	}
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Result contains the final decision with checklist.
type Result struct {
	RunID      string
	StrategyID string
	Decision   Decision
	GOCriteria []CriterionResult // must all pass
	NOGOChecks []CriterionResult // Pass=false means triggered
}
