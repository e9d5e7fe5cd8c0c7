package decision

import (
	"fmt"

	"equity-backtest-lab/internal/domain"
)

// Evaluator evaluates promotion criteria.
type Evaluator struct {
	criteria Criteria
}

// NewEvaluator creates an evaluator with the given thresholds.
func NewEvaluator(criteria Criteria) *Evaluator {
	return &Evaluator{criteria: criteria}
}

// Evaluate produces a Result for a finished run.
// GO if ALL criteria pass and NO NO-GO triggers.
// NO-GO if ANY criterion fails or ANY trigger fires.
func (e *Evaluator) Evaluate(run *domain.RunRecord) *Result {
	goCriteria := e.evaluateGOCriteria(run)
	nogoChecks := e.evaluateNOGOTriggers(run)

	allGOPass := true
	for _, c := range goCriteria {
		if !c.Pass {
			allGOPass = false
			break
		}
	}

	anyNOGOTriggered := false
	for _, c := range nogoChecks {
		if !c.Pass { // Pass=false means triggered
			anyNOGOTriggered = true
			break
		}
	}

	decision := DecisionGO
	if !allGOPass || anyNOGOTriggered {
		decision = DecisionNOGO
	}

	return &Result{
		RunID:      run.RunID,
		StrategyID: run.StrategyID,
		Decision:   decision,
		GOCriteria: goCriteria,
		NOGOChecks: nogoChecks,
	}
}

// evaluateGOCriteria evaluates the 5 GO criteria.
func (e *Evaluator) evaluateGOCriteria(run *domain.RunRecord) []CriterionResult {
	criteria := make([]CriterionResult, 5)

	criteria[0] = CriterionResult{
		Name:      "Total return",
		Threshold: fmt.Sprintf("> %.2f%%", e.criteria.MinTotalReturn*100),
		Actual:    fmt.Sprintf("%.2f%%", run.TotalReturn*100),
		Pass:      run.TotalReturn > e.criteria.MinTotalReturn,
	}

	criteria[1] = CriterionResult{
		Name:      "Sharpe ratio",
		Threshold: fmt.Sprintf(">= %.2f", e.criteria.MinSharpe),
		Actual:    fmt.Sprintf("%.4f", run.Sharpe),
		Pass:      run.Sharpe >= e.criteria.MinSharpe,
	}

	criteria[2] = CriterionResult{
		Name:      "Max drawdown",
		Threshold: fmt.Sprintf("<= %.2f%%", e.criteria.MaxDrawdown*100),
		Actual:    fmt.Sprintf("%.2f%%", run.MaxDrawdown*100),
		Pass:      run.MaxDrawdown <= e.criteria.MaxDrawdown,
	}

	criteria[3] = CriterionResult{
		Name:      "Win rate",
		Threshold: fmt.Sprintf(">= %.2f", e.criteria.MinWinRate),
		Actual:    fmt.Sprintf("%.4f", run.WinRate),
		Pass:      run.WinRate >= e.criteria.MinWinRate,
	}

	criteria[4] = CriterionResult{
		Name:      "Round trip sample size",
		Threshold: fmt.Sprintf(">= %d", e.criteria.MinRoundTrips),
		Actual:    fmt.Sprintf("%d", run.RoundTrips),
		Pass:      run.RoundTrips >= e.criteria.MinRoundTrips,
	}

	return criteria
}

// evaluateNOGOTriggers evaluates the 2 NO-GO triggers.
// Pass=true means NOT triggered, Pass=false means triggered.
func (e *Evaluator) evaluateNOGOTriggers(run *domain.RunRecord) []CriterionResult {
	checks := make([]CriterionResult, 2)

	// 1. No trading activity at all triggers NO-GO: nothing was tested.
	triggered1 := run.FillCount == 0
	checks[0] = CriterionResult{
		Name:      "No trading activity",
		Threshold: "FillCount == 0",
		Actual:    fmt.Sprintf("%d fills", run.FillCount),
		Pass:      !triggered1,
	}

	// 2. Equity gain with negative realized P&L means the result rides on
	// an open position that never proved itself.
	triggered2 := run.TotalReturn > 0 && run.RealizedPnL < 0
	checks[1] = CriterionResult{
		Name:      "Return carried by open position",
		Threshold: "TotalReturn > 0 AND RealizedPnL < 0",
		Actual:    fmt.Sprintf("TotalReturn=%.4f, RealizedPnL=%.2f", run.TotalReturn, run.RealizedPnL),
		Pass:      !triggered2,
	}

	return checks
}
