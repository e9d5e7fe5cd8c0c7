// Package verification re-executes a run against its stored artifacts and
// reports any divergence. A deterministic engine must reproduce the stored
// fill log and final equity exactly; a divergence means either the inputs
// changed or determinism broke.
package verification

import (
	"context"
	"fmt"
	"math"

	"equity-backtest-lab/internal/backtest"
	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

// FloatTolerance is the tolerance for float64 comparisons. Fill prices and
// equity are pure float arithmetic over identical inputs, so the tolerance
// only absorbs storage round-trips, not model drift.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name, prefixed with fill index where applicable
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// Result contains the outcome of verifying one run.
type Result struct {
	RunID       string
	Match       bool
	Divergences []FieldDivergence
}

// Verifier re-runs stored runs and compares artifacts.
type Verifier struct {
	runStore  storage.RunStore
	fillStore storage.FillStore
}

// NewVerifier creates a verifier reading stored artifacts from the given
// stores.
func NewVerifier(runStore storage.RunStore, fillStore storage.FillStore) *Verifier {
	return &Verifier{
		runStore:  runStore,
		fillStore: fillStore,
	}
}

// VerifyRun loads the stored run, re-executes it with the supplied runner
// over the same bars, and compares the run identity, final equity, and the
// full fill log.
func (v *Verifier) VerifyRun(ctx context.Context, runID string, runner *backtest.Runner, series map[string][]domain.Bar) (*Result, error) {
	stored, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	storedFills, err := v.fillStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load fills %s: %w", runID, err)
	}

	replayed, err := runner.Run(ctx, stored.Symbols, series)
	if err != nil {
		return nil, fmt.Errorf("replay run %s: %w", runID, err)
	}

	divergences := CompareRuns(stored, replayed.Run)
	divergences = append(divergences, CompareFills(storedFills, replayed.Fills)...)

	return &Result{
		RunID:       runID,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}, nil
}

// CompareRuns compares the identity and outcome fields of two run records.
func CompareRuns(stored, replayed *domain.RunRecord) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.RunID != replayed.RunID {
		divergences = append(divergences, FieldDivergence{
			Field:    "RunID",
			Expected: stored.RunID,
			Actual:   replayed.RunID,
		})
	}
	if stored.StrategyID != replayed.StrategyID {
		divergences = append(divergences, FieldDivergence{
			Field:    "StrategyID",
			Expected: stored.StrategyID,
			Actual:   replayed.StrategyID,
		})
	}
	if !floatEquals(stored.FinalEquity, replayed.FinalEquity) {
		divergences = append(divergences, FieldDivergence{
			Field:    "FinalEquity",
			Expected: stored.FinalEquity,
			Actual:   replayed.FinalEquity,
		})
	}
	if !floatEquals(stored.RealizedPnL, replayed.RealizedPnL) {
		divergences = append(divergences, FieldDivergence{
			Field:    "RealizedPnL",
			Expected: stored.RealizedPnL,
			Actual:   replayed.RealizedPnL,
		})
	}
	if stored.FillCount != replayed.FillCount {
		divergences = append(divergences, FieldDivergence{
			Field:    "FillCount",
			Expected: stored.FillCount,
			Actual:   replayed.FillCount,
		})
	}

	return divergences
}

// CompareFills compares two fill logs position by position. Fill order is
// part of the engine's determinism contract, so index i is compared
// against index i.
func CompareFills(stored, replayed []*domain.Fill) []FieldDivergence {
	var divergences []FieldDivergence

	if len(stored) != len(replayed) {
		divergences = append(divergences, FieldDivergence{
			Field:    "len(fills)",
			Expected: len(stored),
			Actual:   len(replayed),
		})
		return divergences
	}

	for i := range stored {
		s, r := stored[i], replayed[i]
		prefix := fmt.Sprintf("fills[%d].", i)

		if s.OrderID != r.OrderID {
			divergences = append(divergences, FieldDivergence{prefix + "OrderID", s.OrderID, r.OrderID})
		}
		if s.Symbol != r.Symbol {
			divergences = append(divergences, FieldDivergence{prefix + "Symbol", s.Symbol, r.Symbol})
		}
		if s.Side != r.Side {
			divergences = append(divergences, FieldDivergence{prefix + "Side", s.Side, r.Side})
		}
		if s.Qty != r.Qty {
			divergences = append(divergences, FieldDivergence{prefix + "Qty", s.Qty, r.Qty})
		}
		if !floatEquals(s.Price, r.Price) {
			divergences = append(divergences, FieldDivergence{prefix + "Price", s.Price, r.Price})
		}
		if !floatEquals(s.Commission, r.Commission) {
			divergences = append(divergences, FieldDivergence{prefix + "Commission", s.Commission, r.Commission})
		}
		if s.TimestampMs != r.TimestampMs {
			divergences = append(divergences, FieldDivergence{prefix + "TimestampMs", s.TimestampMs, r.TimestampMs})
		}
	}

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
