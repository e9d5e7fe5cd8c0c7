// Package metrics computes run-level performance statistics from the
// equity curve and fill log of a completed backtest.
package metrics

import (
	"math"

	"equity-backtest-lab/internal/domain"
)

// RunMetrics holds the derived statistics of one run.
type RunMetrics struct {
	TotalReturn float64 // (final - initial) / initial
	MaxDrawdown float64 // worst peak-to-trough equity fraction, >= 0
	Sharpe      float64 // mean step return / stddev, not annualized
	WinRate     float64 // winning round trips / total round trips
	RoundTrips  int
}

// Compute derives all metrics for a run. The curve must be in time order
// and the fills in resolution order; both are produced that way by the
// engine. A run with no equity samples yields zero metrics.
func Compute(initialCash float64, curve []*domain.EquityPoint, fills []*domain.Fill) RunMetrics {
	m := RunMetrics{}

	if len(curve) > 0 && initialCash > 0 {
		final := curve[len(curve)-1].Equity
		m.TotalReturn = (final - initialCash) / initialCash
	}

	m.MaxDrawdown = computeMaxDrawdown(curve)
	m.Sharpe = computeSharpe(curve)
	m.RoundTrips, m.WinRate = computeRoundTrips(fills)

	return m
}

// computeMaxDrawdown returns the largest fractional decline from any
// running equity peak.
func computeMaxDrawdown(curve []*domain.EquityPoint) float64 {
	peak := 0.0
	worst := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// computeSharpe returns mean step return over its sample standard
// deviation. Annualization depends on bar frequency and is left to the
// caller. Zero when fewer than two returns or zero variance.
func computeSharpe(curve []*domain.EquityPoint) float64 {
	var returns []float64
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)

	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}

// computeRoundTrips replays the fill log per symbol and counts round
// trips: a trip starts when a flat position opens and closes when the
// quantity returns to zero. A side flip closes one trip and opens the
// next within a single fill; its commission is prorated across the two
// legs. Trip P&L is pure cash flow, so all commissions count against it.
func computeRoundTrips(fills []*domain.Fill) (int, float64) {
	type tripState struct {
		qty int64
		pnl float64
	}
	state := make(map[string]*tripState)

	trips := 0
	wins := 0

	closeTrip := func(s *tripState) {
		trips++
		if s.pnl > 0 {
			wins++
		}
		s.pnl = 0
	}

	for _, f := range fills {
		s := state[f.Symbol]
		if s == nil {
			s = &tripState{}
			state[f.Symbol] = s
		}

		signed := f.SignedQty()
		perShare := f.Commission / float64(f.Qty)

		closeQty := int64(0)
		if s.qty > 0 && signed < 0 {
			closeQty = -min64(-signed, s.qty)
		} else if s.qty < 0 && signed > 0 {
			closeQty = min64(signed, -s.qty)
		}
		openQty := signed - closeQty

		if closeQty != 0 {
			s.pnl += -float64(closeQty)*f.Price - perShare*float64(abs64(closeQty))
			s.qty += closeQty
			if s.qty == 0 {
				closeTrip(s)
			}
		}
		if openQty != 0 {
			s.pnl += -float64(openQty)*f.Price - perShare*float64(abs64(openQty))
			s.qty += openQty
		}
	}

	if trips == 0 {
		return 0, 0
	}
	return trips, float64(wins) / float64(trips)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
