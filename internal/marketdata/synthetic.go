package marketdata

import (
	"math"
	"math/rand"

	"equity-backtest-lab/internal/domain"
)

// SyntheticOptions controls generated series. Generation is seeded, so the
// same options always produce the same bars.
type SyntheticOptions struct {
	Symbol     string
	Bars       int
	StartMs    int64
	IntervalMs int64
	StartPrice float64
	Drift      float64 // per-bar fractional drift, e.g. 0.0002
	Volatility float64 // per-bar fractional volatility, e.g. 0.01
	Seed       int64
}

// GenerateSeries produces a deterministic random-walk bar series for demos
// and tests.
func GenerateSeries(opts SyntheticOptions) []domain.Bar {
	rng := rand.New(rand.NewSource(opts.Seed))

	bars := make([]domain.Bar, 0, opts.Bars)
	price := opts.StartPrice
	for i := 0; i < opts.Bars; i++ {
		ret := opts.Drift + opts.Volatility*rng.NormFloat64()
		open := price
		close := open * (1 + ret)
		if close <= 0 {
			close = open * 0.5
		}

		spread := math.Abs(open*opts.Volatility) * rng.Float64()
		high := math.Max(open, close) + spread
		low := math.Min(open, close) - spread
		if low <= 0 {
			low = math.Min(open, close) * 0.9
		}

		bars = append(bars, domain.Bar{
			Symbol:      opts.Symbol,
			TimestampMs: opts.StartMs + int64(i)*opts.IntervalMs,
			Open:        open,
			High:        high,
			Low:         low,
			Close:       close,
			Volume:      float64(1000 + rng.Intn(100_000)),
		})
		price = close
	}
	return bars
}
