// Package sim decides which pending orders fill against an incoming bar and
// at what price. Every function is a pure function of (order, bar, config):
// no engine state is read or written here, which is what keeps fill pricing
// reproducible bit-for-bit across runs.
package sim

import (
	"equity-backtest-lab/internal/domain"
)

// ResolveAtOpen resolves a market or limit order against the current bar.
// Returns the fill and true when the order fills in full, or nil and false
// when it stays pending. Unsupported order kinds never fill; leaving them
// pending is deliberate forward compatibility, not an error.
func ResolveAtOpen(o *domain.Order, bar domain.Bar, cfg domain.EngineConfig) (*domain.Fill, bool) {
	switch o.Kind {
	case domain.OrderKindMarket:
		return makeFill(o, bar, marketPrice(o.Side, bar.Open, cfg.SlippageBps), cfg), true

	case domain.OrderKindLimit:
		if o.Side == domain.OrderSideBuy {
			if bar.Low > o.LimitPrice {
				return nil, false
			}
			// A bar opening at or below the limit gaps in the buyer's
			// favor: the order takes the better (lower) price.
			return makeFill(o, bar, min(bar.Open, o.LimitPrice), cfg), true
		}
		if bar.High < o.LimitPrice {
			return nil, false
		}
		return makeFill(o, bar, max(bar.Open, o.LimitPrice), cfg), true

	default:
		return nil, false
	}
}

// TriggerStop checks a stop order against the current bar's high/low range.
// Stops price adversely on a gap through the trigger: the holder gets the
// worse of open and stop price.
func TriggerStop(o *domain.Order, bar domain.Bar, cfg domain.EngineConfig) (*domain.Fill, bool) {
	if o.Kind != domain.OrderKindStop {
		return nil, false
	}

	if o.Side == domain.OrderSideSell {
		// Long exit.
		if bar.Low > o.StopPrice {
			return nil, false
		}
		return makeFill(o, bar, min(bar.Open, o.StopPrice), cfg), true
	}

	// Buy stop: short exit.
	if bar.High < o.StopPrice {
		return nil, false
	}
	return makeFill(o, bar, max(bar.Open, o.StopPrice), cfg), true
}

// marketPrice applies adverse slippage to the bar open: added for buys,
// subtracted for sells.
func marketPrice(side domain.OrderSide, open, slippageBps float64) float64 {
	slip := open * slippageBps / 10_000
	if side == domain.OrderSideSell {
		return open - slip
	}
	return open + slip
}

func makeFill(o *domain.Order, bar domain.Bar, price float64, cfg domain.EngineConfig) *domain.Fill {
	return &domain.Fill{
		OrderID:     o.ID,
		Symbol:      o.Symbol,
		Side:        o.Side,
		Qty:         o.Qty,
		Price:       price,
		Commission:  float64(o.Qty) * cfg.CommissionPerShare,
		TimestampMs: bar.TimestampMs,
	}
}
