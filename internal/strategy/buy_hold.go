package strategy

import (
	"fmt"

	"equity-backtest-lab/internal/domain"
)

// BuyHoldStrategy buys a fixed quantity of each symbol on its first visible
// bar and never trades again. The benchmark baseline.
type BuyHoldStrategy struct {
	qty     int64
	trader  Trader
	entered map[string]bool
}

// NewBuyHoldStrategy creates a BuyHoldStrategy buying qty shares per symbol.
func NewBuyHoldStrategy(qty int64) *BuyHoldStrategy {
	return &BuyHoldStrategy{
		qty:     qty,
		entered: make(map[string]bool),
	}
}

// Compile-time interface check.
var _ Strategy = (*BuyHoldStrategy)(nil)

// ID returns "buy_hold_<qty>".
func (s *BuyHoldStrategy) ID() string {
	return fmt.Sprintf("buy_hold_%d", s.qty)
}

// Bind attaches the trading surface.
func (s *BuyHoldStrategy) Bind(t Trader) {
	s.trader = t
}

// OnBar submits one market buy per symbol on its first bar. The order
// resolves at the following bar's open.
func (s *BuyHoldStrategy) OnBar(symbol string, _ []domain.Bar, newBar bool) {
	if !newBar || s.entered[symbol] {
		return
	}
	s.entered[symbol] = true

	_ = s.trader.Submit(&domain.Order{
		Symbol: symbol,
		Side:   domain.OrderSideBuy,
		Qty:    s.qty,
		Kind:   domain.OrderKindMarket,
	})
}

// OnFill is a no-op; the position is held until the session ends.
func (s *BuyHoldStrategy) OnFill(_ *domain.Order, _ *domain.Fill) {}

// OnOrderStatus is a no-op.
func (s *BuyHoldStrategy) OnOrderStatus(_ *domain.Order) {}
