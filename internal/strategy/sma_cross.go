package strategy

import (
	"fmt"

	"equity-backtest-lab/internal/domain"
)

// SMACrossStrategy implements a simple moving average crossover. It goes
// long when the short-period SMA crosses above the long-period SMA and
// flattens when it crosses below. One position per symbol, long-only.
type SMACrossStrategy struct {
	shortPeriod int
	longPeriod  int
	qty         int64
	trader      Trader

	// pending tracks symbols with an unresolved order so a slow fill
	// cannot trigger a duplicate submission on the next cross.
	pending map[string]bool
}

// NewSMACrossStrategy creates an SMACrossStrategy with the given periods
// and position size. shortPeriod must be smaller than longPeriod.
func NewSMACrossStrategy(shortPeriod, longPeriod int, qty int64) *SMACrossStrategy {
	return &SMACrossStrategy{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		qty:         qty,
		pending:     make(map[string]bool),
	}
}

// Compile-time interface check.
var _ Strategy = (*SMACrossStrategy)(nil)

// ID returns "sma_cross_<short>_<long>".
func (s *SMACrossStrategy) ID() string {
	return fmt.Sprintf("sma_cross_%d_%d", s.shortPeriod, s.longPeriod)
}

// Bind attaches the trading surface.
func (s *SMACrossStrategy) Bind(t Trader) {
	s.trader = t
}

// OnBar recomputes both SMAs over the visible history and reacts to a
// cross. Signals detected on bar N produce orders that resolve at bar N+1.
func (s *SMACrossStrategy) OnBar(symbol string, history []domain.Bar, newBar bool) {
	if !newBar || s.pending[symbol] {
		return
	}
	// A cross needs SMAs at the current bar and the one before it.
	if len(history) < s.longPeriod+1 {
		return
	}

	shortNow := smaAt(history, len(history)-1, s.shortPeriod)
	longNow := smaAt(history, len(history)-1, s.longPeriod)
	shortPrev := smaAt(history, len(history)-2, s.shortPeriod)
	longPrev := smaAt(history, len(history)-2, s.longPeriod)

	pos := s.trader.Position(symbol)

	switch {
	case shortPrev <= longPrev && shortNow > longNow && pos.Qty == 0:
		s.submit(symbol, domain.OrderSideBuy, s.qty)
	case shortPrev >= longPrev && shortNow < longNow && pos.Qty > 0:
		s.submit(symbol, domain.OrderSideSell, pos.Qty)
	}
}

// OnFill clears the pending flag so the next cross can trade again.
func (s *SMACrossStrategy) OnFill(order *domain.Order, _ *domain.Fill) {
	s.pending[order.Symbol] = false
}

// OnOrderStatus clears the pending flag when an order is cancelled.
func (s *SMACrossStrategy) OnOrderStatus(order *domain.Order) {
	if order.Status == domain.OrderStatusCancelled {
		s.pending[order.Symbol] = false
	}
}

func (s *SMACrossStrategy) submit(symbol string, side domain.OrderSide, qty int64) {
	err := s.trader.Submit(&domain.Order{
		Symbol: symbol,
		Side:   side,
		Qty:    qty,
		Kind:   domain.OrderKindMarket,
	})
	if err == nil {
		s.pending[symbol] = true
	}
}

// smaAt averages the closes of the window ending at index i (inclusive).
// The caller guarantees i-period+1 >= 0.
func smaAt(history []domain.Bar, i, period int) float64 {
	sum := 0.0
	for j := i - period + 1; j <= i; j++ {
		sum += history[j].Close
	}
	return sum / float64(period)
}
