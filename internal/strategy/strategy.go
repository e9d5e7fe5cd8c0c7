package strategy

import (
	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/ledger"
)

// Trader is the slice of the engine surface strategies trade through.
type Trader interface {
	Submit(o *domain.Order) error
	Cancel(o *domain.Order) error
	Position(symbol string) ledger.Position
}

// Strategy reacts to replayed bars by submitting orders through a Trader.
// The notification methods mirror the engine's observer contract, so a
// bound strategy subscribes directly to the engine.
type Strategy interface {
	// ID returns strategy identifier (includes parameters).
	ID() string

	// Bind attaches the trading surface. Called once before the first bar.
	Bind(t Trader)

	OnBar(symbol string, history []domain.Bar, newBar bool)
	OnFill(order *domain.Order, fill *domain.Fill)
	OnOrderStatus(order *domain.Order)
}
