package engine

import "equity-backtest-lab/internal/domain"

// Observer receives engine notifications. Handlers run synchronously inside
// Step, in subscription order. Each invocation is isolated: a panicking
// handler is recovered and counted, and cannot corrupt engine state or stop
// other symbols from advancing.
type Observer interface {
	// OnBar fires once per symbol per step with the growing visible history.
	// newBar is true when the last element was appended by this step. Orders
	// submitted from inside the handler resolve no earlier than the next step.
	OnBar(symbol string, history []domain.Bar, newBar bool)

	// OnFill fires once per resolved order, after the ledger update.
	OnFill(order *domain.Order, fill *domain.Fill)

	// OnOrderStatus fires when an order is announced and on every terminal
	// transition (Filled, Cancelled).
	OnOrderStatus(order *domain.Order)
}
