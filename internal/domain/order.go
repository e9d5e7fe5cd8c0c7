package domain

// OrderSide represents the direction of an order.
type OrderSide string

// Order side constants.
const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Sign returns +1 for buys and -1 for sells.
func (s OrderSide) Sign() int64 {
	if s == OrderSideSell {
		return -1
	}
	return 1
}

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderKind is a closed set of order types. LimitPrice is meaningful only for
// KindLimit, StopPrice only for KindStop.
type OrderKind string

// Order kind constants.
const (
	OrderKindMarket OrderKind = "MARKET"
	OrderKindLimit  OrderKind = "LIMIT"
	OrderKindStop   OrderKind = "STOP"
)

// OrderStatus represents the lifecycle state of an order.
// Submitted -> Filled | Cancelled. Filled and Cancelled are terminal.
type OrderStatus string

// Order status constants.
const (
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether the status is a terminal state.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

// Order is a mutable order record. It is created by strategy code via
// Engine.Submit, mutated only by the engine during its own step, and never
// deleted. Invariant: FilledQty + RemainingQty == Qty at all times. An order
// either fills in full during one step or stays pending; partial fills are
// not modeled.
type Order struct {
	ID     int64     // engine-assigned, unique per engine instance
	Symbol string    // instrument key
	Side   OrderSide // BUY or SELL, always explicit (never inferred)
	Qty    int64     // requested quantity, > 0

	Kind       OrderKind
	LimitPrice float64 // required when Kind == OrderKindLimit
	StopPrice  float64 // required when Kind == OrderKindStop

	Status       OrderStatus
	FilledQty    int64
	RemainingQty int64
	AvgFillPrice float64 // zero until resolved

	// Fills accumulates fill records in resolution order.
	Fills []*Fill

	SubmittedAtMs int64 // timestamp of the bar visible at submission, 0 if none
}

// SignedQty returns the requested quantity signed by side.
func (o *Order) SignedQty() int64 {
	return o.Side.Sign() * o.Qty
}
