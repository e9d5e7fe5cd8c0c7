package domain

// Fill is the immutable record produced when an order resolves. It is
// appended to the owning order and drives exactly one ledger mutation.
type Fill struct {
	OrderID     int64
	Symbol      string
	Side        OrderSide
	Qty         int64   // always > 0; direction carried by Side
	Price       float64 // execution price after slippage/gap adjustment
	Commission  float64 // Qty * commission_per_share
	TimestampMs int64   // timestamp of the bar that produced the fill
}

// SignedQty returns the fill quantity signed by side.
func (f *Fill) SignedQty() int64 {
	return f.Side.Sign() * f.Qty
}

// CashDelta returns the change this fill applies to the cash balance:
// a buy debits cash, a sell credits it, commission always debits.
func (f *Fill) CashDelta() float64 {
	return -(float64(f.SignedQty())*f.Price + f.Commission)
}
