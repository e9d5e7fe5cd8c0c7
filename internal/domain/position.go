package domain

// PositionSnapshot is the derived per-symbol portfolio view returned by
// reporting calls. Purely computed, no side effects.
type PositionSnapshot struct {
	Symbol        string
	Qty           int64   // signed: positive long, negative short
	AvgCost       float64 // meaningful only while Qty != 0
	LastPrice     float64 // last traded price, or AvgCost before first trade
	UnrealizedPnL float64 // Qty * (LastPrice - AvgCost)
	RealizedPnL   float64 // cumulative, never reset
}
