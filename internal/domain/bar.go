package domain

// Bar represents one immutable OHLCV sample for a symbol at one time step.
// Bars for a symbol arrive in strictly increasing timestamp order; the engine
// never resorts them.
type Bar struct {
	Symbol      string  // instrument key
	TimestampMs int64   // Unix timestamp in milliseconds
	Open        float64 // price at bar open
	High        float64 // highest traded price in bar
	Low         float64 // lowest traded price in bar
	Close       float64 // price at bar close
	Volume      float64 // traded volume in bar
}
