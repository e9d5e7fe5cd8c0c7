package domain

// EngineConfig holds the simulation cost model. Fixed at engine construction,
// immutable thereafter.
type EngineConfig struct {
	InitialCash        float64 // starting cash balance
	CommissionPerShare float64 // charged per unit on every fill
	SlippageBps        float64 // adverse market-order slippage, basis points of the open
}

// DefaultEngineConfig mirrors a typical US equity retail cost model.
var DefaultEngineConfig = EngineConfig{
	InitialCash:        100_000,
	CommissionPerShare: 0.005,
	SlippageBps:        0,
}
