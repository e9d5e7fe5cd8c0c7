package strategy

import "errors"

// Strategy type names accepted by the factory.
const (
	TypeBuyHold  = "buy_hold"
	TypeSMACross = "sma_cross"
)

// Factory errors
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrNonPositiveQty      = errors.New("strategy requires a positive quantity")
	ErrInvalidPeriods      = errors.New("sma_cross requires 0 < short period < long period")
)

// Config selects and parameterizes one strategy.
type Config struct {
	Type        string `yaml:"type"`
	Qty         int64  `yaml:"qty"`
	ShortPeriod int    `yaml:"short_period"`
	LongPeriod  int    `yaml:"long_period"`
}

// FromConfig creates a Strategy from Config. Validates required parameters
// per strategy type and returns clear errors for missing/invalid params.
func FromConfig(cfg Config) (Strategy, error) {
	switch cfg.Type {
	case TypeBuyHold:
		if cfg.Qty <= 0 {
			return nil, ErrNonPositiveQty
		}
		return NewBuyHoldStrategy(cfg.Qty), nil
	case TypeSMACross:
		if cfg.Qty <= 0 {
			return nil, ErrNonPositiveQty
		}
		if cfg.ShortPeriod <= 0 || cfg.ShortPeriod >= cfg.LongPeriod {
			return nil, ErrInvalidPeriods
		}
		return NewSMACrossStrategy(cfg.ShortPeriod, cfg.LongPeriod, cfg.Qty), nil
	default:
		return nil, ErrUnknownStrategyType
	}
}
