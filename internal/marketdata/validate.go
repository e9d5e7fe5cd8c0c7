// Package marketdata loads and validates historical bar series. Series are
// checked at load time, before the simulation starts: a malformed series
// aborts setup instead of producing silently wrong fills.
package marketdata

import (
	"errors"
	"fmt"

	"equity-backtest-lab/internal/domain"
)

// Validation errors.
var (
	ErrUnsortedSeries = errors.New("bars are not in strictly increasing timestamp order")
	ErrSymbolMismatch = errors.New("bar symbol does not match series symbol")
	ErrInvalidBar     = errors.New("bar has invalid OHLCV fields")
)

// ValidateSeries checks that bars form a well-formed, time-ordered series for
// symbol. An empty series is valid (the symbol simply never advances).
func ValidateSeries(symbol string, bars []domain.Bar) error {
	for i, b := range bars {
		if b.Symbol != symbol {
			return fmt.Errorf("bar %d: got symbol %q: %w", i, b.Symbol, ErrSymbolMismatch)
		}
		if err := validateBar(b); err != nil {
			return fmt.Errorf("bar %d at %d: %w", i, b.TimestampMs, err)
		}
		if i > 0 && bars[i-1].TimestampMs >= b.TimestampMs {
			return fmt.Errorf("bar %d at %d after %d: %w", i, b.TimestampMs, bars[i-1].TimestampMs, ErrUnsortedSeries)
		}
	}
	return nil
}

func validateBar(b domain.Bar) error {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("non-positive price: %w", ErrInvalidBar)
	}
	if b.Volume < 0 {
		return fmt.Errorf("negative volume: %w", ErrInvalidBar)
	}
	if b.High < b.Open || b.High < b.Close || b.High < b.Low {
		return fmt.Errorf("high below open/close/low: %w", ErrInvalidBar)
	}
	if b.Low > b.Open || b.Low > b.Close {
		return fmt.Errorf("low above open/close: %w", ErrInvalidBar)
	}
	return nil
}
