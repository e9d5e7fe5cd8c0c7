// Package ledger tracks per-symbol position, average cost, and realized P&L
// together with the cash balance. It is pure data and arithmetic: no I/O and
// no time awareness.
package ledger

import (
	"errors"
	"fmt"
	"sort"

	"equity-backtest-lab/internal/domain"
)

// Arithmetic errors. These indicate a logic bug in the caller and are fatal
// to the simulation step; they must not be swallowed.
var (
	ErrZeroQuantity       = errors.New("fill quantity must be non-zero")
	ErrNegativePrice      = errors.New("fill price must not be negative")
	ErrNegativeCommission = errors.New("commission must not be negative")
)

// Position holds the mutable per-symbol state. Quantity is signed: positive
// long, negative short. AvgCost is meaningful only while Qty != 0 and resets
// to zero whenever the quantity crosses through exactly zero. RealizedPnL is
// cumulative and never reset.
type Position struct {
	Qty         int64
	AvgCost     float64
	RealizedPnL float64
}

// Ledger owns the cash balance and the per-symbol positions. Entries are
// created lazily on first fill and live for the life of the ledger; a closed
// position sits idle at zero quantity rather than being deleted.
type Ledger struct {
	cash      float64
	positions map[string]*Position
}

// New creates a ledger starting with the given cash balance.
func New(initialCash float64) *Ledger {
	return &Ledger{
		cash:      initialCash,
		positions: make(map[string]*Position),
	}
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Position returns a copy of the position for symbol. A symbol that has never
// traded reports the zero value.
func (l *Ledger) Position(symbol string) Position {
	if p, ok := l.positions[symbol]; ok {
		return *p
	}
	return Position{}
}

// Symbols returns the symbols with a ledger entry, sorted for determinism.
func (l *Ledger) Symbols() []string {
	symbols := make([]string, 0, len(l.positions))
	for s := range l.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// ApplyFill is the single mutation point for position and cash. It must be
// called exactly once per fill and never retried.
//
// Accounting rules, with q0 the prior quantity and q1 = q0 + signedQty:
//   - q1 == 0: full close. The gain against average cost, minus commission,
//     folds into realized P&L; quantity and cost reset to zero.
//   - same-sign increase: average cost becomes the size-weighted blend of the
//     old basis and the fill price; only the commission hits realized P&L.
//   - reduce or flip: the overlapping quantity closes at a gain against the
//     old basis; on a flip the remainder opens a fresh position at the fill
//     price.
//
// Cash always moves by -(signedQty*price + commission).
func (l *Ledger) ApplyFill(symbol string, signedQty int64, price, commission float64) error {
	if signedQty == 0 {
		return fmt.Errorf("apply fill for %s: %w", symbol, ErrZeroQuantity)
	}
	if price < 0 {
		return fmt.Errorf("apply fill for %s: %w", symbol, ErrNegativePrice)
	}
	if commission < 0 {
		return fmt.Errorf("apply fill for %s: %w", symbol, ErrNegativeCommission)
	}

	p, ok := l.positions[symbol]
	if !ok {
		p = &Position{}
		l.positions[symbol] = p
	}

	q0 := p.Qty
	q1 := q0 + signedQty

	switch {
	case q1 == 0:
		p.RealizedPnL += closeGain(q0, p.AvgCost, price) - commission
		p.Qty = 0
		p.AvgCost = 0

	case sameDirection(q0, signedQty):
		p.AvgCost = (float64(q0)*p.AvgCost + float64(signedQty)*price) / float64(q1)
		p.Qty = q1
		p.RealizedPnL -= commission

	default:
		overlap := min64(abs64(q0), abs64(signedQty))
		closed := overlap
		if q0 < 0 {
			closed = -overlap
		}
		p.RealizedPnL += closeGain(closed, p.AvgCost, price) - commission
		p.Qty = q1
		if !sameDirection(q0, q1) {
			// Side flip: the surviving quantity is a fresh position opened
			// at the fill price.
			p.AvgCost = price
		}
	}

	l.cash -= float64(signedQty)*price + commission
	return nil
}

// Equity returns cash plus the mark-to-market value of every position.
// lastPrices maps symbol to last traded price; positions whose symbol is
// absent are marked at average cost.
func (l *Ledger) Equity(lastPrices map[string]float64) float64 {
	equity := l.cash
	for symbol, p := range l.positions {
		price, ok := lastPrices[symbol]
		if !ok {
			price = p.AvgCost
		}
		equity += float64(p.Qty) * price
	}
	return equity
}

// Snapshots returns one derived record per symbol, sorted by symbol.
func (l *Ledger) Snapshots(lastPrices map[string]float64) []domain.PositionSnapshot {
	result := make([]domain.PositionSnapshot, 0, len(l.positions))
	for _, symbol := range l.Symbols() {
		p := l.positions[symbol]
		price, ok := lastPrices[symbol]
		if !ok {
			price = p.AvgCost
		}
		result = append(result, domain.PositionSnapshot{
			Symbol:        symbol,
			Qty:           p.Qty,
			AvgCost:       p.AvgCost,
			LastPrice:     price,
			UnrealizedPnL: float64(p.Qty) * (price - p.AvgCost),
			RealizedPnL:   p.RealizedPnL,
		})
	}
	return result
}

// closeGain returns the realized gain from closing closedQty units (signed,
// same sign as the position being reduced) at price against basis cost.
func closeGain(closedQty int64, cost, price float64) float64 {
	if closedQty > 0 {
		return float64(closedQty) * (price - cost)
	}
	return float64(-closedQty) * (cost - price)
}

// sameDirection reports whether adding delta keeps or grows the position on
// its current side. A flat position accepts either direction.
func sameDirection(q0, delta int64) bool {
	return (q0 >= 0 && delta > 0) || (q0 <= 0 && delta < 0)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
