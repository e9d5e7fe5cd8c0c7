// Package book holds orders that have not yet resolved, partitioned per
// symbol into a "resolve at next bar open" queue (market/limit and any
// unsupported kinds) and an "active until triggered" stop queue.
package book

import (
	"errors"

	"equity-backtest-lab/internal/domain"
)

// Submission errors, returned synchronously so strategy code can react.
var (
	ErrNonPositiveQty  = errors.New("order quantity must be positive")
	ErrMissingLimit    = errors.New("limit order requires a limit price")
	ErrMissingStop     = errors.New("stop order requires a stop price")
	ErrMissingSide     = errors.New("order side must be explicit")
	ErrOrderNotPending = errors.New("order is not pending")
)

// Book owns the pending-order queues. Queues preserve submission order, which
// keeps fill resolution deterministic across runs.
type Book struct {
	nextOpen map[string][]*domain.Order
	stops    map[string][]*domain.Order
}

// New creates an empty order book.
func New() *Book {
	return &Book{
		nextOpen: make(map[string][]*domain.Order),
		stops:    make(map[string][]*domain.Order),
	}
}

// Validate checks an order before it enters the book.
func Validate(o *domain.Order) error {
	if o.Qty <= 0 {
		return ErrNonPositiveQty
	}
	if o.Side != domain.OrderSideBuy && o.Side != domain.OrderSideSell {
		return ErrMissingSide
	}
	if o.Kind == domain.OrderKindLimit && o.LimitPrice <= 0 {
		return ErrMissingLimit
	}
	if o.Kind == domain.OrderKindStop && o.StopPrice <= 0 {
		return ErrMissingStop
	}
	return nil
}

// Add enqueues a validated order. Stop orders enter the stop queue and stay
// there across steps until triggered or cancelled; everything else, including
// unsupported kinds, enters the next-open queue.
func (b *Book) Add(o *domain.Order) {
	if o.Kind == domain.OrderKindStop {
		b.stops[o.Symbol] = append(b.stops[o.Symbol], o)
		return
	}
	b.nextOpen[o.Symbol] = append(b.nextOpen[o.Symbol], o)
}

// NextOpen returns the orders awaiting resolution at the next bar open for
// symbol, in submission order. The returned slice is a copy; use Remove to
// take an order out of the book.
func (b *Book) NextOpen(symbol string) []*domain.Order {
	return copyQueue(b.nextOpen[symbol])
}

// Stops returns the active stop orders for symbol, in submission order.
func (b *Book) Stops(symbol string) []*domain.Order {
	return copyQueue(b.stops[symbol])
}

// Remove takes an order out of whichever queue holds it. Used by the engine
// after a fill. Returns false if the order was not queued.
func (b *Book) Remove(o *domain.Order) bool {
	if removeFrom(b.nextOpen, o) {
		return true
	}
	return removeFrom(b.stops, o)
}

// Cancel removes a pending order and marks it cancelled. Orders already in a
// terminal state are rejected; there is no cancellation of orders resolved in
// the current step.
func (b *Book) Cancel(o *domain.Order) error {
	if o.Status.Terminal() {
		return ErrOrderNotPending
	}
	if !b.Remove(o) {
		return ErrOrderNotPending
	}
	o.Status = domain.OrderStatusCancelled
	return nil
}

// PendingCount returns the number of queued orders for symbol.
func (b *Book) PendingCount(symbol string) int {
	return len(b.nextOpen[symbol]) + len(b.stops[symbol])
}

func copyQueue(q []*domain.Order) []*domain.Order {
	if len(q) == 0 {
		return nil
	}
	out := make([]*domain.Order, len(q))
	copy(out, q)
	return out
}

func removeFrom(queues map[string][]*domain.Order, o *domain.Order) bool {
	q := queues[o.Symbol]
	for i, queued := range q {
		if queued == o {
			queues[o.Symbol] = append(q[:i], q[i+1:]...)
			return true
		}
	}
	return false
}
