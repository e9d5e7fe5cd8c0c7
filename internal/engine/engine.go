// Package engine replays pre-loaded historical bars through the order book
// and fill simulator, one bar per symbol per step, and maintains position,
// cash, and realized P&L state in the ledger.
//
// The engine is single-threaded and synchronous by design: fill resolution,
// ledger mutation, notification delivery, and cursor advancement happen in a
// strict order so that every run over the same inputs is reproducible
// bit-for-bit. Step must not be invoked concurrently with itself or with
// Submit on the same instance.
package engine

import (
	"errors"
	"fmt"

	"equity-backtest-lab/internal/book"
	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/ledger"
	"equity-backtest-lab/internal/marketdata"
	"equity-backtest-lab/internal/sim"
)

// Engine errors.
var (
	ErrUnknownSymbol     = errors.New("symbol is not registered with the engine")
	ErrAlreadyRegistered = errors.New("symbol already has a bar series attached")
)

// Engine owns the order book, ledger, and per-symbol replay state.
type Engine struct {
	cfg    domain.EngineConfig
	ledger *ledger.Ledger
	book   *book.Book

	symbols   []string                // registration order, fixed iteration order
	series    map[string][]domain.Bar // immutable, loaded before simulation
	cursor    map[string]int          // next unread bar per symbol
	history   map[string][]domain.Bar // bars made visible so far
	lastPrice map[string]float64      // last traded price per symbol

	observers []Observer

	// Orders submitted while a step is executing are staged and only enter
	// the book once the step completes. This is the mechanism that prevents
	// lookahead: a reaction to bar N can resolve no earlier than bar N+1.
	stepping bool
	staged   []*domain.Order

	nextOrderID   int64
	orders        []*domain.Order
	fills         []*domain.Fill
	handlerPanics int
}

// New creates an engine with the given cost model. The configuration is
// immutable after construction.
func New(cfg domain.EngineConfig) *Engine {
	return &Engine{
		cfg:       cfg,
		ledger:    ledger.New(cfg.InitialCash),
		book:      book.New(),
		series:    make(map[string][]domain.Bar),
		cursor:    make(map[string]int),
		history:   make(map[string][]domain.Bar),
		lastPrice: make(map[string]float64),
	}
}

// RegisterSeries attaches a finite, time-ordered bar series to a symbol.
// The series is validated up front; a malformed series aborts setup rather
// than producing silently wrong fills. Must be called before stepping.
func (e *Engine) RegisterSeries(symbol string, bars []domain.Bar) error {
	if _, ok := e.series[symbol]; ok {
		return fmt.Errorf("register %s: %w", symbol, ErrAlreadyRegistered)
	}
	if err := marketdata.ValidateSeries(symbol, bars); err != nil {
		return fmt.Errorf("register %s: %w", symbol, err)
	}
	e.symbols = append(e.symbols, symbol)
	e.series[symbol] = bars
	return nil
}

// Subscribe adds an observer. Subscription order is delivery order.
func (e *Engine) Subscribe(obs Observer) {
	e.observers = append(e.observers, obs)
}

// Submit accepts a new order for a registered symbol. Market and limit
// orders resolve at the next bar open; stop orders stay active until
// triggered or cancelled. The order is announced via OnOrderStatus.
func (e *Engine) Submit(o *domain.Order) error {
	if _, ok := e.series[o.Symbol]; !ok {
		return fmt.Errorf("submit for %s: %w", o.Symbol, ErrUnknownSymbol)
	}
	if err := book.Validate(o); err != nil {
		return fmt.Errorf("submit for %s: %w", o.Symbol, err)
	}

	e.nextOrderID++
	o.ID = e.nextOrderID
	o.Status = domain.OrderStatusSubmitted
	o.RemainingQty = o.Qty
	o.FilledQty = 0
	if h := e.history[o.Symbol]; len(h) > 0 {
		o.SubmittedAtMs = h[len(h)-1].TimestampMs
	}

	if e.stepping {
		e.staged = append(e.staged, o)
	} else {
		e.book.Add(o)
	}
	e.orders = append(e.orders, o)

	e.notify(func(obs Observer) { obs.OnOrderStatus(o) })
	return nil
}

// Cancel removes a pending order (typically a resting stop) from the book
// and marks it cancelled. Orders already resolved are rejected.
func (e *Engine) Cancel(o *domain.Order) error {
	for i, staged := range e.staged {
		if staged == o {
			e.staged = append(e.staged[:i], e.staged[i+1:]...)
			o.Status = domain.OrderStatusCancelled
			e.notify(func(obs Observer) { obs.OnOrderStatus(o) })
			return nil
		}
	}
	if err := e.book.Cancel(o); err != nil {
		return err
	}
	e.notify(func(obs Observer) { obs.OnOrderStatus(o) })
	return nil
}

// Step advances every registered symbol with unread bars by one bar:
// resolves the next-open queue against the current bar, checks stop
// triggers against its range, appends the bar to visible history, fires the
// bar notification, caches the close as last traded price, and advances the
// read cursor. Returns false once every symbol is exhausted, which is the
// simulation's terminal condition.
//
// A non-nil error means the engine's own mutation path failed; that is a
// logic bug and the simulation must not continue.
func (e *Engine) Step() (bool, error) {
	e.stepping = true
	defer e.finishStep()

	advanced := false
	for _, symbol := range e.symbols {
		i := e.cursor[symbol]
		series := e.series[symbol]
		if i >= len(series) {
			continue
		}
		bar := series[i]

		for _, o := range e.book.NextOpen(symbol) {
			fill, ok := sim.ResolveAtOpen(o, bar, e.cfg)
			if !ok {
				continue
			}
			if err := e.applyFill(o, fill); err != nil {
				return false, err
			}
		}

		for _, o := range e.book.Stops(symbol) {
			fill, ok := sim.TriggerStop(o, bar, e.cfg)
			if !ok {
				continue
			}
			if err := e.applyFill(o, fill); err != nil {
				return false, err
			}
		}

		e.history[symbol] = append(e.history[symbol], bar)
		h := e.history[symbol]
		e.notify(func(obs Observer) { obs.OnBar(symbol, h, true) })

		e.lastPrice[symbol] = bar.Close
		e.cursor[symbol] = i + 1
		advanced = true
	}

	return advanced, nil
}

// finishStep flushes orders staged during the step into the book.
func (e *Engine) finishStep() {
	e.stepping = false
	for _, o := range e.staged {
		e.book.Add(o)
	}
	e.staged = nil
}

// applyFill routes one resolved fill through the ledger and mutates the
// owning order to its terminal state. Called exactly once per fill.
func (e *Engine) applyFill(o *domain.Order, fill *domain.Fill) error {
	e.book.Remove(o)

	if err := e.ledger.ApplyFill(fill.Symbol, fill.SignedQty(), fill.Price, fill.Commission); err != nil {
		return err
	}

	o.FilledQty = o.Qty
	o.RemainingQty = 0
	o.AvgFillPrice = fill.Price
	o.Status = domain.OrderStatusFilled
	o.Fills = append(o.Fills, fill)
	e.fills = append(e.fills, fill)

	e.notify(func(obs Observer) { obs.OnFill(o, fill) })
	e.notify(func(obs Observer) { obs.OnOrderStatus(o) })
	return nil
}

// ForceFlatten closes any open position in symbol at the given price,
// charging the configured commission. Used for end-of-session closes. It
// bypasses the order book entirely: the synthetic fill goes straight through
// the ledger and is recorded in the fill log without an owning order.
// No-op when the position is already flat.
func (e *Engine) ForceFlatten(symbol string, price float64, timestampMs int64) error {
	pos := e.ledger.Position(symbol)
	if pos.Qty == 0 {
		return nil
	}

	qty := pos.Qty
	side := domain.OrderSideSell
	if qty < 0 {
		side = domain.OrderSideBuy
		qty = -qty
	}
	commission := float64(qty) * e.cfg.CommissionPerShare

	if err := e.ledger.ApplyFill(symbol, -pos.Qty, price, commission); err != nil {
		return err
	}

	e.fills = append(e.fills, &domain.Fill{
		Symbol:      symbol,
		Side:        side,
		Qty:         qty,
		Price:       price,
		Commission:  commission,
		TimestampMs: timestampMs,
	})
	return nil
}

// Equity returns cash plus mark-to-market value of all positions, using the
// last traded price per symbol and falling back to average cost for symbols
// that have not traded yet. Callable at any time between steps.
func (e *Engine) Equity() float64 {
	return e.ledger.Equity(e.lastPrice)
}

// Snapshot returns one derived record per symbol, sorted by symbol.
func (e *Engine) Snapshot() []domain.PositionSnapshot {
	return e.ledger.Snapshots(e.lastPrice)
}

// Cash returns the current cash balance.
func (e *Engine) Cash() float64 {
	return e.ledger.Cash()
}

// Position returns the current ledger entry for symbol.
func (e *Engine) Position(symbol string) ledger.Position {
	return e.ledger.Position(symbol)
}

// LastPrice returns the last traded price for symbol and whether any bar has
// been seen for it yet.
func (e *Engine) LastPrice(symbol string) (float64, bool) {
	p, ok := e.lastPrice[symbol]
	return p, ok
}

// History returns the visible bar history for symbol.
func (e *Engine) History(symbol string) []domain.Bar {
	return e.history[symbol]
}

// Symbols returns the registered symbols in registration order.
func (e *Engine) Symbols() []string {
	out := make([]string, len(e.symbols))
	copy(out, e.symbols)
	return out
}

// Orders returns every order ever submitted, in submission order.
func (e *Engine) Orders() []*domain.Order {
	out := make([]*domain.Order, len(e.orders))
	copy(out, e.orders)
	return out
}

// Fills returns every fill produced so far, including forced liquidations,
// in resolution order.
func (e *Engine) Fills() []*domain.Fill {
	out := make([]*domain.Fill, len(e.fills))
	copy(out, e.fills)
	return out
}

// HandlerPanics reports how many observer invocations panicked and were
// recovered. Useful for surfacing misbehaving strategy callbacks.
func (e *Engine) HandlerPanics() int {
	return e.handlerPanics
}

// notify delivers one notification to every observer, isolating each
// handler invocation so a panicking subscriber cannot affect the others or
// abort the step.
func (e *Engine) notify(fn func(Observer)) {
	for _, obs := range e.observers {
		e.deliver(obs, fn)
	}
}

func (e *Engine) deliver(obs Observer, fn func(Observer)) {
	defer func() {
		if r := recover(); r != nil {
			e.handlerPanics++
		}
	}()
	fn(obs)
}
