// Package stream broadcasts backtest progress over WebSocket. A Hub fans
// events out to connected clients; an Observer adapter turns engine
// notifications into events.
package stream

import "equity-backtest-lab/internal/domain"

// Event types.
const (
	EventRunStarted   = "run_started"
	EventBar          = "bar"
	EventOrderStatus  = "order_status"
	EventFill         = "fill"
	EventRunCompleted = "run_completed"
)

// Event is one message on the stream. Only the fields relevant to the
// event type are populated.
type Event struct {
	Type  string `json:"type"`
	RunID string `json:"run_id,omitempty"`

	Symbol      string  `json:"symbol,omitempty"`
	TimestampMs int64   `json:"timestamp_ms,omitempty"`
	Close       float64 `json:"close,omitempty"`

	OrderID int64   `json:"order_id,omitempty"`
	Side    string  `json:"side,omitempty"`
	Kind    string  `json:"kind,omitempty"`
	Status  string  `json:"status,omitempty"`
	Qty     int64   `json:"qty,omitempty"`
	Price   float64 `json:"price,omitempty"`

	Run *domain.RunRecord `json:"run,omitempty"`
}

// Observer adapts engine notifications into hub events. It satisfies the
// engine observer interface structurally.
type Observer struct {
	hub   *Hub
	runID string
}

// NewObserver creates an observer broadcasting to the given hub. The runID
// tags every event; it may be empty when the ID is not yet known.
func NewObserver(hub *Hub, runID string) *Observer {
	return &Observer{hub: hub, runID: runID}
}

// OnBar broadcasts the newly visible bar. Replays of already visible
// history are not re-broadcast.
func (o *Observer) OnBar(symbol string, history []domain.Bar, newBar bool) {
	if !newBar || len(history) == 0 {
		return
	}
	last := history[len(history)-1]
	o.hub.Broadcast(Event{
		Type:        EventBar,
		RunID:       o.runID,
		Symbol:      symbol,
		TimestampMs: last.TimestampMs,
		Close:       last.Close,
	})
}

// OnFill broadcasts a resolved fill.
func (o *Observer) OnFill(order *domain.Order, fill *domain.Fill) {
	o.hub.Broadcast(Event{
		Type:        EventFill,
		RunID:       o.runID,
		Symbol:      fill.Symbol,
		TimestampMs: fill.TimestampMs,
		OrderID:     fill.OrderID,
		Side:        string(fill.Side),
		Kind:        string(order.Kind),
		Qty:         fill.Qty,
		Price:       fill.Price,
	})
}

// OnOrderStatus broadcasts an order lifecycle transition.
func (o *Observer) OnOrderStatus(order *domain.Order) {
	o.hub.Broadcast(Event{
		Type:    EventOrderStatus,
		RunID:   o.runID,
		Symbol:  order.Symbol,
		OrderID: order.ID,
		Side:    string(order.Side),
		Kind:    string(order.Kind),
		Status:  string(order.Status),
		Qty:     order.Qty,
	})
}
