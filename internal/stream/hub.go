package stream

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"equity-backtest-lab/internal/observability"
)

// HubConfig configures client connection behavior.
type HubConfig struct {
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// SendBuffer is the per-client outbound queue size. A client that
	// falls further behind than this is disconnected.
	SendBuffer int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   256,
	}
}

// Hub fans events out to connected WebSocket clients. Broadcast never
// blocks on a slow client; clients that cannot keep up are dropped.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// NewHub creates a hub with the given configuration.
func NewHub(config *HubConfig) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already wrote the error response
	}

	c := &client{
		conn: conn,
		send: make(chan Event, h.config.SendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	observability.DefaultMetrics.StreamClients.Inc()

	go h.writeLoop(c)
	h.readLoop(c)
}

// Broadcast queues an event for every connected client.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			// Slow consumer: drop the client rather than stall the run.
			delete(h.clients, c)
			close(c.send)
			observability.DefaultMetrics.StreamClients.Dec()
		}
	}
	observability.DefaultMetrics.EventsBroadcast.Inc()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client. The hub accepts no connections afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		observability.DefaultMetrics.StreamClients.Dec()
	}
}

// writeLoop writes queued events and periodic pings to one client.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				h.drop(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c)
				return
			}
		}
	}
}

// readLoop consumes inbound frames so close and pong frames are processed.
// The stream is one-way; client payloads are discarded.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.drop(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// drop removes a client if still registered.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		observability.DefaultMetrics.StreamClients.Dec()
	}
}
