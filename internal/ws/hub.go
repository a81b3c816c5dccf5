package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blinkwatch/blinkwatch/internal/api"
	"github.com/blinkwatch/blinkwatch/internal/monitor"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before dropping the client.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// pushBufSize bounds pending event pushes; extra pushes coalesce.
	pushBufSize = 4
)

// Event names carried in Message.Event.
const (
	EventStatus  = "status"
	EventAlert   = "alert"
	EventControl = "control"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string             `json:"event"`
	Data  api.StatusResponse `json:"data"`
}

// Hub manages websocket clients. It implements monitor.Observer so alert and
// control events reach clients without waiting for the ticker.
type Hub struct {
	src      api.StatusSource
	interval time.Duration
	push     chan string

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket client.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub that reads status from src and broadcasts every interval.
func New(src api.StatusSource, interval time.Duration) *Hub {
	return &Hub{
		src:      src,
		interval: interval,
		push:     make(chan string, pushBufSize),
		clients:  make(map[*client]struct{}),
	}
}

// Observe queues an immediate broadcast for alert and control events.
// It never blocks.
func (h *Hub) Observe(ev monitor.Event) {
	name := ""
	switch {
	case ev.Kind == monitor.EventFrame && ev.Outcome != nil && ev.Outcome.Alert.Fire:
		name = EventAlert
	case ev.Kind != monitor.EventFrame:
		name = EventControl
	default:
		return
	}
	select {
	case h.push <- name:
	default:
	}
}

// Run broadcasts until ctx is cancelled, then closes all connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.broadcast(EventStatus)
		case name := <-h.push:
			h.broadcast(name)
		}
	}
}

// ServeHTTP upgrades the connection, sends the current status and then
// streams broadcasts. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	if data, err := h.buildMessage(EventStatus); err == nil {
		select {
		case c.send <- data:
		default:
		}
	}

	go c.writePump()
	c.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) broadcast(event string) {
	data, err := h.buildMessage(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			// Slow client: drop it rather than stall the others.
			h.unregister(c)
		}
	}
}

func (h *Hub) buildMessage(event string) ([]byte, error) {
	return json.Marshal(Message{
		Event: event,
		Data:  api.BuildStatus(h.src, time.Now()),
	})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump forwards queued messages and sends pings. One goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames, handling pongs and detecting disconnects.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
