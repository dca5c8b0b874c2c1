package progress

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradesim/internal/ringbuf"
)

// Hub broadcasts progress events to WebSocket clients.
//
// Report is the producer side of an SPSC ring and never blocks the runner; if
// the ring is full the event is dropped and counted. Run is the single
// consumer: it drains the ring and fans each event out to every client. New
// clients first receive the latest event of every unit seen so far.
type Hub struct {
	ring     *ringbuf.Ring[Event]
	wake     chan struct{}
	upgrader websocket.Upgrader

	// OnOverflow, when set, is called for every dropped event.
	OnOverflow func()

	mu      sync.RWMutex
	clients map[*client]bool
	latest  map[string][]byte
	order   []string
}

// NewHub creates a hub whose ring holds capacity events.
func NewHub(capacity int) *Hub {
	return &Hub{
		ring: ringbuf.New[Event](capacity),
		wake: make(chan struct{}, 1),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
		latest:  make(map[string][]byte),
	}
}

// Report enqueues e for broadcast.
func (h *Hub) Report(e Event) {
	if !h.ring.Push(e) {
		if h.OnOverflow != nil {
			h.OnOverflow()
		}
		return
	}
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run drains the ring until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.flush()
			h.closeAll()
			return
		case <-h.wake:
		case <-ticker.C:
		}
		h.flush()
	}
}

// flush broadcasts every queued event.
func (h *Hub) flush() {
	h.ring.Drain(func(e Event) {
		msg, err := json.Marshal(e)
		if err != nil {
			slog.Warn("progress: marshal event", "err", err)
			return
		}
		h.broadcast(e.Key(), msg)
	})
}

func (h *Hub) broadcast(key string, msg []byte) {
	h.mu.Lock()
	if _, seen := h.latest[key]; !seen {
		h.order = append(h.order, key)
	}
	h.latest[key] = msg
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// slow client: drop it rather than stall the feed
			delete(h.clients, c)
			close(c.send)
		}
	}
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Overflow returns the number of events dropped on a full ring.
func (h *Hub) Overflow() uint64 { return h.ring.Overflow() }

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("progress: websocket upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 256), hub: h}

	h.mu.Lock()
	for _, key := range h.order {
		select {
		case c.send <- h.latest[key]:
		default:
		}
	}
	h.clients[c] = true
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// client represents a single WebSocket peer.
type client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages; it exists to process control frames
// and notice disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
