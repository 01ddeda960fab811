// Package stream fans processed-candidate outcomes out to live
// subscribers. The worker publishes each outcome to a Redis channel;
// the API bridges that channel into a WebSocket hub. In single-binary
// mode the processor feeds the hub directly and Redis drops out.
package stream

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tradestream/internal/observability"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Hub manages the WebSocket subscribers of the outcome stream. Clients
// that cannot keep up are disconnected rather than allowed to stall the
// broadcast.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	clients    atomic.Int32
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// NewHub creates a Hub. Call Run before serving connections.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 1024),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Run owns the client set until ctx is cancelled. On shutdown every
// client is sent a close frame.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	clients := make(map[*client]struct{})
	defer func() {
		for c := range clients {
			close(c.send)
		}
		h.clients.Store(0)
		observability.SetStreamClients(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case c := <-h.register:
			clients[c] = struct{}{}
			h.setCount(len(clients))

		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
				h.setCount(len(clients))
			}

		case data := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- data:
				default:
					// Slow client: drop the connection, not the stream.
					delete(clients, c)
					close(c.send)
					h.logger.Warn("dropping slow outcome subscriber")
				}
			}
			h.setCount(len(clients))
		}
	}
}

func (h *Hub) setCount(n int) {
	h.clients.Store(int32(n))
	observability.SetStreamClients(n)
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	return int(h.clients.Load())
}

// Broadcast queues one payload for every connected client. Best effort:
// when the hub is saturated or stopped the payload is dropped.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		h.logger.Warn("outcome broadcast dropped, hub saturated")
	}
}

// ServeWS upgrades the request and registers the connection with the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, send: make(chan []byte, 64), hub: h}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return http.ErrServerClosed
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// readPump discards inbound frames; it exists to notice disconnects and
// answer pings.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends outcomes and heartbeats to the client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
