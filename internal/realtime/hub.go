// Package realtime pushes data-change events to dashboard clients over
// websockets.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/seuros/amiri/internal/logging"
	"github.com/seuros/amiri/internal/observability"
)

const (
	pingInterval = 30 * time.Second
	sendBuffer   = 16
)

// Hub fans change events out to connected clients. All client bookkeeping
// happens on the run goroutine.
type Hub struct {
	clock   clockwork.Clock
	metrics *observability.Metrics

	register    chan *Client
	unregister  chan *Client
	broadcast   chan []byte
	clientCount chan chan int
	quit        chan struct{}
	closeOnce   sync.Once
	clients     map[*Client]struct{}
}

type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// Client is one websocket subscriber.
type Client struct {
	id   string
	hub  *Hub
	conn wsConn
	send chan []byte
}

// NewHub starts a hub. clock drives keepalive pings; metrics may be nil.
func NewHub(clock clockwork.Clock, metrics *observability.Metrics) *Hub {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	h := &Hub{
		clock:       clock,
		metrics:     metrics,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan []byte, 64),
		clientCount: make(chan chan int),
		quit:        make(chan struct{}),
		clients:     make(map[*Client]struct{}),
	}

	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.gauge()
			logging.L().Debug("websocket client connected", "client_id", client.id)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				_ = client.conn.Close()
				logging.L().Debug("websocket client disconnected", "client_id", client.id)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					logging.L().Warn("dropping slow websocket client", "client_id", client.id)
					h.drop(client)
				}
			}
		case response := <-h.clientCount:
			response <- len(h.clients)
		case <-h.quit:
			for client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.gauge()
}

func (h *Hub) gauge() {
	if h.metrics != nil {
		h.metrics.WebsocketClients.Set(float64(len(h.clients)))
	}
}

// Broadcast queues a raw message for every client. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		logging.L().Warn("dropping realtime payload", "reason", "broadcast queue full")
	}
}

// Publish broadcasts a change event as JSON.
func (h *Hub) Publish(event ChangeEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logging.L().Warn("failed to marshal change event", "error", err)
		return
	}
	h.Broadcast(data)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	response := make(chan int)
	select {
	case h.clientCount <- response:
		return <-response
	case <-h.quit:
		return 0
	}
}

// Close disconnects every client and stops the hub.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}

// Handler upgrades the request and serves the connection until the client leaves.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client := &Client{
			id:   uuid.NewString(),
			hub:  h,
			conn: conn,
			send: make(chan []byte, sendBuffer),
		}

		select {
		case h.register <- client:
		case <-h.quit:
			return
		}

		go client.writePump()
		client.readPump()
	})
}

// readPump discards incoming frames; it only detects disconnects.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := c.hub.clock.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.Chan():
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
