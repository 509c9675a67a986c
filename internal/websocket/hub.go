// Package websocket pushes accepted webhook events to connected browsers.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Priya8975/forge-storefront/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FeedEvent is the message sent to feed clients for every accepted webhook.
type FeedEvent struct {
	Type         string    `json:"type"`
	EventID      string    `json:"event_id"`
	Event        string    `json:"event"`
	FormID       string    `json:"form_id"`
	SubmissionID string    `json:"submission_id"`
	ReceivedAt   time.Time `json:"received_at"`
}

const TypeWebhookAccepted = "webhook.accepted"

// Hub manages WebSocket connections and broadcasts events to all connected clients.
type Hub struct {
	clients    map[*client]struct{}
	mu         sync.RWMutex
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	logger     *zap.Logger
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client set until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("feed client connected", zap.Int("total_clients", n))

		case c := <-h.unregister:
			h.remove(c)

		case message := <-h.broadcast:
			var slow []*client
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()

			for _, c := range slow {
				h.logger.Warn("dropping slow feed client")
				h.remove(c)
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("feed client disconnected", zap.Int("total_clients", n))
}

// Broadcast queues event for every connected client. It never blocks; when
// the queue is full the event is dropped.
func (h *Hub) Broadcast(event FeedEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal feed event", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("feed broadcast channel full, dropping event", zap.String("event_id", event.EventID))
	}
}

// EventAccepted publishes a stored webhook event to the feed.
func (h *Hub) EventAccepted(ev domain.WebhookEvent) {
	h.Broadcast(FeedEvent{
		Type:         TypeWebhookAccepted,
		EventID:      ev.ID,
		Event:        ev.Event,
		FormID:       ev.FormID,
		SubmissionID: ev.SubmissionID,
		ReceivedAt:   ev.ReceivedAt,
	})
}

// HandleWebSocket upgrades HTTP connections to WebSocket and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only watches for pongs and disconnects; clients never send data.
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

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// ClientCount returns the number of connected WebSocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
