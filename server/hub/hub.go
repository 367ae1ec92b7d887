// Package hub pushes live snapshot notifications to dashboard viewers over WebSocket.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/borderwatch/alert-dashboard/server/backend"
)

// EventAlertsUpdated is sent whenever a backend publishes a snapshot.
const EventAlertsUpdated = "alerts_updated"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
	broadcastQueue = 64
)

// Event is the message pushed to viewers. Viewers refetch the dashboard on receipt.
type Event struct {
	Type      string    `json:"type"`
	BackendID string    `json:"backendId"`
	Cycle     int64     `json:"cycle"`
	Count     int       `json:"count"`
	NoAlerts  bool      `json:"noAlerts"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected viewers and fans broadcast events out to them.
type Hub struct {
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// New creates a hub. A nil checkOrigin accepts only same-origin upgrades.
func New(logger *zap.SugaredLogger, checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		logger:     logger,
		upgrader:   websocket.Upgrader{CheckOrigin: checkOrigin},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, broadcastQueue),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
}

// Run dispatches registrations and broadcasts until ctx is cancelled, then
// disconnects every viewer.
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
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debugw("Viewer connected", "viewers", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debugw("Viewer disconnected", "viewers", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Slow viewer; drop it rather than stall everyone else.
					delete(h.clients, c)
					close(c.send)
					h.logger.Warnw("Dropping slow viewer")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an alerts_updated event for the snapshot. It matches
// backend.PublishCallback and never blocks the poll cycle.
func (h *Hub) Publish(backendID string, snapshot *backend.Snapshot) {
	if snapshot == nil {
		return
	}

	payload, err := json.Marshal(Event{
		Type:      EventAlertsUpdated,
		BackendID: backendID,
		Cycle:     snapshot.Cycle,
		Count:     len(snapshot.Alerts),
		NoAlerts:  snapshot.NoAlerts,
		Error:     snapshot.Err,
		UpdatedAt: snapshot.UpdatedAt,
	})
	if err != nil {
		h.logger.Errorw("Failed to encode event", "backendId", backendID, "error", err.Error())
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warnw("Broadcast queue full, dropping event", "backendId", backendID, "cycle", snapshot.Cycle)
	}
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the viewer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("WebSocket upgrade failed", "error", err.Error())
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

// readPump consumes control frames until the viewer goes away.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debugw("Viewer disconnected with error", "error", err.Error())
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
