// WebSocket bridge pushing core events to UI clients.
package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"maintkeeper/internal/logging"
	"maintkeeper/internal/uuid"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Only local UI processes may attach.
		return strings.HasPrefix(r.Host, "localhost") || strings.HasPrefix(r.Host, "127.0.0.1")
	},
}

// WSClient represents a WebSocket client connection. A client with no
// explicit subscriptions receives every event; subscribing narrows the
// stream to the named types.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub

	mu            sync.Mutex
	subscriptions map[string]bool
}

// wantsEvent reports whether the client should receive eventType.
func (c *WSClient) wantsEvent(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subscriptions) == 0 {
		return true
	}
	return c.subscriptions[eventType]
}

// WSHub maintains active client connections and broadcasts messages.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan wsMessage
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
}

type wsMessage struct {
	eventType string
	payload   []byte
}

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Event types pushed to the UI layer.
const (
	EventCurrentChanged      = "current.changed"
	EventListChanged         = "list.changed"
	EventConnectivityChanged = "connectivity.changed"
	EventQueueCountChanged   = "queue.count_changed"
	EventSyncProgressChanged = "sync.progress_changed"
	EventUserChanged         = "user.changed"
)

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan wsMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
	go hub.run()
	return hub
}

// run manages client connections and broadcasts.
func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			logging.Debug("WebSocket client connected", map[string]interface{}{"client": client.id})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				if !client.wantsEvent(message.eventType) {
					continue
				}
				select {
				case client.send <- message.payload:
				default:
					// Slow client: drop it rather than block the hub.
					go func(c *WSClient) { h.unregister <- c }(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast pushes one typed event envelope to every subscribed client.
func (h *WSHub) Broadcast(eventType string, data interface{}) {
	envelope := WSEnvelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		logging.Error("Failed to marshal event envelope", err)
		return
	}

	select {
	case h.broadcast <- wsMessage{eventType: eventType, payload: payload}:
	default:
		logging.Warn("Event dropped: broadcast channel full", map[string]interface{}{"type": eventType})
	}
}

// ServeHTTP upgrades a connection and attaches it to the hub.
func (h *WSHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed", err)
		return
	}

	client := &WSClient{
		id:            uuid.New(),
		conn:          conn,
		send:          make(chan []byte, 64),
		hub:           h,
		subscriptions: make(map[string]bool),
	}
	h.register <- client

	go client.writeLoop()
	go client.readLoop()
}

func (c *WSClient) writeLoop() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// clientCommand is what a UI client may send upstream: narrowing or
// widening its event subscription, or a keepalive ping.
type clientCommand struct {
	Action string   `json:"action"`
	Events []string `json:"events"`
}

// readLoop handles subscription commands from the client; everything
// else flowing upstream is discarded.
func (c *WSClient) readLoop() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		switch cmd.Action {
		case "subscribe":
			c.mu.Lock()
			for _, event := range cmd.Events {
				c.subscriptions[event] = true
			}
			c.mu.Unlock()
			c.sendAck("subscribe_ack", cmd.Events)

		case "unsubscribe":
			c.mu.Lock()
			for _, event := range cmd.Events {
				delete(c.subscriptions, event)
			}
			c.mu.Unlock()
			c.sendAck("unsubscribe_ack", cmd.Events)

		case "ping":
			c.sendAck("pong", nil)
		}
	}
}

// sendAck answers a client command without going through the hub.
func (c *WSClient) sendAck(action string, events []string) {
	payload, err := json.Marshal(map[string]interface{}{
		"action":    action,
		"events":    events,
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		return
	}

	select {
	case c.send <- payload:
	default:
	}
}
