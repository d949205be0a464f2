// Package stream pushes mispricing signals to WebSocket subscribers as
// they are generated. Clients subscribe by underlying symbol; a client
// with no subscriptions receives every signal.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rzzdr/vol-analytics-engine/pkg/models"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

// Hub maintains the set of active clients and broadcasts signals to them
type Hub struct {
	clients       map[*Client]bool
	register      chan *Client
	unregister    chan *Client
	subscriptions map[string]map[*Client]bool // underlying symbol -> clients
	log           *logger.Logger
	mu            sync.RWMutex
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	id            string
	subscriptions map[string]bool
	mu            sync.RWMutex
}

// Message represents a WebSocket message
type Message struct {
	Type   string      `json:"type"`
	Symbol string      `json:"symbol,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
	ID     string      `json:"id,omitempty"`
}

// SubscriptionMessage is a subscribe/unsubscribe request from a client
type SubscriptionMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
	ID      string   `json:"id,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, implement proper origin checking
		return true
	},
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// NewHub creates a new signal hub
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscriptions: make(map[string]map[*Client]bool),
		log:           logger.GetLogger("stream.hub"),
	}
}

// Run starts the hub loop
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("Starting signal hub")

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Signal hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	h.log.Infof("Client %s registered", client.id)
}

// removeClient drops the client from every map and closes its send
// channel. The close happens under the write lock and broadcasts send
// under the read lock, so a broadcast can never race the close. The
// client's own sends are safe too: unregister is only triggered after
// its readPump has exited.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	h.removeClientSubscriptions(client)
	close(client.send)
	h.log.Infof("Client %s unregistered", client.id)
}

// BroadcastSignal sends a mispricing signal to every client subscribed
// to the symbol, plus clients with no symbol filter.
func (h *Hub) BroadcastSignal(symbol string, signal models.MispricingSignal) {
	message := Message{
		Type:   "mispricing_signal",
		Symbol: symbol,
		Data:   signal,
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.log.Errorf("Failed to marshal signal: %v", err)
		return
	}

	// Sends stay under the read lock: removeClient closes send channels
	// under the write lock, so a departing client is either still fully
	// registered here or already gone from the maps.
	h.mu.RLock()
	defer h.mu.RUnlock()

	subscribed := h.subscriptions[symbol]
	for client := range h.clients {
		client.mu.RLock()
		unfiltered := len(client.subscriptions) == 0
		client.mu.RUnlock()
		if !unfiltered && !subscribed[client] {
			continue
		}

		select {
		case client.send <- data:
		default:
			// Slow client; drop this signal rather than block. The
			// read/write pumps will unregister it if it is dead.
			h.log.Warnf("Dropping signal for slow client %s", client.id)
		}
	}
}

// HandleWebSocket handles WebSocket upgrade and client management
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, 256),
		id:            generateClientID(),
		subscriptions: make(map[string]bool),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageData, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Errorf("WebSocket error: %v", err)
			}
			break
		}

		c.handleMessage(messageData)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
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

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

// handleMessage handles incoming messages from the client
func (c *Client) handleMessage(messageData []byte) {
	var msg SubscriptionMessage
	if err := json.Unmarshal(messageData, &msg); err != nil {
		c.sendError("Invalid message format")
		return
	}

	switch msg.Type {
	case "subscribe":
		c.handleSubscription(msg)
	case "unsubscribe":
		c.handleUnsubscription(msg)
	case "ping":
		c.sendMessage(Message{Type: "pong", ID: msg.ID})
	default:
		c.sendError("Unknown message type")
	}
}

// handleSubscription handles subscription requests
func (c *Client) handleSubscription(msg SubscriptionMessage) {
	c.hub.mu.Lock()
	for _, symbol := range msg.Symbols {
		if c.hub.subscriptions[symbol] == nil {
			c.hub.subscriptions[symbol] = make(map[*Client]bool)
		}
		c.hub.subscriptions[symbol][c] = true
	}
	c.hub.mu.Unlock()

	c.mu.Lock()
	for _, symbol := range msg.Symbols {
		c.subscriptions[symbol] = true
	}
	c.mu.Unlock()

	c.sendMessage(Message{
		Type: "subscription_confirmed",
		Data: map[string]interface{}{
			"symbols": msg.Symbols,
		},
		ID: msg.ID,
	})
}

// handleUnsubscription handles unsubscription requests
func (c *Client) handleUnsubscription(msg SubscriptionMessage) {
	c.hub.mu.Lock()
	for _, symbol := range msg.Symbols {
		if clients, exists := c.hub.subscriptions[symbol]; exists {
			delete(clients, c)
			if len(clients) == 0 {
				delete(c.hub.subscriptions, symbol)
			}
		}
	}
	c.hub.mu.Unlock()

	c.mu.Lock()
	for _, symbol := range msg.Symbols {
		delete(c.subscriptions, symbol)
	}
	c.mu.Unlock()

	c.sendMessage(Message{
		Type: "unsubscription_confirmed",
		Data: map[string]interface{}{
			"symbols": msg.Symbols,
		},
		ID: msg.ID,
	})
}

// sendMessage sends a message to the client
func (c *Client) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.Errorf("Failed to marshal message: %v", err)
		return
	}

	select {
	case c.send <- data:
	default:
		c.hub.log.Warnf("Dropping message for slow client %s", c.id)
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(errorMsg string) {
	c.sendMessage(Message{
		Type:  "error",
		Error: errorMsg,
	})
}

// removeClientSubscriptions removes all subscriptions for a client.
// Caller holds h.mu.
func (h *Hub) removeClientSubscriptions(client *Client) {
	client.mu.RLock()
	for symbol := range client.subscriptions {
		if clients, exists := h.subscriptions[symbol]; exists {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.subscriptions, symbol)
			}
		}
	}
	client.mu.RUnlock()
}

func generateClientID() string {
	return fmt.Sprintf("client_%d", time.Now().UnixNano())
}
