package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"papertrade-gateway/internal/auth"
	"papertrade-gateway/internal/events"
	"papertrade-gateway/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS middleware already gates browser access; WS origin checks
		// would reject non-browser clients used in development.
		return true
	},
}

// WSClient represents a WebSocket client
type WSClient struct {
	conn      *websocket.Conn
	send      chan []byte
	hub       *WSHub
	userID    string
	closeChan chan struct{}
}

// WSHub manages all WebSocket clients
type WSHub struct {
	clients     map[*WSClient]bool
	userClients map[string][]*WSClient
	broadcast   chan []byte
	register    chan *WSClient
	unregister  chan *WSClient
	mu          sync.RWMutex
	logger      *logging.Logger
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients:     make(map[*WSClient]bool),
		userClients: make(map[string][]*WSClient),
		broadcast:   make(chan []byte, 4096),
		register:    make(chan *WSClient),
		unregister:  make(chan *WSClient),
		logger:      logging.Default().WithComponent("websocket"),
	}
}

// Run starts the WebSocket hub
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if client.userID != "" {
				h.userClients[client.userID] = append(h.userClients[client.userID], client)
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				if client.userID != "" {
					h.removeClientFromUserMap(client)
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's send channel is full; let unregister clean it up
					go func(c *WSClient) {
						h.unregister <- c
					}(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastEvent broadcasts an event to all connected clients
func (h *WSHub) BroadcastEvent(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// GetClientCount returns the number of connected clients
func (h *WSHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// removeClientFromUserMap removes a client from the userClients map.
// Caller must hold the write lock.
func (h *WSHub) removeClientFromUserMap(client *WSClient) {
	if clients, ok := h.userClients[client.userID]; ok {
		for i, c := range clients {
			if c == client {
				h.userClients[client.userID] = append(clients[:i], clients[i+1:]...)
				break
			}
		}
		if len(h.userClients[client.userID]) == 0 {
			delete(h.userClients, client.userID)
		}
	}
}

// DisconnectUser closes all WebSocket connections for a user. Called on
// logout so a stale browser tab stops receiving pushes.
func (h *WSHub) DisconnectUser(userID string) {
	if userID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.userClients[userID]
	if !ok || len(clients) == 0 {
		return
	}

	for _, client := range clients {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			close(client.send)
			select {
			case client.closeChan <- struct{}{}:
			default:
			}
		}
	}

	delete(h.userClients, userID)

	h.logger.Info("disconnected user websockets", "user_id", userID, "connections", len(clients))
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		close(c.closeChan)
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
		// Clients only listen; inbound messages are ignored
	}
}

// Global WebSocket hub
var wsHub *WSHub

// InitWebSocket initializes the hub and wires it to the event bus. Logout
// events disconnect that user's sockets instead of being re-broadcast.
func InitWebSocket(eventBus *events.EventBus) *WSHub {
	wsHub = NewWSHub()

	go wsHub.Run()

	eventBus.SubscribeAll(func(event events.Event) {
		if event.Type == events.EventUserLogout {
			if userID, ok := event.Data["user_id"].(string); ok {
				wsHub.DisconnectUser(userID)
			}
			return
		}
		wsHub.BroadcastEvent(event)
	})

	return wsHub
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	userID := auth.GetUserID(c)

	client := &WSClient{
		conn:      conn,
		send:      make(chan []byte, 256),
		hub:       wsHub,
		userID:    userID,
		closeChan: make(chan struct{}),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	welcomeMsg := map[string]interface{}{
		"type":      "CONNECTED",
		"message":   "WebSocket connection established",
		"timestamp": time.Now(),
	}
	if data, err := json.Marshal(welcomeMsg); err == nil {
		select {
		case client.send <- data:
		default:
		}
	}
}
