// internal/services/websocket_manager.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"whatsapp-campaigns/internal/config"
	"whatsapp-campaigns/internal/metrics"
	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/pkg/logger"
)

// ErrManagerClosed is returned when joining a room after shutdown
var ErrManagerClosed = errors.New("websocket manager is closed")

// WebSocketManager fans session events out to the connections watching each session
type WebSocketManager struct {
	bus    *EventBus
	config config.WebSocketConfig
	logger *logger.Logger

	rooms      map[string]*room
	broadcast  chan *roomMessage
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	mu         sync.RWMutex

	done     chan struct{}
	doneOnce sync.Once
}

// room holds the connections of one session and its bus subscription
type room struct {
	clients     map[string]*WebSocketClient
	unsubscribe func()
}

// roomMessage is an encoded event addressed to one room
type roomMessage struct {
	SessionID string
	Payload   []byte
}

// WebSocketClient represents a connected WebSocket client
type WebSocketClient struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *WebSocketManager
	closeOnce sync.Once
}

// NewWebSocketManager creates a new WebSocket manager
func NewWebSocketManager(bus *EventBus, cfg config.WebSocketConfig, log *logger.Logger) *WebSocketManager {
	return &WebSocketManager{
		bus:        bus,
		config:     cfg,
		logger:     log,
		rooms:      make(map[string]*room),
		broadcast:  make(chan *roomMessage, 256),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		done:       make(chan struct{}),
	}
}

// Run starts the WebSocket manager
func (m *WebSocketManager) Run(ctx context.Context) {
	m.logger.Info("WebSocket manager started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("WebSocket manager stopping...")
			m.shutdown()
			return

		case client := <-m.register:
			m.registerClient(client)

		case client := <-m.unregister:
			m.unregisterClient(client)

		case message := <-m.broadcast:
			m.broadcastToRoom(message)
		}
	}
}

// registerClient adds a client to its room, subscribing the room on first join
func (m *WebSocketManager) registerClient(client *WebSocketClient) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[client.SessionID]
	if !ok {
		sessionID := client.SessionID
		unsubscribe, err := m.bus.Subscribe(sessionID, func(event *models.SessionEvent) {
			m.forward(sessionID, event)
		})
		if err != nil {
			m.logger.Error("Failed to subscribe room %s: %v", sessionID, err)
			client.Close()
			return
		}
		r = &room{
			clients:     make(map[string]*WebSocketClient),
			unsubscribe: unsubscribe,
		}
		m.rooms[sessionID] = r
	}

	r.clients[client.ID] = client
	metrics.WebSocketClients.Inc()
	m.logger.Debug("WebSocket client registered: %s (session: %s)", client.ID, client.SessionID)
}

// unregisterClient removes a client, dropping the room subscription when it empties
func (m *WebSocketManager) unregisterClient(client *WebSocketClient) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[client.SessionID]
	if !ok {
		return
	}
	if _, ok := r.clients[client.ID]; !ok {
		return
	}

	delete(r.clients, client.ID)
	close(client.Send)
	metrics.WebSocketClients.Dec()

	if len(r.clients) == 0 {
		r.unsubscribe()
		delete(m.rooms, client.SessionID)
	}
	m.logger.Debug("WebSocket client unregistered: %s (session: %s)", client.ID, client.SessionID)
}

// forward runs on the publisher's goroutine and never blocks
func (m *WebSocketManager) forward(sessionID string, event *models.SessionEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("Failed to encode session event: %v", err)
		return
	}

	select {
	case m.broadcast <- &roomMessage{SessionID: sessionID, Payload: payload}:
	default:
		m.logger.Warn("Dropped %s event for session %s (broadcast queue full)", event.Type, sessionID)
	}
}

// broadcastToRoom delivers a message to every client of one room
func (m *WebSocketManager) broadcastToRoom(message *roomMessage) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[message.SessionID]
	if !ok {
		return
	}

	for _, client := range r.clients {
		select {
		case client.Send <- message.Payload:
		default:
			// Client's send channel is full, skip
			m.logger.Warn("Failed to send to client %s (channel full)", client.ID)
		}
	}
}

// NewClient creates a new WebSocket client watching sessionID
func (m *WebSocketManager) NewClient(conn *websocket.Conn, sessionID string) *WebSocketClient {
	return &WebSocketClient{
		ID:        generateClientID(),
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		Manager:   m,
	}
}

// RegisterClient registers a client with the manager
func (m *WebSocketManager) RegisterClient(client *WebSocketClient) error {
	select {
	case m.register <- client:
		return nil
	case <-m.done:
		return ErrManagerClosed
	}
}

// UnregisterClient unregisters a client from the manager
func (m *WebSocketManager) UnregisterClient(client *WebSocketClient) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

// GetSessionClientCount returns the number of clients watching a session
func (m *WebSocketManager) GetSessionClientCount(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if r, ok := m.rooms[sessionID]; ok {
		return len(r.clients)
	}
	return 0
}

// shutdown gracefully shuts down the WebSocket manager
func (m *WebSocketManager) shutdown() {
	m.doneOnce.Do(func() { close(m.done) })

	m.mu.Lock()
	defer m.mu.Unlock()

	// Close all client connections
	for sessionID, r := range m.rooms {
		r.unsubscribe()
		for _, client := range r.clients {
			client.Close()
			metrics.WebSocketClients.Dec()
		}
		delete(m.rooms, sessionID)
	}

	m.logger.Info("WebSocket manager shut down")
}

// WebSocketClient methods

// ReadPump reads from the connection until it closes; inbound frames are ignored
func (c *WebSocketClient) ReadPump() {
	defer func() {
		c.Manager.UnregisterClient(c)
		c.Close()
	}()

	_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.PongTimeout))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.PongTimeout))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Manager.logger.Warn("WebSocket error: %v", err)
			}
			return
		}
	}
}

// WritePump writes messages to the WebSocket connection
func (c *WebSocketClient) WritePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel closed
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Manager.logger.Warn("WebSocket write error: %v", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close closes the WebSocket connection
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() {
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

// SendMessage queues a message to this client only
func (c *WebSocketClient) SendMessage(data interface{}) error {
	message, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	select {
	case c.Send <- message:
		return nil
	default:
		return fmt.Errorf("client send channel is full")
	}
}

// generateClientID generates a unique client ID
func generateClientID() string {
	return fmt.Sprintf("client_%d_%s", time.Now().UnixNano(), uuid.New().String()[:8])
}
