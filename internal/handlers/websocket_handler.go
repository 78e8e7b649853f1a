package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"whatsapp-campaigns/internal/config"
	"whatsapp-campaigns/internal/middleware"
	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/internal/services"
	"whatsapp-campaigns/pkg/logger"
)

// WebSocketHandler joins realtime connections to the room of one session
type WebSocketHandler struct {
	wsManager *services.WebSocketManager
	sessions  *services.SessionManager
	logger    *logger.Logger
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(wsManager *services.WebSocketManager, sessions *services.SessionManager, cfg config.WebSocketConfig, logger *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		sessions:  sessions,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleConnection upgrades the request and streams the session's events
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if sessionID == "" {
		sessionID = c.Query("sessionId")
	}
	if err := services.ValidateSessionID(sessionID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !middleware.TenantAllowed(c, sessionID) {
		return
	}

	// Upgrade to WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := h.wsManager.NewClient(conn, sessionID)
	if err := h.wsManager.RegisterClient(client); err != nil {
		client.Close()
		return
	}

	// Late joiners get the pending challenge without waiting for the next rotation
	if session, ok := h.sessions.Get(sessionID); ok {
		if qr := session.QRCode(); qr != "" {
			_ = client.SendMessage(models.NewSessionEvent(models.EventTypeQR, sessionID, map[string]interface{}{"qr": qr}))
		} else if session.IsReady() {
			_ = client.SendMessage(models.NewSessionEvent(models.EventTypeReady, sessionID, nil))
		}
	}

	// Start client message pumps
	go client.WritePump()
	client.ReadPump()
}
