// internal/handlers/session_handler.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"whatsapp-campaigns/internal/dto"
	"whatsapp-campaigns/internal/middleware"
	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/internal/services"
	"whatsapp-campaigns/pkg/logger"
	"whatsapp-campaigns/pkg/response"
)

// WatcherCounter reports how many realtime clients follow a session
type WatcherCounter interface {
	GetSessionClientCount(sessionID string) int
}

// SessionHandler handles session lifecycle HTTP requests
type SessionHandler struct {
	sessions *services.SessionManager
	watchers WatcherCounter
	logger   *logger.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *services.SessionManager, watchers WatcherCounter, logger *logger.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		watchers: watchers,
		logger:   logger,
	}
}

// InitSession requests initialization; the outcome is delivered over the realtime channel
func (h *SessionHandler) InitSession(c *gin.Context) {
	var req dto.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if !middleware.TenantAllowed(c, req.SessionID) {
		return
	}

	if err := h.sessions.Initialize(c.Request.Context(), req.SessionID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.SuccessWithMessage(c, "Session initialization requested", h.status(req.SessionID))
}

// Logout signs the session out; repeated calls succeed
func (h *SessionHandler) Logout(c *gin.Context) {
	var req dto.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if !middleware.TenantAllowed(c, req.SessionID) {
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), req.SessionID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.SuccessWithMessage(c, "Logged out successfully", gin.H{"sessionId": req.SessionID})
}

// GetStatus returns the state of one session and its pending QR code
func (h *SessionHandler) GetStatus(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if err := services.ValidateSessionID(sessionID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !middleware.TenantAllowed(c, sessionID) {
		return
	}

	response.Success(c, h.status(sessionID))
}

// ListSessions returns the registered sessions visible to the caller
func (h *SessionHandler) ListSessions(c *gin.Context) {
	tenant, scoped := middleware.GetTenant(c)

	sessions := make([]models.SessionInfo, 0)
	for _, info := range h.sessions.Sessions() {
		if scoped && info.SessionID != tenant {
			continue
		}
		sessions = append(sessions, info)
	}

	response.Success(c, gin.H{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (h *SessionHandler) status(sessionID string) *dto.SessionStatusResponse {
	status := &dto.SessionStatusResponse{
		SessionID: sessionID,
		State:     models.SessionStateUninitialized,
	}
	if session, ok := h.sessions.Get(sessionID); ok {
		status.State = session.State()
		status.QR = session.QRCode()
	}
	if h.watchers != nil {
		status.Watchers = h.watchers.GetSessionClientCount(sessionID)
	}
	return status
}
