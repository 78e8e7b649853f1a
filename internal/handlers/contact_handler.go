package handlers

import (
	"github.com/gin-gonic/gin"

	"whatsapp-campaigns/internal/dto"
	"whatsapp-campaigns/internal/middleware"
	"whatsapp-campaigns/internal/services"
	"whatsapp-campaigns/pkg/logger"
	"whatsapp-campaigns/pkg/response"
)

// ContactHandler lists the contacts and groups of a ready session
type ContactHandler struct {
	contacts *services.ContactService
	groups   *services.GroupService
	logger   *logger.Logger
}

// NewContactHandler creates a new contact handler
func NewContactHandler(contacts *services.ContactService, groups *services.GroupService, logger *logger.Logger) *ContactHandler {
	return &ContactHandler{
		contacts: contacts,
		groups:   groups,
		logger:   logger,
	}
}

// ListContacts returns the saved contacts of a session
func (h *ContactHandler) ListContacts(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	contacts, err := h.contacts.ListContacts(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.Success(c, gin.H{
		"contacts": contacts,
		"total":    len(contacts),
	})
}

// ListGroups returns the joined groups of a session
func (h *ContactHandler) ListGroups(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	groups, err := h.groups.ListGroups(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result := make([]dto.GroupResponse, len(groups))
	for i, g := range groups {
		result[i] = dto.GroupResponse{
			JID:              g.JID,
			Name:             g.Name,
			ParticipantCount: len(g.Participants),
		}
	}

	response.Success(c, gin.H{
		"groups": result,
		"total":  len(result),
	})
}

func (h *ContactHandler) sessionID(c *gin.Context) (string, bool) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		respondError(c, h.logger, dto.ErrSessionIDRequired)
		return "", false
	}
	return sessionID, middleware.TenantAllowed(c, sessionID)
}
