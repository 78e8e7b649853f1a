package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"whatsapp-campaigns/internal/dto"
	"whatsapp-campaigns/internal/middleware"
	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/internal/repositories"
	"whatsapp-campaigns/pkg/logger"
	"whatsapp-campaigns/pkg/response"
)

// RuleStore persists auto-responder rules
type RuleStore interface {
	Create(ctx context.Context, rule *models.ResponderRule) error
	ListBySession(ctx context.Context, sessionID string) ([]*models.ResponderRule, error)
	Update(ctx context.Context, id uuid.UUID, sessionID, keyword, response string) (*models.ResponderRule, error)
	Delete(ctx context.Context, id uuid.UUID, sessionID string) error
}

// ResponderHandler handles auto-responder rule CRUD
type ResponderHandler struct {
	rules  RuleStore
	logger *logger.Logger
}

// NewResponderHandler creates a new responder handler
func NewResponderHandler(rules RuleStore, logger *logger.Logger) *ResponderHandler {
	return &ResponderHandler{
		rules:  rules,
		logger: logger,
	}
}

// CreateRule adds a keyword rule to a session
func (h *ResponderHandler) CreateRule(c *gin.Context) {
	var req dto.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if !middleware.TenantAllowed(c, req.SessionID, req.Tenant) {
		return
	}

	rule := &models.ResponderRule{
		SessionID: req.SessionID,
		Tenant:    req.Tenant,
		Keyword:   req.Keyword,
		Response:  req.Response,
	}
	if err := h.rules.Create(c.Request.Context(), rule); err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.Created(c, "Rule created successfully", rule)
}

// ListRules returns the rules of a session in match order
func (h *ResponderHandler) ListRules(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		respondError(c, h.logger, dto.ErrSessionIDRequired)
		return
	}
	if !middleware.TenantAllowed(c, sessionID) {
		return
	}

	rules, err := h.rules.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.Success(c, gin.H{
		"rules": rules,
		"total": len(rules),
	})
}

// UpdateRule replaces keyword and response of a session's rule
func (h *ResponderHandler) UpdateRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	var req dto.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if !middleware.TenantAllowed(c, req.SessionID) {
		return
	}

	rule, err := h.rules.Update(c.Request.Context(), id, req.SessionID, req.Keyword, req.Response)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.SuccessWithMessage(c, "Rule updated successfully", rule)
}

// DeleteRule removes a session's rule
func (h *ResponderHandler) DeleteRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	sessionID := c.Query("sessionId")
	if sessionID == "" {
		respondError(c, h.logger, dto.ErrSessionIDRequired)
		return
	}
	if !middleware.TenantAllowed(c, sessionID) {
		return
	}

	if err := h.rules.Delete(c.Request.Context(), id, sessionID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.SuccessWithMessage(c, "Rule deleted successfully", gin.H{"id": id})
}

// ruleID parses the path id; malformed ids cannot exist and answer 404
func (h *ResponderHandler) ruleID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, repositories.ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}
