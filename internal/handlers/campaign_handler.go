package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"whatsapp-campaigns/internal/dto"
	"whatsapp-campaigns/internal/middleware"
	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/pkg/logger"
	"whatsapp-campaigns/pkg/response"
)

const maxHistoryLimit = 500

// CampaignStore reads recorded campaigns
type CampaignStore interface {
	Latest(ctx context.Context, tenant string) (*models.Campaign, error)
	History(ctx context.Context, tenant string, limit int) ([]*models.Campaign, error)
}

// CampaignHandler handles campaign report queries
type CampaignHandler struct {
	campaigns    CampaignStore
	defaultLimit int
	logger       *logger.Logger
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaigns CampaignStore, defaultLimit int, logger *logger.Logger) *CampaignHandler {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &CampaignHandler{
		campaigns:    campaigns,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// Latest returns the report of the tenant's most recent campaign
func (h *CampaignHandler) Latest(c *gin.Context) {
	tenant, ok := h.tenant(c)
	if !ok {
		return
	}

	campaign, err := h.campaigns.Latest(c.Request.Context(), tenant)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.Success(c, &dto.CampaignReportResponse{
		Report:   campaign.Report(),
		Campaign: campaign,
	})
}

// History returns the tenant's campaigns, newest first
func (h *CampaignHandler) History(c *gin.Context) {
	tenant, ok := h.tenant(c)
	if !ok {
		return
	}

	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	campaigns, err := h.campaigns.History(c.Request.Context(), tenant, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.Success(c, gin.H{
		"campaigns": campaigns,
		"total":     len(campaigns),
	})
}

func (h *CampaignHandler) tenant(c *gin.Context) (string, bool) {
	tenant := c.Query("tenant")
	if tenant == "" {
		response.BadRequest(c, "tenant is required")
		return "", false
	}
	if !middleware.TenantAllowed(c, tenant) {
		return "", false
	}
	return tenant, true
}
