package dto

import (
	"time"

	"whatsapp-campaigns/internal/models"
)

// SessionStatusResponse represents the current state of one session
type SessionStatusResponse struct {
	SessionID string              `json:"sessionId"`
	State     models.SessionState `json:"state"`
	QR        string              `json:"qr,omitempty"`
	Watchers  int                 `json:"watchers"`
}

// SendResponse is returned once a delivery run completes
type SendResponse struct {
	Message  string                `json:"message"`
	Report   models.CampaignReport `json:"report"`
	Campaign *models.Campaign      `json:"campaign"`
}

// NewSendResponse builds the response of a completed run
func NewSendResponse(campaign *models.Campaign) *SendResponse {
	return &SendResponse{
		Message:  "Messages processed",
		Report:   campaign.Report(),
		Campaign: campaign,
	}
}

// ScheduleResponse acknowledges a scheduled send
type ScheduleResponse struct {
	Message string                      `json:"message"`
	Job     models.ScheduledSendSummary `json:"job"`
}

// CampaignReportResponse wraps the report of one campaign
type CampaignReportResponse struct {
	Report   models.CampaignReport `json:"report"`
	Campaign *models.Campaign      `json:"campaign"`
}

// GroupResponse represents a joined group
type GroupResponse struct {
	JID              string `json:"id"`
	Name             string `json:"name"`
	ParticipantCount int    `json:"participant_count"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}
