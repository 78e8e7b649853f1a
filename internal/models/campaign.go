package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// CampaignSource identifies which send path produced a campaign
type CampaignSource string

const (
	CampaignSourceBulk      CampaignSource = "bulk"
	CampaignSourceScheduled CampaignSource = "scheduled"
	CampaignSourceGroup     CampaignSource = "group"
)

// AttemptOutcome is the result of dispatching to one recipient
type AttemptOutcome string

const (
	AttemptSuccess AttemptOutcome = "success"
	AttemptFailed  AttemptOutcome = "failed"
)

// DeliveryAttempt records the outcome for a single recipient
type DeliveryAttempt struct {
	Recipient string         `json:"recipient"`
	Outcome   AttemptOutcome `json:"outcome"`
	Error     string         `json:"error,omitempty"`
}

// DeliveryAttempts is the ordered attempt log of a campaign
type DeliveryAttempts []DeliveryAttempt

// Scan implements sql.Scanner interface for DeliveryAttempts
func (a *DeliveryAttempts) Scan(value interface{}) error {
	return scanJSON(value, a)
}

// Value implements driver.Valuer interface for DeliveryAttempts
func (a DeliveryAttempts) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Campaign is the persisted outcome of one delivery run
type Campaign struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Tenant           string           `gorm:"type:varchar(255);not null;index:idx_campaigns_tenant_created,priority:1" json:"tenant"`
	SessionID        string           `gorm:"type:varchar(255);not null" json:"session_id"`
	Source           CampaignSource   `gorm:"type:varchar(20);not null" json:"source"`
	TotalRecipients  int              `gorm:"not null" json:"total_recipients"`
	SuccessCount     int              `gorm:"not null" json:"success_count"`
	FailureCount     int              `gorm:"not null" json:"failure_count"`
	FailedRecipients pq.StringArray   `gorm:"type:text[]" json:"failed_recipients"`
	MessageBody      string           `gorm:"type:text" json:"message"`
	Media            *MediaDescriptor `gorm:"type:jsonb" json:"media,omitempty"`
	Attempts         DeliveryAttempts `gorm:"type:jsonb" json:"attempts"`
	CreatedAt        time.Time        `gorm:"not null;index:idx_campaigns_tenant_created,priority:2,sort:desc" json:"created_at"`
}

// TableName specifies the table name for Campaign
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate hook to generate UUID if not set
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// NewCampaign starts an empty campaign for the given run
func NewCampaign(tenant, sessionID string, source CampaignSource, message string, media *Media) *Campaign {
	return &Campaign{
		ID:               uuid.New(),
		Tenant:           tenant,
		SessionID:        sessionID,
		Source:           source,
		MessageBody:      message,
		Media:            media.Descriptor(),
		FailedRecipients: pq.StringArray{},
		Attempts:         DeliveryAttempts{},
		CreatedAt:        time.Now().UTC(),
	}
}

// Record appends an attempt and updates the counters
func (c *Campaign) Record(attempt DeliveryAttempt) {
	c.Attempts = append(c.Attempts, attempt)
	c.TotalRecipients++

	if attempt.Outcome == AttemptSuccess {
		c.SuccessCount++
		return
	}

	c.FailureCount++
	c.FailedRecipients = append(c.FailedRecipients, attempt.Recipient)
}

// CampaignReport is the compact summary returned to callers
type CampaignReport struct {
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Failed        int      `json:"failed"`
	FailedNumbers []string `json:"failedNumbers"`
}

// Report builds the summary of the campaign
func (c *Campaign) Report() CampaignReport {
	failed := make([]string, len(c.FailedRecipients))
	copy(failed, c.FailedRecipients)

	return CampaignReport{
		Total:         c.TotalRecipients,
		Success:       c.SuccessCount,
		Failed:        c.FailureCount,
		FailedNumbers: failed,
	}
}
