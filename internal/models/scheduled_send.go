package models

import (
	"time"

	"github.com/google/uuid"
)

// ScheduledSend is a deferred delivery run waiting for its fire time
type ScheduledSend struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Tenant     string    `json:"tenant"`
	Recipients []string  `json:"recipients"`
	Message    string    `json:"message"`
	Media      *Media    `json:"media,omitempty"`
	RunAt      time.Time `json:"run_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewScheduledSend creates a job with a fresh identifier
func NewScheduledSend(sessionID, tenant string, recipients []string, message string, media *Media, runAt time.Time) *ScheduledSend {
	return &ScheduledSend{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Tenant:     tenant,
		Recipients: recipients,
		Message:    message,
		Media:      media,
		RunAt:      runAt.UTC(),
		CreatedAt:  time.Now().UTC(),
	}
}

// ScheduledSendSummary is the listing view of a job without its payload
type ScheduledSendSummary struct {
	ID              string           `json:"id"`
	SessionID       string           `json:"session_id"`
	TotalRecipients int              `json:"total_recipients"`
	Message         string           `json:"message"`
	Media           *MediaDescriptor `json:"media,omitempty"`
	RunAt           time.Time        `json:"run_at"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Summary returns the listing view of the job
func (s *ScheduledSend) Summary() ScheduledSendSummary {
	return ScheduledSendSummary{
		ID:              s.ID,
		SessionID:       s.SessionID,
		TotalRecipients: len(s.Recipients),
		Message:         s.Message,
		Media:           s.Media.Descriptor(),
		RunAt:           s.RunAt,
		CreatedAt:       s.CreatedAt,
	}
}
