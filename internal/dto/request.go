package dto

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"whatsapp-campaigns/internal/models"
)

// SessionRequest identifies the session of a lifecycle request
type SessionRequest struct {
	SessionID string `json:"sessionId" form:"sessionId" binding:"required,max=255" example:"acme"`
}

// RecipientList accepts either a JSON array or one delimited string
type RecipientList []string

// UnmarshalJSON implements json.Unmarshaler
func (l *RecipientList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return ErrInvalidRecipients
	}
	*l = RecipientList{joined}
	return nil
}

// MediaPayload is an inline base64 attachment
type MediaPayload struct {
	Name     string `json:"name" example:"promo.png"`
	MimeType string `json:"mimetype" example:"image/png"`
	Data     string `json:"data"`
}

// ToModel decodes the payload; a data URI prefix is accepted
func (m *MediaPayload) ToModel() (*models.Media, error) {
	if m == nil {
		return nil, nil
	}

	data := m.Data
	if i := strings.Index(data, ";base64,"); strings.HasPrefix(data, "data:") && i > 0 {
		if m.MimeType == "" {
			m.MimeType = data[len("data:"):i]
		}
		data = data[i+len(";base64,"):]
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil || len(decoded) == 0 {
		return nil, ErrInvalidMedia
	}

	mimeType := m.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	name := m.Name
	if name == "" {
		name = "attachment"
	}

	return &models.Media{Name: name, MimeType: mimeType, Data: decoded}, nil
}

// SendBulkRequest represents a request to send one body to many recipients
type SendBulkRequest struct {
	SessionID    string        `json:"sessionId" binding:"required,max=255" example:"acme"`
	Tenant       string        `json:"tenant,omitempty" binding:"omitempty,max=255" example:"acme"`
	Recipients   RecipientList `json:"recipients"`
	PhoneNumbers RecipientList `json:"phoneNumbers"`
	Message      string        `json:"message" example:"Hello from Acme"`
	Media        *MediaPayload `json:"media,omitempty"`
}

// AllRecipients merges both recipient fields
func (r *SendBulkRequest) AllRecipients() []string {
	all := make([]string, 0, len(r.Recipients)+len(r.PhoneNumbers))
	all = append(all, r.Recipients...)
	return append(all, r.PhoneNumbers...)
}

// Validate checks the rules spanning several fields
func (r *SendBulkRequest) Validate() error {
	if len(r.Recipients) == 0 && len(r.PhoneNumbers) == 0 {
		return ErrRecipientsRequired
	}
	if strings.TrimSpace(r.Message) == "" && r.Media == nil {
		return ErrBodyRequired
	}
	return nil
}

// ScheduleRequest represents a bulk send deferred to a wall-clock time
type ScheduleRequest struct {
	SendBulkRequest
	AtTime       string `json:"atTime" example:"2026-01-02T09:00:00Z"`
	ScheduleTime string `json:"scheduleTime"`
}

// Time returns the requested fire time as sent by the client
func (r *ScheduleRequest) Time() string {
	if r.AtTime != "" {
		return r.AtTime
	}
	return r.ScheduleTime
}

// GroupSendRequest represents a send to every member of a joined group
type GroupSendRequest struct {
	SessionID string        `json:"sessionId" binding:"required,max=255" example:"acme"`
	Tenant    string        `json:"tenant,omitempty" binding:"omitempty,max=255"`
	GroupID   string        `json:"groupId" binding:"required,max=255" example:"120363025246125486@g.us"`
	Message   string        `json:"message"`
	Media     *MediaPayload `json:"media,omitempty"`
}

// Validate checks the rules spanning several fields
func (r *GroupSendRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" && r.Media == nil {
		return ErrBodyRequired
	}
	return nil
}

// CreateRuleRequest represents a new auto-responder rule
type CreateRuleRequest struct {
	SessionID string `json:"sessionId" binding:"required,max=255" example:"acme"`
	Tenant    string `json:"tenant" binding:"required,max=255" example:"acme"`
	Keyword   string `json:"keyword" binding:"required,max=255" example:"price"`
	Response  string `json:"response" binding:"required,max=4096" example:"Our price list: https://example.com/prices"`
}

// UpdateRuleRequest replaces keyword and response of a rule
type UpdateRuleRequest struct {
	SessionID string `json:"sessionId" binding:"required,max=255" example:"acme"`
	Keyword   string `json:"keyword" binding:"required,max=255" example:"pricing"`
	Response  string `json:"response" binding:"required,max=4096"`
}

// Common validation errors
var (
	ErrSessionIDRequired  = &ValidationError{Field: "sessionId", Message: "sessionId is required"}
	ErrInvalidRecipients  = &ValidationError{Field: "recipients", Message: "recipients must be a list or a delimited string"}
	ErrInvalidMedia       = &ValidationError{Field: "media", Message: "media data must be non-empty base64"}
	ErrRecipientsRequired = &ValidationError{Field: "recipients", Message: "recipients or phoneNumbers is required"}
	ErrBodyRequired       = &ValidationError{Field: "message", Message: "message or media is required"}
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []*ValidationError `json:"errors"`
}

// Error implements the error interface
func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	return e.Errors[0].Message
}

// Add adds a validation error
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}
