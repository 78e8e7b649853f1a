package models

import "time"

// EventType represents the type of realtime session event
type EventType string

const (
	EventTypeQR            EventType = "qr"
	EventTypeAuthenticated EventType = "authenticated"
	EventTypeReady         EventType = "ready"
	EventTypeDisconnected  EventType = "disconnected"
	EventTypeInitFailure   EventType = "init_failure"
)

// IsValid checks if the event type is valid
func (e EventType) IsValid() bool {
	switch e {
	case EventTypeQR, EventTypeAuthenticated, EventTypeReady, EventTypeDisconnected, EventTypeInitFailure:
		return true
	default:
		return false
	}
}

// SessionEvent is delivered to the realtime subscribers of one session
type SessionEvent struct {
	Type      EventType              `json:"type"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewSessionEvent creates a new session event stamped with the current time
func NewSessionEvent(eventType EventType, sessionID string, data map[string]interface{}) *SessionEvent {
	return &SessionEvent{
		Type:      eventType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
