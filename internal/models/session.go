package models

import "time"

// SessionState represents the lifecycle state of a tenant's messaging session
type SessionState string

const (
	SessionStateUninitialized SessionState = "uninitialized"
	SessionStateAwaitingAuth  SessionState = "awaiting_auth"
	SessionStateAuthenticated SessionState = "authenticated"
	SessionStateReady         SessionState = "ready"
	SessionStateDisconnected  SessionState = "disconnected"
)

// IsValid checks if the session state is valid
func (s SessionState) IsValid() bool {
	switch s {
	case SessionStateUninitialized, SessionStateAwaitingAuth, SessionStateAuthenticated,
		SessionStateReady, SessionStateDisconnected:
		return true
	default:
		return false
	}
}

// IsLive reports whether the session still owns a client handle
func (s SessionState) IsLive() bool {
	return s == SessionStateAwaitingAuth || s == SessionStateAuthenticated || s == SessionStateReady
}

// AllSessionStates lists every state, used for metrics labels
func AllSessionStates() []SessionState {
	return []SessionState{
		SessionStateUninitialized,
		SessionStateAwaitingAuth,
		SessionStateAuthenticated,
		SessionStateReady,
		SessionStateDisconnected,
	}
}

// SessionInfo is a point-in-time view of a registered session
type SessionInfo struct {
	SessionID string       `json:"session_id"`
	State     SessionState `json:"state"`
	QRCode    string       `json:"qr,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	ReadyAt   *time.Time   `json:"ready_at,omitempty"`
}
