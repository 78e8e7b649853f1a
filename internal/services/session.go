package services

import (
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"whatsapp-campaigns/internal/models"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidateSessionID rejects identifiers that cannot safely key on-disk storage
func ValidateSessionID(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	return nil
}

// nextState is the transition function of the session state machine
func nextState(from models.SessionState, event ClientEventType) (models.SessionState, error) {
	switch event {
	case ClientEventQR:
		if from == models.SessionStateAwaitingAuth {
			return models.SessionStateAwaitingAuth, nil
		}
	case ClientEventAuthenticated:
		if from == models.SessionStateAwaitingAuth {
			return models.SessionStateAuthenticated, nil
		}
	case ClientEventReady:
		if from == models.SessionStateAuthenticated {
			return models.SessionStateReady, nil
		}
	case ClientEventMessage:
		if from == models.SessionStateReady {
			return models.SessionStateReady, nil
		}
	case ClientEventDisconnected:
		if from.IsLive() {
			return models.SessionStateDisconnected, nil
		}
	}
	return from, fmt.Errorf("invalid transition from %s on %s", from, event)
}

// Session is one tenant's messaging client and its lifecycle state.
// The session manager owns it; other components borrow it per operation.
type Session struct {
	id        string
	state     models.SessionState
	client    Client
	qrCode    string
	createdAt time.Time
	readyAt   *time.Time
	mu        sync.RWMutex

	// sendMu serializes every call into the client
	sendMu sync.Mutex

	events chan ClientEvent
	done   chan struct{}
	closed atomic.Bool
}

func newSession(id string, buffer int) *Session {
	if buffer <= 0 {
		buffer = 64
	}
	return &Session{
		id:        id,
		state:     models.SessionStateUninitialized,
		createdAt: time.Now().UTC(),
		events:    make(chan ClientEvent, buffer),
		done:      make(chan struct{}),
	}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// State returns the current state
func (s *Session) State() models.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsReady reports whether sends may be issued
func (s *Session) IsReady() bool {
	return !s.closed.Load() && s.State() == models.SessionStateReady
}

// QRCode returns the latest challenge image while awaiting authentication
func (s *Session) QRCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.qrCode
}

// Info returns a snapshot of the session
func (s *Session) Info() models.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.SessionInfo{
		SessionID: s.id,
		State:     s.state,
		QRCode:    s.qrCode,
		CreatedAt: s.createdAt,
		ReadyAt:   s.readyAt,
	}
}

// Do runs fn against the client while holding the session's send lock
func (s *Session) Do(fn func(Client) error) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	client := s.Client()
	if client == nil || s.closed.Load() {
		return ErrSessionNotReady
	}
	return fn(client)
}

// Client returns the attached client, nil before attachment
func (s *Session) Client() Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// attach binds the client and enters AwaitingAuth; false if already closed
func (s *Session) attach(client Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return false
	}
	s.client = client
	s.state = models.SessionStateAwaitingAuth
	return true
}

// transition applies an event to the state machine
func (s *Session) transition(event ClientEventType) (models.SessionState, models.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	to, err := nextState(from, event)
	if err != nil {
		return from, from, err
	}

	s.state = to
	switch event {
	case ClientEventAuthenticated:
		s.qrCode = ""
	case ClientEventReady:
		now := time.Now().UTC()
		s.readyAt = &now
	}
	return from, to, nil
}

func (s *Session) setQRCode(image string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qrCode = image
}

// enqueue hands a client event to the session's ordered event loop
func (s *Session) enqueue(event ClientEvent) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.events <- event:
	case <-s.done:
	}
}

// close tears the session down once; returns false if already closed
func (s *Session) close() bool {
	if !s.closed.CompareAndSwap(false, true) {
		return false
	}

	s.mu.Lock()
	s.state = models.SessionStateDisconnected
	s.qrCode = ""
	s.mu.Unlock()

	close(s.done)
	return true
}
