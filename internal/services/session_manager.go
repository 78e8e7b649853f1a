// internal/services/session_manager.go
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"whatsapp-campaigns/internal/metrics"
	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/pkg/logger"
)

// InboundHandler reacts to messages received by a ready session
type InboundHandler interface {
	HandleInbound(ctx context.Context, session *Session, msg *InboundMessage)
}

// SessionManagerOptions tunes the lifecycle timings
type SessionManagerOptions struct {
	// ReinitDelay is the wait between artifact cleanup and automatic re-initialization
	ReinitDelay time.Duration
	// CleanupDelay is the grace period before on-disk artifacts are removed
	CleanupDelay time.Duration
	// EventBuffer is the per-session event queue length
	EventBuffer int
	// PrintQR echoes challenges to the terminal
	PrintQR bool
}

// SessionManager owns the lifecycle of one messaging client per tenant
type SessionManager struct {
	opts      SessionManagerOptions
	registry  ClientRegistry
	factory   ClientFactory
	publisher EventPublisher
	qr        *QRGenerator
	inbound   InboundHandler
	logger    *logger.Logger

	// loggedOut suppresses automatic recovery for ids logged out explicitly
	loggedOut map[string]struct{}
	mu        sync.Mutex

	timers    map[uint64]*time.Timer
	nextTimer uint64
	timersMu  sync.Mutex

	// runMu orders admission into wg against Stop
	runMu   sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool
}

// NewSessionManager creates a new session manager
func NewSessionManager(
	opts SessionManagerOptions,
	registry ClientRegistry,
	factory ClientFactory,
	publisher EventPublisher,
	qr *QRGenerator,
	log *logger.Logger,
) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())

	return &SessionManager{
		opts:      opts,
		registry:  registry,
		factory:   factory,
		publisher: publisher,
		qr:        qr,
		logger:    log,
		loggedOut: make(map[string]struct{}),
		timers:    make(map[uint64]*time.Timer),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetInboundHandler installs the receiver of inbound messages
func (sm *SessionManager) SetInboundHandler(h InboundHandler) {
	sm.inbound = h
}

// Start restores every session that has authentication artifacts on disk
func (sm *SessionManager) Start(ctx context.Context) error {
	sm.logger.Info("Starting session manager")

	sessionIDs, err := sm.factory.StoredSessions()
	if err != nil {
		return fmt.Errorf("failed to list stored sessions: %w", err)
	}

	for _, sessionID := range sessionIDs {
		if err := sm.Initialize(ctx, sessionID); err != nil {
			sm.logger.Error("Failed to restore session %s: %v", sessionID, err)
		}
	}

	sm.logger.Info("Restored %d stored sessions", len(sessionIDs))
	return nil
}

// Stop tears down every session without touching stored artifacts
func (sm *SessionManager) Stop() {
	sm.runMu.Lock()
	swapped := sm.stopped.CompareAndSwap(false, true)
	sm.runMu.Unlock()
	if !swapped {
		return
	}
	sm.logger.Info("Stopping session manager")

	sm.timersMu.Lock()
	for key, timer := range sm.timers {
		timer.Stop()
		delete(sm.timers, key)
	}
	sm.timersMu.Unlock()

	for _, session := range sm.registry.List() {
		sm.teardown(session, nil)
	}

	sm.cancel()
	sm.wg.Wait()
}

// Initialize starts a session for sessionID; a no-op if one is already registered.
// The outcome of authentication is delivered through the event publisher.
func (sm *SessionManager) Initialize(ctx context.Context, sessionID string) error {
	sm.mu.Lock()
	delete(sm.loggedOut, sessionID)
	sm.mu.Unlock()

	return sm.initialize(ctx, sessionID)
}

func (sm *SessionManager) initialize(ctx context.Context, sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	if !sm.enter() {
		return ErrManagerStopped
	}
	defer sm.wg.Done()

	session := newSession(sessionID, sm.opts.EventBuffer)
	if !sm.registry.Register(sessionID, session) {
		sm.logger.Debug("Session %s already initialized", sessionID)
		return nil
	}

	client, err := sm.factory.NewClient(ctx, sessionID, session.enqueue)
	if err != nil {
		sm.registry.RemoveIf(sessionID, session)
		session.close()
		sm.logger.Error("Failed to create client for session %s: %v", sessionID, err)
		sm.publish(sessionID, models.EventTypeInitFailure, map[string]interface{}{
			"reason": err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrInitialization, err)
	}

	if !session.attach(client) {
		// Logged out or stopped while the client was being created
		client.Close()
		return nil
	}
	metrics.SessionsLive.Inc()

	if sm.stopped.Load() {
		// Stop may have listed the registry before this session joined it
		sm.teardown(session, nil)
		return ErrManagerStopped
	}

	metrics.SessionTransitions.WithLabelValues(string(models.SessionStateAwaitingAuth)).Inc()
	sm.logger.Info("Session %s awaiting authentication", sessionID)

	sm.wg.Add(2)
	go sm.run(session)
	go sm.connect(session)

	return nil
}

// enter admits one unit of work into wg; false once Stop has begun
func (sm *SessionManager) enter() bool {
	sm.runMu.Lock()
	defer sm.runMu.Unlock()

	if sm.stopped.Load() {
		return false
	}
	sm.wg.Add(1)
	return true
}

// connect opens the network connection of a freshly attached client.
// Connect runs under the send lock so it never overlaps the release in teardown.
func (sm *SessionManager) connect(session *Session) {
	defer sm.wg.Done()

	err := session.Do(func(client Client) error {
		return client.Connect()
	})
	if errors.Is(err, ErrSessionNotReady) {
		return
	}
	if err != nil {
		sm.logger.Error("Failed to connect session %s: %v", session.ID(), err)

		if sm.teardown(session, nil) {
			sm.publish(session.ID(), models.EventTypeInitFailure, map[string]interface{}{
				"reason": err.Error(),
			})
		}
	}
}

// run consumes the session's events in order until the session closes
func (sm *SessionManager) run(session *Session) {
	defer sm.wg.Done()

	for {
		select {
		case <-session.done:
			return
		case event := <-session.events:
			sm.handleEvent(session, event)
		}
	}
}

// handleEvent applies one client event to the state machine
func (sm *SessionManager) handleEvent(session *Session, event ClientEvent) {
	if session.closed.Load() {
		return
	}

	from, to, err := session.transition(event.Type)
	if err != nil {
		sm.logger.Warn("Ignoring %s event for session %s: %v", event.Type, session.ID(), err)
		return
	}
	if from != to && to != models.SessionStateDisconnected {
		metrics.SessionTransitions.WithLabelValues(string(to)).Inc()
		sm.logger.Info("Session %s: %s -> %s", session.ID(), from, to)
	}

	switch event.Type {
	case ClientEventQR:
		sm.handleQR(session, event.QRCode)

	case ClientEventAuthenticated:
		sm.publish(session.ID(), models.EventTypeAuthenticated, nil)

	case ClientEventReady:
		sm.publish(session.ID(), models.EventTypeReady, nil)

	case ClientEventMessage:
		if sm.inbound == nil || event.Message == nil {
			return
		}
		sm.wg.Add(1)
		go func(msg *InboundMessage) {
			defer sm.wg.Done()
			sm.inbound.HandleInbound(sm.ctx, session, msg)
		}(event.Message)

	case ClientEventDisconnected:
		sm.handleDisconnect(session, event.Reason)
	}
}

// handleQR renders the challenge and relays it to this session's subscribers
func (sm *SessionManager) handleQR(session *Session, code string) {
	image, err := sm.qr.GenerateQRCodeDataURI(code)
	if err != nil {
		sm.logger.Error("Failed to render QR code for session %s: %v", session.ID(), err)
		return
	}
	session.setQRCode(image)

	if sm.opts.PrintQR {
		sm.qr.PrintToTerminal(code, os.Stdout)
	}

	sm.publish(session.ID(), models.EventTypeQR, map[string]interface{}{
		"qr": image,
	})
}

// handleDisconnect releases the session and arms cleanup plus recovery
func (sm *SessionManager) handleDisconnect(session *Session, reason string) {
	if !sm.teardown(session, nil) {
		return
	}
	if reason == "" {
		reason = "disconnected"
	}

	sm.logger.Warn("Session %s disconnected: %s", session.ID(), reason)
	sm.publish(session.ID(), models.EventTypeDisconnected, map[string]interface{}{
		"reason": reason,
	})
	sm.scheduleCleanup(session.ID(), true)
}

// Logout signs the session out and tears it down without recovery.
// Calling it for an absent session only schedules artifact cleanup.
func (sm *SessionManager) Logout(ctx context.Context, sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	sm.mu.Lock()
	sm.loggedOut[sessionID] = struct{}{}
	sm.mu.Unlock()

	session, ok := sm.registry.Get(sessionID)
	if !ok {
		sm.scheduleCleanup(sessionID, false)
		return nil
	}

	if !sm.teardown(session, func(client Client) {
		if err := client.Logout(ctx); err != nil {
			sm.logger.Warn("Graceful logout failed for session %s: %v", sessionID, err)
		}
	}) {
		sm.scheduleCleanup(sessionID, false)
		return nil
	}

	sm.logger.Info("Session %s logged out", sessionID)
	sm.publish(sessionID, models.EventTypeDisconnected, map[string]interface{}{
		"reason": "logout",
	})
	sm.scheduleCleanup(sessionID, false)

	return nil
}

// teardown closes the session, unregisters it and releases the client once.
// before, when set, runs against the client ahead of the forced close.
// The live gauge only counts sessions that reached attach.
func (sm *SessionManager) teardown(session *Session, before func(Client)) bool {
	if !session.close() {
		return false
	}
	sm.registry.RemoveIf(session.ID(), session)
	metrics.SessionTransitions.WithLabelValues(string(models.SessionStateDisconnected)).Inc()

	client := session.Client()
	if client == nil {
		return true
	}
	metrics.SessionsLive.Dec()

	session.sendMu.Lock()
	defer session.sendMu.Unlock()
	if before != nil {
		before(client)
	}
	client.Close()
	return true
}

// scheduleCleanup removes artifacts after the grace delay, then optionally recovers
func (sm *SessionManager) scheduleCleanup(sessionID string, reinit bool) {
	sm.afterFunc(sm.opts.CleanupDelay, func() {
		if _, live := sm.registry.Get(sessionID); live {
			sm.logger.Warn("Skipping artifact cleanup for session %s: session is live again", sessionID)
		} else if err := sm.factory.RemoveArtifacts(sessionID); err != nil {
			sm.logger.Error("Failed to remove artifacts of session %s: %v", sessionID, err)
		}

		if reinit {
			sm.afterFunc(sm.opts.ReinitDelay, func() {
				sm.reinitialize(sessionID)
			})
		}
	})
}

// reinitialize restarts a disconnected session unless it was logged out meanwhile
func (sm *SessionManager) reinitialize(sessionID string) {
	sm.mu.Lock()
	_, suppressed := sm.loggedOut[sessionID]
	sm.mu.Unlock()

	if suppressed {
		sm.logger.Info("Not re-initializing logged out session %s", sessionID)
		return
	}

	sm.logger.Info("Re-initializing session %s", sessionID)
	metrics.SessionReinitializations.Inc()

	if err := sm.initialize(sm.ctx, sessionID); err != nil && !errors.Is(err, ErrManagerStopped) {
		sm.logger.Error("Failed to re-initialize session %s: %v", sessionID, err)
	}
}

// afterFunc runs fn after d unless the manager stops first
func (sm *SessionManager) afterFunc(d time.Duration, fn func()) {
	sm.timersMu.Lock()
	defer sm.timersMu.Unlock()

	if sm.stopped.Load() {
		return
	}

	key := sm.nextTimer
	sm.nextTimer++
	sm.timers[key] = time.AfterFunc(d, func() {
		sm.timersMu.Lock()
		delete(sm.timers, key)
		sm.timersMu.Unlock()

		if sm.stopped.Load() {
			return
		}
		fn()
	})
}

func (sm *SessionManager) publish(sessionID string, eventType models.EventType, data map[string]interface{}) {
	if sm.publisher == nil {
		return
	}
	sm.publisher.Publish(sessionID, models.NewSessionEvent(eventType, sessionID, data))
}

// Get returns the registered session for sessionID
func (sm *SessionManager) Get(sessionID string) (*Session, bool) {
	return sm.registry.Get(sessionID)
}

// ReadySession returns the session only when it can accept sends
func (sm *SessionManager) ReadySession(sessionID string) (*Session, error) {
	session, ok := sm.registry.Get(sessionID)
	if !ok || !session.IsReady() {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotReady, sessionID)
	}
	return session, nil
}

// State returns the state of sessionID, Uninitialized when absent
func (sm *SessionManager) State(sessionID string) models.SessionState {
	if session, ok := sm.registry.Get(sessionID); ok {
		return session.State()
	}
	return models.SessionStateUninitialized
}

// Sessions returns a snapshot of every registered session
func (sm *SessionManager) Sessions() []models.SessionInfo {
	sessions := sm.registry.List()
	infos := make([]models.SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, session.Info())
	}
	return infos
}
