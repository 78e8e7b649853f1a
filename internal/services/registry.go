package services

import (
	"sort"
	"sync"
)

// ClientRegistry tracks the live session for each session id
type ClientRegistry interface {
	// Register stores the session unless the id is already taken
	Register(sessionID string, session *Session) bool
	Get(sessionID string) (*Session, bool)
	Remove(sessionID string)
	// RemoveIf removes the entry only when it still points at session
	RemoveIf(sessionID string, session *Session) bool
	List() []*Session
}

// MemoryRegistry is a mutex-guarded ClientRegistry
type MemoryRegistry struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewMemoryRegistry creates an empty registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]*Session),
	}
}

// Register implements ClientRegistry
func (r *MemoryRegistry) Register(sessionID string, session *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sessionID]; exists {
		return false
	}
	r.sessions[sessionID] = session
	return true
}

// Get implements ClientRegistry
func (r *MemoryRegistry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	return session, ok
}

// Remove implements ClientRegistry
func (r *MemoryRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
}

// RemoveIf implements ClientRegistry
func (r *MemoryRegistry) RemoveIf(sessionID string, session *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[sessionID]; ok && current == session {
		delete(r.sessions, sessionID)
		return true
	}
	return false
}

// List implements ClientRegistry, ordered by session id
func (r *MemoryRegistry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID() < sessions[j].ID()
	})
	return sessions
}
