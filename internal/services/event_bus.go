package services

import (
	"fmt"

	evbus "github.com/asaskevich/EventBus"

	"whatsapp-campaigns/internal/models"
)

// EventPublisher delivers session events to that session's subscribers only
type EventPublisher interface {
	Publish(sessionID string, event *models.SessionEvent)
}

// EventBus routes session events over one topic per session id
type EventBus struct {
	bus evbus.Bus
}

// NewEventBus creates an empty event bus
func NewEventBus() *EventBus {
	return &EventBus{bus: evbus.New()}
}

func sessionTopic(sessionID string) string {
	return "session:" + sessionID
}

// Publish implements EventPublisher
func (b *EventBus) Publish(sessionID string, event *models.SessionEvent) {
	b.bus.Publish(sessionTopic(sessionID), event)
}

// Subscribe registers fn for one session's events and returns its cancel func.
// Handlers run synchronously on the publisher's goroutine and must not block
// or call back into the bus.
func (b *EventBus) Subscribe(sessionID string, fn func(*models.SessionEvent)) (func(), error) {
	topic := sessionTopic(sessionID)
	if err := b.bus.Subscribe(topic, fn); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	return func() {
		_ = b.bus.Unsubscribe(topic, fn)
	}, nil
}

// HasSubscribers reports whether anything listens to the session
func (b *EventBus) HasSubscribers(sessionID string) bool {
	return b.bus.HasCallback(sessionTopic(sessionID))
}
