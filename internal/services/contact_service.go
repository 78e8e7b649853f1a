// internal/services/contact_service.go
package services

import (
	"context"
	"fmt"
	"sort"
)

// ContactService reads the address book of a ready session
type ContactService struct {
	sessions SessionProvider
}

// NewContactService creates a new contact service
func NewContactService(sessions SessionProvider) *ContactService {
	return &ContactService{sessions: sessions}
}

// ListContacts returns the session's saved contacts sorted by name
func (s *ContactService) ListContacts(ctx context.Context, sessionID string) ([]Contact, error) {
	session, err := s.sessions.ReadySession(sessionID)
	if err != nil {
		return nil, err
	}

	var contacts []Contact
	err = session.Do(func(client Client) error {
		var err error
		contacts, err = client.Contacts(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contacts: %w", err)
	}

	sort.Slice(contacts, func(i, j int) bool {
		if contacts[i].Name != contacts[j].Name {
			return contacts[i].Name < contacts[j].Name
		}
		return contacts[i].Phone < contacts[j].Phone
	})
	return contacts, nil
}
