// internal/services/group_service.go
package services

import (
	"context"
	"fmt"

	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/pkg/logger"
)

// GroupService lists joined groups and delivers to their members
type GroupService struct {
	sessions SessionProvider
	engine   *DeliveryEngine
	logger   *logger.Logger
}

// NewGroupService creates a new group service
func NewGroupService(sessions SessionProvider, engine *DeliveryEngine, log *logger.Logger) *GroupService {
	return &GroupService{
		sessions: sessions,
		engine:   engine,
		logger:   log,
	}
}

// ListGroups returns the joined groups of a ready session
func (s *GroupService) ListGroups(ctx context.Context, sessionID string) ([]Group, error) {
	session, err := s.sessions.ReadySession(sessionID)
	if err != nil {
		return nil, err
	}

	var groups []Group
	err = session.Do(func(client Client) error {
		var err error
		groups, err = client.Groups(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch groups: %w", err)
	}
	return groups, nil
}

// SendToMembers delivers a message to every member of groupJID, one by one
func (s *GroupService) SendToMembers(ctx context.Context, sessionID, groupJID, message string, media *models.Media) (*models.Campaign, error) {
	groups, err := s.ListGroups(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var members []string
	found := false
	for _, group := range groups {
		if group.JID == groupJID {
			members = group.Participants
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, groupJID)
	}

	s.logger.Info("Sending to %d members of group %s on session %s", len(members), groupJID, sessionID)

	plus := make([]string, len(members))
	for i, m := range members {
		plus[i] = "+" + m
	}

	return s.engine.Send(ctx, &SendRequest{
		SessionID:  sessionID,
		Recipients: plus,
		Message:    message,
		Media:      media,
		Source:     models.CampaignSourceGroup,
	})
}
