// internal/services/auto_responder.go
package services

import (
	"context"
	"strings"

	"whatsapp-campaigns/internal/metrics"
	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/pkg/logger"
)

// RuleSource lists a session's responder rules in storage order
type RuleSource interface {
	ListBySession(ctx context.Context, sessionID string) ([]*models.ResponderRule, error)
}

// AutoResponder replies to inbound messages using keyword rules
type AutoResponder struct {
	rules  RuleSource
	logger *logger.Logger
}

// NewAutoResponder creates a new auto-responder
func NewAutoResponder(rules RuleSource, log *logger.Logger) *AutoResponder {
	return &AutoResponder{
		rules:  rules,
		logger: log,
	}
}

// MatchRule returns the first rule whose keyword occurs in text, ignoring case
func MatchRule(rules []*models.ResponderRule, text string) *models.ResponderRule {
	lowered := strings.ToLower(text)
	for _, rule := range rules {
		keyword := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(lowered, keyword) {
			return rule
		}
	}
	return nil
}

// HandleInbound implements InboundHandler
func (r *AutoResponder) HandleInbound(ctx context.Context, session *Session, msg *InboundMessage) {
	if msg.IsFromMe || msg.IsGroup || msg.IsBroadcast || strings.TrimSpace(msg.Text) == "" {
		return
	}
	if !session.IsReady() {
		return
	}

	rules, err := r.rules.ListBySession(ctx, session.ID())
	if err != nil {
		r.logger.Error("Failed to load responder rules for session %s: %v", session.ID(), err)
		return
	}

	rule := MatchRule(rules, msg.Text)
	if rule == nil {
		return
	}

	err = session.Do(func(client Client) error {
		return client.SendText(ctx, msg.Chat, rule.Response)
	})
	if err != nil {
		metrics.AutoReplies.WithLabelValues(string(models.AttemptFailed)).Inc()
		r.logger.Warn("Failed to auto-reply to %s on session %s: %v", msg.Chat, session.ID(), err)
		return
	}

	metrics.AutoReplies.WithLabelValues(string(models.AttemptSuccess)).Inc()
	r.logger.Debug("Auto-replied to %s on session %s using keyword %q", msg.Chat, session.ID(), rule.Keyword)
}
