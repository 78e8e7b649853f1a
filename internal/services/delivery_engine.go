// internal/services/delivery_engine.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"whatsapp-campaigns/internal/metrics"
	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/pkg/logger"
)

var errNotRegistered = errors.New("recipient is not a registered user")

// SessionProvider hands out sessions that are ready for sends
type SessionProvider interface {
	ReadySession(sessionID string) (*Session, error)
}

// CampaignRecorder persists the outcome of a delivery run
type CampaignRecorder interface {
	Record(ctx context.Context, campaign *models.Campaign) error
}

// DeliveryOptions tunes the delivery engine
type DeliveryOptions struct {
	// SendInterval is the idle gap between the end of one dispatch and the start of the next
	SendInterval time.Duration
	// VerifyRecipients checks registration on the network before each dispatch
	VerifyRecipients bool
	// DefaultCountryCode is prefixed to national numbers
	DefaultCountryCode string
}

// SendRequest describes one delivery run
type SendRequest struct {
	SessionID  string
	Tenant     string
	Recipients []string
	Message    string
	Media      *models.Media
	Source     models.CampaignSource
}

// normalize fills defaults derived from the session id
func (r *SendRequest) normalize() {
	r.Message = strings.TrimSpace(r.Message)
	if r.Tenant == "" {
		r.Tenant = r.SessionID
	}
	if r.Source == "" {
		r.Source = models.CampaignSourceBulk
	}
}

// DeliveryEngine performs paced sequential dispatch and records one campaign per run
type DeliveryEngine struct {
	sessions      SessionProvider
	recorder      CampaignRecorder
	canonicalizer *Canonicalizer
	opts          DeliveryOptions
	logger        *logger.Logger
}

// NewDeliveryEngine creates a new delivery engine
func NewDeliveryEngine(sessions SessionProvider, recorder CampaignRecorder, opts DeliveryOptions, log *logger.Logger) *DeliveryEngine {
	if opts.SendInterval <= 0 {
		opts.SendInterval = time.Second
	}

	return &DeliveryEngine{
		sessions:      sessions,
		recorder:      recorder,
		canonicalizer: NewCanonicalizer(opts.DefaultCountryCode),
		opts:          opts,
		logger:        log,
	}
}

// Prepare validates the body and returns the canonical recipient set
func (e *DeliveryEngine) Prepare(req *SendRequest) ([]Recipient, error) {
	req.normalize()

	if req.Message == "" && req.Media == nil {
		return nil, ErrMessageRequired
	}

	recipients := e.canonicalizer.Normalize(req.Recipients)
	if len(recipients) == 0 {
		return nil, ErrNoValidRecipients
	}
	return recipients, nil
}

// Send runs a delivery to every canonical recipient and records the campaign.
// Dispatch errors are absorbed into the campaign. The run is not cancelled by ctx.
func (e *DeliveryEngine) Send(ctx context.Context, req *SendRequest) (*models.Campaign, error) {
	session, err := e.sessions.ReadySession(req.SessionID)
	if err != nil {
		return nil, err
	}

	recipients, err := e.Prepare(req)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	campaign := models.NewCampaign(req.Tenant, req.SessionID, req.Source, req.Message, req.Media)

	e.logger.Info("Starting %s delivery for session %s to %d recipients", req.Source, req.SessionID, len(recipients))

	for i, recipient := range recipients {
		attempt := e.dispatch(ctx, session, recipient, req)
		campaign.Record(attempt)
		metrics.Dispatches.WithLabelValues(string(attempt.Outcome)).Inc()

		if i < len(recipients)-1 {
			time.Sleep(e.opts.SendInterval)
		}
	}

	e.logger.Info("Delivery for session %s finished: %d sent, %d failed",
		req.SessionID, campaign.SuccessCount, campaign.FailureCount)

	if err := e.recorder.Record(ctx, campaign); err != nil {
		return campaign, fmt.Errorf("failed to record campaign: %w", err)
	}
	metrics.CampaignsRecorded.WithLabelValues(string(req.Source)).Inc()

	return campaign, nil
}

// dispatch sends the body to one recipient through the session's client
func (e *DeliveryEngine) dispatch(ctx context.Context, session *Session, recipient Recipient, req *SendRequest) models.DeliveryAttempt {
	jid := recipient.JID()

	err := session.Do(func(client Client) error {
		if e.opts.VerifyRecipients {
			registered, err := client.IsRegistered(ctx, jid)
			if err != nil {
				return fmt.Errorf("registration check failed: %w", err)
			}
			if !registered {
				return errNotRegistered
			}
		}

		if req.Media != nil {
			return client.SendMedia(ctx, jid, req.Media, req.Message)
		}
		return client.SendText(ctx, jid, req.Message)
	})

	if err != nil {
		e.logger.Warn("Failed to deliver to %s via session %s: %v", recipient.Address, req.SessionID, err)
		return failedAttempt(recipient, err)
	}

	return models.DeliveryAttempt{
		Recipient: recipient.Address,
		Outcome:   models.AttemptSuccess,
	}
}

func failedAttempt(recipient Recipient, err error) models.DeliveryAttempt {
	return models.DeliveryAttempt{
		Recipient: recipient.Address,
		Outcome:   models.AttemptFailed,
		Error:     err.Error(),
	}
}
