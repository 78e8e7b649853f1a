package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/pkg/logger"
)

func newTestEngine(t *testing.T, client *fakeClient, recorder CampaignRecorder, opts DeliveryOptions) *DeliveryEngine {
	t.Helper()

	if opts.SendInterval == 0 {
		opts.SendInterval = time.Millisecond
	}
	if opts.DefaultCountryCode == "" {
		opts.DefaultCountryCode = "91"
	}

	sessions := staticSessions{}
	if client != nil {
		sessions[client.id] = standaloneReadySession(t, client.id, client)
	}
	return NewDeliveryEngine(sessions, recorder, opts, logger.Nop())
}

func TestDeliveryEngine_DeduplicatesEquivalentNumbers(t *testing.T) {
	client := &fakeClient{id: "acme"}
	recorder := &fakeRecorder{}
	engine := newTestEngine(t, client, recorder, DeliveryOptions{})

	campaign, err := engine.Send(context.Background(), &SendRequest{
		SessionID:  "acme",
		Recipients: []string{"9123456789", "+919123456789", "09123456789"},
		Message:    "Hello",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, campaign.TotalRecipients)
	assert.Equal(t, 1, campaign.SuccessCount)
	assert.Equal(t, []sentMessage{{To: "919123456789", Text: "Hello"}}, client.Sent())
}

func TestDeliveryEngine_PartialFailure(t *testing.T) {
	client := &fakeClient{
		id:      "acme",
		failFor: map[string]error{"919000000002": errSendFailed},
	}
	recorder := &fakeRecorder{}
	engine := newTestEngine(t, client, recorder, DeliveryOptions{})

	campaign, err := engine.Send(context.Background(), &SendRequest{
		SessionID:  "acme",
		Recipients: []string{"+919000000001", "+919000000002", "+919000000003"},
		Message:    "Sale today",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, campaign.TotalRecipients)
	assert.Equal(t, 2, campaign.SuccessCount)
	assert.Equal(t, 1, campaign.FailureCount)
	assert.Equal(t, []string{"919000000002"}, []string(campaign.FailedRecipients))
	assert.Equal(t, campaign.TotalRecipients, campaign.SuccessCount+campaign.FailureCount)

	require.Len(t, campaign.Attempts, 3)
	assert.Equal(t, "919000000001", campaign.Attempts[0].Recipient)
	assert.Equal(t, models.AttemptFailed, campaign.Attempts[1].Outcome)
	assert.Contains(t, campaign.Attempts[1].Error, "send failed")

	assert.Equal(t, "acme", campaign.Tenant)
	assert.Equal(t, models.CampaignSourceBulk, campaign.Source)
	require.Len(t, recorder.Campaigns(), 1)
	assert.Equal(t, campaign.ID, recorder.Campaigns()[0].ID)
}

func TestDeliveryEngine_Validation(t *testing.T) {
	tests := []struct {
		name    string
		session string
		req     *SendRequest
		wantErr error
	}{
		{
			name:    "session not ready",
			session: "acme",
			req:     &SendRequest{SessionID: "other", Recipients: []string{"+919000000001"}, Message: "hi"},
			wantErr: ErrSessionNotReady,
		},
		{
			name:    "message required",
			session: "acme",
			req:     &SendRequest{SessionID: "acme", Recipients: []string{"+919000000001"}, Message: "   "},
			wantErr: ErrMessageRequired,
		},
		{
			name:    "no valid recipients",
			session: "acme",
			req:     &SendRequest{SessionID: "acme", Recipients: []string{"abc", "12"}, Message: "hi"},
			wantErr: ErrNoValidRecipients,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{id: tt.session}
			recorder := &fakeRecorder{}
			engine := newTestEngine(t, client, recorder, DeliveryOptions{})

			campaign, err := engine.Send(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, campaign)
			assert.Empty(t, recorder.Campaigns())
			assert.Empty(t, client.Sent())
		})
	}
}

func TestDeliveryEngine_ExplicitTenant(t *testing.T) {
	client := &fakeClient{id: "acme"}
	recorder := &fakeRecorder{}
	engine := newTestEngine(t, client, recorder, DeliveryOptions{})

	campaign, err := engine.Send(context.Background(), &SendRequest{
		SessionID:  "acme",
		Tenant:     "acme-corp",
		Recipients: []string{"+919000000001"},
		Message:    "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "acme-corp", campaign.Tenant)
}

func TestDeliveryEngine_VerifyRecipients(t *testing.T) {
	client := &fakeClient{
		id:         "acme",
		registered: map[string]bool{"919000000001": true},
	}
	recorder := &fakeRecorder{}
	engine := newTestEngine(t, client, recorder, DeliveryOptions{VerifyRecipients: true})

	campaign, err := engine.Send(context.Background(), &SendRequest{
		SessionID:  "acme",
		Recipients: []string{"+919000000001", "+919000000002"},
		Message:    "hi",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, campaign.SuccessCount)
	assert.Equal(t, []string{"919000000002"}, []string(campaign.FailedRecipients))
	assert.Len(t, client.Sent(), 1)
}

func TestDeliveryEngine_MediaUsesMessageAsCaption(t *testing.T) {
	client := &fakeClient{id: "acme"}
	engine := newTestEngine(t, client, &fakeRecorder{}, DeliveryOptions{})

	media := &models.Media{Name: "flyer.png", MimeType: "image/png", Data: []byte{0x89, 0x50}}
	campaign, err := engine.Send(context.Background(), &SendRequest{
		SessionID:  "acme",
		Recipients: []string{"+919000000001"},
		Message:    "New arrivals",
		Media:      media,
	})
	require.NoError(t, err)

	sent := client.Sent()
	require.Len(t, sent, 1)
	assert.Same(t, media, sent[0].Media)
	assert.Equal(t, "New arrivals", sent[0].Caption)
	require.NotNil(t, campaign.Media)
	assert.Equal(t, int64(2), campaign.Media.SizeBytes)
}

func TestDeliveryEngine_MediaWithoutText(t *testing.T) {
	client := &fakeClient{id: "acme"}
	engine := newTestEngine(t, client, &fakeRecorder{}, DeliveryOptions{})

	_, err := engine.Send(context.Background(), &SendRequest{
		SessionID:  "acme",
		Recipients: []string{"+919000000001"},
		Media:      &models.Media{Name: "doc.pdf", MimeType: "application/pdf", Data: []byte("%PDF")},
	})
	require.NoError(t, err)
	assert.Len(t, client.Sent(), 1)
}

func TestDeliveryEngine_PacesDispatches(t *testing.T) {
	client := &fakeClient{id: "acme"}
	engine := newTestEngine(t, client, &fakeRecorder{}, DeliveryOptions{SendInterval: 40 * time.Millisecond})

	start := time.Now()
	_, err := engine.Send(context.Background(), &SendRequest{
		SessionID:  "acme",
		Recipients: []string{"+919000000001", "+919000000002", "+919000000003"},
		Message:    "hi",
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestDeliveryEngine_IntervalFollowsSlowDispatch(t *testing.T) {
	const interval = 100 * time.Millisecond
	client := &fakeClient{id: "acme", delay: 50 * time.Millisecond}
	engine := newTestEngine(t, client, &fakeRecorder{}, DeliveryOptions{SendInterval: interval})

	_, err := engine.Send(context.Background(), &SendRequest{
		SessionID:  "acme",
		Recipients: []string{"+919000000001", "+919000000002", "+919000000003"},
		Message:    "hi",
	})
	returned := time.Now()
	require.NoError(t, err)

	spans := client.Spans()
	require.Len(t, spans, 3)
	for i := 1; i < len(spans); i++ {
		gap := spans[i].start.Sub(spans[i-1].end)
		assert.GreaterOrEqual(t, gap, interval-10*time.Millisecond, "gap before dispatch %d", i)
	}

	// No wait after the final recipient
	assert.Less(t, returned.Sub(spans[2].end), interval/2)
}

func TestDeliveryEngine_SurvivesCancelledContext(t *testing.T) {
	client := &fakeClient{id: "acme"}
	engine := newTestEngine(t, client, &fakeRecorder{}, DeliveryOptions{SendInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	campaign, err := engine.Send(ctx, &SendRequest{
		SessionID:  "acme",
		Recipients: []string{"+919000000001", "+919000000002"},
		Message:    "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, campaign.SuccessCount)
}

func TestDeliveryEngine_RecorderFailureReturnsCampaign(t *testing.T) {
	client := &fakeClient{id: "acme"}
	recorder := &fakeRecorder{err: errors.New("database unavailable")}
	engine := newTestEngine(t, client, recorder, DeliveryOptions{})

	campaign, err := engine.Send(context.Background(), &SendRequest{
		SessionID:  "acme",
		Recipients: []string{"+919000000001"},
		Message:    "hi",
	})
	require.Error(t, err)
	require.NotNil(t, campaign)
	assert.Equal(t, 1, campaign.SuccessCount)
}
