package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/types"

	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/pkg/logger"
)

type fakeRules struct {
	mu    sync.Mutex
	rules map[string][]*models.ResponderRule
	err   error
}

func (f *fakeRules) ListBySession(ctx context.Context, sessionID string) ([]*models.ResponderRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rules[sessionID], nil
}

func rule(sessionID, keyword, response string) *models.ResponderRule {
	return &models.ResponderRule{
		ID:        uuid.New(),
		SessionID: sessionID,
		Tenant:    sessionID,
		Keyword:   keyword,
		Response:  response,
	}
}

func inbound(text string) *InboundMessage {
	chat := types.NewJID("919000000001", types.DefaultUserServer)
	return &InboundMessage{
		ID:        "3EB0C0FFEE",
		Chat:      chat,
		Sender:    chat,
		Text:      text,
		Timestamp: time.Now(),
	}
}

func TestMatchRule(t *testing.T) {
	rules := []*models.ResponderRule{
		rule("acme", "  ", "blank"),
		rule("acme", "price", "Our prices start at 10"),
		rule("acme", "Price List", "See attached"),
		rule("acme", "hours", "Open 9 to 5"),
	}

	tests := []struct {
		text string
		want string
	}{
		{"What is the PRICE list?", "Our prices start at 10"},
		{"opening hours please", "Open 9 to 5"},
		{"hello", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := MatchRule(rules, tt.text)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Response)
		})
	}
}

func TestAutoResponder_RepliesWithFirstMatch(t *testing.T) {
	client := &fakeClient{id: "acme"}
	session := standaloneReadySession(t, "acme", client)
	rules := &fakeRules{rules: map[string][]*models.ResponderRule{
		"acme": {
			rule("acme", "order", "Your order is on its way"),
			rule("acme", "order status", "Checking"),
		},
		"globex": {rule("globex", "hello", "Hi from globex")},
	}}
	responder := NewAutoResponder(rules, logger.Nop())

	responder.HandleInbound(context.Background(), session, inbound("Order status?"))

	assert.Equal(t, []sentMessage{{To: "919000000001", Text: "Your order is on its way"}}, client.Sent())

	// Rules are scoped to the receiving session
	responder.HandleInbound(context.Background(), session, inbound("hello"))
	assert.Len(t, client.Sent(), 1)
}

func TestAutoResponder_IgnoresMessages(t *testing.T) {
	rules := &fakeRules{rules: map[string][]*models.ResponderRule{
		"acme": {rule("acme", "hi", "hello there")},
	}}

	own := inbound("hi")
	own.IsFromMe = true
	group := inbound("hi")
	group.IsGroup = true
	group.Chat = types.NewJID("120363025246125486", types.GroupServer)
	broadcast := inbound("hi")
	broadcast.IsBroadcast = true
	empty := inbound("   ")

	for name, msg := range map[string]*InboundMessage{
		"own":       own,
		"group":     group,
		"broadcast": broadcast,
		"empty":     empty,
	} {
		t.Run(name, func(t *testing.T) {
			client := &fakeClient{id: "acme"}
			session := standaloneReadySession(t, "acme", client)

			NewAutoResponder(rules, logger.Nop()).HandleInbound(context.Background(), session, msg)
			assert.Empty(t, client.Sent())
		})
	}
}

func TestAutoResponder_RuleStoreError(t *testing.T) {
	client := &fakeClient{id: "acme"}
	session := standaloneReadySession(t, "acme", client)
	responder := NewAutoResponder(&fakeRules{err: errors.New("connection refused")}, logger.Nop())

	responder.HandleInbound(context.Background(), session, inbound("hi"))
	assert.Empty(t, client.Sent())
}

func TestAutoResponder_SkipsClosedSession(t *testing.T) {
	client := &fakeClient{id: "acme"}
	session := standaloneReadySession(t, "acme", client)
	session.close()

	rules := &fakeRules{rules: map[string][]*models.ResponderRule{
		"acme": {rule("acme", "hi", "hello there")},
	}}
	NewAutoResponder(rules, logger.Nop()).HandleInbound(context.Background(), session, inbound("hi"))
	assert.Empty(t, client.Sent())
}

func TestAutoResponder_ThroughSessionManager(t *testing.T) {
	factory := &fakeFactory{}
	sm, _ := newTestManager(t, factory)
	sm.SetInboundHandler(NewAutoResponder(&fakeRules{rules: map[string][]*models.ResponderRule{
		"acme": {rule("acme", "menu", "Today: pasta")},
	}}, logger.Nop()))

	client := readySession(t, sm, factory, "acme")
	client.emit(ClientEvent{Type: ClientEventMessage, Message: inbound("send the menu")})

	require.Eventually(t, func() bool {
		return len(client.Sent()) == 1
	}, waitFor, tick)
	assert.Equal(t, "Today: pasta", client.Sent()[0].Text)
}
