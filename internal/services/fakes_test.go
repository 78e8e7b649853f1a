package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/types"

	"whatsapp-campaigns/internal/config"
	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/pkg/logger"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type sentMessage struct {
	To      string
	Text    string
	Media   *models.Media
	Caption string
}

type fakeClient struct {
	id   string
	sink EventSink

	mu         sync.Mutex
	sent       []sentMessage
	failFor    map[string]error
	registered map[string]bool
	connectErr error
	contacts   []Contact
	groups     []Group
	connected  bool
	loggedOut  bool
	closed     bool

	// delay slows every send down; spans records when each one ran
	delay time.Duration
	spans []sendSpan
}

type sendSpan struct {
	start, end time.Time
}

func (c *fakeClient) slowSend() {
	if c.delay <= 0 {
		return
	}
	start := time.Now()
	time.Sleep(c.delay)
	c.mu.Lock()
	c.spans = append(c.spans, sendSpan{start: start, end: time.Now()})
	c.mu.Unlock()
}

func (c *fakeClient) Spans() []sendSpan {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sendSpan, len(c.spans))
	copy(out, c.spans)
	return out
}

func (c *fakeClient) emit(event ClientEvent) {
	c.sink(event)
}

func (c *fakeClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	return nil
}

func (c *fakeClient) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedOut = true
	return nil
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) IsRegistered(ctx context.Context, to types.JID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registered == nil {
		return true, nil
	}
	return c.registered[to.User], nil
}

func (c *fakeClient) SendText(ctx context.Context, to types.JID, text string) error {
	c.slowSend()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failFor[to.User]; err != nil {
		return err
	}
	c.sent = append(c.sent, sentMessage{To: to.User, Text: text})
	return nil
}

func (c *fakeClient) SendMedia(ctx context.Context, to types.JID, media *models.Media, caption string) error {
	c.slowSend()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failFor[to.User]; err != nil {
		return err
	}
	c.sent = append(c.sent, sentMessage{To: to.User, Media: media, Caption: caption})
	return nil
}

func (c *fakeClient) Contacts(ctx context.Context) ([]Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contacts, nil
}

func (c *fakeClient) Groups(ctx context.Context) ([]Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groups, nil
}

func (c *fakeClient) Sent() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sentMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) IsLoggedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedOut
}

type fakeFactory struct {
	mu         sync.Mutex
	clients    []*fakeClient
	removed    []string
	stored     []string
	newErr     error
	connectErr error
	configure  func(*fakeClient)
}

func (f *fakeFactory) NewClient(ctx context.Context, sessionID string, sink EventSink) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.newErr != nil {
		return nil, f.newErr
	}

	client := &fakeClient{id: sessionID, sink: sink, connectErr: f.connectErr}
	if f.configure != nil {
		f.configure(client)
	}
	f.clients = append(f.clients, client)
	return client, nil
}

func (f *fakeFactory) RemoveArtifacts(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, sessionID)
	return nil
}

func (f *fakeFactory) StoredSessions() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored, nil
}

func (f *fakeFactory) Created(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.clients {
		if c.id == sessionID {
			n++
		}
	}
	return n
}

func (f *fakeFactory) Last(sessionID string) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.clients) - 1; i >= 0; i-- {
		if f.clients[i].id == sessionID {
			return f.clients[i]
		}
	}
	return nil
}

func (f *fakeFactory) All() []*fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeClient, len(f.clients))
	copy(out, f.clients)
	return out
}

func (f *fakeFactory) Removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.removed))
	copy(out, f.removed)
	return out
}

// eventLog records everything published to one session topic
type eventLog struct {
	mu     sync.Mutex
	events []*models.SessionEvent
}

func (l *eventLog) add(event *models.SessionEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) Types() []models.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func (l *eventLog) Has(eventType models.EventType) bool {
	for _, t := range l.Types() {
		if t == eventType {
			return true
		}
	}
	return false
}

func (l *eventLog) Count(eventType models.EventType) int {
	n := 0
	for _, t := range l.Types() {
		if t == eventType {
			n++
		}
	}
	return n
}

func watch(t *testing.T, bus *EventBus, sessionID string) *eventLog {
	t.Helper()
	log := &eventLog{}
	unsubscribe, err := bus.Subscribe(sessionID, log.add)
	require.NoError(t, err)
	t.Cleanup(unsubscribe)
	return log
}

type fakeRecorder struct {
	mu        sync.Mutex
	campaigns []*models.Campaign
	err       error
}

func (r *fakeRecorder) Record(ctx context.Context, campaign *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.campaigns = append(r.campaigns, campaign)
	return nil
}

func (r *fakeRecorder) Campaigns() []*models.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Campaign, len(r.campaigns))
	copy(out, r.campaigns)
	return out
}

var errSendFailed = errors.New("send failed")

func testManagerOptions() SessionManagerOptions {
	return SessionManagerOptions{
		ReinitDelay:  20 * time.Millisecond,
		CleanupDelay: 10 * time.Millisecond,
		EventBuffer:  16,
	}
}

func newTestManager(t *testing.T, factory *fakeFactory) (*SessionManager, *EventBus) {
	t.Helper()

	bus := NewEventBus()
	qr := NewQRGenerator(config.QRCodeConfig{Size: 128, RecoveryLevel: "low"})
	sm := NewSessionManager(testManagerOptions(), NewMemoryRegistry(), factory, bus, qr, logger.Nop())
	t.Cleanup(sm.Stop)

	return sm, bus
}

// readySession drives a freshly initialized session through authentication
func readySession(t *testing.T, sm *SessionManager, factory *fakeFactory, sessionID string) *fakeClient {
	t.Helper()

	require.NoError(t, sm.Initialize(context.Background(), sessionID))
	client := factory.Last(sessionID)
	require.NotNil(t, client)

	client.emit(ClientEvent{Type: ClientEventAuthenticated})
	client.emit(ClientEvent{Type: ClientEventReady})

	require.Eventually(t, func() bool {
		_, err := sm.ReadySession(sessionID)
		return err == nil
	}, waitFor, tick)

	return client
}

// standaloneReadySession builds a ready session outside any manager
func standaloneReadySession(t *testing.T, sessionID string, client Client) *Session {
	t.Helper()

	session := newSession(sessionID, 4)
	require.True(t, session.attach(client))
	_, _, err := session.transition(ClientEventAuthenticated)
	require.NoError(t, err)
	_, _, err = session.transition(ClientEventReady)
	require.NoError(t, err)
	return session
}

type staticSessions map[string]*Session

func (s staticSessions) ReadySession(sessionID string) (*Session, error) {
	session, ok := s[sessionID]
	if !ok || !session.IsReady() {
		return nil, ErrSessionNotReady
	}
	return session, nil
}
