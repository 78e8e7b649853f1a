package services

import (
	"context"
	"time"

	"go.mau.fi/whatsmeow/types"

	"whatsapp-campaigns/internal/models"
)

// ClientEventType is the kind of lifecycle or message event raised by a client
type ClientEventType string

const (
	ClientEventQR            ClientEventType = "qr"
	ClientEventAuthenticated ClientEventType = "authenticated"
	ClientEventReady         ClientEventType = "ready"
	ClientEventDisconnected  ClientEventType = "disconnected"
	ClientEventMessage       ClientEventType = "message"
)

// ClientEvent is raised by a Client in the order the network produced it
type ClientEvent struct {
	Type    ClientEventType
	QRCode  string
	Reason  string
	Message *InboundMessage
}

// InboundMessage is a text message received by a session
type InboundMessage struct {
	ID          string
	Chat        types.JID
	Sender      types.JID
	Text        string
	IsFromMe    bool
	IsGroup     bool
	IsBroadcast bool
	Timestamp   time.Time
}

// Contact is a saved contact of a session
type Contact struct {
	JID      string `json:"jid"`
	Phone    string `json:"phone"`
	Name     string `json:"name,omitempty"`
	PushName string `json:"push_name,omitempty"`
}

// Group is a joined group and its members' phone numbers
type Group struct {
	JID          string   `json:"jid"`
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

// EventSink receives the events of one client
type EventSink func(ClientEvent)

// Client is the messaging network capability owned by one session.
// Implementations are not safe for concurrent use; Session serializes calls.
type Client interface {
	Connect() error
	Logout(ctx context.Context) error
	Close()
	IsRegistered(ctx context.Context, to types.JID) (bool, error)
	SendText(ctx context.Context, to types.JID, text string) error
	SendMedia(ctx context.Context, to types.JID, media *models.Media, caption string) error
	Contacts(ctx context.Context) ([]Contact, error)
	Groups(ctx context.Context) ([]Group, error)
}

// ClientFactory creates clients backed by tenant-isolated storage
type ClientFactory interface {
	NewClient(ctx context.Context, sessionID string, sink EventSink) (Client, error)
	RemoveArtifacts(sessionID string) error
	StoredSessions() ([]string, error)
}
