// internal/store/client.go
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/internal/services"
	"whatsapp-campaigns/pkg/logger"
)

// Client adapts a whatsmeow client to services.Client
type Client struct {
	sessionID string
	cli       *whatsmeow.Client
	container *sqlstore.Container
	sink      services.EventSink
	logger    *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	authenticated atomic.Bool
	ready         atomic.Bool
	closeOnce     sync.Once
}

func newClient(sessionID string, cli *whatsmeow.Client, container *sqlstore.Container, sink services.EventSink, log *logger.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		sessionID: sessionID,
		cli:       cli,
		container: container,
		sink:      sink,
		logger:    log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Connect opens the connection, requesting QR challenges when not yet paired
func (c *Client) Connect() error {
	if c.cli.Store.ID == nil {
		qrChan, err := c.cli.GetQRChannel(c.ctx)
		if err != nil {
			return fmt.Errorf("failed to get QR channel: %w", err)
		}
		go c.forwardQR(qrChan)
	}

	if err := c.cli.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

// forwardQR relays challenge rotations until pairing ends
func (c *Client) forwardQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		event, ok := qrEvent(item)
		if !ok {
			c.logger.Debug("QR pairing succeeded")
			continue
		}
		c.emit(event)
	}
}

// qrEvent maps a QR channel item to a client event; false for a successful pairing
func qrEvent(item whatsmeow.QRChannelItem) (services.ClientEvent, bool) {
	switch item.Event {
	case whatsmeow.QRChannelEventCode:
		return services.ClientEvent{Type: services.ClientEventQR, QRCode: item.Code}, true
	case whatsmeow.QRChannelSuccess.Event:
		return services.ClientEvent{}, false
	case whatsmeow.QRChannelTimeout.Event:
		return services.ClientEvent{Type: services.ClientEventDisconnected, Reason: "qr_timeout"}, true
	case whatsmeow.QRChannelEventError:
		return services.ClientEvent{Type: services.ClientEventDisconnected, Reason: fmt.Sprintf("pairing error: %v", item.Error)}, true
	default:
		return services.ClientEvent{Type: services.ClientEventDisconnected, Reason: item.Event}, true
	}
}

// handleEvent translates whatsmeow events into ordered client events
func (c *Client) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.PairSuccess:
		c.logger.Info("Paired as %s", v.ID.String())
		if c.authenticated.CompareAndSwap(false, true) {
			c.emit(services.ClientEvent{Type: services.ClientEventAuthenticated})
		}

	case *events.Connected:
		// A restored session connects without pairing first
		if c.authenticated.CompareAndSwap(false, true) {
			c.emit(services.ClientEvent{Type: services.ClientEventAuthenticated})
		}
		if c.ready.CompareAndSwap(false, true) {
			c.emit(services.ClientEvent{Type: services.ClientEventReady})
		}

	case *events.Disconnected:
		c.emit(services.ClientEvent{Type: services.ClientEventDisconnected, Reason: "connection lost"})

	case *events.LoggedOut:
		c.emit(services.ClientEvent{Type: services.ClientEventDisconnected, Reason: "logged out: " + v.Reason.String()})

	case *events.StreamReplaced:
		c.emit(services.ClientEvent{Type: services.ClientEventDisconnected, Reason: "stream replaced"})

	case *events.TemporaryBan:
		c.emit(services.ClientEvent{Type: services.ClientEventDisconnected, Reason: "temporary ban: " + v.String()})

	case *events.ConnectFailure:
		c.emit(services.ClientEvent{Type: services.ClientEventDisconnected, Reason: fmt.Sprintf("connect failure: %s", v.Reason)})

	case *events.Message:
		if msg := toInbound(v); msg != nil {
			c.emit(services.ClientEvent{Type: services.ClientEventMessage, Message: msg})
		}
	}
}

func (c *Client) emit(event services.ClientEvent) {
	if c.ctx.Err() != nil {
		return
	}
	c.sink(event)
}

func toInbound(v *events.Message) *services.InboundMessage {
	text := v.Message.GetConversation()
	if text == "" {
		text = v.Message.GetExtendedTextMessage().GetText()
	}
	if text == "" {
		return nil
	}

	return &services.InboundMessage{
		ID:          v.Info.ID,
		Chat:        v.Info.Chat,
		Sender:      v.Info.Sender,
		Text:        text,
		IsFromMe:    v.Info.IsFromMe,
		IsGroup:     v.Info.IsGroup,
		IsBroadcast: v.Info.IsIncomingBroadcast() || v.Info.Chat.Server == types.BroadcastServer,
		Timestamp:   v.Info.Timestamp,
	}
}

// Logout signs the device out of the network
func (c *Client) Logout(ctx context.Context) error {
	return c.cli.Logout(ctx)
}

// Close disconnects and releases the device store
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.cli.Disconnect()
		if err := c.container.Close(); err != nil {
			c.logger.Warn("Failed to close device store: %v", err)
		}
	})
}

// IsRegistered reports whether to is a user of the network
func (c *Client) IsRegistered(ctx context.Context, to types.JID) (bool, error) {
	resp, err := c.cli.IsOnWhatsApp(ctx, []string{"+" + to.User})
	if err != nil {
		return false, err
	}
	return len(resp) > 0 && resp[0].IsIn, nil
}

// SendText sends a plain text message
func (c *Client) SendText(ctx context.Context, to types.JID, text string) error {
	_, err := c.cli.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendMedia uploads media and sends it with caption; images are sent inline, everything else as a document
func (c *Client) SendMedia(ctx context.Context, to types.JID, media *models.Media, caption string) error {
	mediaType := whatsmeow.MediaDocument
	if media.IsImage() {
		mediaType = whatsmeow.MediaImage
	}

	// Upload media to WhatsApp
	uploaded, err := c.cli.Upload(ctx, media.Data, mediaType)
	if err != nil {
		return fmt.Errorf("failed to upload media: %w", err)
	}

	message := &waE2E.Message{}
	if media.IsImage() {
		message.ImageMessage = &waE2E.ImageMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
			Mimetype:      proto.String(media.MimeType),
			Caption:       proto.String(caption),
		}
	} else {
		message.DocumentMessage = &waE2E.DocumentMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
			Mimetype:      proto.String(media.MimeType),
			FileName:      proto.String(media.Name),
			Title:         proto.String(media.Name),
			Caption:       proto.String(caption),
		}
	}

	if _, err := c.cli.SendMessage(ctx, to, message); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Contacts returns saved user contacts
func (c *Client) Contacts(ctx context.Context) ([]services.Contact, error) {
	all, err := c.cli.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get contacts: %w", err)
	}

	contacts := make([]services.Contact, 0, len(all))
	for jid, info := range all {
		if jid.Server != types.DefaultUserServer || strings.TrimSpace(info.FullName) == "" {
			continue
		}
		contacts = append(contacts, services.Contact{
			JID:      jid.String(),
			Phone:    jid.User,
			Name:     info.FullName,
			PushName: info.PushName,
		})
	}
	return contacts, nil
}

// Groups returns joined groups with their members' phone numbers
func (c *Client) Groups(ctx context.Context) ([]services.Group, error) {
	joined, err := c.cli.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get groups: %w", err)
	}

	groups := make([]services.Group, 0, len(joined))
	for _, g := range joined {
		participants := make([]string, 0, len(g.Participants))
		for _, p := range g.Participants {
			if phone := c.participantPhone(ctx, p); phone != "" {
				participants = append(participants, phone)
			}
		}
		groups = append(groups, services.Group{
			JID:          g.JID.String(),
			Name:         g.Name,
			Participants: participants,
		})
	}
	return groups, nil
}

// participantPhone resolves hidden-user participants to their phone number
func (c *Client) participantPhone(ctx context.Context, p types.GroupParticipant) string {
	if p.PhoneNumber.User != "" {
		return p.PhoneNumber.User
	}

	if p.JID.Server == types.HiddenUserServer && c.cli.Store.LIDs != nil {
		pn, err := c.cli.Store.LIDs.GetPNForLID(ctx, p.JID)
		if err == nil && pn.User != "" {
			return pn.User
		}
		return ""
	}

	if p.JID.Server == types.DefaultUserServer {
		return p.JID.User
	}
	return ""
}
