package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	_ "modernc.org/sqlite"

	"supportdesk/internal/entities"
)

var ErrNoQRCode = errors.New("no pairing code available")

// WhatsAppDevice is a linked-device WhatsApp session (whatsmeow) used when
// whatsapp.mode is "device". It both receives messages and sends replies.
type WhatsAppDevice struct {
	Client *whatsmeow.Client

	onMessage func(entities.InboundMessage)

	qrCode string
	qrLock sync.RWMutex
}

type DeviceStatus struct {
	Connected bool   `json:"connected"`
	LoggedIn  bool   `json:"logged_in"`
	Phone     string `json:"phone,omitempty"`
	Name      string `json:"name,omitempty"`
	Pairing   bool   `json:"pairing"`
}

func NewWhatsAppDevice(ctx context.Context, dbPath string, onMessage func(entities.InboundMessage)) (*WhatsAppDevice, error) {
	dbLog := waLog.Zerolog(log.Logger.With().Str("component", "whatsmeow-db").Logger().Level(zerolog.WarnLevel))
	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)", dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	clientLog := waLog.Zerolog(log.Logger.With().Str("component", "whatsmeow").Logger().Level(zerolog.InfoLevel))
	d := &WhatsAppDevice{
		Client:    whatsmeow.NewClient(deviceStore, clientLog),
		onMessage: onMessage,
	}
	d.Client.AddEventHandler(d.handleEvent)
	return d, nil
}

// Connect resumes a stored session or starts pairing, publishing QR codes
// for the dashboard as they rotate.
func (w *WhatsAppDevice) Connect(ctx context.Context) error {
	if w.Client.Store.ID != nil {
		if err := w.Client.Connect(); err != nil {
			return err
		}
		log.Info().Str("phone", w.Client.Store.ID.User).Msg("whatsapp device connected (existing session)")
		return nil
	}

	qrChan, err := w.Client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get qr channel: %w", err)
	}
	if err := w.Client.Connect(); err != nil {
		return err
	}
	go w.watchQR(qrChan)
	return nil
}

func (w *WhatsAppDevice) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		if evt.Event == whatsmeow.QRChannelEventCode {
			w.setQR(evt.Code)
			log.Info().Msg("whatsapp pairing code refreshed")
			continue
		}
		w.setQR("")
		log.Info().Str("event", evt.Event).Msg("whatsapp login event")
	}
}

func (w *WhatsAppDevice) setQR(code string) {
	w.qrLock.Lock()
	w.qrCode = code
	w.qrLock.Unlock()
}

func (w *WhatsAppDevice) GetQR() string {
	w.qrLock.RLock()
	defer w.qrLock.RUnlock()
	return w.qrCode
}

// QRPNG renders the current pairing code as a PNG image.
func (w *WhatsAppDevice) QRPNG(size int) ([]byte, error) {
	code := w.GetQR()
	if code == "" {
		return nil, ErrNoQRCode
	}
	return qrcode.Encode(code, qrcode.Medium, size)
}

func (w *WhatsAppDevice) Status() DeviceStatus {
	st := DeviceStatus{
		Connected: w.Client.IsConnected(),
		LoggedIn:  w.Client.Store.ID != nil,
		Pairing:   w.GetQR() != "",
	}
	if w.Client.Store.ID != nil {
		st.Phone = w.Client.Store.ID.User
		st.Name = w.Client.Store.PushName
	}
	return st
}

// Logout unlinks the device and starts a fresh pairing session.
func (w *WhatsAppDevice) Logout(ctx context.Context) error {
	w.setQR("")
	if w.Client.Store.ID != nil {
		if err := w.Client.Logout(ctx); err != nil {
			return err
		}
	}
	w.Client.Disconnect()
	return w.Connect(ctx)
}

func (w *WhatsAppDevice) Disconnect() {
	w.Client.Disconnect()
}

func (w *WhatsAppDevice) SendMessage(ctx context.Context, to, content string) (string, error) {
	jid := types.NewJID(strings.TrimPrefix(to, "+"), types.DefaultUserServer)
	resp, err := w.Client.SendMessage(ctx, jid, &waProto.Message{
		Conversation: &content,
	})
	if err != nil {
		return "", fmt.Errorf("whatsapp device send: %w", err)
	}
	return resp.ID, nil
}

func (w *WhatsAppDevice) handleEvent(evt any) {
	msg, ok := evt.(*events.Message)
	if !ok || w.onMessage == nil {
		return
	}
	if msg.Info.IsGroup || msg.Info.Chat.Server == types.BroadcastServer {
		return
	}
	in, ok := ParseDeviceMessage(msg)
	if !ok {
		return
	}
	w.onMessage(in)
}

// ParseDeviceMessage converts a whatsmeow event into a channel-neutral
// inbound message. Messages without text or media are skipped.
func ParseDeviceMessage(evt *events.Message) (entities.InboundMessage, bool) {
	in := entities.InboundMessage{
		ID:        string(evt.Info.ID),
		From:      evt.Info.Sender.User,
		Name:      evt.Info.PushName,
		FromMe:    evt.Info.IsFromMe,
		Channel:   entities.ChannelWhatsApp,
		Timestamp: evt.Info.Timestamp,
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}
	m := evt.Message
	if m == nil {
		return in, false
	}
	switch {
	case m.GetConversation() != "":
		in.Type, in.Text = "text", m.GetConversation()
	case m.GetExtendedTextMessage() != nil:
		in.Type, in.Text = "text", m.GetExtendedTextMessage().GetText()
	case m.GetImageMessage() != nil:
		in.Type, in.Text = "image", m.GetImageMessage().GetCaption()
	case m.GetButtonsResponseMessage() != nil:
		in.Type, in.Text = "button", m.GetButtonsResponseMessage().GetSelectedDisplayText()
	case m.GetListResponseMessage() != nil:
		in.Type, in.Text = "interactive", m.GetListResponseMessage().GetTitle()
	default:
		return in, false
	}
	return in, true
}
