package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"kasbot/internal/entities"
	"kasbot/internal/observability"
)

// WhatsAppClient is the WhatsApp front-end. The device session is stored in
// a local SQLite file; linking is done by scanning the QR code exposed at
// GET /whatsapp/qr.
type WhatsAppClient struct {
	Client *whatsmeow.Client
	logger *observability.Logger

	qrCode string
	qrLock sync.RWMutex
}

func NewWhatsAppClient(ctx context.Context, dbPath string, logger *observability.Logger) (*WhatsAppClient, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create device store dir: %w", err)
		}
	}

	zl := logger.Zerolog()
	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)", waLog.Zerolog(zl.With().Str("component", "whatsmeow_store").Logger()))
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, waLog.Zerolog(zl.With().Str("component", "whatsmeow").Logger()))
	return &WhatsAppClient{
		Client: client,
		logger: logger.WithComponent("whatsapp"),
	}, nil
}

// Connect logs in with the stored session, or starts QR linking for a new device.
func (w *WhatsAppClient) Connect(ctx context.Context) error {
	if w.Client.Store.ID != nil {
		if err := w.Client.Connect(); err != nil {
			return err
		}
		w.logger.Info().Str("phone", w.GetPhoneNumber()).Msg("whatsapp connected (existing session)")
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

func (w *WhatsAppClient) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		if evt.Event == "code" {
			w.qrLock.Lock()
			w.qrCode = evt.Code
			w.qrLock.Unlock()
			w.logger.Info().Msg("new whatsapp QR code available")
			continue
		}
		w.qrLock.Lock()
		w.qrCode = ""
		w.qrLock.Unlock()
		w.logger.Info().Str("event", evt.Event).Msg("whatsapp login event")
	}
}

// GetQR returns the pending link code, or "" when none is pending.
func (w *WhatsAppClient) GetQR() string {
	w.qrLock.RLock()
	defer w.qrLock.RUnlock()
	return w.qrCode
}

func (w *WhatsAppClient) IsLoggedIn() bool {
	return w.Client.Store.ID != nil
}

func (w *WhatsAppClient) IsConnected() bool {
	return w.Client.IsConnected() && w.Client.Store.ID != nil
}

func (w *WhatsAppClient) GetPhoneNumber() string {
	if w.Client.Store.ID == nil {
		return ""
	}
	return w.Client.Store.ID.User
}

func (w *WhatsAppClient) GetName() string {
	if w.Client.Store.ID == nil {
		return ""
	}
	return w.Client.Store.PushName
}

// Logout unlinks the device and starts a fresh QR login.
func (w *WhatsAppClient) Logout(ctx context.Context) error {
	w.qrLock.Lock()
	w.qrCode = ""
	w.qrLock.Unlock()

	if err := w.Client.Logout(ctx); err != nil {
		return err
	}
	w.Client.Disconnect()
	return w.Connect(ctx)
}

func (w *WhatsAppClient) Disconnect() {
	w.Client.Disconnect()
}

// OnMessage registers handler for incoming one-to-one text messages.
func (w *WhatsAppClient) OnMessage(handler func(msg entities.Message)) {
	w.Client.AddEventHandler(func(evt interface{}) {
		v, ok := evt.(*events.Message)
		if !ok || v.Info.IsGroup || v.Info.IsFromMe {
			return
		}
		sender, content := ParseWhatsAppMessage(v)
		if strings.TrimSpace(content) == "" {
			return
		}
		handler(entities.Message{
			ID:       v.Info.ID,
			From:     sender,
			Content:  content,
			Platform: "whatsapp",
		})
	})
}

// ParseWhatsAppMessage returns the sender's number and the message text.
func ParseWhatsAppMessage(evt *events.Message) (string, string) {
	sender := evt.Info.Sender.User
	content := evt.Message.GetConversation()
	if content == "" {
		content = evt.Message.GetExtendedTextMessage().GetText()
	}
	return sender, content
}

func (w *WhatsAppClient) SendMessage(ctx context.Context, to, content string) error {
	jid, err := types.ParseJID(to + "@s.whatsapp.net")
	if err != nil {
		return fmt.Errorf("invalid number format: %w", err)
	}
	_, err = w.Client.SendMessage(ctx, jid, &waProto.Message{
		Conversation: &content,
	})
	return err
}

// SendReply appends suggestions as a numbered list; WhatsApp text has no buttons.
func (w *WhatsAppClient) SendReply(ctx context.Context, to string, reply entities.Reply) error {
	return w.SendMessage(ctx, to, FormatSuggestionList(reply))
}

// FormatSuggestionList renders suggestions as plain text lines under the reply.
func FormatSuggestionList(reply entities.Reply) string {
	if len(reply.Suggestions) == 0 {
		return reply.Text
	}
	var b strings.Builder
	b.WriteString(reply.Text)
	b.WriteString("\n")
	for i, s := range reply.Suggestions {
		fmt.Fprintf(&b, "\n%d) %s", i+1, s.Label)
	}
	return b.String()
}

// SendPresence shows the typing indicator in the chat.
func (w *WhatsAppClient) SendPresence(ctx context.Context, to string) {
	jid, err := types.ParseJID(to + "@s.whatsapp.net")
	if err != nil {
		return
	}
	_ = w.Client.SendPresence(ctx, types.PresenceAvailable)
	_ = w.Client.SendChatPresence(ctx, jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
}
