package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/lib/pq"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// WhatsApp texts game results to one recipient. It only wants end-of-
// game updates; the play-by-play stays on Discord.
type WhatsApp struct {
	log    *slog.Logger
	client *whatsmeow.Client
	to     types.JID
}

// NewWhatsApp opens the whatsmeow device store in Postgres. The
// recipient may be a bare phone number or a full JID.
func NewWhatsApp(ctx context.Context, dbURL, recipient string, logger *slog.Logger) (*WhatsApp, error) {
	if logger == nil {
		logger = slog.Default()
	}
	to, err := parseRecipient(recipient)
	if err != nil {
		return nil, err
	}
	container, err := sqlstore.New(ctx, "postgres", dbURL, waLog.Stdout("whatsmeow-db", "ERROR", true))
	if err != nil {
		return nil, fmt.Errorf("whatsapp device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatsapp device: %w", err)
	}
	return &WhatsApp{
		log:    logger.With("component", "whatsapp"),
		client: whatsmeow.NewClient(device, waLog.Stdout("whatsmeow", "ERROR", true)),
		to:     to,
	}, nil
}

// Connect logs the device in. A device that has never paired prints a
// QR code and blocks until the phone scans it or the code expires.
func (w *WhatsApp) Connect(ctx context.Context) error {
	if w.client.Store.ID != nil {
		if err := w.client.Connect(); err != nil {
			return fmt.Errorf("whatsapp connect: %w", err)
		}
		w.log.Info("whatsapp connected", "to", w.to.String())
		return nil
	}

	qrChan, err := w.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("whatsapp pairing: %w", err)
	}
	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("whatsapp connect: %w", err)
	}
	for item := range qrChan {
		switch item.Event {
		case "code":
			fmt.Fprintln(os.Stdout, "Scan with WhatsApp to pair the game reporter:")
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
		case "success":
			w.log.Info("whatsapp paired", "to", w.to.String())
		default:
			w.log.Warn("whatsapp pairing event", "event", item.Event, "error", item.Error)
		}
	}
	if w.client.Store.ID == nil {
		return fmt.Errorf("whatsapp pairing did not complete")
	}
	return nil
}

func (w *WhatsApp) Close() {
	w.client.Disconnect()
}

func (w *WhatsApp) Name() string { return "whatsapp" }

func (w *WhatsApp) Wants(kind string) bool { return kind == KindEnded }

func (w *WhatsApp) Notify(ctx context.Context, text string) error {
	_, err := w.client.SendMessage(ctx, w.to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	return err
}

func parseRecipient(recipient string) (types.JID, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return types.JID{}, fmt.Errorf("empty whatsapp recipient")
	}
	if !strings.Contains(recipient, "@") {
		return types.NewJID(recipient, types.DefaultUserServer), nil
	}
	jid, err := types.ParseJID(recipient)
	if err != nil {
		return types.JID{}, fmt.Errorf("whatsapp recipient %q: %w", recipient, err)
	}
	return jid, nil
}
