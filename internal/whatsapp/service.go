// Package whatsapp delivers rendered invitations over a linked WhatsApp account.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

var (
	ErrNotOnWhatsApp = errors.New("number is not registered on WhatsApp")
	ErrNotConnected  = errors.New("whatsapp client is not connected")
)

type Config struct {
	DataDir string
}

type Service struct {
	client *whatsmeow.Client
	cfg    Config
	log    zerolog.Logger
}

// NewService opens the device store under cfg.DataDir. The account is paired
// on the first Connect.
func NewService(ctx context.Context, cfg Config, logger zerolog.Logger) (*Service, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(cfg.DataDir, "whatsmeow.db"))
	container, err := sqlstore.New(ctx, "sqlite3", dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	service := &Service{
		client: whatsmeow.NewClient(deviceStore, nil),
		cfg:    cfg,
		log:    logger.With().Str("component", "WhatsApp").Logger(),
	}
	service.client.AddEventHandler(service.eventHandler)

	return service, nil
}

// NormalizePhoneNumber returns the number in international digits-only form.
// National numbers get countryCode prepended after dropping the trunk 0, and a
// trunk 0 left behind the country code is removed.
func NormalizePhoneNumber(countryCode, phone string) string {
	cc := digitsOnly(countryCode)
	trimmed := strings.TrimSpace(phone)
	international := strings.HasPrefix(trimmed, "+")

	number := digitsOnly(trimmed)
	if strings.HasPrefix(number, "00") {
		number = number[2:]
		international = true
	}
	if cc == "" {
		return number
	}

	if strings.HasPrefix(number, cc+"0") {
		return cc + number[len(cc)+1:]
	}
	if international {
		return number
	}

	number = strings.TrimPrefix(number, "0")
	// a national number is at most 10 digits once the trunk 0 is gone
	if strings.HasPrefix(number, cc) && len(number) > len(cc)+8 {
		return number
	}
	return cc + number
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// Connect connects to WhatsApp, printing a pairing QR code to the terminal
// when no account is linked yet.
func (s *Service) Connect(ctx context.Context) error {
	if s.client.Store.ID != nil {
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	}

	qrChan, err := s.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pairing channel: %w", err)
	}
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	for evt := range qrChan {
		if evt.Event != "code" {
			s.log.Info().Str("event", evt.Event).Msg("Login event")
			continue
		}
		q, err := qrcode.New(evt.Code, qrcode.Medium)
		if err != nil {
			fmt.Printf("QR Code: %s\n", evt.Code)
			continue
		}
		fmt.Println("\n" + q.ToSmallString(false))
		fmt.Println("Scan the code above from WhatsApp > Settings > Linked Devices > Link a Device")
	}
	return nil
}

func (s *Service) Disconnect() {
	s.client.Disconnect()
}

// SendImage uploads a PNG and sends it with caption to phone, which must be
// normalized already.
func (s *Service) SendImage(ctx context.Context, phone string, png []byte, caption string) error {
	if !s.client.IsConnected() {
		return ErrNotConnected
	}

	jid, err := s.resolve(ctx, phone)
	if err != nil {
		return err
	}

	uploaded, err := s.client.Upload(ctx, png, whatsmeow.MediaImage)
	if err != nil {
		return fmt.Errorf("failed to upload invitation: %w", err)
	}

	msg := &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(http.DetectContentType(png)),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		},
	}

	sent, err := s.client.SendMessage(ctx, jid, msg)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", jid.String(), err)
	}

	s.log.Info().
		Str("jid", jid.String()).
		Str("message_id", sent.ID).
		Msg("Invitation sent")
	return nil
}

// resolve asks WhatsApp for the account behind phone.
func (s *Service) resolve(ctx context.Context, phone string) (types.JID, error) {
	resp, err := s.client.IsOnWhatsApp(ctx, []string{"+" + phone})
	if err != nil {
		return types.JID{}, fmt.Errorf("failed to verify number on WhatsApp: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return types.JID{}, fmt.Errorf("%w: %s", ErrNotOnWhatsApp, phone)
	}
	s.log.Debug().Str("phone", phone).Str("jid", resp[0].JID.String()).Msg("Number verified")
	return resp[0].JID, nil
}

func (s *Service) eventHandler(evt interface{}) {
	switch evt.(type) {
	case *events.Connected:
		s.log.Info().Msg("Connected to WhatsApp")
	case *events.Disconnected:
		s.log.Info().Msg("Disconnected from WhatsApp")
	case *events.LoggedOut:
		s.log.Warn().Msg("Logged out from WhatsApp")
	}
}
