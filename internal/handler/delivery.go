// Package handler sends rendered invitations to guests.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wedding-invites/internal/metrics"
	"wedding-invites/internal/models"
	"wedding-invites/internal/whatsapp"

	"github.com/rs/zerolog"
)

var (
	ErrNoImage  = errors.New("invite has no rendered image")
	ErrNoNumber = errors.New("invite has no phone number")
)

type InviteFinder interface {
	FindByCode(ctx context.Context, code string) (models.Invite, error)
}

type AssetReader interface {
	Open(ref string) ([]byte, error)
}

type Sender interface {
	SendImage(ctx context.Context, phone string, png []byte, caption string) error
}

type Config struct {
	WeddingDate     string
	WeddingLocation string
	BrideName       string
	GroomName       string
}

type DeliveryHandler struct {
	invites InviteFinder
	assets  AssetReader
	sender  Sender
	config  Config
	log     zerolog.Logger
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(invites InviteFinder, assets AssetReader, sender Sender, cfg Config, logger zerolog.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		invites: invites,
		assets:  assets,
		sender:  sender,
		config:  cfg,
		log:     logger.With().Str("component", "Delivery").Logger(),
	}
}

// SendInvitation sends the rendered invitation of the invite with this code to
// the guest's phone.
func (h *DeliveryHandler) SendInvitation(ctx context.Context, code string) (models.Invite, error) {
	invite, err := h.invites.FindByCode(ctx, code)
	if err != nil {
		return models.Invite{}, err
	}
	if invite.InvitationImagePath == "" {
		return invite, fmt.Errorf("%w: %s", ErrNoImage, invite.UniqueID)
	}

	phone := whatsapp.NormalizePhoneNumber(invite.CountryCode, invite.Phone)
	if phone == "" {
		return invite, fmt.Errorf("%w: %s", ErrNoNumber, invite.UniqueID)
	}

	png, err := h.assets.Open(invite.InvitationImagePath)
	if err != nil {
		return invite, fmt.Errorf("%w: %w", ErrNoImage, err)
	}

	if err := h.sender.SendImage(ctx, phone, png, h.Caption(invite)); err != nil {
		metrics.Deliveries.WithLabelValues("failed").Inc()
		return invite, fmt.Errorf("failed to send invitation: %w", err)
	}

	metrics.Deliveries.WithLabelValues("sent").Inc()
	h.log.Info().Str("unique_id", invite.UniqueID).Str("phone", phone).Msg("Invitation delivered")
	return invite, nil
}

// Caption is the text sent along with the invitation image.
func (h *DeliveryHandler) Caption(invite models.Invite) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎉 *Wedding Invitation*\n\nDear %s,\n\n", invite.Name)
	fmt.Fprintf(&b, "You are cordially invited to celebrate the wedding of\n\n*%s* & *%s*\n\n",
		h.config.BrideName, h.config.GroomName)
	if h.config.WeddingDate != "" {
		fmt.Fprintf(&b, "📅 Date: %s\n", h.config.WeddingDate)
	}
	if h.config.WeddingLocation != "" {
		fmt.Fprintf(&b, "📍 Location: %s\n", h.config.WeddingLocation)
	}
	if invite.TableNumber != "" {
		fmt.Fprintf(&b, "🪑 Table: %s\n", invite.TableNumber)
	}
	b.WriteString("\nPlease show the code on this invitation at the entrance.")
	return b.String()
}
