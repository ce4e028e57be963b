// Package invites manages guest invitations stored as rows of the remote sheet.
//
// Invites are addressed by their unique identifier. Row positions are only
// used internally and are re-read right before every write, since deleting a
// row shifts every row below it.
package invites

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"wedding-invites/internal/metrics"
	"wedding-invites/internal/models"
	"wedding-invites/internal/render"
	"wedding-invites/internal/storage"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// IDPrefix starts every generated unique identifier.
const IDPrefix = "invite_"

const maxIDAttempts = 5

// ImagePolicy decides when Update re-renders the invitation image.
type ImagePolicy string

const (
	// RegenerateAlways re-renders on every update.
	RegenerateAlways ImagePolicy = "always"
	// RegenerateOnChange re-renders only when the name changed or the image is missing.
	RegenerateOnChange ImagePolicy = "on_change"
)

// ParseImagePolicy accepts "always" and "on_change".
func ParseImagePolicy(v string) (ImagePolicy, error) {
	switch ImagePolicy(strings.ToLower(strings.TrimSpace(v))) {
	case RegenerateAlways, "":
		return RegenerateAlways, nil
	case RegenerateOnChange:
		return RegenerateOnChange, nil
	}
	return "", fmt.Errorf("%w: image policy %q", ErrInvalidInput, v)
}

// CodeIssuer produces the QR code for a guest.
type CodeIssuer interface {
	Payload(uniqueID string) string
	Generate(payload string) (image.Image, error)
}

// ImageRenderer writes and removes invitation assets.
type ImageRenderer interface {
	Compose(qr image.Image, uniqueID, guestName string) (render.Asset, error)
	Remove(ref string) error
	Exists(ref string) bool
}

// Service orchestrates the store, the QR issuer and the renderer.
type Service struct {
	store      storage.Store
	issuer     CodeIssuer
	renderer   ImageRenderer
	headerRows int
	policy     ImagePolicy
	now        func() time.Time
	newID      func() string
	log        zerolog.Logger
}

// Option configures the Service.
type Option func(*Service) error

// WithHeaderRows sets how many leading rows of the sheet are headers.
func WithHeaderRows(n int) Option {
	return func(s *Service) error {
		if n < 0 {
			return ErrInvalidInput
		}
		s.headerRows = n
		return nil
	}
}

// WithImagePolicy sets the update regeneration policy.
func WithImagePolicy(p ImagePolicy) Option {
	return func(s *Service) error {
		if p != RegenerateAlways && p != RegenerateOnChange {
			return fmt.Errorf("%w: image policy %q", ErrInvalidInput, p)
		}
		s.policy = p
		return nil
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return ErrInvalidInput
		}
		s.now = now
		return nil
	}
}

// WithIDGenerator overrides unique identifier generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) error {
		if gen == nil {
			return ErrInvalidInput
		}
		s.newID = gen
		return nil
	}
}

// NewService creates a new invite service
func NewService(store storage.Store, issuer CodeIssuer, renderer ImageRenderer, logger zerolog.Logger, opts ...Option) (*Service, error) {
	if store == nil || issuer == nil || renderer == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{
		store:      store,
		issuer:     issuer,
		renderer:   renderer,
		headerRows: 1,
		policy:     RegenerateAlways,
		now:        time.Now,
		newID:      NewUniqueID,
		log:        logger.With().Str("component", "Invites").Logger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewUniqueID returns "invite_" followed by a ULID.
func NewUniqueID() string {
	return IDPrefix + ulid.Make().String()
}

// Add validates the guest data, issues an id and an invitation image, and
// appends the new row.
func (s *Service) Add(ctx context.Context, in AddInput) (models.Invite, error) {
	in = in.normalized()
	if err := validateStruct(in); err != nil {
		return models.Invite{}, err
	}

	rows, err := s.listRows(ctx)
	if err != nil {
		return models.Invite{}, err
	}
	id, err := s.freshID(s.idSet(rows))
	if err != nil {
		return models.Invite{}, err
	}

	asset, err := s.renderInvite(id, in.Name, "add")
	if err != nil {
		return models.Invite{}, err
	}

	inv := models.Invite{
		Name:                in.Name,
		CountryCode:         in.CountryCode,
		Phone:               in.Phone,
		FlagD:               true,
		FlagE:               true,
		InvitationImagePath: asset.URL,
		TableNumber:         in.TableNumber,
		CheckedIn:           false,
		DateAdded:           s.now().Format(models.DateLayout),
		UniqueID:            id,
		Position:            len(rows),
	}
	if err := s.store.AppendRow(ctx, inv.Row()); err != nil {
		metrics.StoreErrors.WithLabelValues("append").Inc()
		s.discard(asset.URL)
		return models.Invite{}, fmt.Errorf("failed to append invite: %w", err)
	}

	metrics.InvitesIssued.Inc()
	s.log.Info().Str("unique_id", id).Str("name", inv.Name).Msg("Invite added")
	return inv, nil
}

// Update rewrites the invite in place. Fields left nil in the input keep their
// current value; the unique identifier never changes.
func (s *Service) Update(ctx context.Context, uniqueID string, in UpdateInput) (models.Invite, error) {
	in = in.normalized()
	if err := validateStruct(in); err != nil {
		return models.Invite{}, err
	}

	current, err := s.FindByCode(ctx, uniqueID)
	if err != nil {
		return models.Invite{}, err
	}

	updated := in.apply(current, s.now())

	regenerate := s.policy == RegenerateAlways ||
		updated.Name != current.Name ||
		current.InvitationImagePath == "" ||
		!s.renderer.Exists(current.InvitationImagePath)

	var fresh render.Asset
	if regenerate {
		fresh, err = s.renderInvite(current.UniqueID, updated.Name, "update")
		if err != nil {
			return models.Invite{}, err
		}
		updated.InvitationImagePath = fresh.URL
	}

	if err := s.store.ReplaceRow(ctx, current.Position, updated.Row()); err != nil {
		metrics.StoreErrors.WithLabelValues("replace").Inc()
		if regenerate {
			s.discard(fresh.URL)
		}
		return models.Invite{}, fmt.Errorf("failed to update invite: %w", err)
	}

	if regenerate && current.InvitationImagePath != "" && current.InvitationImagePath != fresh.URL {
		s.discard(current.InvitationImagePath)
	}

	s.log.Info().
		Str("unique_id", current.UniqueID).
		Bool("image_regenerated", regenerate).
		Msg("Invite updated")
	return updated, nil
}

// Delete removes the invite row and its image.
func (s *Service) Delete(ctx context.Context, uniqueID string) error {
	current, err := s.FindByCode(ctx, uniqueID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteRow(ctx, current.Position); err != nil {
		metrics.StoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	if current.InvitationImagePath != "" {
		s.discard(current.InvitationImagePath)
	}

	s.log.Info().Str("unique_id", current.UniqueID).Msg("Invite deleted")
	return nil
}

// List returns every invite row below the header. Rows without any cell are skipped.
func (s *Service) List(ctx context.Context) ([]models.Invite, error) {
	rows, err := s.listRows(ctx)
	if err != nil {
		return nil, err
	}
	return s.decode(rows), nil
}

// ListCheckedIn returns the invites whose check-in flag is TRUE.
func (s *Service) ListCheckedIn(ctx context.Context) ([]models.Invite, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]models.Invite, 0, len(all))
	for _, inv := range all {
		if inv.CheckedIn {
			result = append(result, inv)
		}
	}
	return result, nil
}

// FindByCode looks an invite up by its unique identifier.
func (s *Service) FindByCode(ctx context.Context, code string) (models.Invite, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.Invite{}, ErrNotFound
	}
	all, err := s.List(ctx)
	if err != nil {
		return models.Invite{}, err
	}
	for _, inv := range all {
		if inv.UniqueID == code {
			return inv, nil
		}
	}
	return models.Invite{}, ErrNotFound
}

// CheckIn marks the guest as arrived. A guest already checked in is returned
// together with ErrAlreadyCheckedIn and the row is left untouched.
func (s *Service) CheckIn(ctx context.Context, code string) (models.Invite, error) {
	current, err := s.FindByCode(ctx, code)
	if err != nil {
		return models.Invite{}, err
	}
	if current.CheckedIn {
		return current, ErrAlreadyCheckedIn
	}

	current.CheckedIn = true
	current.CheckInTime = s.now().Format(time.RFC3339)
	if err := s.store.ReplaceRow(ctx, current.Position, current.Row()); err != nil {
		metrics.StoreErrors.WithLabelValues("replace").Inc()
		return models.Invite{}, fmt.Errorf("failed to check in: %w", err)
	}

	metrics.CheckIns.Inc()
	s.log.Info().Str("unique_id", current.UniqueID).Msg("Guest checked in")
	return current, nil
}

// BackfillReport summarizes a Backfill run.
type BackfillReport struct {
	Scanned   int      `json:"scanned"`
	Generated int      `json:"generated"`
	Skipped   int      `json:"skipped"`
	IDs       []string `json:"ids"`
}

// Backfill renders images for rows that have a name but no image, assigning
// an identifier where the row has none. It stops at the first failure.
func (s *Service) Backfill(ctx context.Context) (BackfillReport, error) {
	report := BackfillReport{IDs: []string{}}

	rows, err := s.listRows(ctx)
	if err != nil {
		return report, err
	}
	ids := s.idSet(rows)

	for pos := s.headerRows; pos < len(rows); pos++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if len(rows[pos]) == 0 {
			continue
		}
		report.Scanned++

		inv := models.InviteFromRow(rows[pos], pos)
		if inv.InvitationImagePath != "" || inv.Name == "" {
			report.Skipped++
			continue
		}

		if inv.UniqueID == "" {
			id, err := s.freshID(ids)
			if err != nil {
				return report, err
			}
			ids[id] = struct{}{}
			inv.UniqueID = id
		}

		asset, err := s.renderInvite(inv.UniqueID, inv.Name, "backfill")
		if err != nil {
			return report, err
		}
		inv.InvitationImagePath = asset.URL
		if inv.DateAdded == "" {
			inv.DateAdded = s.now().Format(models.DateLayout)
		}

		if err := s.store.ReplaceRow(ctx, pos, inv.Row()); err != nil {
			metrics.StoreErrors.WithLabelValues("replace").Inc()
			s.discard(asset.URL)
			return report, fmt.Errorf("failed to backfill row %d: %w", pos, err)
		}
		report.Generated++
		report.IDs = append(report.IDs, inv.UniqueID)
	}

	s.log.Info().
		Int("scanned", report.Scanned).
		Int("generated", report.Generated).
		Int("skipped", report.Skipped).
		Msg("Backfill finished")
	return report, nil
}

func (s *Service) listRows(ctx context.Context) ([][]string, error) {
	rows, err := s.store.ListAll(ctx)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	return rows, nil
}

func (s *Service) decode(rows [][]string) []models.Invite {
	result := make([]models.Invite, 0, len(rows))
	for pos := s.headerRows; pos < len(rows); pos++ {
		if len(rows[pos]) == 0 {
			continue
		}
		result = append(result, models.InviteFromRow(rows[pos], pos))
	}
	return result
}

func (s *Service) idSet(rows [][]string) map[string]struct{} {
	ids := make(map[string]struct{}, len(rows))
	for _, inv := range s.decode(rows) {
		if inv.UniqueID != "" {
			ids[inv.UniqueID] = struct{}{}
		}
	}
	return ids
}

func (s *Service) freshID(taken map[string]struct{}) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID()
		if _, dup := taken[id]; !dup && id != "" {
			return id, nil
		}
	}
	return "", ErrIDSpaceExhausted
}

func (s *Service) renderInvite(uniqueID, name, op string) (render.Asset, error) {
	code, err := s.issuer.Generate(s.issuer.Payload(uniqueID))
	if err != nil {
		return render.Asset{}, fmt.Errorf("failed to issue qr code: %w", err)
	}
	asset, err := s.renderer.Compose(code, uniqueID, name)
	if err != nil {
		return render.Asset{}, fmt.Errorf("failed to render invitation: %w", err)
	}
	metrics.ImagesRendered.WithLabelValues(op).Inc()
	return asset, nil
}

// discard removes an asset and only logs failures.
func (s *Service) discard(ref string) {
	if err := s.renderer.Remove(ref); err != nil && !errors.Is(err, render.ErrInvalidRef) {
		s.log.Warn().Err(err).Str("asset", ref).Msg("Failed to remove invitation image")
	}
}
