// Package qr issues the scannable code printed on each invitation.
package qr

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/skip2/go-qrcode"
)

// PayloadMode selects what the code encodes.
type PayloadMode string

const (
	// PayloadID encodes the raw unique identifier.
	PayloadID PayloadMode = "id"
	// PayloadURL encodes ScanBaseURL followed by the unique identifier.
	PayloadURL PayloadMode = "url"
)

var ErrInvalidConfig = errors.New("invalid qr configuration")

type Config struct {
	Size       int
	Margin     int
	Level      string
	Foreground color.Color
	Background color.Color

	Payload     PayloadMode
	ScanBaseURL string
}

// DefaultConfig matches the printed invitation template.
func DefaultConfig() Config {
	return Config{
		Size:       300,
		Margin:     10,
		Level:      "H",
		Foreground: color.RGBA{R: 66, G: 87, B: 67, A: 255},
		Background: color.White,
		Payload:    PayloadID,
	}
}

type Issuer struct {
	cfg   Config
	level qrcode.RecoveryLevel
}

func NewIssuer(cfg Config) (*Issuer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Size <= 0 || cfg.Margin < 0 || cfg.Size <= 2*cfg.Margin {
		return nil, fmt.Errorf("%w: size %d with margin %d", ErrInvalidConfig, cfg.Size, cfg.Margin)
	}
	switch cfg.Payload {
	case "":
		cfg.Payload = PayloadID
	case PayloadID:
	case PayloadURL:
		if cfg.ScanBaseURL == "" {
			return nil, fmt.Errorf("%w: url payload needs a scan base url", ErrInvalidConfig)
		}
	default:
		return nil, fmt.Errorf("%w: payload %q", ErrInvalidConfig, cfg.Payload)
	}
	if cfg.Foreground == nil {
		cfg.Foreground = color.Black
	}
	if cfg.Background == nil {
		cfg.Background = color.White
	}
	return &Issuer{cfg: cfg, level: level}, nil
}

// Payload returns the content encoded for a guest.
func (i *Issuer) Payload(uniqueID string) string {
	if i.cfg.Payload == PayloadURL {
		return i.cfg.ScanBaseURL + uniqueID
	}
	return uniqueID
}

// Generate renders payload as a Size x Size image with a Margin pixel quiet zone.
func (i *Issuer) Generate(payload string) (image.Image, error) {
	q, err := qrcode.New(payload, i.level)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	q.ForegroundColor = i.cfg.Foreground
	q.BackgroundColor = i.cfg.Background
	q.DisableBorder = true

	inner := i.cfg.Size - 2*i.cfg.Margin
	code := q.Image(inner)

	out := image.NewRGBA(image.Rect(0, 0, i.cfg.Size, i.cfg.Size))
	draw.Draw(out, out.Bounds(), &image.Uniform{C: i.cfg.Background}, image.Point{}, draw.Src)
	offset := image.Pt(i.cfg.Margin, i.cfg.Margin)
	draw.Draw(out, code.Bounds().Add(offset), code, code.Bounds().Min, draw.Src)
	return out, nil
}

// ParseLevel maps L, M, Q and H to the encoder's recovery levels.
func ParseLevel(level string) (qrcode.RecoveryLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "L":
		return qrcode.Low, nil
	case "M":
		return qrcode.Medium, nil
	case "Q":
		return qrcode.High, nil
	case "H", "":
		return qrcode.Highest, nil
	}
	return 0, fmt.Errorf("%w: level %q", ErrInvalidConfig, level)
}
