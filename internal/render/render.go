// Package render composes invitation images from a template, a QR code and
// the guest name.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	// ErrTemplate is returned when the template cannot be loaded or cannot fit the code.
	ErrTemplate = errors.New("invitation template unusable")
	// ErrInvalidRef is returned for asset references that do not name a file.
	ErrInvalidRef = errors.New("invalid asset reference")
)

type Config struct {
	TemplateFile  string
	FontFile      string
	Dir           string
	PublicBaseURL string

	// BottomMargin is the distance between the code's bottom edge and the template's.
	BottomMargin int
	// NameY is the baseline of the guest name.
	NameY     int
	FontSize  float64
	NameColor color.Color
}

// Asset is a rendered invitation on disk.
type Asset struct {
	File string
	URL  string
}

type Renderer struct {
	cfg  Config
	face font.Face
	log  zerolog.Logger
}

func NewRenderer(cfg Config, logger zerolog.Logger) (*Renderer, error) {
	if cfg.Dir == "" {
		return nil, errors.New("asset directory is required")
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = 34
	}
	if cfg.NameColor == nil {
		cfg.NameColor = color.RGBA{R: 0x42, G: 0x57, B: 0x43, A: 0xff}
	}

	fontData := goregular.TTF
	if cfg.FontFile != "" {
		data, err := os.ReadFile(cfg.FontFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read font: %w", err)
		}
		fontData = data
	}
	parsed, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    cfg.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}

	return &Renderer{
		cfg:  cfg,
		face: face,
		log:  logger.With().Str("component", "Renderer").Logger(),
	}, nil
}

// Compose overlays qr and guestName on the template and writes a new PNG whose
// name embeds uniqueID plus a fresh revision token.
func (r *Renderer) Compose(qr image.Image, uniqueID, guestName string) (Asset, error) {
	tmpl, err := r.loadTemplate()
	if err != nil {
		return Asset{}, err
	}

	tb := tmpl.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, tb.Dx(), tb.Dy()))
	draw.Draw(canvas, canvas.Bounds(), tmpl, tb.Min, draw.Src)

	at, err := QRPosition(canvas.Bounds().Size(), qr.Bounds().Size(), r.cfg.BottomMargin)
	if err != nil {
		return Asset{}, err
	}
	qb := qr.Bounds()
	draw.Draw(canvas, image.Rectangle{Min: at, Max: at.Add(qb.Size())}, qr, qb.Min, draw.Over)

	if name := strings.TrimSpace(guestName); name != "" {
		r.drawName(canvas, name)
	}

	fileName := assetName(uniqueID)
	filePath := filepath.Join(r.cfg.Dir, fileName)
	if err := writePNG(filePath, canvas); err != nil {
		return Asset{}, err
	}

	r.log.Debug().Str("file", fileName).Str("unique_id", uniqueID).Msg("Rendered invitation")
	return Asset{File: filePath, URL: r.cfg.PublicBaseURL + fileName}, nil
}

// Remove deletes the asset a stored path or URL points to. A missing file is not an error.
func (r *Renderer) Remove(ref string) error {
	p, err := r.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove asset: %w", err)
	}
	return nil
}

// Exists reports whether the asset referenced by ref is on disk.
func (r *Renderer) Exists(ref string) bool {
	p, err := r.resolve(ref)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Open reads the asset referenced by ref.
func (r *Renderer) Open(ref string) ([]byte, error) {
	p, err := r.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}
	return data, nil
}

// QRPosition centers the code horizontally and anchors it bottomMargin pixels
// above the template's bottom edge.
func QRPosition(template, code image.Point, bottomMargin int) (image.Point, error) {
	x := (template.X - code.X) / 2
	y := template.Y - code.Y - bottomMargin
	if x < 0 || y < 0 {
		return image.Point{}, fmt.Errorf("%w: %dx%d code does not fit %dx%d template", ErrTemplate, code.X, code.Y, template.X, template.Y)
	}
	return image.Pt(x, y), nil
}

func (r *Renderer) drawName(canvas *image.RGBA, name string) {
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(r.cfg.NameColor),
		Face: r.face,
	}
	width := d.MeasureString(name)
	d.Dot = fixed.Point26_6{
		X: (fixed.I(canvas.Bounds().Dx()) - width) / 2,
		Y: fixed.I(r.cfg.NameY),
	}
	d.DrawString(name)
}

func (r *Renderer) loadTemplate() (image.Image, error) {
	f, err := os.Open(r.cfg.TemplateFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	return img, nil
}

func (r *Renderer) resolve(ref string) (string, error) {
	base := path.Base(strings.TrimSpace(filepath.ToSlash(ref)))
	if base == "" || base == "." || base == "/" || base == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return filepath.Join(r.cfg.Dir, base), nil
}

func assetName(uniqueID string) string {
	safe := strings.Map(func(c rune) rune {
		if c == '/' || c == '\\' || c == os.PathSeparator {
			return '_'
		}
		return c
	}, uniqueID)
	return fmt.Sprintf("%s_%s_final.png", safe, strings.ToLower(ulid.Make().String()))
}

func writePNG(filePath string, img image.Image) error {
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(filePath)
		return fmt.Errorf("failed to encode asset: %w", err)
	}
	return f.Close()
}

// ParseHexColor parses "#rrggbb".
func ParseHexColor(s string) (color.Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
