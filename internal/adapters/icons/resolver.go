// Package icons renders marker icons from image files.
package icons

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg" // registers the JPEG decoder
	_ "image/png"  // registers the PNG decoder
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp" // registers the BMP decoder
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/tiff" // registers the TIFF decoder
	_ "golang.org/x/image/webp" // registers the WebP decoder

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// DefaultSize is the default icon edge in pixels.
const DefaultSize = 48

var _ output.IconResolver = (*Resolver)(nil)

// extensions are tried in order when a reference has no extension.
var extensions = []string{".png", ".webp", ".jpg", ".jpeg", ".bmp", ".tiff", ".tif"}

// Config holds icon resolver settings.
type Config struct {
	Dir  string // Directory holding icon files
	Size int    // Longest icon edge in pixels
}

// Resolver loads icon images, scales them, and applies color and symbol.
// An empty reference renders a plain colored dot.
type Resolver struct {
	dir    string
	size   int
	logger *slog.Logger
}

// NewResolver creates an icon resolver.
func NewResolver(cfg Config, logger *slog.Logger) *Resolver {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	return &Resolver{dir: cfg.Dir, size: cfg.Size, logger: logger}
}

// Resolve implements output.IconResolver.
func (r *Resolver) Resolve(desc domain.IconDescription) (*output.Icon, error) {
	tint, err := parseColor(desc.Color)
	if err != nil {
		return nil, err
	}

	var img *image.NRGBA
	anchorY := 1.0
	if desc.Ref == "" {
		if tint == nil {
			tint = &color.NRGBA{R: 0xE5, G: 0x39, B: 0x35, A: 0xFF}
		}
		img = dot(r.size, *tint)
		anchorY = 0.5
	} else {
		src, err := r.load(desc.Ref)
		if err != nil {
			return nil, err
		}
		img = scale(src, r.size)
		if tint != nil {
			img = colorize(img, *tint)
		}
	}

	if desc.Symbol != "" {
		drawSymbol(img, desc.Symbol)
	}

	r.logger.Debug("icon rendered", "ref", desc.Ref, "color", desc.Color, "size", img.Bounds().Dx())

	return &output.Icon{
		Key:     iconKey(desc),
		Image:   img,
		AnchorX: 0.5,
		AnchorY: anchorY,
	}, nil
}

// load finds and decodes the icon file for ref.
func (r *Resolver) load(ref string) (image.Image, error) {
	if strings.Contains(ref, "..") {
		return nil, fmt.Errorf("icon %q: %w", ref, domain.ErrInvalidInput)
	}

	candidates := []string{ref}
	if filepath.Ext(ref) == "" {
		candidates = candidates[:0]
		for _, ext := range extensions {
			candidates = append(candidates, ref+ext)
		}
	}

	for _, name := range candidates {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.dir, name)
		}
		img, err := decodeFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("decoding icon %s: %w", path, err)
		}
		return img, nil
	}
	return nil, fmt.Errorf("icon %q: %w", ref, domain.ErrNotFound)
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path) //#nosec G304 -- icon paths come from configuration
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	return img, err
}

// scale fits src into a size x size box, keeping the aspect ratio.
func scale(src image.Image, size int) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = max(1, h*size/w)
		w = size
	} else {
		w = max(1, w*size/h)
		h = size
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// colorize paints the tint through the alpha channel of img.
func colorize(img *image.NRGBA, tint color.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(img.Bounds())
	draw.DrawMask(dst, dst.Bounds(), image.NewUniform(tint), image.Point{}, img, img.Bounds().Min, draw.Over)
	return dst
}

// dot renders a filled circle with a white rim.
func dot(size int, fill color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	c := float64(size) / 2
	outer := c * c
	inner := (c - float64(size)/10) * (c - float64(size)/10)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)+0.5-c, float64(y)+0.5-c
			d := dx*dx + dy*dy
			switch {
			case d <= inner:
				img.SetNRGBA(x, y, fill)
			case d <= outer:
				img.SetNRGBA(x, y, color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF})
			}
		}
	}
	return img
}

// drawSymbol writes text centered on the icon.
func drawSymbol(img *image.NRGBA, symbol string) {
	face := basicfont.Face7x13
	b := img.Bounds()
	width := font.MeasureString(face, symbol).Round()
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Round()

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot: fixed.P(
			b.Min.X+(b.Dx()-width)/2,
			b.Min.Y+(b.Dy()-height)/2+metrics.Ascent.Round(),
		),
	}
	d.DrawString(symbol)
}

// parseColor parses "#rgb", "#rrggbb" or "#rrggbbaa". An empty string means no tint.
func parseColor(s string) (*color.NRGBA, error) {
	if s == "" {
		return nil, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return nil, fmt.Errorf("color %q: %w", s, domain.ErrInvalidInput)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("color %q: %w", s, domain.ErrInvalidInput)
	}
	return &color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func iconKey(desc domain.IconDescription) string {
	return desc.Ref + "|" + desc.Color + "|" + desc.Symbol
}
