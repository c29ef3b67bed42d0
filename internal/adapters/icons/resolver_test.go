package icons

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jobrunner/mapkit/internal/domain"
)

func newTestResolver(t *testing.T, size int) (*Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	return NewResolver(Config{Dir: dir, Size: size}, slog.New(slog.NewTextHandler(io.Discard, nil))), dir
}

// writePNG writes a w x h opaque white image.
func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestResolveFile(t *testing.T) {
	r, dir := newTestResolver(t, 32)
	writePNG(t, filepath.Join(dir, "pin.png"), 64, 128)

	icon, err := r.Resolve(domain.IconDescription{Ref: "pin"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	b := icon.Image.Bounds()
	if b.Dx() != 16 || b.Dy() != 32 {
		t.Errorf("size = %dx%d, want 16x32", b.Dx(), b.Dy())
	}
	if icon.AnchorX != 0.5 || icon.AnchorY != 1 {
		t.Errorf("anchor = %v,%v, want bottom center", icon.AnchorX, icon.AnchorY)
	}
	if icon.Key == "" {
		t.Error("Key should be set")
	}
}

func TestResolveTint(t *testing.T) {
	r, dir := newTestResolver(t, 16)
	writePNG(t, filepath.Join(dir, "square.png"), 16, 16)

	icon, err := r.Resolve(domain.IconDescription{Ref: "square.png", Color: "#00ff00"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	got := color.NRGBAModel.Convert(icon.Image.At(8, 8)).(color.NRGBA)
	if got.G != 0xFF || got.R != 0 || got.B != 0 {
		t.Errorf("pixel = %+v, want green", got)
	}
}

func TestResolveDot(t *testing.T) {
	r, _ := newTestResolver(t, 20)

	icon, err := r.Resolve(domain.IconDescription{Color: "#0000ff", Symbol: "A"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if icon.AnchorY != 0.5 {
		t.Errorf("AnchorY = %v, want 0.5", icon.AnchorY)
	}

	corner := color.NRGBAModel.Convert(icon.Image.At(0, 0)).(color.NRGBA)
	if corner.A != 0 {
		t.Errorf("corner = %+v, want transparent", corner)
	}
}

func TestResolveErrors(t *testing.T) {
	r, dir := newTestResolver(t, 16)
	if err := os.WriteFile(filepath.Join(dir, "broken.png"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		desc domain.IconDescription
		want error
	}{
		{"missing file", domain.IconDescription{Ref: "missing"}, domain.ErrNotFound},
		{"path escape", domain.IconDescription{Ref: "../etc/passwd"}, domain.ErrInvalidInput},
		{"bad color", domain.IconDescription{Color: "green"}, domain.ErrInvalidInput},
		{"undecodable", domain.IconDescription{Ref: "broken.png"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.desc)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want *color.NRGBA
		err  bool
	}{
		{"", nil, false},
		{"#f00", &color.NRGBA{R: 0xFF, A: 0xFF}, false},
		{"#00ff00", &color.NRGBA{G: 0xFF, A: 0xFF}, false},
		{"0000ff80", &color.NRGBA{B: 0xFF, A: 0x80}, false},
		{"#12345", nil, true},
		{"#gggggg", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseColor(tt.in)
			if (err != nil) != tt.err {
				t.Fatalf("parseColor(%q) error = %v", tt.in, err)
			}
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("parseColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
