package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents raster dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common synthetic page sizes.
	PageSize   = ImageSize{600, 800}
	SpreadSize = ImageSize{1200, 800}
)

// SpreadConfig describes a synthetic rendered spread: white paper with dark
// tile outlines and optional captions.
type SpreadConfig struct {
	Size       ImageSize
	Boxes      []image.Rectangle
	Captions   []string
	Stroke     int
	Background color.Color
	Foreground color.Color
}

// DefaultSpreadConfig returns a blank spread with 3px outlines.
func DefaultSpreadConfig() SpreadConfig {
	return SpreadConfig{
		Size:       SpreadSize,
		Stroke:     3,
		Background: color.White,
		Foreground: color.Black,
	}
}

// GenerateSpread draws the configured tiles into a new RGBA image.
func GenerateSpread(cfg SpreadConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Size.Width, cfg.Size.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(cfg.Background), image.Point{}, draw.Src)
	fg := image.NewUniform(cfg.Foreground)
	stroke := max(1, cfg.Stroke)
	for i, r := range cfg.Boxes {
		for _, e := range []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+stroke),
			image.Rect(r.Min.X, r.Max.Y-stroke, r.Max.X, r.Max.Y),
			image.Rect(r.Min.X, r.Min.Y, r.Min.X+stroke, r.Max.Y),
			image.Rect(r.Max.X-stroke, r.Min.Y, r.Max.X, r.Max.Y),
		} {
			draw.Draw(img, e.Intersect(img.Bounds()), fg, image.Point{}, draw.Src)
		}
		if i < len(cfg.Captions) && cfg.Captions[i] != "" {
			d := &font.Drawer{
				Dst:  img,
				Src:  fg,
				Face: basicfont.Face7x13,
				Dot:  fixed.P(r.Min.X+stroke+6, r.Min.Y+stroke+18),
			}
			d.DrawString(cfg.Captions[i])
		}
	}
	return img
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "Failed to encode PNG image")
	return buf.Bytes()
}
