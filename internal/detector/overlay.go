package detector

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/spreadmap/internal/geometry"
)

var (
	includedColor = color.NRGBA{R: 0, G: 170, B: 60, A: 255}
	excludedColor = color.NRGBA{R: 220, G: 30, B: 30, A: 255}
)

// OverlayBox is one region to draw on a review overlay.
type OverlayBox struct {
	Rect     geometry.PdfRect
	Label    string
	Included bool
}

// RenderOverlay draws region outlines and labels on a copy of the rendered page.
// Included regions are green, excluded regions red.
func RenderOverlay(page image.Image, vp geometry.Viewport, boxes []OverlayBox) *image.NRGBA {
	dst := imaging.Clone(page)
	for _, b := range boxes {
		r := vp.CanvasToDevice(geometry.PdfToCanvas(b.Rect, vp)).Add(dst.Bounds().Min)
		col := excludedColor
		if b.Included {
			col = includedColor
		}
		drawRect(dst, r, col, 3)
		if b.Label != "" {
			drawLabel(dst, r.Min.Add(image.Pt(4, 4)), b.Label, col)
		}
	}
	return dst
}

// drawRect draws an axis-aligned rectangle outline.
func drawRect(dst draw.Image, rect image.Rectangle, col color.Color, thickness int) {
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	thickness = max(1, min(thickness, rect.Dx()/2, rect.Dy()/2))
	src := image.NewUniform(col)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+thickness),
		image.Rect(rect.Min.X, rect.Max.Y-thickness, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+thickness, rect.Max.Y),
		image.Rect(rect.Max.X-thickness, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}

// drawLabel writes text on a white plate with its top-left corner at pt.
func drawLabel(dst draw.Image, pt image.Point, text string, col color.Color) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	plate := image.Rect(pt.X, pt.Y, pt.X+w+4, pt.Y+face.Height+2)
	draw.Draw(dst, plate.Intersect(dst.Bounds()), image.NewUniform(color.White), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(pt.X+2, pt.Y+face.Ascent+1),
	}
	d.DrawString(text)
}
