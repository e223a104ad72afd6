package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrInvalidGeometry is returned for malformed viewports and degenerate rectangles.
var ErrInvalidGeometry = errors.New("invalid geometry")

// PdfRect is a rectangle in PDF point space. The origin is bottom-left.
type PdfRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CanvasRect is a rectangle in rendered-canvas pixel space. The origin is top-left.
type CanvasRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the rectangle area in square points.
func (r PdfRect) Area() float64 { return r.Width * r.Height }

// MaxX returns the right edge.
func (r PdfRect) MaxX() float64 { return r.X + r.Width }

// MaxY returns the top edge.
func (r PdfRect) MaxY() float64 { return r.Y + r.Height }

// CenterX returns the horizontal center.
func (r PdfRect) CenterX() float64 { return r.X + r.Width/2 }

// Validate rejects rectangles with non-positive or non-finite dimensions.
func (r PdfRect) Validate() error {
	if !finite(r.X, r.Y, r.Width, r.Height) {
		return fmt.Errorf("%w: non-finite rect %+v", ErrInvalidGeometry, r)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: degenerate rect %.2fx%.2f", ErrInvalidGeometry, r.Width, r.Height)
	}
	return nil
}

// Area returns the rectangle area in square pixels.
func (r CanvasRect) Area() float64 { return r.Width * r.Height }

// ToRect converts to an integer image.Rectangle, rounding outward.
func (r CanvasRect) ToRect() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.Width)),
		int(math.Ceil(r.Y+r.Height)),
	)
}

// CanvasRectFrom converts an integer rectangle into a CanvasRect.
func CanvasRectFrom(r image.Rectangle) CanvasRect {
	return CanvasRect{
		X:      float64(r.Min.X),
		Y:      float64(r.Min.Y),
		Width:  float64(r.Dx()),
		Height: float64(r.Dy()),
	}
}

// Overlaps reports whether a and b intersect with positive area.
func Overlaps(a, b PdfRect) bool {
	return a.X < b.X+b.Width && a.X+a.Width > b.X &&
		a.Y < b.Y+b.Height && a.Y+a.Height > b.Y
}

// PadRect expands r by paddingPx on every side and clamps the result to
// [0,pageW]x[0,pageH]. A negative padding shrinks the rectangle; the result
// never has a negative width or height.
func PadRect(r CanvasRect, paddingPx, pageW, pageH float64) CanvasRect {
	x0 := clamp(r.X-paddingPx, 0, pageW)
	y0 := clamp(r.Y-paddingPx, 0, pageH)
	x1 := clamp(r.X+r.Width+paddingPx, 0, pageW)
	y1 := clamp(r.Y+r.Height+paddingPx, 0, pageH)
	if x1 < x0 {
		mid := (x0 + x1) / 2
		x0, x1 = mid, mid
	}
	if y1 < y0 {
		mid := (y0 + y1) / 2
		y0, y1 = mid, mid
	}
	return CanvasRect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
