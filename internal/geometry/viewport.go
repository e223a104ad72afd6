package geometry

import (
	"fmt"
	"image"
	"math"
)

// Viewport describes how a PDF page was rendered onto a canvas.
// PageWidth and PageHeight are in PDF points. DevicePixelRatio only matters
// at the raster boundary; the PDF/canvas transforms ignore it.
type Viewport struct {
	Scale            float64 `json:"scale"`
	PageWidth        float64 `json:"pageWidth"`
	PageHeight       float64 `json:"pageHeight"`
	DevicePixelRatio float64 `json:"devicePixelRatio,omitempty"`
}

// Validate checks that scale and page size are positive and finite.
func (v Viewport) Validate() error {
	if !finite(v.Scale, v.PageWidth, v.PageHeight, v.DevicePixelRatio) {
		return fmt.Errorf("%w: non-finite viewport", ErrInvalidGeometry)
	}
	if v.Scale <= 0 {
		return fmt.Errorf("%w: scale must be positive, got %g", ErrInvalidGeometry, v.Scale)
	}
	if v.PageWidth <= 0 || v.PageHeight <= 0 {
		return fmt.Errorf("%w: page size must be positive, got %gx%g", ErrInvalidGeometry, v.PageWidth, v.PageHeight)
	}
	if v.DevicePixelRatio < 0 {
		return fmt.Errorf("%w: negative device pixel ratio", ErrInvalidGeometry)
	}
	return nil
}

func (v Viewport) dpr() float64 {
	if v.DevicePixelRatio <= 0 {
		return 1
	}
	return v.DevicePixelRatio
}

// CanvasSize returns the canvas size in CSS pixels.
func (v Viewport) CanvasSize() (float64, float64) {
	return v.PageWidth * v.Scale, v.PageHeight * v.Scale
}

// RasterSize returns the backing raster size in device pixels.
func (v Viewport) RasterSize() (int, int) {
	w, h := v.CanvasSize()
	d := v.dpr()
	return int(math.Ceil(w * d)), int(math.Ceil(h * d))
}

// DeviceToCanvas maps a raster rectangle to canvas pixels.
func (v Viewport) DeviceToCanvas(r image.Rectangle) CanvasRect {
	d := v.dpr()
	c := CanvasRectFrom(r)
	return CanvasRect{X: c.X / d, Y: c.Y / d, Width: c.Width / d, Height: c.Height / d}
}

// CanvasToDevice maps a canvas rectangle onto the raster, rounding outward.
func (v Viewport) CanvasToDevice(r CanvasRect) image.Rectangle {
	d := v.dpr()
	return CanvasRect{X: r.X * d, Y: r.Y * d, Width: r.Width * d, Height: r.Height * d}.ToRect()
}

// PdfToCanvas converts a PDF-space rectangle into canvas pixels.
func PdfToCanvas(r PdfRect, vp Viewport) CanvasRect {
	s := vp.Scale
	return CanvasRect{
		X:      r.X * s,
		Y:      (vp.PageHeight - (r.Y + r.Height)) * s,
		Width:  r.Width * s,
		Height: r.Height * s,
	}
}

// CanvasToPdf is the inverse of PdfToCanvas.
func CanvasToPdf(r CanvasRect, vp Viewport) PdfRect {
	s := vp.Scale
	w := r.Width / s
	h := r.Height / s
	return PdfRect{
		X:      r.X / s,
		Y:      vp.PageHeight - r.Y/s - h,
		Width:  w,
		Height: h,
	}
}

// PadPdfRect grows a PDF rectangle by paddingPx canvas pixels on every side,
// clamped to the rendered page. Non-positive padding or an invalid viewport
// returns r unchanged.
func PadPdfRect(r PdfRect, paddingPx float64, vp Viewport) PdfRect {
	if paddingPx <= 0 || vp.Validate() != nil {
		return r
	}
	w, h := vp.CanvasSize()
	return CanvasToPdf(PadRect(PdfToCanvas(r, vp), paddingPx, w, h), vp)
}
