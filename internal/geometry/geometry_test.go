package geometry

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPdfToCanvas(t *testing.T) {
	vp := Viewport{Scale: 2, PageWidth: 600, PageHeight: 800}

	got := PdfToCanvas(PdfRect{X: 10, Y: 700, Width: 100, Height: 50}, vp)
	assert.Equal(t, CanvasRect{X: 20, Y: 100, Width: 200, Height: 100}, got)

	back := CanvasToPdf(got, vp)
	assert.InDelta(t, 10, back.X, 1e-9)
	assert.InDelta(t, 700, back.Y, 1e-9)
	assert.InDelta(t, 100, back.Width, 1e-9)
	assert.InDelta(t, 50, back.Height, 1e-9)
}

func TestPdfToCanvas_IgnoresDevicePixelRatio(t *testing.T) {
	r := PdfRect{X: 5, Y: 5, Width: 40, Height: 40}
	a := PdfToCanvas(r, Viewport{Scale: 1.5, PageWidth: 200, PageHeight: 300})
	b := PdfToCanvas(r, Viewport{Scale: 1.5, PageWidth: 200, PageHeight: 300, DevicePixelRatio: 2})
	assert.Equal(t, a, b)
}

func TestViewportValidate(t *testing.T) {
	tests := []struct {
		name    string
		vp      Viewport
		wantErr bool
	}{
		{"valid", Viewport{Scale: 1, PageWidth: 10, PageHeight: 10}, false},
		{"valid with dpr", Viewport{Scale: 1, PageWidth: 10, PageHeight: 10, DevicePixelRatio: 2}, false},
		{"zero scale", Viewport{Scale: 0, PageWidth: 10, PageHeight: 10}, true},
		{"negative height", Viewport{Scale: 1, PageWidth: 10, PageHeight: -1}, true},
		{"zero width", Viewport{Scale: 1, PageWidth: 0, PageHeight: 10}, true},
		{"negative dpr", Viewport{Scale: 1, PageWidth: 10, PageHeight: 10, DevicePixelRatio: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.vp.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidGeometry)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRasterSizeAndDeviceMapping(t *testing.T) {
	vp := Viewport{Scale: 1.5, PageWidth: 100, PageHeight: 200, DevicePixelRatio: 2}
	w, h := vp.RasterSize()
	assert.Equal(t, 300, w)
	assert.Equal(t, 600, h)

	c := vp.DeviceToCanvas(image.Rect(20, 40, 120, 240))
	assert.Equal(t, CanvasRect{X: 10, Y: 20, Width: 50, Height: 100}, c)
	assert.Equal(t, image.Rect(20, 40, 120, 240), vp.CanvasToDevice(c))
}

func TestPadRect(t *testing.T) {
	tests := []struct {
		name string
		in   CanvasRect
		pad  float64
		want CanvasRect
	}{
		{"expands", CanvasRect{X: 10, Y: 10, Width: 20, Height: 20}, 5, CanvasRect{X: 5, Y: 5, Width: 30, Height: 30}},
		{"clamps at origin", CanvasRect{X: 2, Y: 3, Width: 20, Height: 20}, 5, CanvasRect{X: 0, Y: 0, Width: 27, Height: 28}},
		{"clamps at far edge", CanvasRect{X: 80, Y: 80, Width: 18, Height: 18}, 5, CanvasRect{X: 75, Y: 75, Width: 25, Height: 25}},
		{"zero padding", CanvasRect{X: 1, Y: 1, Width: 2, Height: 2}, 0, CanvasRect{X: 1, Y: 1, Width: 2, Height: 2}},
		{"shrink never negative", CanvasRect{X: 10, Y: 10, Width: 4, Height: 4}, -10, CanvasRect{X: 12, Y: 12, Width: 0, Height: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PadRect(tt.in, tt.pad, 100, 100))
		})
	}
}

func TestPadPdfRect(t *testing.T) {
	vp := Viewport{Scale: 2, PageWidth: 600, PageHeight: 800}
	r := PdfRect{X: 10, Y: 100, Width: 50, Height: 20}

	got := PadPdfRect(r, 4, vp)
	assert.InDelta(t, 8.0, got.X, 1e-9)
	assert.InDelta(t, 98.0, got.Y, 1e-9)
	assert.InDelta(t, 54.0, got.Width, 1e-9)
	assert.InDelta(t, 24.0, got.Height, 1e-9)

	edge := PadPdfRect(PdfRect{X: 0, Y: 780, Width: 50, Height: 20}, 4, vp)
	assert.InDelta(t, 0.0, edge.X, 1e-9)
	assert.InDelta(t, 52.0, edge.Width, 1e-9)
	assert.InDelta(t, 800.0, edge.MaxY(), 1e-9)

	assert.Equal(t, r, PadPdfRect(r, 0, vp))
	assert.Equal(t, r, PadPdfRect(r, -3, vp))
	assert.Equal(t, r, PadPdfRect(r, 4, Viewport{}))
}

func TestOverlaps(t *testing.T) {
	a := PdfRect{X: 0, Y: 0, Width: 10, Height: 10}
	assert.True(t, Overlaps(a, PdfRect{X: 5, Y: 5, Width: 10, Height: 10}))
	assert.True(t, Overlaps(a, PdfRect{X: 2, Y: 2, Width: 1, Height: 1}))
	assert.False(t, Overlaps(a, PdfRect{X: 10, Y: 0, Width: 5, Height: 5}), "touching edges do not overlap")
	assert.False(t, Overlaps(a, PdfRect{X: 0, Y: 20, Width: 5, Height: 5}))
}

func TestPdfRectValidate(t *testing.T) {
	require.NoError(t, PdfRect{Width: 1, Height: 1}.Validate())
	require.ErrorIs(t, PdfRect{Width: 0, Height: 1}.Validate(), ErrInvalidGeometry)
	require.ErrorIs(t, PdfRect{Width: 3, Height: -1}.Validate(), ErrInvalidGeometry)
}
