package detector

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/spreadmap/internal/geometry"
	"github.com/MeKo-Tech/spreadmap/internal/testutil"
)

// stubEngine returns fixed contour boxes and records the primitives called.
type stubEngine struct {
	boxes []image.Rectangle
	err   error
	calls []string
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Grayscale(img image.Image) (*image.Gray, error) {
	s.calls = append(s.calls, "grayscale")
	return toGray(img), nil
}

func (s *stubEngine) Blur(src *image.Gray) (*image.Gray, error) {
	s.calls = append(s.calls, "blur")
	return src, nil
}

func (s *stubEngine) Canny(src *image.Gray, _, _ float64) (*image.Gray, error) {
	s.calls = append(s.calls, "canny")
	return src, nil
}

func (s *stubEngine) Dilate(src *image.Gray, _ int) (*image.Gray, error) {
	s.calls = append(s.calls, "dilate")
	return src, nil
}

func (s *stubEngine) ExternalContours(*image.Gray) ([]image.Rectangle, error) {
	s.calls = append(s.calls, "contours")
	return s.boxes, s.err
}

func TestDetect_FiltersSortsAndConverts(t *testing.T) {
	eng := &stubEngine{boxes: []image.Rectangle{
		image.Rect(0, 0, 100, 100),     // accepted, 10000px
		image.Rect(10, 10, 20, 200),    // too narrow
		image.Rect(0, 0, 400, 30),      // aspect 13.3
		image.Rect(200, 200, 400, 400), // accepted, 40000px
		image.Rect(500, 0, 540, 40),    // 1600px is below 1% of 400000
	}}
	d := New(eng)
	img := image.NewGray(image.Rect(0, 0, 800, 500))
	vp := geometry.Viewport{Scale: 1, PageWidth: 400, PageHeight: 250, DevicePixelRatio: 2}
	th := Thresholds{CannyLow: 50, CannyHigh: 150, MinAreaPercent: 1, DilateIterations: 1}

	regions, err := d.Detect(context.Background(), img, vp, th)
	require.NoError(t, err)
	require.Len(t, regions, 2)

	assert.Equal(t, []string{"grayscale", "blur", "canny", "dilate", "contours"}, eng.calls)

	// 200..400 raster -> 100..200 canvas at dpr 2 -> y flip against 250pt.
	assert.Equal(t, geometry.PdfRect{X: 100, Y: 50, Width: 100, Height: 100}, regions[0].Rect)
	assert.InDelta(t, 10000, regions[0].AreaPdf, 1e-9)
	assert.Equal(t, geometry.PdfRect{X: 0, Y: 200, Width: 50, Height: 50}, regions[1].Rect)
}

func TestDetect_ZeroRegionsIsNotAnError(t *testing.T) {
	d := New(&stubEngine{})
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	vp := geometry.Viewport{Scale: 1, PageWidth: 100, PageHeight: 100}

	regions, err := d.Detect(context.Background(), img, vp, DefaultThresholds())
	require.NoError(t, err)
	assert.Nil(t, regions)
}

func TestDetect_EngineFailurePropagates(t *testing.T) {
	boom := errors.New("boom")
	d := New(&stubEngine{err: boom})
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	vp := geometry.Viewport{Scale: 1, PageWidth: 100, PageHeight: 100}

	_, err := d.Detect(context.Background(), img, vp, DefaultThresholds())
	require.ErrorIs(t, err, boom)
}

func TestDetect_InvalidInput(t *testing.T) {
	d := New(&stubEngine{})
	img := image.NewGray(image.Rect(0, 0, 10, 10))

	_, err := d.Detect(context.Background(), img, geometry.Viewport{Scale: 0, PageWidth: 10, PageHeight: 10}, DefaultThresholds())
	require.ErrorIs(t, err, geometry.ErrInvalidGeometry)

	_, err = d.Detect(context.Background(), nil, geometry.Viewport{Scale: 1, PageWidth: 10, PageHeight: 10}, DefaultThresholds())
	require.ErrorIs(t, err, geometry.ErrInvalidGeometry)

	bad := DefaultThresholds()
	bad.CannyHigh = 10
	bad.CannyLow = 20
	_, err = d.Detect(context.Background(), img, geometry.Viewport{Scale: 1, PageWidth: 10, PageHeight: 10}, bad)
	require.Error(t, err)
}

func TestDetect_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := New(&stubEngine{})
	img := image.NewGray(image.Rect(0, 0, 10, 10))

	_, err := d.Detect(ctx, img, geometry.Viewport{Scale: 1, PageWidth: 10, PageHeight: 10}, DefaultThresholds())
	require.ErrorIs(t, err, context.Canceled)
}

func TestDetect_NativeFindsSyntheticTiles(t *testing.T) {
	cfg := testutil.DefaultSpreadConfig()
	cfg.Boxes = []image.Rectangle{
		image.Rect(50, 50, 550, 350),
		image.Rect(650, 50, 1150, 300),
		image.Rect(50, 420, 450, 760),
		image.Rect(700, 500, 712, 512),  // too small
		image.Rect(600, 700, 1180, 740), // too elongated
	}
	cfg.Captions = []string{"SAVE 20%", "Brand X", "12345"}
	img := testutil.GenerateSpread(cfg)

	d, err := NewWithEngine(EngineNative)
	require.NoError(t, err)
	vp := geometry.Viewport{Scale: 2, PageWidth: 600, PageHeight: 400}

	regions, err := d.Detect(context.Background(), img, vp, DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, regions, 3)

	want := []geometry.PdfRect{
		{X: 25, Y: 225, Width: 250, Height: 150},
		{X: 25, Y: 20, Width: 200, Height: 170},
		{X: 325, Y: 250, Width: 250, Height: 125},
	}
	for i, w := range want {
		got := regions[i].Rect
		assert.InDelta(t, w.X, got.X, 4, "region %d x", i)
		assert.InDelta(t, w.Y, got.Y, 4, "region %d y", i)
		assert.InDelta(t, w.Width, got.Width, 6, "region %d width", i)
		assert.InDelta(t, w.Height, got.Height, 6, "region %d height", i)
	}
	for i := 1; i < len(regions); i++ {
		assert.GreaterOrEqual(t, regions[i-1].AreaPdf, regions[i].AreaPdf)
	}
}

func TestDetect_NativeBlankPage(t *testing.T) {
	img := testutil.GenerateSpread(testutil.DefaultSpreadConfig())
	d, err := NewWithEngine("")
	require.NoError(t, err)

	regions, err := d.Detect(context.Background(), img, geometry.Viewport{Scale: 2, PageWidth: 600, PageHeight: 400}, DefaultThresholds())
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestAccept(t *testing.T) {
	th := Thresholds{MinAreaPercent: 1}
	const pageArea = 1000 * 1000

	tests := []struct {
		name string
		r    image.Rectangle
		want bool
	}{
		{"large square", image.Rect(0, 0, 200, 200), true},
		{"narrow", image.Rect(0, 0, 29, 400), false},
		{"short", image.Rect(0, 0, 400, 29), false},
		{"under min area", image.Rect(0, 0, 90, 90), false},
		{"exactly min area", image.Rect(0, 0, 100, 100), true},
		{"aspect 10 allowed", image.Rect(0, 0, 1000, 100), true},
		{"aspect over 10 wide", image.Rect(0, 0, 1000, 99), false},
		{"aspect over 10 tall", image.Rect(0, 0, 99, 1000), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Accept(tt.r, pageArea, th))
		})
	}
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())
	require.Error(t, Thresholds{CannyLow: -1, CannyHigh: 10}.Validate())
	require.Error(t, Thresholds{CannyLow: 1, CannyHigh: 10, MinAreaPercent: 101}.Validate())
	require.Error(t, Thresholds{CannyLow: 1, CannyHigh: 10, DilateIterations: -1}.Validate())
}

func TestNewEngine_Unknown(t *testing.T) {
	_, err := NewEngine("tesseract")
	require.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestRenderOverlay(t *testing.T) {
	cfg := testutil.DefaultSpreadConfig()
	cfg.Size = testutil.ImageSize{Width: 200, Height: 100}
	page := testutil.GenerateSpread(cfg)
	vp := geometry.Viewport{Scale: 1, PageWidth: 200, PageHeight: 100}
	out := RenderOverlay(page, vp, []OverlayBox{
		{Rect: geometry.PdfRect{X: 10, Y: 10, Width: 80, Height: 80}, Label: "1", Included: true},
		{Rect: geometry.PdfRect{X: 110, Y: 10, Width: 80, Height: 80}},
	})

	require.Equal(t, page.Bounds(), out.Bounds())
	// Canvas y of the top edge is 100-(10+80) = 10.
	assert.Equal(t, includedColor, out.NRGBAAt(50, 10))
	assert.Equal(t, excludedColor, out.NRGBAAt(150, 10))
}
