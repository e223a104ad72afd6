package detector

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"time"

	"github.com/MeKo-Tech/spreadmap/internal/geometry"
)

// Acceptance limits applied to every contour bounding box, in raster pixels.
const (
	MinSidePx      = 30
	MaxAspectRatio = 10.0
)

// Thresholds parameterise one detection run.
type Thresholds struct {
	CannyLow         float64 `json:"cannyLow" mapstructure:"canny_low"`
	CannyHigh        float64 `json:"cannyHigh" mapstructure:"canny_high"`
	MinAreaPercent   float64 `json:"minAreaPercent" mapstructure:"min_area_percent"`
	DilateIterations int     `json:"dilateIterations" mapstructure:"dilate_iterations"`
}

// DefaultThresholds returns thresholds that work for typical catalogue spreads.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CannyLow:         50,
		CannyHigh:        150,
		MinAreaPercent:   0.5,
		DilateIterations: 2,
	}
}

// Validate checks the thresholds are usable.
func (t Thresholds) Validate() error {
	if t.CannyLow < 0 || t.CannyHigh < 0 {
		return fmt.Errorf("canny thresholds must be non-negative, got %g/%g", t.CannyLow, t.CannyHigh)
	}
	if t.CannyHigh < t.CannyLow {
		return fmt.Errorf("canny high (%g) must be >= low (%g)", t.CannyHigh, t.CannyLow)
	}
	if t.MinAreaPercent < 0 || t.MinAreaPercent > 100 {
		return fmt.Errorf("min area percent must be in [0,100], got %g", t.MinAreaPercent)
	}
	if t.DilateIterations < 0 || t.DilateIterations > 50 {
		return fmt.Errorf("dilate iterations must be in [0,50], got %d", t.DilateIterations)
	}
	return nil
}

// DetectedRegion is one accepted contour on a page, in PDF points.
type DetectedRegion struct {
	Rect    geometry.PdfRect `json:"rect"`
	AreaPdf float64          `json:"areaPdf"`
}

// Detector runs the detection pipeline on top of an Engine.
type Detector struct {
	engine Engine
}

// New creates a detector backed by engine.
func New(engine Engine) *Detector {
	return &Detector{engine: engine}
}

// NewWithEngine creates a detector for the named engine.
func NewWithEngine(name string) (*Detector, error) {
	e, err := NewEngine(name)
	if err != nil {
		return nil, err
	}
	return New(e), nil
}

// EngineName reports the backing engine.
func (d *Detector) EngineName() string { return d.engine.Name() }

// Detect finds tile regions in img, which must be the raster of a page rendered
// with vp. Regions come back sorted by descending area. Finding nothing
// returns a nil slice and a nil error.
func (d *Detector) Detect(ctx context.Context, img image.Image, vp geometry.Viewport, th Thresholds) ([]DetectedRegion, error) {
	start := time.Now()
	name := d.engine.Name()
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty page image", geometry.ErrInvalidGeometry)
	}
	if err := vp.Validate(); err != nil {
		return nil, err
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}

	boxes, err := d.candidates(ctx, img, th)
	if err != nil {
		detectionsTotal.WithLabelValues(name, "error").Inc()
		return nil, err
	}

	b := img.Bounds()
	pageArea := float64(b.Dx() * b.Dy())
	var regions []DetectedRegion
	for _, r := range boxes {
		if !Accept(r, pageArea, th) {
			continue
		}
		pr := geometry.CanvasToPdf(vp.DeviceToCanvas(r), vp)
		regions = append(regions, DetectedRegion{Rect: pr, AreaPdf: pr.Area()})
	}
	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].AreaPdf > regions[j].AreaPdf
	})

	detectionsTotal.WithLabelValues(name, "ok").Inc()
	detectionDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	regionsPerPage.Observe(float64(len(regions)))
	slog.Debug("region detection complete",
		"engine", name,
		"candidates", len(boxes),
		"accepted", len(regions),
		"duration_ms", time.Since(start).Milliseconds())
	return regions, nil
}

// candidates runs the engine primitives and returns contour boxes relative to
// the image origin.
func (d *Detector) candidates(ctx context.Context, img image.Image, th Thresholds) ([]image.Rectangle, error) {
	gray, err := d.engine.Grayscale(img)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blurred, err := d.engine.Blur(gray)
	if err != nil {
		return nil, err
	}
	edges, err := d.engine.Canny(blurred, th.CannyLow, th.CannyHigh)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	closed, err := d.engine.Dilate(edges, th.DilateIterations)
	if err != nil {
		return nil, err
	}
	return d.engine.ExternalContours(closed)
}

// Accept applies the size and aspect filters to a raster bounding box.
func Accept(r image.Rectangle, pageArea float64, th Thresholds) bool {
	w, h := r.Dx(), r.Dy()
	if w < MinSidePx || h < MinSidePx {
		return false
	}
	if float64(w*h) < th.MinAreaPercent/100*pageArea {
		return false
	}
	ar := float64(w) / float64(h)
	return ar <= MaxAspectRatio && 1/ar <= MaxAspectRatio
}
