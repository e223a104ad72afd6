package detector

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// ErrEngineUnavailable indicates the requested detection backend is not linked
// or failed to initialise. Callers must report it separately from an empty result.
var ErrEngineUnavailable = errors.New("detection engine unavailable")

// Engine names accepted by NewEngine.
const (
	EngineNative = "native"
	EngineOpenCV = "opencv"
)

// Engine exposes the raster primitives used by the detector.
// Binary images use 0 for background and 255 for foreground.
type Engine interface {
	Name() string
	Grayscale(img image.Image) (*image.Gray, error)
	Blur(src *image.Gray) (*image.Gray, error)
	Canny(src *image.Gray, low, high float64) (*image.Gray, error)
	Dilate(src *image.Gray, iterations int) (*image.Gray, error)
	ExternalContours(src *image.Gray) ([]image.Rectangle, error)
}

// EngineError wraps a failure inside one engine primitive.
type EngineError struct {
	Engine    string
	Operation string
	Err       error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s engine %s: %v", e.Engine, e.Operation, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// NewEngine returns the engine registered under name. An empty name selects
// the native engine.
func NewEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EngineNative:
		return newNativeEngine(), nil
	case EngineOpenCV:
		return newOpenCVEngine()
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrEngineUnavailable, name)
	}
}
