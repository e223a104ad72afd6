package detector

import (
	"errors"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// blurSigma matches the sigma OpenCV derives for a 5x5 kernel when sigma is 0.
const blurSigma = 1.1

type nativeEngine struct{}

func newNativeEngine() *nativeEngine { return &nativeEngine{} }

func (nativeEngine) Name() string { return EngineNative }

func (nativeEngine) Grayscale(img image.Image) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &EngineError{Engine: EngineNative, Operation: "grayscale", Err: errors.New("empty image")}
	}
	return nrgbaToGray(imaging.Grayscale(img)), nil
}

func (nativeEngine) Blur(src *image.Gray) (*image.Gray, error) {
	if src == nil {
		return nil, &EngineError{Engine: EngineNative, Operation: "blur", Err: errors.New("nil image")}
	}
	return nrgbaToGray(imaging.Blur(src, blurSigma)), nil
}

func (nativeEngine) Canny(src *image.Gray, low, high float64) (*image.Gray, error) {
	if src == nil {
		return nil, &EngineError{Engine: EngineNative, Operation: "canny", Err: errors.New("nil image")}
	}
	return cannyEdges(src, low, high), nil
}

func (nativeEngine) Dilate(src *image.Gray, iterations int) (*image.Gray, error) {
	if src == nil {
		return nil, &EngineError{Engine: EngineNative, Operation: "dilate", Err: errors.New("nil image")}
	}
	return dilateBinary(src, 3, iterations), nil
}

func (nativeEngine) ExternalContours(src *image.Gray) ([]image.Rectangle, error) {
	if src == nil {
		return nil, &EngineError{Engine: EngineNative, Operation: "contours", Err: errors.New("nil image")}
	}
	return externalBoxes(src), nil
}

// nrgbaToGray takes the red channel of an already-grayscale NRGBA image and
// rebases the result at the origin.
func nrgbaToGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := y * dst.Stride
		for x := 0; x < b.Dx(); x++ {
			dst.Pix[di+x] = src.Pix[si+x*4]
		}
	}
	return dst
}

// toGray rebases any image onto a zero-origin grayscale raster.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
