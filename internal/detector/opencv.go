//go:build opencv

package detector

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

type openCVEngine struct{}

func newOpenCVEngine() (Engine, error) {
	probe := gocv.NewMatWithSize(1, 1, gocv.MatTypeCV8U)
	defer func() { _ = probe.Close() }()
	if probe.Empty() {
		return nil, fmt.Errorf("%w: opencv runtime did not allocate", ErrEngineUnavailable)
	}
	return openCVEngine{}, nil
}

func (openCVEngine) Name() string { return EngineOpenCV }

func (openCVEngine) Grayscale(img image.Image) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, opErr("grayscale", errors.New("empty image"))
	}
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, opErr("grayscale", err)
	}
	defer func() { _ = src.Close() }()
	dst := gocv.NewMat()
	defer func() { _ = dst.Close() }()
	gocv.CvtColor(src, &dst, gocv.ColorRGBToGray)
	return matToGray(dst, "grayscale")
}

func (openCVEngine) Blur(src *image.Gray) (*image.Gray, error) {
	return withGrayMat(src, "blur", func(m gocv.Mat, dst *gocv.Mat) {
		gocv.GaussianBlur(m, dst, image.Pt(5, 5), 0, 0, gocv.BorderDefault)
	})
}

func (openCVEngine) Canny(src *image.Gray, low, high float64) (*image.Gray, error) {
	return withGrayMat(src, "canny", func(m gocv.Mat, dst *gocv.Mat) {
		gocv.Canny(m, dst, float32(low), float32(high))
	})
}

func (openCVEngine) Dilate(src *image.Gray, iterations int) (*image.Gray, error) {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer func() { _ = kernel.Close() }()
	return withGrayMat(src, "dilate", func(m gocv.Mat, dst *gocv.Mat) {
		m.CopyTo(dst)
		for range iterations {
			next := gocv.NewMat()
			gocv.Dilate(*dst, &next, kernel)
			next.CopyTo(dst)
			_ = next.Close()
		}
	})
}

func (openCVEngine) ExternalContours(src *image.Gray) ([]image.Rectangle, error) {
	if src == nil {
		return nil, opErr("contours", errors.New("nil image"))
	}
	m, err := gocv.ImageGrayToMatGray(toGray(src))
	if err != nil {
		return nil, opErr("contours", err)
	}
	defer func() { _ = m.Close() }()
	contours := gocv.FindContours(m, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	boxes := make([]image.Rectangle, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		boxes = append(boxes, gocv.BoundingRect(contours.At(i)))
	}
	return boxes, nil
}

func withGrayMat(src *image.Gray, op string, fn func(m gocv.Mat, dst *gocv.Mat)) (*image.Gray, error) {
	if src == nil {
		return nil, opErr(op, errors.New("nil image"))
	}
	m, err := gocv.ImageGrayToMatGray(toGray(src))
	if err != nil {
		return nil, opErr(op, err)
	}
	defer func() { _ = m.Close() }()
	dst := gocv.NewMat()
	defer func() { _ = dst.Close() }()
	fn(m, &dst)
	return matToGray(dst, op)
}

func matToGray(m gocv.Mat, op string) (*image.Gray, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, opErr(op, err)
	}
	return toGray(img), nil
}

func opErr(op string, err error) error {
	return &EngineError{Engine: EngineOpenCV, Operation: op, Err: err}
}
