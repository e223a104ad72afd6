// Package detector finds rectangular tile regions on a rendered catalogue page.
//
// The pipeline is grayscale, Gaussian blur, Canny edges, binary dilation and
// external contour extraction. Each contour's bounding box is filtered by
// size and aspect ratio, then mapped from raster pixels into PDF points.
//
// Two engines implement the primitives. The native engine is pure Go and is
// always available. The OpenCV engine is compiled only with the opencv build
// tag:
//
//	go build -tags opencv ./...
//
// Without that tag, selecting it returns ErrEngineUnavailable.
package detector
