package detector

import (
	"image"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fillMask(size image.Rectangle, rects ...image.Rectangle) *image.Gray {
	m := image.NewGray(size)
	for _, r := range rects {
		draw.Draw(m, r, image.White, image.Point{}, draw.Src)
	}
	return m
}

func outline(r image.Rectangle, stroke int) []image.Rectangle {
	return []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+stroke),
		image.Rect(r.Min.X, r.Max.Y-stroke, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+stroke, r.Max.Y),
		image.Rect(r.Max.X-stroke, r.Min.Y, r.Max.X, r.Max.Y),
	}
}

func TestExternalBoxes(t *testing.T) {
	size := image.Rect(0, 0, 100, 100)

	tests := []struct {
		name  string
		mask  *image.Gray
		boxes []image.Rectangle
	}{
		{
			name:  "empty",
			mask:  fillMask(size),
			boxes: nil,
		},
		{
			name:  "single ring counts once",
			mask:  fillMask(size, outline(image.Rect(10, 10, 50, 40), 2)...),
			boxes: []image.Rectangle{image.Rect(10, 10, 50, 40)},
		},
		{
			name: "nested ring is swallowed",
			mask: fillMask(size, append(
				outline(image.Rect(10, 10, 90, 90), 2),
				outline(image.Rect(30, 30, 60, 60), 2)...)...),
			boxes: []image.Rectangle{image.Rect(10, 10, 90, 90)},
		},
		{
			name: "separate blobs in scan order",
			mask: fillMask(size,
				image.Rect(60, 5, 70, 15),
				image.Rect(5, 50, 20, 60)),
			boxes: []image.Rectangle{image.Rect(60, 5, 70, 15), image.Rect(5, 50, 20, 60)},
		},
		{
			name: "diagonal touch joins components",
			mask: fillMask(size,
				image.Rect(10, 10, 20, 20),
				image.Rect(20, 20, 30, 30)),
			boxes: []image.Rectangle{image.Rect(10, 10, 30, 30)},
		},
		{
			name:  "shape touching border",
			mask:  fillMask(size, outline(image.Rect(0, 0, 100, 50), 1)...),
			boxes: []image.Rectangle{image.Rect(0, 0, 100, 50)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.boxes, externalBoxes(tt.mask))
		})
	}
}

func TestDilateBinary(t *testing.T) {
	m := fillMask(image.Rect(0, 0, 10, 10), image.Rect(5, 5, 6, 6))

	once := dilateBinary(m, 3, 1)
	assert.Equal(t, []image.Rectangle{image.Rect(4, 4, 7, 7)}, externalBoxes(once))

	twice := dilateBinary(m, 3, 2)
	assert.Equal(t, []image.Rectangle{image.Rect(3, 3, 8, 8)}, externalBoxes(twice))

	none := dilateBinary(m, 3, 0)
	assert.Equal(t, m.Pix, none.Pix)
}

func TestCannyEdges_StepEdge(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 40, 20))
	draw.Draw(img, image.Rect(20, 0, 40, 20), image.White, image.Point{}, draw.Src)

	edges := cannyEdges(img, 50, 150)

	var cols []int
	for x := 0; x < 40; x++ {
		if edges.GrayAt(x, 10).Y == 255 {
			cols = append(cols, x)
		}
	}
	assert.NotEmpty(t, cols)
	for _, x := range cols {
		assert.InDelta(t, 19.5, float64(x), 1)
	}
	assert.Zero(t, edges.GrayAt(5, 10).Y)
	assert.Zero(t, edges.GrayAt(35, 10).Y)
}

func TestCannyEdges_TinyImage(t *testing.T) {
	edges := cannyEdges(image.NewGray(image.Rect(0, 0, 2, 2)), 10, 20)
	assert.Equal(t, image.Rect(0, 0, 2, 2), edges.Bounds())
}
