package detector

import (
	"image"

	"github.com/MeKo-Tech/spreadmap/internal/mempool"
)

// compStats tracks the bounds of one connected component.
type compStats struct {
	count int
	minX  int
	minY  int
	maxX  int
	maxY  int
}

func (c *compStats) add(x, y int) {
	c.count++
	c.minX = min(c.minX, x)
	c.minY = min(c.minY, y)
	c.maxX = max(c.maxX, x)
	c.maxY = max(c.maxY, y)
}

func (c compStats) rect() image.Rectangle {
	return image.Rect(c.minX, c.minY, c.maxX+1, c.maxY+1)
}

// externalBoxes returns the bounding box of every outermost contour in a
// binary mask, in raster scan order of each contour's first pixel.
//
// Background reachable from the border (4-connected) is "outside". Every
// other pixel is foreground or an enclosed hole, so the 8-connected
// components of the remainder are exactly the regions bounded by external
// contours.
func externalBoxes(mask *image.Gray) []image.Rectangle {
	mask = toGray(mask)
	w, h := mask.Bounds().Dx(), mask.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil
	}
	fg := func(x, y int) bool { return mask.Pix[y*mask.Stride+x] != 0 }

	outside := mempool.Bools(w * h)
	defer mempool.PutBools(outside)
	queue := make([]int, 0, 2*(w+h))
	seed := func(x, y int) {
		i := y*w + x
		if !outside[i] && !fg(x, y) {
			outside[i] = true
			queue = append(queue, i)
		}
	}
	for x := 0; x < w; x++ {
		seed(x, 0)
		seed(x, h-1)
	}
	for y := 0; y < h; y++ {
		seed(0, y)
		seed(w-1, y)
	}
	dirs4 := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		cx, cy := i%w, i/w
		for _, d := range dirs4 {
			nx, ny := cx+d[0], cy+d[1]
			if nx >= 0 && ny >= 0 && nx < w && ny < h {
				seed(nx, ny)
			}
		}
	}

	visited := mempool.Bools(w * h)
	defer mempool.PutBools(visited)
	var boxes []image.Rectangle
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if outside[i] || visited[i] {
				continue
			}
			st := fillComponent(outside, visited, w, h, x, y)
			boxes = append(boxes, st.rect())
		}
	}
	return boxes
}

// fillComponent walks one 8-connected component of non-outside pixels.
func fillComponent(outside, visited []bool, w, h, startX, startY int) compStats {
	st := compStats{minX: startX, minY: startY, maxX: startX, maxY: startY}
	start := startY*w + startX
	visited[start] = true
	queue := []int{start}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		cx, cy := i%w, i/w
		st.add(cx, cy)
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := cx+dx, cy+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if !outside[ni] && !visited[ni] {
					visited[ni] = true
					queue = append(queue, ni)
				}
			}
		}
	}
	return st
}
