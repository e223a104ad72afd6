package detector

import (
	"image"

	"github.com/MeKo-Tech/spreadmap/internal/mempool"
)

// Gradient direction sectors used by non-maximum suppression.
const (
	dirHorizontal = iota
	dirDiagonalDown
	dirVertical
	dirDiagonalUp
)

// tan(22.5deg) and tan(67.5deg)
const (
	tan22 = 0.41421356237
	tan67 = 2.41421356237
)

// cannyEdges runs Sobel gradients, non-maximum suppression and hysteresis.
// The gradient magnitude is |gx|+|gy|, so thresholds are on the same scale as
// OpenCV's Canny with L2gradient=false.
func cannyEdges(src *image.Gray, low, high float64) *image.Gray {
	src = toGray(src)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w < 3 || h < 3 {
		return out
	}
	if low > high {
		low, high = high, low
	}

	p := func(x, y int) float64 { return float64(src.Pix[y*src.Stride+x]) }
	mag := mempool.Float64s(w * h)
	defer mempool.PutFloat64s(mag)
	dir := mempool.Bytes(w * h)
	defer mempool.PutBytes(dir)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -p(x-1, y-1) - 2*p(x-1, y) - p(x-1, y+1) +
				p(x+1, y-1) + 2*p(x+1, y) + p(x+1, y+1)
			gy := -p(x-1, y-1) - 2*p(x, y-1) - p(x+1, y-1) +
				p(x-1, y+1) + 2*p(x, y+1) + p(x+1, y+1)
			ax, ay := abs(gx), abs(gy)
			i := y*w + x
			mag[i] = ax + ay
			switch {
			case ay <= ax*tan22:
				dir[i] = dirHorizontal
			case ay > ax*tan67:
				dir[i] = dirVertical
			case gx*gy > 0:
				dir[i] = dirDiagonalDown
			default:
				dir[i] = dirDiagonalUp
			}
		}
	}

	nms := mempool.Float64s(w * h)
	defer mempool.PutFloat64s(nms)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m < low {
				continue
			}
			var a, b float64
			switch dir[i] {
			case dirHorizontal:
				a, b = mag[i-1], mag[i+1]
			case dirVertical:
				a, b = mag[i-w], mag[i+w]
			case dirDiagonalDown:
				a, b = mag[i-w-1], mag[i+w+1]
			default:
				a, b = mag[i-w+1], mag[i+w-1]
			}
			if m > a && m >= b {
				nms[i] = m
			}
		}
	}

	stack := make([]int, 0, 1024)
	for i, m := range nms {
		if m > 0 && m >= high && out.Pix[i/w*out.Stride+i%w] == 0 {
			out.Pix[i/w*out.Stride+i%w] = 255
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			c := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cx, cy := c%w, c/w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := cx+dx, cy+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := ny*w + nx
					if nms[ni] > 0 && nms[ni] >= low && out.Pix[ny*out.Stride+nx] == 0 {
						out.Pix[ny*out.Stride+nx] = 255
						stack = append(stack, ni)
					}
				}
			}
		}
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
