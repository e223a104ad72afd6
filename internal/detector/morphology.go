package detector

import (
	"image"

	"github.com/MeKo-Tech/spreadmap/internal/mempool"
)

// dilateBinary grows foreground pixels with a square kernel. Pixels outside the
// image are treated as background. Zero iterations returns a copy of src.
func dilateBinary(src *image.Gray, kernelSize, iterations int) *image.Gray {
	src = toGray(src)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	cur := mempool.Bytes(w * h)
	for y := 0; y < h; y++ {
		copy(cur[y*w:(y+1)*w], src.Pix[y*src.Stride:y*src.Stride+w])
	}
	if kernelSize > 1 {
		for range iterations {
			next := dilateOnce(cur, w, h, kernelSize/2)
			mempool.PutBytes(cur)
			cur = next
		}
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	copy(out.Pix, cur)
	mempool.PutBytes(cur)
	return out
}

// dilateOnce applies a separable max filter of radius half. The result comes
// from mempool.
func dilateOnce(in []uint8, w, h, half int) []uint8 {
	rows := mempool.Bytes(len(in))
	defer mempool.PutBytes(rows)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var m uint8
			for k := max(0, x-half); k <= min(w-1, x+half); k++ {
				if v := in[y*w+k]; v > m {
					m = v
				}
			}
			rows[y*w+x] = m
		}
	}
	out := mempool.Bytes(len(in))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var m uint8
			for k := max(0, y-half); k <= min(h-1, y+half); k++ {
				if v := rows[k*w+x]; v > m {
					m = v
				}
			}
			out[y*w+x] = m
		}
	}
	return out
}
